package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pelada-app/pelada-system/models"
)

var (
	ErrPlayerNotFound      = errors.New("player not found")
	ErrPlayerPositionTaken = errors.New("position already taken for this event")
	ErrPlayerEventInvalid  = errors.New("player event conflict or invalid")
)

type PlayerRepository interface {
	Create(ctx context.Context, p *models.Player) error
	ListByEvent(ctx context.Context, eventID int) ([]models.Player, error)
	ListAll(ctx context.Context) ([]models.Player, error)
	UpdatePosition(ctx context.Context, id int, position int) error
	Delete(ctx context.Context, id int) error
	DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) Create(ctx context.Context, p *models.Player) error {
	query := `
		INSERT INTO players (event_id, name, position)
		VALUES ($1, $2, $3)
		RETURNING id, added_at`

	err := r.db.QueryRowContext(ctx, query, p.EventID, p.Name, p.Position).
		Scan(&p.ID, &p.AddedAt)

	return r.handlePlayerError(err)
}

func (r *postgresPlayerRepository) ListByEvent(ctx context.Context, eventID int) ([]models.Player, error) {
	query := `
		SELECT id, event_id, name, position, added_at
		FROM players
		WHERE event_id = $1
		ORDER BY position ASC`

	return r.queryPlayers(ctx, query, eventID)
}

func (r *postgresPlayerRepository) ListAll(ctx context.Context) ([]models.Player, error) {
	query := `
		SELECT id, event_id, name, position, added_at
		FROM players
		ORDER BY event_id ASC, position ASC`

	return r.queryPlayers(ctx, query)
}

func (r *postgresPlayerRepository) queryPlayers(ctx context.Context, query string, args ...interface{}) ([]models.Player, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	players := make([]models.Player, 0)
	for rows.Next() {
		var p models.Player
		if scanErr := rows.Scan(&p.ID, &p.EventID, &p.Name, &p.Position, &p.AddedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", scanErr)
		}
		players = append(players, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player rows: %w", err)
	}
	return players, nil
}

func (r *postgresPlayerRepository) UpdatePosition(ctx context.Context, id int, position int) error {
	query := `UPDATE players SET position = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, position, id)
	if err != nil {
		return r.handlePlayerError(err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM players WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

// DeleteByEvent removes every roster entry of an event. Zero affected
// rows is not an error: an empty roster is a valid state to cascade from.
func (r *postgresPlayerRepository) DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error {
	executor := SQLExecutor(r.db)
	if exec != nil {
		executor = exec
	}
	query := `DELETE FROM players WHERE event_id = $1`
	if _, err := executor.ExecContext(ctx, query, eventID); err != nil {
		return fmt.Errorf("failed to delete players of event %d: %w", eventID, err)
	}
	return nil
}

func (r *postgresPlayerRepository) handlePlayerError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505": // unique_violation
			if pqErr.Constraint == "players_event_id_position_key" {
				return ErrPlayerPositionTaken
			}
		case "23503": // foreign_key_violation
			if pqErr.Constraint == "players_event_id_fkey" {
				return ErrPlayerEventInvalid
			}
		}
	}
	return err
}
