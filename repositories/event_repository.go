package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pelada-app/pelada-system/models"
)

var (
	ErrEventNotFound       = errors.New("event not found")
	ErrEventSlugConflict   = errors.New("event share slug already exists")
	ErrEventInvalidCreator = errors.New("invalid event creator reference")
	ErrEventHasPlayers     = errors.New("event still has roster entries")
)

// UpdateEventParams carries the mutable event fields. Nil means "leave
// unchanged"; title and location intentionally have no update path.
type UpdateEventParams struct {
	Capacity *int
	StartsAt *time.Time
}

type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id int) (*models.Event, error)
	ListAll(ctx context.Context) ([]models.Event, error)
	Update(ctx context.Context, id int, params UpdateEventParams) error
	UpdateCoverKey(ctx context.Context, id int, coverKey *string) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

const eventColumns = `
	id, title, starts_at, location, latitude, longitude, capacity,
	description, duration_minutes, share_slug, cover_key, created_by, created_at`

func (r *postgresEventRepository) Create(ctx context.Context, e *models.Event) error {
	query := `
		INSERT INTO events (
			title, starts_at, location, latitude, longitude, capacity,
			description, duration_minutes, share_slug, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		e.Title, e.StartsAt, e.Location, e.Latitude, e.Longitude, e.Capacity,
		e.Description, e.DurationMinutes, e.ShareSlug, e.CreatedBy,
	).Scan(&e.ID, &e.CreatedAt)

	return r.handleEventError(err)
}

func (r *postgresEventRepository) GetByID(ctx context.Context, id int) (*models.Event, error) {
	query := `SELECT` + eventColumns + ` FROM events WHERE id = $1`

	e := &models.Event{}
	err := r.scanEvent(r.db.QueryRowContext(ctx, query, id), e)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

func (r *postgresEventRepository) ListAll(ctx context.Context) ([]models.Event, error) {
	query := `SELECT` + eventColumns + ` FROM events ORDER BY starts_at ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		var e models.Event
		if scanErr := r.scanEvent(rows, &e); scanErr != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", scanErr)
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

func (r *postgresEventRepository) Update(ctx context.Context, id int, params UpdateEventParams) error {
	query := "UPDATE events SET"
	args := []interface{}{}
	argID := 1

	if params.Capacity != nil {
		query += fmt.Sprintf(" capacity = $%d,", argID)
		args = append(args, *params.Capacity)
		argID++
	}
	if params.StartsAt != nil {
		query += fmt.Sprintf(" starts_at = $%d,", argID)
		args = append(args, *params.StartsAt)
		argID++
	}
	if len(args) == 0 {
		return nil
	}

	query = query[:len(query)-1] + fmt.Sprintf(" WHERE id = $%d", argID)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return r.handleEventError(err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) UpdateCoverKey(ctx context.Context, id int, coverKey *string) error {
	query := `UPDATE events SET cover_key = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, coverKey, id)
	if err != nil {
		return fmt.Errorf("failed to update event cover key: %w", err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := SQLExecutor(r.db)
	if exec != nil {
		executor = exec
	}
	query := `DELETE FROM events WHERE id = $1`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleEventError(err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) scanEvent(rowScanner interface {
	Scan(dest ...interface{}) error
}, e *models.Event) error {
	return rowScanner.Scan(
		&e.ID, &e.Title, &e.StartsAt, &e.Location, &e.Latitude, &e.Longitude,
		&e.Capacity, &e.Description, &e.DurationMinutes, &e.ShareSlug,
		&e.CoverKey, &e.CreatedBy, &e.CreatedAt,
	)
}

func (r *postgresEventRepository) handleEventError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505": // unique_violation
			if pqErr.Constraint == "events_share_slug_key" {
				return ErrEventSlugConflict
			}
		case "23503": // foreign_key_violation
			switch pqErr.Constraint {
			case "events_created_by_fkey":
				return ErrEventInvalidCreator
			case "players_event_id_fkey":
				// Deleting an event that still has players; the cascade
				// must remove the roster first.
				return ErrEventHasPlayers
			}
		}
	}
	return err
}
