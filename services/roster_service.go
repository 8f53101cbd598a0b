package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pelada-app/pelada-system/models"
	"github.com/pelada-app/pelada-system/repositories"
)

// How often AddPlayer recomputes the target position after losing the
// store-level uniqueness race to a concurrent joiner.
const maxPositionRetries = 3

// RosterService owns the numbered-list rules of an event's roster:
// lowest-unused position assignment, capacity enforcement on join, and
// the uniqueness invariant on explicit position moves.
type RosterService struct {
	playerRepo repositories.PlayerRepository
	eventRepo  repositories.EventRepository
	refresher  SnapshotRefresher
	logger     *slog.Logger
}

func NewRosterService(
	playerRepo repositories.PlayerRepository,
	eventRepo repositories.EventRepository,
	refresher SnapshotRefresher,
	logger *slog.Logger,
) *RosterService {
	return &RosterService{
		playerRepo: playerRepo,
		eventRepo:  eventRepo,
		refresher:  refresher,
		logger:     logger,
	}
}

// AddPlayer appends a name to the event's roster at the lowest unused
// position, starting at 1. Removing a middle player leaves a hole that
// the next joiner fills, keeping the numbered list compact.
//
// Capacity is re-checked here regardless of what the caller already
// verified, and the unique (event_id, position) constraint in the store
// is the arbiter between concurrent joiners: on a conflict the roster is
// re-read and the position recomputed.
func (s *RosterService) AddPlayer(ctx context.Context, eventID int, name string) (*models.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrPlayerNameRequired
	}

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event: %w: %w", ErrStore, err)
	}

	for attempt := 0; attempt <= maxPositionRetries; attempt++ {
		players, err := s.playerRepo.ListByEvent(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to load roster: %w: %w", ErrStore, err)
		}
		if len(players) >= event.Capacity {
			return nil, ErrEventFull
		}

		player := &models.Player{
			EventID:  eventID,
			Name:     name,
			Position: lowestUnusedPosition(players),
		}

		err = s.playerRepo.Create(ctx, player)
		if err == nil {
			s.refreshSnapshot(ctx)
			return player, nil
		}
		if errors.Is(err, repositories.ErrPlayerPositionTaken) {
			s.logger.Info("lost position race, retrying",
				slog.Int("event_id", eventID), slog.Int("position", player.Position))
			continue
		}
		if errors.Is(err, repositories.ErrPlayerEventInvalid) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to add player: %w: %w", ErrStore, err)
	}

	return nil, ErrPositionConflict
}

// RemovePlayer deletes the roster entry. Surviving players keep their
// positions; the freed slot is reused by the next joiner. The operation
// does not re-validate creator identity; routing gates it.
func (s *RosterService) RemovePlayer(ctx context.Context, eventID, playerID int) error {
	if err := s.playerRepo.Delete(ctx, playerID); err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		return fmt.Errorf("failed to remove player: %w: %w", ErrStore, err)
	}

	s.refreshSnapshot(ctx)
	return nil
}

// UpdatePlayerPosition moves a player to an explicit slot, rejecting the
// move when another player of the same event already occupies it.
func (s *RosterService) UpdatePlayerPosition(ctx context.Context, eventID, playerID, newPosition int) error {
	if newPosition < 1 {
		return ErrInvalidPosition
	}

	players, err := s.playerRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to load roster: %w: %w", ErrStore, err)
	}

	var target *models.Player
	for i := range players {
		p := &players[i]
		if p.ID == playerID {
			target = p
			continue
		}
		if p.Position == newPosition {
			return ErrPositionConflict
		}
	}
	if target == nil {
		return ErrPlayerNotFound
	}
	if target.Position == newPosition {
		return nil
	}

	if err := s.playerRepo.UpdatePosition(ctx, playerID, newPosition); err != nil {
		switch {
		case errors.Is(err, repositories.ErrPlayerNotFound):
			return ErrPlayerNotFound
		case errors.Is(err, repositories.ErrPlayerPositionTaken):
			// A concurrent writer grabbed the slot between the read and
			// the update; the constraint keeps the invariant.
			return ErrPositionConflict
		}
		return fmt.Errorf("failed to update player position: %w: %w", ErrStore, err)
	}

	s.refreshSnapshot(ctx)
	return nil
}

func (s *RosterService) refreshSnapshot(ctx context.Context) {
	if err := s.refresher.Refresh(ctx); err != nil {
		s.logger.Error("snapshot refresh after mutation failed", slog.Any("error", err))
	}
}

// lowestUnusedPosition scans positive integers from 1 and returns the
// first one absent from the roster.
func lowestUnusedPosition(players []models.Player) int {
	used := make(map[int]bool, len(players))
	for _, p := range players {
		used[p.Position] = true
	}
	pos := 1
	for used[pos] {
		pos++
	}
	return pos
}
