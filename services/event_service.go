package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pelada-app/pelada-system/models"
	"github.com/pelada-app/pelada-system/repositories"
	"github.com/pelada-app/pelada-system/storage"
)

// SnapshotRefresher is the in-memory snapshot's refresh hook. Services
// call it after every successful mutation so readers see the new state.
type SnapshotRefresher interface {
	Refresh(ctx context.Context) error
}

type CreateEventInput struct {
	Title           string    `json:"title"`
	StartsAt        time.Time `json:"starts_at"`
	Location        string    `json:"location"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
	Capacity        int       `json:"capacity"`
	Description     *string   `json:"description,omitempty"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
}

type UpdateEventInput struct {
	Capacity *int       `json:"capacity,omitempty"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
}

// EventService owns event-level mutations: creation, the creator-only
// capacity/reschedule updates, the cascade delete, and cover uploads.
type EventService struct {
	eventRepo  repositories.EventRepository
	playerRepo repositories.PlayerRepository
	uploader   storage.FileUploader
	refresher  SnapshotRefresher
	logger     *slog.Logger
}

func NewEventService(
	eventRepo repositories.EventRepository,
	playerRepo repositories.PlayerRepository,
	uploader storage.FileUploader,
	refresher SnapshotRefresher,
	logger *slog.Logger,
) *EventService {
	return &EventService{
		eventRepo:  eventRepo,
		playerRepo: playerRepo,
		uploader:   uploader,
		refresher:  refresher,
		logger:     logger,
	}
}

// Create persists a new event owned by the acting user, with an empty
// roster and a fresh share slug.
func (s *EventService) Create(ctx context.Context, input CreateEventInput, actingUserID int) (*models.Event, error) {
	if actingUserID <= 0 {
		return nil, ErrUnauthenticated
	}
	if input.Title == "" {
		return nil, ErrEventTitleRequired
	}
	if input.Location == "" {
		return nil, ErrEventLocationRequired
	}
	if input.Capacity <= 0 {
		return nil, ErrEventInvalidCapacity
	}
	if input.StartsAt.IsZero() {
		return nil, ErrEventInvalidDate
	}

	event := &models.Event{
		Title:           input.Title,
		StartsAt:        input.StartsAt,
		Location:        input.Location,
		Latitude:        input.Latitude,
		Longitude:       input.Longitude,
		Capacity:        input.Capacity,
		Description:     input.Description,
		DurationMinutes: input.DurationMinutes,
		ShareSlug:       uuid.NewString(),
		CreatedBy:       actingUserID,
		Players:         []models.Player{},
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w: %w", ErrStore, err)
	}

	s.refreshSnapshot(ctx)
	s.resolveCoverURL(event)
	return event, nil
}

// Update applies the creator's partial edit. Ordering matters: the
// ownership check runs before any field validation, and a capacity
// change is rejected when it would drop below the current roster size.
func (s *EventService) Update(ctx context.Context, eventID int, input UpdateEventInput, actingUserID int) error {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.CreatedBy != actingUserID {
		return ErrForbiddenOperation
	}

	if input.Capacity != nil {
		if *input.Capacity <= 0 {
			return ErrEventInvalidCapacity
		}
		players, err := s.playerRepo.ListByEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to count roster for capacity check: %w: %w", ErrStore, err)
		}
		if *input.Capacity < len(players) {
			return ErrCapacityBelowRoster
		}
	}

	params := repositories.UpdateEventParams{
		Capacity: input.Capacity,
		StartsAt: input.StartsAt,
	}
	if err := s.eventRepo.Update(ctx, eventID, params); err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to update event: %w: %w", ErrStore, err)
	}

	s.refreshSnapshot(ctx)
	return nil
}

// Delete cascades: the roster is removed first, the event second. A
// failure in the players phase leaves the event row intact, so the worst
// partial outcome is an event with a truncated roster, never orphaned
// players pointing at a missing event.
func (s *EventService) Delete(ctx context.Context, eventID int, actingUserID int) error {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.CreatedBy != actingUserID {
		return ErrForbiddenOperation
	}

	if err := s.playerRepo.DeleteByEvent(ctx, nil, eventID); err != nil {
		return fmt.Errorf("cascade delete aborted in players phase: %w: %w", ErrStore, err)
	}
	if err := s.eventRepo.Delete(ctx, nil, eventID); err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to delete event: %w: %w", ErrStore, err)
	}

	if event.CoverKey != nil && s.uploader != nil {
		if err := s.uploader.Delete(ctx, *event.CoverKey); err != nil {
			s.logger.Warn("failed to delete event cover object",
				slog.Int("event_id", eventID), slog.Any("error", err))
		}
	}

	s.refreshSnapshot(ctx)
	return nil
}

// UploadCover stores a cover image for the event and replaces the
// previous object, if any.
func (s *EventService) UploadCover(ctx context.Context, eventID int, actingUserID int, contentType string, body io.Reader) (string, error) {
	if s.uploader == nil {
		return "", errors.New("cover uploads are not configured")
	}

	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return "", err
	}
	if event.CreatedBy != actingUserID {
		return "", ErrForbiddenOperation
	}

	key := fmt.Sprintf("events/%d/cover/%s", eventID, uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, contentType, body)
	if err != nil {
		return "", fmt.Errorf("failed to upload event cover: %w", err)
	}

	if err := s.eventRepo.UpdateCoverKey(ctx, eventID, &result.Key); err != nil {
		return "", fmt.Errorf("failed to store event cover key: %w: %w", ErrStore, err)
	}

	if event.CoverKey != nil && *event.CoverKey != result.Key {
		if err := s.uploader.Delete(ctx, *event.CoverKey); err != nil {
			s.logger.Warn("failed to delete previous event cover object",
				slog.Int("event_id", eventID), slog.Any("error", err))
		}
	}

	s.refreshSnapshot(ctx)
	return s.uploader.GetPublicURL(result.Key), nil
}

func (s *EventService) getEvent(ctx context.Context, eventID int) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event: %w: %w", ErrStore, err)
	}
	return event, nil
}

func (s *EventService) refreshSnapshot(ctx context.Context) {
	if err := s.refresher.Refresh(ctx); err != nil {
		s.logger.Error("snapshot refresh after mutation failed", slog.Any("error", err))
	}
}

func (s *EventService) resolveCoverURL(event *models.Event) {
	if event.CoverKey != nil && s.uploader != nil {
		url := s.uploader.GetPublicURL(*event.CoverKey)
		event.CoverURL = &url
	}
}
