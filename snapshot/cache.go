// Package snapshot holds the in-memory, fully-joined view of all events
// and their rosters. The cache is replaced wholesale on every refresh,
// so readers never observe a partially-joined state; between a mutation
// and its refresh they see bounded-stale pre-mutation data.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pelada-app/pelada-system/models"
	"github.com/pelada-app/pelada-system/repositories"
	"github.com/pelada-app/pelada-system/services"
	"github.com/pelada-app/pelada-system/storage"
	"golang.org/x/sync/errgroup"
)

// RefreshListener is notified after every completed refresh with the new
// joined view. The websocket hub implements it to push changes to
// connected clients.
type RefreshListener interface {
	SnapshotRefreshed(events []models.Event)
}

// Cache is the owned, versioned snapshot. Its lifetime is scoped to the
// running server: constructed in main, primed with an initial Refresh,
// and fed by the store's change-notification stream.
type Cache struct {
	eventRepo  repositories.EventRepository
	playerRepo repositories.PlayerRepository
	uploader   storage.FileUploader
	listener   RefreshListener
	logger     *slog.Logger

	mu      sync.RWMutex
	events  []models.Event
	byID    map[int]int
	bySlug  map[string]int
	version uint64
	loaded  bool
}

func NewCache(
	eventRepo repositories.EventRepository,
	playerRepo repositories.PlayerRepository,
	uploader storage.FileUploader,
	listener RefreshListener,
	logger *slog.Logger,
) *Cache {
	return &Cache{
		eventRepo:  eventRepo,
		playerRepo: playerRepo,
		uploader:   uploader,
		listener:   listener,
		logger:     logger,
	}
}

// Refresh fetches the full events and players collections, joins players
// onto their owning event by foreign key, and swaps the exposed view
// atomically. Rows that fail strict deserialization abort the refresh
// and the previous view stays in place.
func (c *Cache) Refresh(ctx context.Context) error {
	var (
		events  []models.Event
		players []models.Player
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = c.eventRepo.ListAll(gCtx)
		if err != nil {
			return fmt.Errorf("failed to fetch events collection: %w: %w", services.ErrStore, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		players, err = c.playerRepo.ListAll(gCtx)
		if err != nil {
			return fmt.Errorf("failed to fetch players collection: %w: %w", services.ErrStore, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	rosters := make(map[int][]models.Player, len(events))
	for _, p := range players {
		rosters[p.EventID] = append(rosters[p.EventID], p)
	}

	byID := make(map[int]int, len(events))
	bySlug := make(map[string]int, len(events))
	for i := range events {
		e := &events[i]
		e.Players = rosters[e.ID]
		if e.Players == nil {
			e.Players = []models.Player{}
		}
		if e.CoverKey != nil && c.uploader != nil {
			url := c.uploader.GetPublicURL(*e.CoverKey)
			e.CoverURL = &url
		}
		byID[e.ID] = i
		bySlug[e.ShareSlug] = i
	}

	c.mu.Lock()
	c.events = events
	c.byID = byID
	c.bySlug = bySlug
	c.version++
	c.loaded = true
	version := c.version
	c.mu.Unlock()

	c.logger.Debug("snapshot refreshed",
		slog.Uint64("version", version),
		slog.Int("events", len(events)),
		slog.Int("players", len(players)))

	if c.listener != nil {
		c.listener.SnapshotRefreshed(events)
	}
	return nil
}

// Run handles the store's change-notification stream: every notification
// triggers a full re-fetch, regardless of which collection fired, until
// the stream closes or the context is cancelled. Writes from other
// clients become visible through this path.
func (c *Cache) Run(ctx context.Context, notifications <-chan string) {
	for {
		select {
		case channel, ok := <-notifications:
			if !ok {
				return
			}
			if err := c.Refresh(ctx); err != nil {
				c.logger.Error("snapshot refresh on store notification failed",
					slog.String("channel", channel), slog.Any("error", err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Events returns the current joined view. The slice is shared and must
// be treated as read-only; it is never patched in place, only replaced.
func (c *Cache) Events() []models.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.events
}

// GetEvent looks an event up in the current snapshot. Absence means the
// id is unknown to the snapshot, whether not yet loaded or nonexistent.
func (c *Cache) GetEvent(id int) (models.Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return models.Event{}, false
	}
	return c.events[i], true
}

// GetEventBySlug resolves a share link's slug against the snapshot.
func (c *Cache) GetEventBySlug(slug string) (models.Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.bySlug[slug]
	if !ok {
		return models.Event{}, false
	}
	return c.events[i], true
}

// Loading reports whether the initial load has not completed yet.
func (c *Cache) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.loaded
}

// Version increments on every completed refresh.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
