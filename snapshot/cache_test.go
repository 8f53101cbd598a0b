package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pelada-app/pelada-system/models"
	"github.com/pelada-app/pelada-system/repositories"
	"github.com/pelada-app/pelada-system/services"
	"github.com/pelada-app/pelada-system/storage"
)

type listEventRepo struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (r *listEventRepo) set(events []models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = events
}

func (r *listEventRepo) ListAll(ctx context.Context) ([]models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]models.Event, len(r.events))
	copy(out, r.events)
	return out, nil
}

func (r *listEventRepo) Create(ctx context.Context, e *models.Event) error { panic("not used") }
func (r *listEventRepo) GetByID(ctx context.Context, id int) (*models.Event, error) {
	panic("not used")
}
func (r *listEventRepo) Update(ctx context.Context, id int, params repositories.UpdateEventParams) error {
	panic("not used")
}
func (r *listEventRepo) UpdateCoverKey(ctx context.Context, id int, coverKey *string) error {
	panic("not used")
}
func (r *listEventRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	panic("not used")
}

type listPlayerRepo struct {
	mu      sync.Mutex
	players []models.Player
	err     error
}

func (r *listPlayerRepo) set(players []models.Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players = players
}

func (r *listPlayerRepo) ListAll(ctx context.Context) ([]models.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]models.Player, len(r.players))
	copy(out, r.players)
	return out, nil
}

func (r *listPlayerRepo) Create(ctx context.Context, p *models.Player) error { panic("not used") }
func (r *listPlayerRepo) ListByEvent(ctx context.Context, eventID int) ([]models.Player, error) {
	panic("not used")
}
func (r *listPlayerRepo) UpdatePosition(ctx context.Context, id int, position int) error {
	panic("not used")
}
func (r *listPlayerRepo) Delete(ctx context.Context, id int) error { panic("not used") }
func (r *listPlayerRepo) DeleteByEvent(ctx context.Context, exec repositories.SQLExecutor, eventID int) error {
	panic("not used")
}

type recordingListener struct {
	mu    sync.Mutex
	calls [][]models.Event
}

func (l *recordingListener) SnapshotRefreshed(events []models.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, events)
}

func (l *recordingListener) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

type publicURLUploader struct{}

func (publicURLUploader) Upload(ctx context.Context, key, contentType string, r io.Reader) (*storage.UploadResult, error) {
	panic("not used")
}
func (publicURLUploader) Delete(ctx context.Context, key string) error { panic("not used") }
func (publicURLUploader) GetPublicURL(key string) string {
	return fmt.Sprintf("https://cdn.test/%s", key)
}

func newCacheFixture(t *testing.T) (*Cache, *listEventRepo, *listPlayerRepo, *recordingListener) {
	t.Helper()
	eventRepo := &listEventRepo{}
	playerRepo := &listPlayerRepo{}
	listener := &recordingListener{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := NewCache(eventRepo, playerRepo, publicURLUploader{}, listener, logger)
	return cache, eventRepo, playerRepo, listener
}

func TestRefreshJoinsPlayersOntoEvents(t *testing.T) {
	cache, eventRepo, playerRepo, listener := newCacheFixture(t)
	ctx := context.Background()

	coverKey := "events/1/cover/abc"
	eventRepo.set([]models.Event{
		{ID: 1, Title: "Tuesday", ShareSlug: "slug-a", Capacity: 10, CoverKey: &coverKey},
		{ID: 2, Title: "Friday", ShareSlug: "slug-b", Capacity: 8},
	})
	playerRepo.set([]models.Player{
		{ID: 11, EventID: 1, Name: "Ana", Position: 1},
		{ID: 12, EventID: 1, Name: "Bruno", Position: 2},
	})

	if !cache.Loading() {
		t.Error("cache should report loading before the first refresh")
	}
	if err := cache.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if cache.Loading() {
		t.Error("cache should not report loading after a refresh")
	}

	tuesday, ok := cache.GetEvent(1)
	if !ok {
		t.Fatal("event 1 missing from snapshot")
	}
	if len(tuesday.Players) != 2 || tuesday.Players[0].Name != "Ana" {
		t.Errorf("event 1 roster = %v, want Ana and Bruno", tuesday.Players)
	}
	if tuesday.CoverURL == nil || *tuesday.CoverURL != "https://cdn.test/"+coverKey {
		t.Errorf("cover URL not resolved: %v", tuesday.CoverURL)
	}

	friday, ok := cache.GetEvent(2)
	if !ok {
		t.Fatal("event 2 missing from snapshot")
	}
	if friday.Players == nil || len(friday.Players) != 0 {
		t.Errorf("empty roster should be a non-nil empty slice, got %v", friday.Players)
	}

	bySlug, ok := cache.GetEventBySlug("slug-b")
	if !ok || bySlug.ID != 2 {
		t.Errorf("GetEventBySlug = %+v, %v; want event 2", bySlug, ok)
	}
	if _, ok := cache.GetEvent(3); ok {
		t.Error("unknown id resolved against the snapshot")
	}
	if listener.callCount() != 1 {
		t.Errorf("listener calls = %d, want 1", listener.callCount())
	}
}

func TestRefreshBumpsVersionAndSwapsWholesale(t *testing.T) {
	cache, eventRepo, playerRepo, _ := newCacheFixture(t)
	ctx := context.Background()

	eventRepo.set([]models.Event{{ID: 1, Title: "Tuesday", ShareSlug: "slug-a", Capacity: 10}})
	if err := cache.Refresh(ctx); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	v1 := cache.Version()

	playerRepo.set([]models.Player{{ID: 11, EventID: 1, Name: "Ana", Position: 1}})
	if err := cache.Refresh(ctx); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if cache.Version() != v1+1 {
		t.Errorf("version = %d, want %d", cache.Version(), v1+1)
	}
	event, _ := cache.GetEvent(1)
	if len(event.Players) != 1 {
		t.Errorf("roster after second refresh = %v, want Ana", event.Players)
	}
}

func TestRefreshFailureKeepsPreviousView(t *testing.T) {
	cache, eventRepo, playerRepo, listener := newCacheFixture(t)
	ctx := context.Background()

	eventRepo.set([]models.Event{{ID: 1, Title: "Tuesday", ShareSlug: "slug-a", Capacity: 10}})
	if err := cache.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	v1 := cache.Version()

	playerRepo.err = errors.New("store down")
	err := cache.Refresh(ctx)
	if !errors.Is(err, services.ErrStore) {
		t.Fatalf("err = %v, want wrapped ErrStore", err)
	}
	if cache.Version() != v1 {
		t.Errorf("failed refresh bumped the version to %d", cache.Version())
	}
	if _, ok := cache.GetEvent(1); !ok {
		t.Error("failed refresh dropped the previous view")
	}
	if listener.callCount() != 1 {
		t.Errorf("listener calls = %d, want 1 (no call on failure)", listener.callCount())
	}
}

func TestRunRefreshesOnNotification(t *testing.T) {
	cache, eventRepo, _, _ := newCacheFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventRepo.set([]models.Event{{ID: 1, Title: "Tuesday", ShareSlug: "slug-a", Capacity: 10}})
	if err := cache.Refresh(ctx); err != nil {
		t.Fatalf("prime Refresh: %v", err)
	}
	v1 := cache.Version()

	notifications := make(chan string)
	done := make(chan struct{})
	go func() {
		cache.Run(ctx, notifications)
		close(done)
	}()

	notifications <- "players_changed"

	deadline := time.After(2 * time.Second)
	for cache.Version() == v1 {
		select {
		case <-deadline:
			t.Fatal("notification did not trigger a refresh")
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(notifications)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the stream closed")
	}
}
