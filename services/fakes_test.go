package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pelada-app/pelada-system/models"
	"github.com/pelada-app/pelada-system/repositories"
	"github.com/pelada-app/pelada-system/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEventRepo is an in-memory EventRepository with per-method error
// injection for failure-path tests.
type fakeEventRepo struct {
	mu     sync.Mutex
	events map[int]*models.Event
	nextID int

	getErr    error
	updateErr error
	deleteErr error
	listErr   error
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[int]*models.Event), nextID: 1}
}

func (r *fakeEventRepo) seed(e models.Event) *models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == 0 {
		e.ID = r.nextID
		r.nextID++
	} else if e.ID >= r.nextID {
		r.nextID = e.ID + 1
	}
	r.events[e.ID] = &e
	return &e
}

func (r *fakeEventRepo) Create(ctx context.Context, e *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = r.nextID
	r.nextID++
	e.CreatedAt = time.Now()
	stored := *e
	r.events[e.ID] = &stored
	return nil
}

func (r *fakeEventRepo) GetByID(ctx context.Context, id int) (*models.Event, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, repositories.ErrEventNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *fakeEventRepo) ListAll(ctx context.Context) ([]models.Event, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Event, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeEventRepo) Update(ctx context.Context, id int, params repositories.UpdateEventParams) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return repositories.ErrEventNotFound
	}
	if params.Capacity != nil {
		e.Capacity = *params.Capacity
	}
	if params.StartsAt != nil {
		e.StartsAt = *params.StartsAt
	}
	return nil
}

func (r *fakeEventRepo) UpdateCoverKey(ctx context.Context, id int, coverKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return repositories.ErrEventNotFound
	}
	e.CoverKey = coverKey
	return nil
}

func (r *fakeEventRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return repositories.ErrEventNotFound
	}
	delete(r.events, id)
	return nil
}

// fakePlayerRepo enforces the same (event_id, position) uniqueness the
// store does, so conflict paths behave like production.
type fakePlayerRepo struct {
	mu      sync.Mutex
	players map[int]*models.Player
	nextID  int

	// beforeCreate runs once before the next insert and then clears
	// itself; tests use it to slip in a competing writer.
	beforeCreate func()

	listErr          error
	deleteByEventErr error
}

func newFakePlayerRepo() *fakePlayerRepo {
	return &fakePlayerRepo{players: make(map[int]*models.Player), nextID: 1}
}

func (r *fakePlayerRepo) seed(p models.Player) *models.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		p.ID = r.nextID
		r.nextID++
	} else if p.ID >= r.nextID {
		r.nextID = p.ID + 1
	}
	r.players[p.ID] = &p
	return &p
}

func (r *fakePlayerRepo) Create(ctx context.Context, p *models.Player) error {
	if hook := r.beforeCreate; hook != nil {
		r.beforeCreate = nil
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.players {
		if existing.EventID == p.EventID && existing.Position == p.Position {
			return repositories.ErrPlayerPositionTaken
		}
	}
	p.ID = r.nextID
	r.nextID++
	p.AddedAt = time.Now()
	stored := *p
	r.players[p.ID] = &stored
	return nil
}

func (r *fakePlayerRepo) ListByEvent(ctx context.Context, eventID int) ([]models.Player, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Player, 0)
	for _, p := range r.players {
		if p.EventID == eventID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *fakePlayerRepo) ListAll(ctx context.Context) ([]models.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EventID != out[j].EventID {
			return out[i].EventID < out[j].EventID
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (r *fakePlayerRepo) UpdatePosition(ctx context.Context, id int, position int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.players[id]
	if !ok {
		return repositories.ErrPlayerNotFound
	}
	for _, p := range r.players {
		if p.ID != id && p.EventID == target.EventID && p.Position == position {
			return repositories.ErrPlayerPositionTaken
		}
	}
	target.Position = position
	return nil
}

func (r *fakePlayerRepo) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[id]; !ok {
		return repositories.ErrPlayerNotFound
	}
	delete(r.players, id)
	return nil
}

func (r *fakePlayerRepo) DeleteByEvent(ctx context.Context, exec repositories.SQLExecutor, eventID int) error {
	if r.deleteByEventErr != nil {
		return r.deleteByEventErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.players {
		if p.EventID == eventID {
			delete(r.players, id)
		}
	}
	return nil
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRefresher) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeRefresher) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeUploader struct {
	uploaded    []string
	deletedKeys []string
}

func (f *fakeUploader) Upload(ctx context.Context, key, contentType string, body io.Reader) (*storage.UploadResult, error) {
	f.uploaded = append(f.uploaded, key)
	return &storage.UploadResult{Key: key, Location: "https://cdn.test/" + key}, nil
}

func (f *fakeUploader) Delete(ctx context.Context, key string) error {
	f.deletedKeys = append(f.deletedKeys, key)
	return nil
}

func (f *fakeUploader) GetPublicURL(key string) string {
	return fmt.Sprintf("https://cdn.test/%s", key)
}
