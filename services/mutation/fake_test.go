package mutation

import (
	"context"
	"sync"

	"github.com/nvbf/tournament-desk/models"
	"github.com/nvbf/tournament-desk/repos/store"
)

// ------------------------
// Fake Record Store
// ------------------------

// FakeRecordStore wraps a MemoryStore and lets tests replace Save.
type FakeRecordStore struct {
	mu    sync.Mutex
	trace []string
	saved []*models.TournamentRecord

	memory   *store.MemoryStore
	SaveFunc func(ctx context.Context, tournamentID string, record *models.TournamentRecord) error
}

func NewFakeRecordStore() *FakeRecordStore {
	return &FakeRecordStore{memory: store.NewMemoryStore()}
}

func (f *FakeRecordStore) Save(ctx context.Context, tournamentID string, record *models.TournamentRecord) error {
	f.mu.Lock()
	f.trace = append(f.trace, "Save:"+tournamentID)
	f.saved = append(f.saved, record)
	f.mu.Unlock()
	if f.SaveFunc != nil {
		return f.SaveFunc(ctx, tournamentID, record)
	}
	return f.memory.Save(ctx, tournamentID, record)
}

func (f *FakeRecordStore) Load(ctx context.Context, tournamentID string) (*models.TournamentRecord, error) {
	f.mu.Lock()
	f.trace = append(f.trace, "Load:"+tournamentID)
	f.mu.Unlock()
	return f.memory.Load(ctx, tournamentID)
}

func (f *FakeRecordStore) Saves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func (f *FakeRecordStore) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

// ------------------------
// Fake Notifier
// ------------------------

type FakeNotifier struct {
	mu            sync.Mutex
	notifications []Notification
}

func (f *FakeNotifier) Notify(_ context.Context, n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, n)
}

func (f *FakeNotifier) Kinds() []NotificationKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]NotificationKind, 0, len(f.notifications))
	for _, n := range f.notifications {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

func (f *FakeNotifier) Last() Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.notifications) == 0 {
		return Notification{}
	}
	return f.notifications[len(f.notifications)-1]
}

// ------------------------
// Fake Applier / Listener
// ------------------------

type FakeApplier struct {
	ApplyFunc func(ctx context.Context, batch Batch) (*models.TournamentRecord, Outcome)
}

func (f *FakeApplier) Apply(ctx context.Context, batch Batch) (*models.TournamentRecord, Outcome) {
	if f.ApplyFunc != nil {
		return f.ApplyFunc(ctx, batch)
	}
	return nil, Outcome{Success: true, ModificationsCount: len(batch)}
}

type FakeCommitListener struct {
	mu      sync.Mutex
	commits []Batch
}

func (f *FakeCommitListener) OnCommit(_ context.Context, _ *models.TournamentRecord, batch Batch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, batch)
}

func (f *FakeCommitListener) Commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commits)
}
