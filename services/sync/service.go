package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/nvbf/tournament-desk/models"
	"github.com/nvbf/tournament-desk/pkg/metrics"
	"github.com/nvbf/tournament-desk/repos/realtime"
	"github.com/nvbf/tournament-desk/repos/store"
	"github.com/nvbf/tournament-desk/services/mutation"
	"github.com/nvbf/tournament-desk/services/tournament"
)

var ErrNoTournament = errors.New("no tournament selected")

// Scheduler runs a job where it cannot interleave with a batch being applied.
type Scheduler interface {
	Submit(ctx context.Context, fn func(ctx context.Context)) error
}

type SyncService struct {
	channel   realtime.Channel
	state     *tournament.State
	store     store.RecordStore
	scheduler Scheduler
	metrics   *metrics.Metrics
	log       *slog.Logger

	applied atomic.Int64
	ignored atomic.Int64
}

type Options struct {
	Channel   realtime.Channel
	State     *tournament.State
	Store     store.RecordStore
	Scheduler Scheduler
	Metrics   *metrics.Metrics
	Log       *slog.Logger
}

func NewSyncService(opts Options) *SyncService {
	return &SyncService{
		channel:   opts.Channel,
		state:     opts.State,
		store:     opts.Store,
		scheduler: opts.Scheduler,
		metrics:   opts.Metrics,
		log:       opts.Log,
	}
}

// Start listens for records committed by other sessions.
func (s *SyncService) Start() error {
	return s.channel.On(ActionTournamentMutated, s.onMutated)
}

// OnCommit broadcasts a record this session committed.
func (s *SyncService) OnCommit(ctx context.Context, record *models.TournamentRecord, batch mutation.Batch) {
	s.broadcast(ctx, record, batch.Methods())
}

// Push broadcasts the selected record as it is, so other sessions catch up.
func (s *SyncService) Push(ctx context.Context) error {
	_, record := s.state.Current()
	if record == nil {
		return ErrNoTournament
	}
	s.broadcast(ctx, record, []string{})
	return nil
}

func (s *SyncService) broadcast(ctx context.Context, record *models.TournamentRecord, methods []string) {
	payload := MutatedPayload{
		TournamentID: record.TournamentID,
		Methods:      methods,
		UpdatedAt:    record.UpdatedAt,
		Record:       record,
	}
	if err := s.channel.Emit(ctx, ActionTournamentMutated, payload, nil); err != nil {
		s.log.ErrorContext(ctx, "Failed to broadcast tournament",
			slog.String("tournament_id", record.TournamentID),
			slog.Any("error", err),
		)
	}
}

func (s *SyncService) onMutated(ctx context.Context, event realtime.Event) {
	if event.Origin == s.channel.SessionID() {
		return
	}
	payload, err := realtime.Decode[MutatedPayload](event)
	if err != nil {
		s.log.WarnContext(ctx, "Dropping tournament broadcast", slog.Any("error", err))
		return
	}
	err = s.scheduler.Submit(ctx, func(ctx context.Context) {
		s.Reconcile(ctx, payload.Record)
	})
	if err != nil {
		s.log.WarnContext(ctx, "Could not schedule reconciliation",
			slog.String("tournament_id", payload.TournamentID),
			slog.Any("error", err),
		)
	}
}

// Reconcile replaces the selected record with remote when remote is the same tournament and strictly newer.
// The whole record is swapped; fields are never merged.
func (s *SyncService) Reconcile(ctx context.Context, remote *models.TournamentRecord) bool {
	if remote == nil {
		return false
	}
	tournamentID, current := s.state.Current()
	if tournamentID == "" || remote.TournamentID != tournamentID {
		s.ignore(ctx, remote, "not selected")
		return false
	}
	if current != nil && remote.UpdatedAt <= current.UpdatedAt {
		s.ignore(ctx, remote, "not newer")
		return false
	}
	if !s.state.Replace(remote) {
		s.ignore(ctx, remote, "selection changed")
		return false
	}
	if err := s.store.Save(ctx, remote.TournamentID, remote); err != nil {
		s.log.ErrorContext(ctx, "Failed to persist remote tournament",
			slog.String("tournament_id", remote.TournamentID),
			slog.Any("error", err),
		)
		s.metrics.PersistFailures.Inc()
	}
	s.applied.Add(1)
	s.metrics.RemoteRecords.WithLabelValues("applied").Inc()
	s.log.InfoContext(ctx, "Applied remote tournament",
		slog.String("tournament_id", remote.TournamentID),
		slog.Int64("updated_at", remote.UpdatedAt),
	)
	return true
}

func (s *SyncService) ignore(ctx context.Context, remote *models.TournamentRecord, reason string) {
	s.ignored.Add(1)
	s.metrics.RemoteRecords.WithLabelValues("ignored").Inc()
	s.log.DebugContext(ctx, "Ignored remote tournament",
		slog.String("tournament_id", remote.TournamentID),
		slog.String("reason", reason),
	)
}

func (s *SyncService) GetStatus() Status {
	tournamentID, record := s.state.Current()
	status := Status{
		SessionID:    s.channel.SessionID(),
		TournamentID: tournamentID,
		Applied:      s.applied.Load(),
		Ignored:      s.ignored.Load(),
	}
	if record != nil {
		status.UpdatedAt = record.UpdatedAt
	}
	return status
}
