package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/nvbf/tournament-desk/models"
	"github.com/nvbf/tournament-desk/pkg/metrics"
	timehelper "github.com/nvbf/tournament-desk/pkg/timeHelper"
	"github.com/nvbf/tournament-desk/repos/engine"
	"github.com/nvbf/tournament-desk/repos/store"
	"github.com/nvbf/tournament-desk/services/tournament"
)

// Producer applies batches to a draft of the selected record and commits the draft when anything changed.
// Apply must not run concurrently with itself; the dispatcher worker is its only caller.
type Producer struct {
	state    *tournament.State
	store    store.RecordStore
	engine   *engine.Engine
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
	log      *slog.Logger
}

type ProducerOptions struct {
	State    *tournament.State
	Store    store.RecordStore
	Engine   *engine.Engine
	Notifier Notifier
	Metrics  *metrics.Metrics
	Now      func() time.Time
	Log      *slog.Logger
}

func NewProducer(opts ProducerOptions) *Producer {
	p := &Producer{
		state:    opts.State,
		store:    opts.Store,
		engine:   opts.Engine,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		now:      opts.Now,
		log:      opts.Log,
	}
	if p.engine == nil {
		p.engine = engine.New()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Apply runs batch against a clone of the selected record. It returns the record that is committed
// afterwards, which is the untouched original when nothing succeeded.
func (p *Producer) Apply(ctx context.Context, batch Batch) (*models.TournamentRecord, Outcome) {
	tournamentID, record := p.state.Current()
	if tournamentID == "" || record == nil {
		return nil, p.refuse(ctx, "", CodeNoTournament, "no tournament selected")
	}

	draft, err := record.Clone()
	if err != nil {
		p.log.ErrorContext(ctx, "Failed to open draft",
			slog.String("tournament_id", tournamentID),
			slog.Any("error", err),
		)
		return record, p.refuse(ctx, tournamentID, CodeDraftFailed, err.Error())
	}
	p.engine.SetState(draft)
	defer p.engine.SetState(nil)

	outcome := Outcome{
		Results: make([]OperationResult, 0, len(batch)),
		Errors:  []models.ErrorInfo{},
	}
	for _, entry := range batch {
		if !p.engine.Has(entry.Method) {
			p.log.WarnContext(ctx, "Skipping unresolved method",
				slog.String("tournament_id", tournamentID),
				slog.String("method", entry.Method),
			)
			outcome.Results = append(outcome.Results, OperationResult{Method: entry.Method, Unresolved: true})
			continue
		}
		res := p.engine.Execute(entry.Method, entry.Params)
		result := OperationResult{Method: entry.Method, Success: res.Success, Error: res.Error}
		if !res.Success && result.Error == nil {
			result.Error = &models.ErrorInfo{Method: entry.Method, Message: "operation did not succeed"}
		}
		outcome.Results = append(outcome.Results, result)
		if result.Success {
			outcome.ModificationsCount++
			continue
		}
		outcome.Errors = append(outcome.Errors, *result.Error)
	}
	p.count(outcome.Results)

	committed := record
	if outcome.ModificationsCount > 0 {
		committed = p.commit(ctx, tournamentID, p.engine.GetState(), &outcome)
	}
	outcome.Record = committed
	outcome.Success = len(outcome.Errors) == 0

	switch {
	case len(outcome.Errors) > 0:
		p.notifier.Notify(ctx, Notification{
			Kind:         NotifyErrors,
			TournamentID: tournamentID,
			Count:        len(outcome.Errors),
			Message:      fmt.Sprintf("%d of %d operations failed", len(outcome.Errors), len(batch)),
		})
	case outcome.ModificationsCount == 0:
		p.notifier.Notify(ctx, Notification{Kind: NotifyNothingHappened, TournamentID: tournamentID})
	}

	p.log.InfoContext(ctx, "Batch applied",
		slog.String("tournament_id", tournamentID),
		slog.Int("entries", len(batch)),
		slog.Int("modifications", outcome.ModificationsCount),
		slog.Int("errors", len(outcome.Errors)),
		slog.Int("unresolved", lo.CountBy(outcome.Results, func(r OperationResult) bool { return r.Unresolved })),
	)
	p.metrics.Batches.WithLabelValues(batchLabel(outcome)).Inc()
	return committed, outcome
}

// commit stamps the draft, writes it to the local store and swaps it in as the selected record.
// The swap happens even when the write fails; the in-memory record stays authoritative for the session.
func (p *Producer) commit(ctx context.Context, tournamentID string, draft *models.TournamentRecord, outcome *Outcome) *models.TournamentRecord {
	draft.UpdatedAt = timehelper.Millis(p.now())

	if err := p.store.Save(ctx, tournamentID, draft); err != nil {
		p.log.ErrorContext(ctx, "Failed to persist tournament",
			slog.String("tournament_id", tournamentID),
			slog.Any("error", err),
		)
		p.metrics.PersistFailures.Inc()
		outcome.PersistError = err.Error()
		p.notifier.Notify(ctx, Notification{
			Kind:         NotifyPersistFailed,
			TournamentID: tournamentID,
			Count:        1,
			Message:      err.Error(),
		})
	} else {
		outcome.Persisted = true
	}

	if !p.state.Replace(draft) {
		p.log.WarnContext(ctx, "Selection changed while applying, record saved but not selected",
			slog.String("tournament_id", tournamentID),
		)
	}
	return draft
}

func (p *Producer) refuse(ctx context.Context, tournamentID, code, message string) Outcome {
	outcome := refused(code, message)
	p.notifier.Notify(ctx, Notification{
		Kind:         NotifyRefused,
		TournamentID: tournamentID,
		Count:        1,
		Message:      message,
	})
	p.metrics.Batches.WithLabelValues("refused").Inc()
	return outcome
}

func (p *Producer) count(results []OperationResult) {
	for _, r := range results {
		switch {
		case r.Unresolved:
			p.metrics.Operations.WithLabelValues("unresolved", "unresolved").Inc()
		case r.Success:
			p.metrics.Operations.WithLabelValues(r.Method, "success").Inc()
		default:
			p.metrics.Operations.WithLabelValues(r.Method, "error").Inc()
		}
	}
}

func batchLabel(outcome Outcome) string {
	switch {
	case outcome.ModificationsCount == 0 && len(outcome.Errors) == 0:
		return "noop"
	case outcome.ModificationsCount == 0:
		return "failed"
	case len(outcome.Errors) > 0:
		return "partial"
	default:
		return "modified"
	}
}
