package mutation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nvbf/tournament-desk/models"
)

const DefaultQueueSize = 64

var ErrStopped = errors.New("dispatcher stopped")

// Applier applies one batch and reports what it committed.
type Applier interface {
	Apply(ctx context.Context, batch Batch) (*models.TournamentRecord, Outcome)
}

// CommitListener hears about every batch that changed the record, after it was persisted.
type CommitListener interface {
	OnCommit(ctx context.Context, record *models.TournamentRecord, batch Batch)
}

type job struct {
	ctx      context.Context
	batch    Batch
	callback Callback
	fn       func(ctx context.Context)
}

// Dispatcher serialises batches and other record jobs through one FIFO queue and one worker.
type Dispatcher struct {
	applier Applier
	tracer  trace.Tracer
	log     *slog.Logger

	queue chan job
	done  chan struct{}

	// mu guards closing the queue against concurrent sends.
	mu      sync.RWMutex
	stopped atomic.Bool

	listenersMu sync.Mutex
	listeners   []CommitListener
}

func NewDispatcher(applier Applier, queueSize int, tracer trace.Tracer, log *slog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		applier: applier,
		tracer:  tracer,
		log:     log,
		queue:   make(chan job, queueSize),
		done:    make(chan struct{}),
	}
	go d.work()
	return d
}

func (d *Dispatcher) AddListener(l CommitListener) {
	d.listenersMu.Lock()
	defer d.listenersMu.Unlock()
	d.listeners = append(d.listeners, l)
}

// Dispatch queues the batch and returns. The callback is called exactly once, after persistence
// was attempted, or with a refusal when the batch never ran.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) {
	j := job{ctx: context.WithoutCancel(ctx), batch: req.Methods, callback: req.Callback}
	if err := d.enqueue(ctx, j); err != nil {
		code := CodeDispatcherStopped
		if !errors.Is(err, ErrStopped) {
			code = CodeDispatchCancelled
		}
		d.finish(j, refused(code, err.Error()))
	}
}

// DispatchSync dispatches and waits for the outcome. ctx only bounds the wait for a queue slot:
// a queued batch runs to completion and its own outcome is returned.
func (d *Dispatcher) DispatchSync(ctx context.Context, batch Batch) Outcome {
	result := make(chan Outcome, 1)
	d.Dispatch(ctx, Request{Methods: batch, Callback: func(o Outcome) { result <- o }})
	return <-result
}

// Submit runs fn on the worker, between batches.
func (d *Dispatcher) Submit(ctx context.Context, fn func(ctx context.Context)) error {
	return d.enqueue(ctx, job{ctx: context.WithoutCancel(ctx), fn: fn})
}

func (d *Dispatcher) enqueue(ctx context.Context, j job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped.Load() {
		return ErrStopped
	}
	select {
	case d.queue <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop waits for the running job. Jobs still queued are not run; their callbacks get DISPATCHER_STOPPED.
func (d *Dispatcher) Stop() {
	if d.stopped.Swap(true) {
		<-d.done
		return
	}
	d.mu.Lock()
	close(d.queue)
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) work() {
	defer close(d.done)
	for j := range d.queue {
		if d.stopped.Load() {
			d.finish(j, refused(CodeDispatcherStopped, ErrStopped.Error()))
			continue
		}
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	if j.fn != nil {
		d.safely(j.ctx, "job", func() { j.fn(j.ctx) })
		return
	}
	if len(j.batch) == 0 {
		d.finish(j, refused(CodeEmptyBatch, "batch has no operations"))
		return
	}

	ctx, span := d.tracer.Start(j.ctx, "mutation.apply", trace.WithAttributes(
		attribute.Int("batch.size", len(j.batch)),
		attribute.StringSlice("batch.methods", j.batch.Methods()),
	))
	record, outcome := d.applier.Apply(ctx, j.batch)
	span.SetAttributes(
		attribute.Int("batch.modifications", outcome.ModificationsCount),
		attribute.Int("batch.errors", len(outcome.Errors)),
	)
	if !outcome.Success {
		span.SetStatus(codes.Error, "batch had errors")
	}
	span.End()

	if outcome.ModificationsCount > 0 {
		d.listenersMu.Lock()
		listeners := append([]CommitListener(nil), d.listeners...)
		d.listenersMu.Unlock()
		for _, l := range listeners {
			d.safely(ctx, "commit listener", func() { l.OnCommit(ctx, record, j.batch) })
		}
	}
	d.finish(j, outcome)
}

func (d *Dispatcher) finish(j job, outcome Outcome) {
	if j.callback == nil {
		return
	}
	d.safely(j.ctx, "callback", func() { j.callback(outcome) })
}

func (d *Dispatcher) safely(ctx context.Context, what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.ErrorContext(ctx, "Recovered from panic", slog.String("in", what), slog.Any("panic", r))
		}
	}()
	fn()
}
