// Package pool runs batches of build jobs concurrently and signals batch
// completion exactly once after every job reaches a terminal state.
package pool

import (
	"context"

	"github.com/exeforge/exeforge/pkg/builder"
	"github.com/exeforge/exeforge/pkg/events"
	"github.com/exeforge/exeforge/pkg/logger"
	"github.com/exeforge/exeforge/pkg/types"
)

// JobFactory builds one job from a spec. The default wires the production
// collaborators; tests substitute stubbed jobs.
type JobFactory func(spec types.JobSpec, log logger.Logger, sink events.Sink) *builder.Job

// Pool schedules build jobs onto worker goroutines, one per job. Job
// count is caller-controlled and expected to be small, so no worker cap
// is applied.
type Pool struct {
	log    logger.Logger
	sink   events.Sink
	newJob JobFactory
}

// New creates a pool with the production job factory.
func New(log logger.Logger, sink events.Sink) *Pool {
	return NewWithFactory(log, sink, builder.New)
}

// NewWithFactory creates a pool with a custom job factory.
func NewWithFactory(log logger.Logger, sink events.Sink, factory JobFactory) *Pool {
	if log == nil {
		log = logger.CreateLogger("", "info")
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Pool{log: log, sink: sink, newJob: factory}
}

// Batch is a handle to one submitted set of jobs: live per-job lookup,
// cancel-all, and a done channel closed once after the last terminal
// state.
type Batch struct {
	jobs []*builder.Job
	byID map[string]*builder.Job
	done chan struct{}
}

// Submit creates one job per spec, starts all of them concurrently, and
// returns immediately. One job's failure has no effect on its siblings;
// the batch-complete event fires regardless of individual outcomes.
func (p *Pool) Submit(ctx context.Context, specs []types.JobSpec) *Batch {
	batch := &Batch{
		jobs: make([]*builder.Job, 0, len(specs)),
		byID: make(map[string]*builder.Job, len(specs)),
		done: make(chan struct{}),
	}

	for _, spec := range specs {
		job := p.newJob(spec, p.log, p.sink)
		batch.jobs = append(batch.jobs, job)
		batch.byID[job.ID()] = job
	}

	go p.run(ctx, batch)
	return batch
}

// run fans the batch out and fans terminal states back in. Jobs recover
// their own panics; the group-level recovery only guards against a bug
// in the scheduling path itself taking down sibling jobs.
func (p *Pool) run(ctx context.Context, batch *Batch) {
	g, ctx := NewSafeGroup(ctx, p.log)
	for _, job := range batch.jobs {
		job := job
		g.Go(func() error {
			job.Run(ctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		p.log.Error("Batch completed with scheduler error", logger.WithField("error", err))
	}

	p.sink.BatchDone()
	close(batch.done)
}

// Jobs returns the batch's jobs in submission order.
func (b *Batch) Jobs() []*builder.Job {
	return b.jobs
}

// Job looks up a job by ID.
func (b *Batch) Job(id string) (*builder.Job, bool) {
	j, ok := b.byID[id]
	return j, ok
}

// State returns a job's current lifecycle state.
func (b *Batch) State(id string) (types.JobState, bool) {
	j, ok := b.byID[id]
	if !ok {
		return "", false
	}
	return j.State(), true
}

// Progress returns a job's last emitted percentage.
func (b *Batch) Progress(id string) (int, bool) {
	j, ok := b.byID[id]
	if !ok {
		return 0, false
	}
	return j.Progress(), true
}

// CancelAll requests cooperative cancellation of every job in the batch.
func (b *Batch) CancelAll() {
	for _, j := range b.jobs {
		j.Stop()
	}
}

// Done returns a channel closed exactly once, after every job reached a
// terminal state and the batch-complete event was emitted.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch is done or the context expires.
func (b *Batch) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Summary tallies terminal states across the batch. Meaningful once the
// batch is done.
func (b *Batch) Summary() (succeeded, failed, cancelled int) {
	for _, j := range b.jobs {
		switch j.State() {
		case types.JobStateSucceeded:
			succeeded++
		case types.JobStateFailed:
			failed++
		case types.JobStateCancelled:
			cancelled++
		}
	}
	return
}
