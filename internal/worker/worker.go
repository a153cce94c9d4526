// Package worker drains the three priority queues and turns each routed
// job into thread-state updates, enrichment, and an embedding — one
// goroutine per queue, mirroring the bus's hot/standard/backfill split.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/scalytics/threadwatch/internal/bus"
	"github.com/scalytics/threadwatch/internal/embed"
	"github.com/scalytics/threadwatch/internal/enrich"
	"github.com/scalytics/threadwatch/internal/ingest"
	"github.com/scalytics/threadwatch/internal/store"
	"github.com/scalytics/threadwatch/internal/threadstate"
)

// Pool runs one consumer goroutine per queue against a shared store.
type Pool struct {
	store *store.Store
	bus   bus.EventBus
	wg    sync.WaitGroup
}

// New constructs a Pool.
func New(s *store.Store, b bus.EventBus) *Pool {
	return &Pool{store: s, bus: b}
}

// Start launches one goroutine per queue in bus.Queues and returns
// immediately; every goroutine exits once ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for _, queue := range bus.Queues {
		p.wg.Add(1)
		go p.consume(ctx, queue)
	}
}

// Wait blocks until every consumer goroutine has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) consume(ctx context.Context, queue string) {
	defer p.wg.Done()
	for {
		job, err := p.bus.Consume(ctx, queue)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			slog.Warn("worker: consume error", "queue", queue, "error", err)
			continue
		}
		p.process(queue, job)
	}
}

// process classifies a job's payload, folds it into thread state,
// re-enriches the affected thread, and recomputes its embedding.
// Enrichment and embedding failures are logged and acknowledged — the
// job is never retried, since the reducer already committed the
// underlying thread-state change.
func (p *Pool) process(queue string, job bus.Job) {
	ev := ingest.ToInnerEvent(job.Payload)

	threadTS, err := threadstate.Apply(p.store, ev)
	if err != nil {
		slog.Error("worker: apply thread state failed", "queue", queue, "event_id", job.EventID, "error", err)
		return
	}
	if threadTS == "" {
		// Event carried no channel, or didn't resolve to a thread
		// (e.g. a reaction on a message never seen before).
		if err := p.store.IncrementMetric(queue); err != nil {
			slog.Error("worker: increment metric failed", "queue", queue, "error", err)
		}
		return
	}

	if err := p.reindex(threadTS); err != nil {
		slog.Error("worker: reindex thread failed", "queue", queue, "thread_ts", threadTS, "error", err)
	}

	if err := p.store.IncrementMetric(queue); err != nil {
		slog.Error("worker: increment metric failed", "queue", queue, "error", err)
	}
}

// reindex rebuilds a thread's digest item and embedding from its
// current message set. Called directly by process, and exported as
// Reindex.
func (p *Pool) reindex(threadTS string) error {
	text, messages, err := threadstate.ThreadText(p.store, threadTS)
	if err != nil {
		return err
	}

	item := enrich.Thread(threadTS, text, messages)
	if err := p.store.UpsertDigestItem(item); err != nil {
		return err
	}

	vector := embed.Compute(text)
	if err := p.store.UpsertEmbedding(threadTS, vector); err != nil {
		return err
	}
	return nil
}

// Reindex exposes reindex for callers outside the consumer loop that
// want a synchronous refresh. The backfill and simulator paths do not
// call it; they enqueue jobs through ingest like any other event.
func (p *Pool) Reindex(threadTS string) error {
	return p.reindex(threadTS)
}
