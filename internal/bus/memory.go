package bus

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryBus is the default EventBus: one unbounded in-process queue per
// name, a slice guarded by a mutex and condition variable. Publish never
// blocks; the slice grows past its initial capacity rather than dropping
// jobs.
type MemoryBus struct {
	queues map[string]*memQueue
}

type memQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  []Job
	closed   int32
	size     int64
}

const memQueueBuffer = 256

// NewMemoryBus constructs an in-process bus with one queue per name in
// bus.Queues.
func NewMemoryBus() *MemoryBus {
	b := &MemoryBus{queues: make(map[string]*memQueue, len(Queues))}
	for _, q := range Queues {
		mq := &memQueue{pending: make([]Job, 0, memQueueBuffer)}
		mq.cond = sync.NewCond(&mq.mu)
		b.queues[q] = mq
	}
	return b
}

// Publish appends a job to its queue and wakes one waiting consumer.
// It never blocks the caller, matching the intake's non-blocking enqueue
// requirement.
func (b *MemoryBus) Publish(job Job) {
	mq, ok := b.queues[job.Queue]
	if !ok {
		return
	}
	mq.mu.Lock()
	mq.pending = append(mq.pending, job)
	atomic.AddInt64(&mq.size, 1)
	mq.cond.Signal()
	mq.mu.Unlock()
}

// Consume blocks until a job is available on queue or ctx is cancelled.
func (b *MemoryBus) Consume(ctx context.Context, queue string) (Job, error) {
	mq, ok := b.queues[queue]
	if !ok {
		<-ctx.Done()
		return Job{}, ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			mq.mu.Lock()
			mq.cond.Broadcast()
			mq.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	mq.mu.Lock()
	defer mq.mu.Unlock()
	for len(mq.pending) == 0 {
		if ctx.Err() != nil {
			return Job{}, ctx.Err()
		}
		mq.cond.Wait()
	}
	job := mq.pending[0]
	mq.pending = mq.pending[1:]
	atomic.AddInt64(&mq.size, -1)
	return job, nil
}

// QueueSize returns the number of jobs currently pending on queue.
func (b *MemoryBus) QueueSize(queue string) int {
	mq, ok := b.queues[queue]
	if !ok {
		return 0
	}
	return int(atomic.LoadInt64(&mq.size))
}

// Close wakes every blocked consumer; the bus is otherwise stateless to
// tear down.
func (b *MemoryBus) Close() error {
	for _, mq := range b.queues {
		mq.mu.Lock()
		atomic.StoreInt32(&mq.closed, 1)
		mq.cond.Broadcast()
		mq.mu.Unlock()
	}
	return nil
}
