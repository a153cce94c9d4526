package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

// topicFor maps a queue name to its Kafka topic.
func topicFor(queue string) string {
	return "events." + queue
}

// KafkaBus publishes routed jobs to one topic per queue
// (events.hot/events.standard/events.backfill) and reads them back through
// a dedicated reader per queue, for deployments that run more than one
// worker process against a shared broker.
type KafkaBus struct {
	writers map[string]*kafka.Writer
	readers map[string]*kafka.Reader
	sizes   map[string]*int64
}

// NewKafkaBus dials brokers and sets up one writer/reader pair per queue.
func NewKafkaBus(brokers []string, consumerGroup string) *KafkaBus {
	b := &KafkaBus{
		writers: make(map[string]*kafka.Writer, len(Queues)),
		readers: make(map[string]*kafka.Reader, len(Queues)),
		sizes:   make(map[string]*int64, len(Queues)),
	}
	for _, q := range Queues {
		topic := topicFor(q)
		b.writers[q] = &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		}
		b.readers[q] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  consumerGroup,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
		var zero int64
		b.sizes[q] = &zero
	}
	return b
}

// Publish marshals the job and writes it to the queue's topic. A write
// failure is logged and swallowed, matching intake's non-blocking,
// never-fatal-to-the-caller enqueue contract.
func (b *KafkaBus) Publish(job Job) {
	w, ok := b.writers[job.Queue]
	if !ok {
		return
	}
	buf, err := json.Marshal(job)
	if err != nil {
		slog.Error("bus: marshal job", "queue", job.Queue, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.WriteMessages(ctx, kafka.Message{Key: []byte(job.EventID), Value: buf}); err != nil {
		slog.Error("bus: publish", "queue", job.Queue, "error", err)
		return
	}
	atomic.AddInt64(b.sizes[job.Queue], 1)
}

// Consume reads the next message from the queue's topic.
func (b *KafkaBus) Consume(ctx context.Context, queue string) (Job, error) {
	r, ok := b.readers[queue]
	if !ok {
		<-ctx.Done()
		return Job{}, ctx.Err()
	}
	msg, err := r.ReadMessage(ctx)
	if err != nil {
		return Job{}, err
	}
	var job Job
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		return Job{}, err
	}
	atomic.AddInt64(b.sizes[queue], -1)
	return job, nil
}

// QueueSize reports an approximate in-flight count: jobs published minus
// jobs consumed by this process. Kafka itself does not expose an exact
// pending-message count per consumer group cheaply.
func (b *KafkaBus) QueueSize(queue string) int {
	p, ok := b.sizes[queue]
	if !ok {
		return 0
	}
	n := atomic.LoadInt64(p)
	if n < 0 {
		return 0
	}
	return int(n)
}

// Close shuts down every writer and reader.
func (b *KafkaBus) Close() error {
	for _, w := range b.writers {
		_ = w.Close()
	}
	for _, r := range b.readers {
		_ = r.Close()
	}
	return nil
}
