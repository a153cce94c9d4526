// Package simulator replays canned Slack event scenarios through the
// real intake path, for demos and manual smoke-testing without a
// Slack connection.
package simulator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/scalytics/threadwatch/internal/bus"
	"github.com/scalytics/threadwatch/internal/ingest"
)

// ErrAlreadyRunning is returned by Start when a scenario is already
// streaming.
var ErrAlreadyRunning = errors.New("simulation_already_running")

// Status is the /simulate/status response shape.
type Status struct {
	Running      bool           `json:"running"`
	ScenarioID   string         `json:"scenario_id,omitempty"`
	RunID        string         `json:"run_id,omitempty"`
	EmittedCount int            `json:"emitted_count"`
	LastEventID  string         `json:"last_event_id,omitempty"`
	QueueSizes   map[string]int `json:"queue_sizes"`
}

// Driver owns the single in-flight scenario stream. Only one scenario
// can run at a time, matching the original's single global STATE.
type Driver struct {
	ingestor *ingest.Ingestor
	bus      bus.EventBus

	mu           sync.Mutex
	running      bool
	scenarioID   string
	runID        string
	emittedCount int
	lastEventID  string
	cancel       context.CancelFunc
}

// New constructs a Driver.
func New(ing *ingest.Ingestor, b bus.EventBus) *Driver {
	return &Driver{ingestor: ing, bus: b}
}

// Start begins streaming scenarioID's canned events at speedMultiplier
// events/sec (1.0 = one event per second, matching the dataset's
// tick spacing), stopping after maxEvents if > 0, looping indefinitely
// if loop is true. Returns ErrAlreadyRunning if a scenario is already
// streaming.
func (d *Driver) Start(scenarioID string, speedMultiplier float64, maxEvents int, loop bool, runID string) error {
	clock := NewClock()
	events, err := ScenarioEvents(scenarioID, clock)
	if err != nil {
		return err
	}

	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	if speedMultiplier <= 0 {
		speedMultiplier = 1.0
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.running = true
	d.scenarioID = scenarioID
	d.runID = runID
	d.emittedCount = 0
	d.lastEventID = ""
	d.cancel = cancel
	d.mu.Unlock()

	go d.stream(ctx, events, speedMultiplier, maxEvents, loop)
	return nil
}

func (d *Driver) stream(ctx context.Context, events []ingest.Envelope, speedMultiplier float64, maxEvents int, loop bool) {
	delay := time.Duration(float64(time.Second) / speedMultiplier)
	for {
		for _, env := range events {
			select {
			case <-ctx.Done():
				d.finish()
				return
			default:
			}

			if _, err := d.ingestor.Ingest(env, ""); err != nil {
				slog.Error("simulator: ingest failed", "event_id", env.EventID, "error", err)
			}

			d.mu.Lock()
			d.emittedCount++
			d.lastEventID = env.EventID
			stop := maxEvents > 0 && d.emittedCount >= maxEvents
			d.mu.Unlock()
			if stop {
				d.finish()
				return
			}

			select {
			case <-ctx.Done():
				d.finish()
				return
			case <-time.After(delay):
			}
		}
		if !loop {
			break
		}
	}
	d.finish()
}

func (d *Driver) finish() {
	d.mu.Lock()
	d.running = false
	d.cancel = nil
	d.mu.Unlock()
}

// Stop halts the in-flight stream, if any. Safe to call when nothing
// is running.
func (d *Driver) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.running = false
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Status reports the driver's current state plus live queue depths.
func (d *Driver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	sizes := make(map[string]int, len(bus.Queues))
	for _, q := range bus.Queues {
		sizes[q] = d.bus.QueueSize(q)
	}
	return Status{
		Running:      d.running,
		ScenarioID:   d.scenarioID,
		RunID:        d.runID,
		EmittedCount: d.emittedCount,
		LastEventID:  d.lastEventID,
		QueueSizes:   sizes,
	}
}

// Reset stops any in-flight stream and clears all state back to the
// zero value.
func (d *Driver) Reset() {
	d.Stop()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scenarioID = ""
	d.runID = ""
	d.emittedCount = 0
	d.lastEventID = ""
}

// SeedMock ingests the carbon-fiber demo fixture synchronously (no
// tick delay), so a fresh instance can be smoke-tested without
// waiting on the streamer.
func (d *Driver) SeedMock() ([]ingest.Result, error) {
	events, err := ScenarioEvents("carbon_fiber_demo", NewClock())
	if err != nil {
		return nil, err
	}
	results := make([]ingest.Result, 0, len(events))
	for _, env := range events {
		result, err := d.ingestor.Ingest(env, "")
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}
