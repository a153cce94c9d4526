package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/scalytics/threadwatch/internal/bus"
	"github.com/scalytics/threadwatch/internal/config"
	"github.com/scalytics/threadwatch/internal/ingest"
	"github.com/scalytics/threadwatch/internal/simulator"
	"github.com/scalytics/threadwatch/internal/store"
	"github.com/scalytics/threadwatch/internal/worker"
)

var seedJSON bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Ingest the canned demo dataset and wait for it to index",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&seedJSON, "json", false, "emit result as JSON")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	s, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	b := bus.NewMemoryBus()
	ing := ingest.New(s, b)
	pool := worker.New(s, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	results, err := simulator.New(ing, b).SeedMock()
	if err != nil {
		return fmt.Errorf("seed mock dataset: %w", err)
	}

	waitForQueuesToDrain(b, 5*time.Second)

	if seedJSON {
		out, _ := json.MarshalIndent(map[string]any{
			"status":          "ok",
			"events_ingested": len(results),
		}, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d events\n", len(results))
	return nil
}

// waitForQueuesToDrain polls every queue's size until all are empty or
// deadline elapses, so the seeded threads are indexed before the CLI
// exits and the worker goroutines stop consuming.
func waitForQueuesToDrain(b bus.EventBus, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		drained := true
		for _, q := range bus.Queues {
			if b.QueueSize(q) > 0 {
				drained = false
				break
			}
		}
		if drained {
			time.Sleep(50 * time.Millisecond) // let the in-flight job finish processing
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}
