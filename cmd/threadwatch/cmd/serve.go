package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scalytics/threadwatch/internal/bus"
	"github.com/scalytics/threadwatch/internal/config"
	"github.com/scalytics/threadwatch/internal/digest"
	"github.com/scalytics/threadwatch/internal/httpapi"
	"github.com/scalytics/threadwatch/internal/scheduler"
	"github.com/scalytics/threadwatch/internal/slackapi"
	"github.com/scalytics/threadwatch/internal/store"
	"github.com/scalytics/threadwatch/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the intake, worker pool, scheduler, and HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	s, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	eventBus := bus.New(cfg.Bus)
	defer eventBus.Close()

	slackClient := slackapi.New(s, slackapi.Config{
		ClientID:     cfg.Slack.ClientID,
		ClientSecret: cfg.Slack.ClientSecret,
		RedirectURI:  cfg.Slack.RedirectURI,
		OAuthScopes:  cfg.Slack.OAuthScopes,
	})

	weights := digest.Weights{
		Role:  cfg.Query.WeightRole,
		User:  cfg.Query.WeightUser,
		Phase: cfg.Query.WeightPhase,
	}
	lockPath := filepath.Join(filepath.Dir(cfg.Store.DatabasePath), "threadwatch-scheduler.lock")
	sched := scheduler.New(s, slackClient, weights, lockPath)

	srv := httpapi.New(s, eventBus, slackClient, sched, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	pool := worker.New(s, eventBus)
	pool.Start(ctx)

	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("scheduler exited", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: srv.Routes(),
	}
	go func() {
		slog.Info("threadwatch listening", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	<-sigChan
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	cancel()
	pool.Wait()
	return nil
}
