// Package scheduler runs the periodic digest-delivery tick loop and the
// manual run_now path, both against the same persisted Schedule rows.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/scalytics/threadwatch/internal/delivery"
	"github.com/scalytics/threadwatch/internal/digest"
	"github.com/scalytics/threadwatch/internal/slackapi"
	"github.com/scalytics/threadwatch/internal/store"
)

// CheckInterval is the tick period.
const CheckInterval = 60 * time.Second

// DigestItemCount is how many items run_now and the periodic tick each
// request from the digest builder.
const DigestItemCount = 10

// ErrScheduleNotFound is returned by RunNow for an unknown schedule id.
var ErrScheduleNotFound = errors.New("schedule_not_found")

// Scheduler owns the tick loop. Unlike a generic job scheduler it holds
// no registered-job map — schedules live entirely in the store and are
// re-read every tick, so editing a schedule takes effect on the next
// tick with no restart.
type Scheduler struct {
	store   *store.Store
	slack   *slackapi.Client
	weights digest.Weights
	lock    *FileLock
}

// New constructs a Scheduler. weights is the default query-vector
// weighting applied to every scheduled digest build. lockPath guards
// against two scheduler instances ticking concurrently against the
// same database; pass "" to use the OS temp dir default.
func New(s *store.Store, slackClient *slackapi.Client, weights digest.Weights, lockPath string) *Scheduler {
	if lockPath == "" {
		lockPath = filepath.Join(os.TempDir(), "threadwatch-scheduler.lock")
	}
	return &Scheduler{store: s, slack: slackClient, weights: weights, lock: NewFileLock(lockPath)}
}

// Run blocks, ticking every CheckInterval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler started", "interval", CheckInterval)
	ticker := time.NewTicker(CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick evaluates every enabled schedule once. A single schedule's
// failure is logged and does not abort the loop; the tick itself is
// skipped entirely if another process already holds the lock.
func (s *Scheduler) tick(ctx context.Context) {
	acquired, err := s.lock.TryLock()
	if err != nil {
		slog.Warn("scheduler: lock error", "error", err)
		return
	}
	if !acquired {
		slog.Debug("scheduler: tick skipped, lock held elsewhere")
		return
	}
	defer s.lock.Unlock()

	schedules, err := s.store.FetchSchedules()
	if err != nil {
		slog.Error("scheduler: fetch schedules failed", "error", err)
		return
	}
	now := time.Now().UTC()
	for _, sch := range schedules {
		if !sch.IsEnabled {
			continue
		}
		due, err := s.isDue(sch, now)
		if err != nil {
			slog.Error("scheduler: due check failed", "schedule_id", sch.ScheduleID, "error", err)
			continue
		}
		if !due {
			continue
		}
		if err := s.fire(ctx, sch); err != nil {
			slog.Error("scheduler: fire failed", "schedule_id", sch.ScheduleID, "error", err)
		}
	}
}

// isDue resolves the schedule's timezone (falling back to UTC with a
// warning on an unknown zone), compares the local HH:MM against the
// configured time_of_day, and checks no delivery already landed in the
// current local minute for this (team, project, user).
func (s *Scheduler) isDue(sch store.Schedule, nowUTC time.Time) (bool, error) {
	loc, err := time.LoadLocation(sch.Timezone)
	if err != nil {
		slog.Warn("scheduler: unknown timezone, falling back to UTC",
			"schedule_id", sch.ScheduleID, "timezone", sch.Timezone, "error_kind", "timezone_unknown")
		loc = time.UTC
	}
	local := nowUTC.In(loc)
	if local.Format("15:04") != sch.TimeOfDay {
		return false, nil
	}

	minuteStart := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), 0, 0, loc).UTC()
	minuteEnd := minuteStart.Add(time.Minute)
	already, err := s.store.HasDeliveryInWindow(sch.TeamID, sch.ProjectID, sch.UserID,
		float64(minuteStart.UnixNano())/1e9, float64(minuteEnd.UnixNano())/1e9)
	if err != nil {
		return false, err
	}
	return !already, nil
}

// fire builds a fresh digest and delivers it, recording the digest id
// on the schedule for RunNow's idempotence check.
func (s *Scheduler) fire(ctx context.Context, sch store.Schedule) error {
	d, err := digest.Build(s.store, sch.UserID, sch.ProjectID, DigestItemCount, s.weights, 24)
	if err != nil {
		return err
	}
	if _, err := delivery.DeliverDigest(ctx, s.store, s.slack, sch.ScheduleID, d.DigestID, sch.TeamID, sch.UserID, d.Items); err != nil {
		return err
	}
	return s.store.SetScheduleLastDigest(sch.ScheduleID, d.DigestID)
}

// RunNowResult is what a manual /schedules/{id}/run_now call reports.
type RunNowResult struct {
	Status     string `json:"status"`
	DigestID   string `json:"digest_id,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`
}

// RunNow triggers one schedule immediately, independent of the tick's
// local-time gate. It is idempotent per digest: if the schedule's
// last_digest_id already has a delivered delivery, a second call
// returns already_delivered without building anything new.
func (s *Scheduler) RunNow(ctx context.Context, scheduleID string) (RunNowResult, error) {
	sch, ok, err := s.store.FetchSchedule(scheduleID)
	if err != nil {
		return RunNowResult{}, err
	}
	if !ok {
		return RunNowResult{}, ErrScheduleNotFound
	}

	if sch.LastDigestID != "" {
		if existing, ok, err := s.store.FetchDeliveryByDigest(sch.LastDigestID); err != nil {
			return RunNowResult{}, err
		} else if ok && existing.Status == "delivered" {
			return RunNowResult{Status: "already_delivered", DigestID: sch.LastDigestID, DeliveryID: existing.DeliveryID}, nil
		}
	}

	d, err := digest.Build(s.store, sch.UserID, sch.ProjectID, DigestItemCount, s.weights, 24)
	if err != nil {
		return RunNowResult{}, err
	}
	result, err := delivery.DeliverDigest(ctx, s.store, s.slack, sch.ScheduleID, d.DigestID, sch.TeamID, sch.UserID, d.Items)
	if err != nil {
		return RunNowResult{}, err
	}
	if err := s.store.SetScheduleLastDigest(scheduleID, d.DigestID); err != nil {
		return RunNowResult{}, err
	}
	return RunNowResult{Status: result.Status, DigestID: d.DigestID, DeliveryID: result.DeliveryID}, nil
}
