package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/scalytics/threadwatch/internal/digest"
	"github.com/scalytics/threadwatch/internal/slackapi"
	"github.com/scalytics/threadwatch/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIsDueMatchesLocalTimeOfDay(t *testing.T) {
	s := openTestStore(t)
	sched := New(s, slackapi.New(s, slackapi.Config{}), digest.Weights{}, filepath.Join(t.TempDir(), "test.lock"))

	sch := store.Schedule{ScheduleID: "sch-1", TeamID: "T1", ProjectID: "P1", UserID: "U1", TimeOfDay: "09:00", Timezone: "UTC", IsEnabled: true}
	now := time.Date(2026, 3, 5, 9, 0, 30, 0, time.UTC)
	due, err := sched.isDue(sch, now)
	if err != nil {
		t.Fatalf("isDue: %v", err)
	}
	if !due {
		t.Error("expected schedule to be due at matching local time")
	}
}

func TestIsDueFalseOutsideTimeOfDay(t *testing.T) {
	s := openTestStore(t)
	sched := New(s, slackapi.New(s, slackapi.Config{}), digest.Weights{}, filepath.Join(t.TempDir(), "test.lock"))

	sch := store.Schedule{ScheduleID: "sch-1", TeamID: "T1", ProjectID: "P1", UserID: "U1", TimeOfDay: "09:00", Timezone: "UTC", IsEnabled: true}
	now := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	due, err := sched.isDue(sch, now)
	if err != nil {
		t.Fatalf("isDue: %v", err)
	}
	if due {
		t.Error("expected schedule not due outside its time_of_day")
	}
}

func TestIsDueFalseWhenAlreadyDeliveredThisMinute(t *testing.T) {
	s := openTestStore(t)
	sched := New(s, slackapi.New(s, slackapi.Config{}), digest.Weights{}, filepath.Join(t.TempDir(), "test.lock"))

	if err := s.UpsertProject("P1", "Project One", ""); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	if err := s.InsertDigest("dig-1", "U1", "P1", "[]"); err != nil {
		t.Fatalf("seed digest: %v", err)
	}
	if err := s.InsertDelivery(store.Delivery{DeliveryID: "del-1", DigestID: "dig-1", TeamID: "T1", UserID: "U1", Status: "delivered"}); err != nil {
		t.Fatalf("seed delivery: %v", err)
	}

	// InsertDelivery stamps delivered_at with the wall clock, so the
	// schedule's minute is taken from the current time.
	now := time.Now().UTC()
	sch := store.Schedule{ScheduleID: "sch-1", TeamID: "T1", ProjectID: "P1", UserID: "U1", TimeOfDay: now.Format("15:04"), Timezone: "UTC", IsEnabled: true}
	due, err := sched.isDue(sch, now)
	if err != nil {
		t.Fatalf("isDue: %v", err)
	}
	if due {
		t.Error("expected schedule not due again within the same delivered minute")
	}
}

func TestIsDueFallsBackToUTCOnUnknownTimezone(t *testing.T) {
	s := openTestStore(t)
	sched := New(s, slackapi.New(s, slackapi.Config{}), digest.Weights{}, filepath.Join(t.TempDir(), "test.lock"))

	sch := store.Schedule{ScheduleID: "sch-1", TeamID: "T1", ProjectID: "P1", UserID: "U1", TimeOfDay: "09:00", Timezone: "Mars/Olympus", IsEnabled: true}
	now := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	due, err := sched.isDue(sch, now)
	if err != nil {
		t.Fatalf("isDue: %v", err)
	}
	if !due {
		t.Error("expected unknown timezone to fall back to UTC and still match")
	}
}

func TestRunNowIdempotentOnSecondCall(t *testing.T) {
	s := openTestStore(t)
	sched := New(s, slackapi.New(s, slackapi.Config{}), digest.Weights{}, filepath.Join(t.TempDir(), "test.lock"))

	if err := s.UpsertProject("P1", "Project One", ""); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	if err := s.UpsertRole("R1", "Role One", "role one", []float64{1, 0}); err != nil {
		t.Fatalf("seed role: %v", err)
	}
	if err := s.UpsertUser("U1", "User One", "", "R1", nil); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := s.InsertSchedule(store.Schedule{ScheduleID: "sch-1", TeamID: "T1", ProjectID: "P1", UserID: "U1", TimeOfDay: "09:00", Timezone: "UTC", IsEnabled: true}); err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	first, err := sched.RunNow(context.Background(), "sch-1")
	if err != nil {
		t.Fatalf("first run_now: %v", err)
	}
	if first.Status != "delivered" && first.Status != "failed" {
		t.Fatalf("unexpected first run_now status: %+v", first)
	}

	second, err := sched.RunNow(context.Background(), "sch-1")
	if err != nil {
		t.Fatalf("second run_now: %v", err)
	}
	if first.Status == "delivered" && second.Status != "already_delivered" {
		t.Errorf("expected already_delivered on second run_now, got %+v", second)
	}
}

func TestRunNowUnknownSchedule(t *testing.T) {
	s := openTestStore(t)
	sched := New(s, slackapi.New(s, slackapi.Config{}), digest.Weights{}, filepath.Join(t.TempDir(), "test.lock"))
	if _, err := sched.RunNow(context.Background(), "missing"); err != ErrScheduleNotFound {
		t.Errorf("expected ErrScheduleNotFound, got %v", err)
	}
}
