package tracking

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testService(clock *fakeClock) *Service {
	return NewService(ServiceDeps{
		Config: testMachineConfig(),
		Now:    clock.Now,
		NewID:  func() string { return "ruck-1" },
	})
}

func TestServiceLifecycle(t *testing.T) {
	clock := newFakeClock(fixBase)
	svc := testService(clock)
	defer svc.Shutdown()
	ctx := context.Background()

	snap, err := svc.Create(ctx, 75, 15)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if snap.SessionID != "ruck-1" || snap.Status != StatusCreated {
		t.Fatalf("created snapshot: %+v", snap)
	}

	if snap, err = svc.Start(ctx, "ruck-1"); err != nil || snap.Status != StatusActive {
		t.Fatalf("start: %v %s", err, snap.Status)
	}

	if snap, err = svc.Location(ctx, "ruck-1", fix(0, 0, fixBase)); err != nil || snap.RoutePoints != 1 {
		t.Fatalf("location: %v %+v", err, snap)
	}
	if snap, err = svc.HeartRate(ctx, "ruck-1", HeartRateSample{BPM: 120, RecordedAt: fixBase}); err != nil || snap.HeartRateCount != 1 {
		t.Fatalf("heart rate: %v %+v", err, snap)
	}

	if snap, err = svc.Pause(ctx, "ruck-1"); err != nil || snap.Status != StatusPaused {
		t.Fatalf("pause: %v %s", err, snap.Status)
	}
	clock.Advance(90 * time.Second)
	if snap, err = svc.Resume(ctx, "ruck-1"); err != nil || snap.Status != StatusActive {
		t.Fatalf("resume: %v %s", err, snap.Status)
	}
	if snap.PausedSeconds != 90 {
		t.Fatalf("paused seconds %d, want 90", snap.PausedSeconds)
	}

	if snap, err = svc.Complete(ctx, "ruck-1", "evening loop", 4); err != nil || snap.Status != StatusCompleted {
		t.Fatalf("complete: %v %s", err, snap.Status)
	}

	if _, err = svc.Current(ctx); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("current after complete: %v", err)
	}
}

func TestServiceSingleSessionRule(t *testing.T) {
	clock := newFakeClock(fixBase)
	svc := testService(clock)
	defer svc.Shutdown()
	ctx := context.Background()

	if _, err := svc.Create(ctx, 75, 15); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, 80, 20); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("second create: %v", err)
	}

	if _, err := svc.Complete(ctx, "ruck-1", "", 0); err != nil {
		t.Fatalf("complete created session: %v", err)
	}
	// Complete before Start is ignored, so the slot stays occupied.
	if _, err := svc.Create(ctx, 80, 20); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("slot freed by an ignored complete: %v", err)
	}

	if _, err := svc.Start(ctx, "ruck-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Complete(ctx, "ruck-1", "", 0); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.Create(ctx, 80, 20); err != nil {
		t.Fatalf("create after completion: %v", err)
	}
}

func TestServiceSessionLookup(t *testing.T) {
	clock := newFakeClock(fixBase)
	svc := testService(clock)
	defer svc.Shutdown()
	ctx := context.Background()

	if _, err := svc.Start(ctx, "ruck-1"); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("start with no session: %v", err)
	}

	if _, err := svc.Create(ctx, 75, 15); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Start(ctx, "someone-else"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("start with wrong id: %v", err)
	}
}

func TestServiceInvalidMass(t *testing.T) {
	svc := testService(newFakeClock(fixBase))
	defer svc.Shutdown()
	ctx := context.Background()

	if _, err := svc.Create(ctx, 0, 15); !errors.Is(err, ErrInvalidMass) {
		t.Fatalf("zero body mass: %v", err)
	}
	if _, err := svc.Create(ctx, 75, -1); !errors.Is(err, ErrInvalidMass) {
		t.Fatalf("negative load: %v", err)
	}
}

func TestServiceWatchFailed(t *testing.T) {
	clock := newFakeClock(fixBase)
	svc := testService(clock)
	defer svc.Shutdown()
	ctx := context.Background()

	if _, err := svc.Create(ctx, 75, 15); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Start(ctx, "ruck-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	snap, err := svc.WatchFailed(ctx, "ruck-1", "bluetooth dropped")
	if err != nil || !snap.WatchFailed {
		t.Fatalf("watch failed: %v %+v", err, snap)
	}
}

func TestServiceRestore(t *testing.T) {
	clock := newFakeClock(fixBase)
	svc := testService(clock)
	defer svc.Shutdown()
	ctx := context.Background()

	crash := CrashSnapshot{
		SessionID:      "crashed-7",
		StartedAt:      fixBase.Add(-40 * time.Minute),
		BodyMassKg:     70,
		LoadMassKg:     12,
		DistanceKm:     3.4,
		Calories:       260,
		ElapsedSeconds: 2400,
		Active:         true,
		SavedAt:        fixBase.Add(-2 * time.Minute),
	}
	snap, err := svc.Restore(ctx, crash)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if snap.SessionID != "crashed-7" || !snap.Recovered || snap.Status != StatusActive {
		t.Fatalf("restored snapshot: %+v", snap)
	}

	if _, err := svc.Restore(ctx, crash); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("second restore: %v", err)
	}

	// The recovered session behaves like any live one.
	if snap, err = svc.Pause(ctx, "crashed-7"); err != nil || snap.Status != StatusPaused {
		t.Fatalf("pause recovered session: %v %s", err, snap.Status)
	}
	if snap, err = svc.Complete(ctx, "crashed-7", "", 0); err != nil || snap.Status != StatusCompleted {
		t.Fatalf("complete recovered session: %v %s", err, snap.Status)
	}
}
