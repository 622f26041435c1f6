package tracking

import "context"

// Lifecycle stages pushed to the wearable companion.
const (
	WearableStarted   = "started"
	WearablePaused    = "paused"
	WearableResumed   = "resumed"
	WearableCompleted = "completed"
)

// Uploader persists a completed session to the backend. Retry and backoff
// are the implementation's concern; the machine hands off exactly once.
type Uploader interface {
	UploadSession(ctx context.Context, s Session) error
}

// WearableNotifier mirrors lifecycle changes to a paired watch app.
// Failures surface back into the machine as WatchFailedEvent, never as
// errors on the dispatching call.
type WearableNotifier interface {
	Notify(ctx context.Context, stage string, snap StateSnapshot) error
}

// HealthRecorder writes a finished workout into the device health store.
type HealthRecorder interface {
	RecordWorkout(ctx context.Context, s Session) error
}

// AchievementSink consumes finalized sessions for badge evaluation.
type AchievementSink interface {
	SessionCompleted(ctx context.Context, s Session) error
}

// ActivityExporter renders a completed session into interchange files.
type ActivityExporter interface {
	Export(ctx context.Context, s Session) error
}

// SensorController drives the device location and heart-rate producers.
// The machine requests; the controller owns the producer lifecycles.
type SensorController interface {
	StartUpdates(ctx context.Context) error
	StopUpdates(ctx context.Context) error
	RequestRestart(ctx context.Context) error
	SetMode(ctx context.Context, mode TrackingMode) error
}

// StateObserver receives the snapshot emitted after every applied event.
// Deliveries happen on the machine's loop goroutine, so implementations
// must return quickly and never dispatch back into the machine
// synchronously.
type StateObserver interface {
	OnState(snap StateSnapshot)
}

// Collaborators bundles the machine's external dependencies. Nil fields are
// skipped, which keeps unit tests and headless runs free of stubs.
type Collaborators struct {
	Uploader     Uploader
	Wearable     WearableNotifier
	Health       HealthRecorder
	Achievements AchievementSink
	Sensors      SensorController
	Exporter     ActivityExporter
}
