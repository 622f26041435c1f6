package tracking

import "time"

type Status string

const (
	StatusCreated   Status = "created"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// TrackingMode describes how aggressively the location subsystem should
// sample. The machine adjusts it from a movement heuristic and pushes the
// result to the sensor controller; it never alters recorded data.
type TrackingMode string

const (
	ModeHigh      TrackingMode = "high"
	ModeBalanced  TrackingMode = "balanced"
	ModePowerSave TrackingMode = "powersave"
)

// LocationPoint is one raw GPS fix. Altitude and accuracy are optional
// because not every fix carries them. Points are never mutated once the
// session accepts them.
type LocationPoint struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	AltitudeM  *float64  `json:"altitude_m,omitempty"`
	AccuracyM  *float64  `json:"accuracy_m,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

type HeartRateSample struct {
	BPM        int       `json:"bpm"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Metrics is the derived snapshot recomputed on every accepted input.
// Distance, elevation totals and calories never decrease within a session;
// pace and heart-rate aggregates may fluctuate.
type Metrics struct {
	DistanceKm     float64 `json:"distance_km"`
	ElevationGainM float64 `json:"elevation_gain_m"`
	ElevationLossM float64 `json:"elevation_loss_m"`
	PaceMinPerKm   float64 `json:"pace_min_per_km"`
	Calories       float64 `json:"calories"`
	AvgHeartRate   float64 `json:"avg_heart_rate,omitempty"`
	MaxHeartRate   int     `json:"max_heart_rate,omitempty"`
}

// Session is the aggregate root for one activity. It is owned and mutated
// exclusively by the machine's event loop; everyone else sees copies.
type Session struct {
	ID             string            `json:"id"`
	Status         Status            `json:"status"`
	BodyMassKg     float64           `json:"body_mass_kg"`
	LoadMassKg     float64           `json:"load_mass_kg"`
	StartedAt      time.Time         `json:"started_at,omitempty"`
	CompletedAt    time.Time         `json:"completed_at,omitempty"`
	ElapsedSeconds int               `json:"elapsed_seconds"`
	PausedSeconds  int               `json:"paused_seconds"`
	Route          []LocationPoint   `json:"route,omitempty"`
	HeartRate      []HeartRateSample `json:"heart_rate,omitempty"`
	Metrics        Metrics           `json:"metrics"`
	Notes          string            `json:"notes,omitempty"`
	Rating         int               `json:"rating,omitempty"`

	// Warning state surfaced to callers, never fatal.
	GPSSignalLost  bool            `json:"gps_signal_lost,omitempty"`
	WatchFailed    bool            `json:"watch_failed,omitempty"`
	LastRejection  RejectionReason `json:"last_rejection,omitempty"`
	RejectedPoints int             `json:"rejected_points,omitempty"`
	IgnoredEvents  int             `json:"ignored_events,omitempty"`
	LastWarning    string          `json:"last_warning,omitempty"`

	totalPaused time.Duration
}

// finalize returns the copy handed to collaborators on completion. The
// copy owns its own slices so consumers cannot reach back into the
// machine's state.
func (s *Session) finalize() Session {
	out := *s
	out.Route = append([]LocationPoint(nil), s.Route...)
	out.HeartRate = append([]HeartRateSample(nil), s.HeartRate...)
	return out
}

// StateSnapshot is the immutable state emitted after every applied event.
// Observers (crash store, live stream, policy engines) receive it; it is
// also what the HTTP layer returns for the current session.
type StateSnapshot struct {
	SessionID      string          `json:"session_id"`
	Status         Status          `json:"status"`
	StartedAt      time.Time       `json:"started_at,omitempty"`
	ElapsedSeconds int             `json:"elapsed_seconds"`
	PausedSeconds  int             `json:"paused_seconds"`
	Metrics        Metrics         `json:"metrics"`
	Mode           TrackingMode    `json:"tracking_mode"`
	RoutePoints    int             `json:"route_points"`
	HeartRateCount int             `json:"heart_rate_samples"`
	GPSSignalLost  bool            `json:"gps_signal_lost,omitempty"`
	WatchFailed    bool            `json:"watch_failed,omitempty"`
	LastRejection  RejectionReason `json:"last_rejection,omitempty"`
	RejectedPoints int             `json:"rejected_points,omitempty"`
	IgnoredEvents  int             `json:"ignored_events,omitempty"`
	LastWarning    string          `json:"last_warning,omitempty"`
	Recovered      bool            `json:"recovered,omitempty"`
	BodyMassKg     float64         `json:"body_mass_kg"`
	LoadMassKg     float64         `json:"load_mass_kg"`
}

// CrashSnapshot is the minimal durable record written by the recovery store.
// Scalar totals only: route points and heart-rate samples are deliberately
// excluded to keep writes cheap enough to run every few seconds.
type CrashSnapshot struct {
	SessionID      string    `json:"session_id"`
	StartedAt      time.Time `json:"started_at"`
	BodyMassKg     float64   `json:"body_mass_kg"`
	LoadMassKg     float64   `json:"load_mass_kg"`
	DistanceKm     float64   `json:"distance_km"`
	ElevationGainM float64   `json:"elevation_gain_m"`
	ElevationLossM float64   `json:"elevation_loss_m"`
	Calories       float64   `json:"calories"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	PausedSeconds  int       `json:"paused_seconds"`
	Active         bool      `json:"active"`
	SavedAt        time.Time `json:"saved_at"`
}
