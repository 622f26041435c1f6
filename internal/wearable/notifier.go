package wearable

import (
	"context"
	"encoding/json"
	"time"

	"github.com/orourkera/go-ruck-yourself-sub003/internal/tracking"

	"github.com/redis/go-redis/v9"
)

const (
	watchChannelPrefix = "ruck:watch:"
	sensorChannel      = "ruck:sensors"
	completedQueue     = "ruck:completed"
)

// Notifier mirrors session lifecycle changes to the paired watch app via
// redis pub/sub. The companion bridge process subscribes and talks BLE.
// A nil client disables notification entirely; publish failures surface
// back into the machine as WatchFailedEvent, nothing more.
type Notifier struct {
	rdb *redis.Client
}

func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

func (n *Notifier) Notify(ctx context.Context, stage string, snap tracking.StateSnapshot) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(struct {
		Stage    string                 `json:"stage"`
		Snapshot tracking.StateSnapshot `json:"snapshot"`
	}{Stage: stage, Snapshot: snap})
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, watchChannelPrefix+snap.SessionID, payload).Err()
}

// SensorBridge relays the machine's sensor requests to the process that
// actually owns the GPS and heart-rate producers. The engine only asks;
// the bridge's subscriber decides what a restart means on its platform.
type SensorBridge struct {
	rdb *redis.Client
}

func NewSensorBridge(rdb *redis.Client) *SensorBridge {
	return &SensorBridge{rdb: rdb}
}

type sensorCommand struct {
	Op   string                `json:"op"`
	Mode tracking.TrackingMode `json:"mode,omitempty"`
}

func (b *SensorBridge) StartUpdates(ctx context.Context) error {
	return b.publish(ctx, sensorCommand{Op: "start"})
}

func (b *SensorBridge) StopUpdates(ctx context.Context) error {
	return b.publish(ctx, sensorCommand{Op: "stop"})
}

func (b *SensorBridge) RequestRestart(ctx context.Context) error {
	return b.publish(ctx, sensorCommand{Op: "restart"})
}

func (b *SensorBridge) SetMode(ctx context.Context, mode tracking.TrackingMode) error {
	return b.publish(ctx, sensorCommand{Op: "mode", Mode: mode})
}

func (b *SensorBridge) publish(ctx context.Context, cmd sensorCommand) error {
	if b.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, sensorChannel, payload).Err()
}

// AchievementQueue hands finalized sessions to the external awards
// worker. The summary is pushed onto a list so a worker that is down
// when the session finishes still sees it later.
type AchievementQueue struct {
	rdb *redis.Client
}

func NewAchievementQueue(rdb *redis.Client) *AchievementQueue {
	return &AchievementQueue{rdb: rdb}
}

type completedSummary struct {
	SessionID      string    `json:"session_id"`
	CompletedAt    time.Time `json:"completed_at"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	DistanceKm     float64   `json:"distance_km"`
	ElevationGainM float64   `json:"elevation_gain_m"`
	Calories       float64   `json:"calories"`
	LoadMassKg     float64   `json:"load_mass_kg"`
	Rating         int       `json:"rating"`
}

func (q *AchievementQueue) SessionCompleted(ctx context.Context, s tracking.Session) error {
	if q.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(completedSummary{
		SessionID:      s.ID,
		CompletedAt:    s.CompletedAt,
		ElapsedSeconds: s.ElapsedSeconds,
		DistanceKm:     s.Metrics.DistanceKm,
		ElevationGainM: s.Metrics.ElevationGainM,
		Calories:       s.Metrics.Calories,
		LoadMassKg:     s.LoadMassKg,
		Rating:         s.Rating,
	})
	if err != nil {
		return err
	}
	return q.rdb.RPush(ctx, completedQueue, payload).Err()
}
