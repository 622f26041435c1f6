package health

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/orourkera/go-ruck-yourself-sub003/internal/tracking"
)

// Workout is the summary written into the device health record store on
// completion: duration, distance and calories, nothing else.
type Workout struct {
	SessionID       string    `json:"session_id"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds int       `json:"duration_seconds"`
	DistanceKm      float64   `json:"distance_km"`
	Calories        float64   `json:"calories"`
}

// Recorder mirrors completed sessions into the local health record
// table. Failures are the caller's to log; they never block completion.
type Recorder struct {
	db *sql.DB
}

func NewRecorder(db *sql.DB) (*Recorder, error) {
	if db == nil {
		return nil, errors.New("health: nil database handle")
	}
	r := &Recorder{db: db}
	if err := r.initSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) initSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS health_workouts (
			session_id       TEXT PRIMARY KEY,
			started_at_ns    INTEGER NOT NULL,
			completed_at_ns  INTEGER NOT NULL,
			duration_seconds INTEGER NOT NULL,
			distance_km      REAL NOT NULL,
			calories         REAL NOT NULL
		)
	`)
	return err
}

// RecordWorkout implements the engine's health-platform contract.
func (r *Recorder) RecordWorkout(ctx context.Context, s tracking.Session) error {
	return r.record(ctx, Workout{
		SessionID:       s.ID,
		StartedAt:       s.StartedAt,
		CompletedAt:     s.CompletedAt,
		DurationSeconds: s.ElapsedSeconds,
		DistanceKm:      s.Metrics.DistanceKm,
		Calories:        s.Metrics.Calories,
	})
}

func (r *Recorder) record(ctx context.Context, w Workout) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO health_workouts
			(session_id, started_at_ns, completed_at_ns, duration_seconds, distance_km, calories)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT (session_id) DO UPDATE SET
			started_at_ns=excluded.started_at_ns,
			completed_at_ns=excluded.completed_at_ns,
			duration_seconds=excluded.duration_seconds,
			distance_km=excluded.distance_km,
			calories=excluded.calories
	`, w.SessionID, w.StartedAt.UnixNano(), w.CompletedAt.UnixNano(),
		w.DurationSeconds, w.DistanceKm, w.Calories)
	return err
}

// Recent returns the newest workouts, most recent completion first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Workout, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, started_at_ns, completed_at_ns, duration_seconds, distance_km, calories
		FROM health_workouts
		ORDER BY completed_at_ns DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Workout
	for rows.Next() {
		var w Workout
		var startedNs, completedNs int64
		if err := rows.Scan(&w.SessionID, &startedNs, &completedNs, &w.DurationSeconds, &w.DistanceKm, &w.Calories); err != nil {
			return nil, err
		}
		w.StartedAt = time.Unix(0, startedNs).UTC()
		w.CompletedAt = time.Unix(0, completedNs).UTC()
		out = append(out, w)
	}
	return out, rows.Err()
}
