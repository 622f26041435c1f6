package history

import (
	"context"
	"time"

	"github.com/orourkera/go-ruck-yourself-sub003/internal/db"
	"github.com/orourkera/go-ruck-yourself-sub003/internal/tracking"
)

// Summary is one row of the completed-session list. Route and trace are
// loaded only on the detail path.
type Summary struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	DistanceKm     float64   `json:"distance_km"`
	ElevationGainM float64   `json:"elevation_gain_m"`
	Calories       float64   `json:"calories"`
	Rating         int       `json:"rating"`
	Notes          string    `json:"notes"`
}

// Service reads back sessions the uploader persisted.
type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, started_at, completed_at, elapsed_seconds, distance_km,
		       elevation_gain_m, calories, rating, notes
		FROM ruck_sessions
		ORDER BY completed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.StartedAt, &sum.CompletedAt, &sum.ElapsedSeconds,
			&sum.DistanceKm, &sum.ElevationGainM, &sum.Calories, &sum.Rating, &sum.Notes); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Get reconstructs a full session record, route and heart-rate trace
// included, for the detail view and the file exports.
func (s *Service) Get(ctx context.Context, id string) (tracking.Session, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, started_at, completed_at, elapsed_seconds, paused_seconds,
		       body_mass_kg, load_mass_kg, distance_km, elevation_gain_m,
		       elevation_loss_m, pace_min_per_km, calories, avg_heart_rate,
		       max_heart_rate, rating, notes
		FROM ruck_sessions WHERE id=$1
	`, id)

	sess := tracking.Session{Status: tracking.StatusCompleted}
	if err := row.Scan(&sess.ID, &sess.StartedAt, &sess.CompletedAt, &sess.ElapsedSeconds,
		&sess.PausedSeconds, &sess.BodyMassKg, &sess.LoadMassKg, &sess.Metrics.DistanceKm,
		&sess.Metrics.ElevationGainM, &sess.Metrics.ElevationLossM, &sess.Metrics.PaceMinPerKm,
		&sess.Metrics.Calories, &sess.Metrics.AvgHeartRate, &sess.Metrics.MaxHeartRate,
		&sess.Rating, &sess.Notes); err != nil {
		return tracking.Session{}, err
	}

	route, err := s.route(ctx, id)
	if err != nil {
		return tracking.Session{}, err
	}
	sess.Route = route

	trace, err := s.heartRate(ctx, id)
	if err != nil {
		return tracking.Session{}, err
	}
	sess.HeartRate = trace

	return sess, nil
}

func (s *Service) route(ctx context.Context, id string) ([]tracking.LocationPoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT lat, lng, altitude_m, accuracy_m, recorded_at
		FROM ruck_points WHERE session_id=$1
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tracking.LocationPoint
	for rows.Next() {
		var p tracking.LocationPoint
		if err := rows.Scan(&p.Lat, &p.Lng, &p.AltitudeM, &p.AccuracyM, &p.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Service) heartRate(ctx context.Context, id string) ([]tracking.HeartRateSample, error) {
	rows, err := s.db.Query(ctx, `
		SELECT bpm, recorded_at
		FROM ruck_heart_rate WHERE session_id=$1
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tracking.HeartRateSample
	for rows.Next() {
		var h tracking.HeartRateSample
		if err := rows.Scan(&h.BPM, &h.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
