package upload

import (
	"context"
	"fmt"
	"log"

	"github.com/orourkera/go-ruck-yourself-sub003/internal/db"
	"github.com/orourkera/go-ruck-yourself-sub003/internal/tracking"

	"github.com/jackc/pgx/v5"
)

// Service is the backend-upload collaborator: it persists a finalized
// session, its route and its heart-rate trace. The machine hands off
// exactly once; anything beyond that single attempt (retry, backoff,
// conflict resolution) belongs to the backend itself.
type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) UploadSession(ctx context.Context, sess tracking.Session) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ruck_sessions
			(id, started_at, completed_at, elapsed_seconds, paused_seconds,
			 body_mass_kg, load_mass_kg, distance_km, elevation_gain_m,
			 elevation_loss_m, pace_min_per_km, calories, avg_heart_rate,
			 max_heart_rate, rating, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, sess.ID, sess.StartedAt, sess.CompletedAt, sess.ElapsedSeconds, sess.PausedSeconds,
		sess.BodyMassKg, sess.LoadMassKg, sess.Metrics.DistanceKm, sess.Metrics.ElevationGainM,
		sess.Metrics.ElevationLossM, sess.Metrics.PaceMinPerKm, sess.Metrics.Calories,
		sess.Metrics.AvgHeartRate, sess.Metrics.MaxHeartRate, sess.Rating, sess.Notes)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if err := s.uploadRoute(ctx, sess); err != nil {
		return err
	}
	if err := s.uploadHeartRate(ctx, sess); err != nil {
		return err
	}

	log.Printf("session %s uploaded: %d points, %d heart-rate samples",
		sess.ID, len(sess.Route), len(sess.HeartRate))
	return nil
}

func (s *Service) uploadRoute(ctx context.Context, sess tracking.Session) error {
	if len(sess.Route) == 0 {
		return nil
	}
	rows := make([][]any, len(sess.Route))
	for i, p := range sess.Route {
		rows[i] = []any{sess.ID, i, p.Lat, p.Lng, p.AltitudeM, p.AccuracyM, p.RecordedAt}
	}
	_, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"ruck_points"},
		[]string{"session_id", "seq", "lat", "lng", "altitude_m", "accuracy_m", "recorded_at"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy route points: %w", err)
	}
	return nil
}

func (s *Service) uploadHeartRate(ctx context.Context, sess tracking.Session) error {
	if len(sess.HeartRate) == 0 {
		return nil
	}
	rows := make([][]any, len(sess.HeartRate))
	for i, h := range sess.HeartRate {
		rows[i] = []any{sess.ID, i, h.BPM, h.RecordedAt}
	}
	_, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"ruck_heart_rate"},
		[]string{"session_id", "seq", "bpm", "recorded_at"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy heart-rate samples: %w", err)
	}
	return nil
}
