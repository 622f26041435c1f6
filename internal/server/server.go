package server

import (
	"context"
	"database/sql"

	"github.com/orourkera/go-ruck-yourself-sub003/internal/auth"
	"github.com/orourkera/go-ruck-yourself-sub003/internal/config"
	"github.com/orourkera/go-ruck-yourself-sub003/internal/export"
	"github.com/orourkera/go-ruck-yourself-sub003/internal/health"
	"github.com/orourkera/go-ruck-yourself-sub003/internal/history"
	"github.com/orourkera/go-ruck-yourself-sub003/internal/recovery"
	"github.com/orourkera/go-ruck-yourself-sub003/internal/stream"
	"github.com/orourkera/go-ruck-yourself-sub003/internal/tracking"
	"github.com/orourkera/go-ruck-yourself-sub003/internal/upload"
	"github.com/orourkera/go-ruck-yourself-sub003/internal/wearable"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Server wires the session engine to its collaborators and mounts the
// HTTP surface. Any of the three backing stores may be absent: postgres
// disables upload and history, redis disables the wearable bridge, the
// local sqlite handle disables crash recovery and the health store.
type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Local    *sql.DB
	Stream   *stream.Hub
	Tracking *tracking.Service
	Recovery *recovery.Store

	observer *stream.SnapshotObserver
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, local *sql.DB) (*Server, error) {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Local:  local,
		Stream: stream.NewHub(redisClient),
	}

	// Interface fields stay nil unless a backing handle exists; the
	// machine skips nil collaborators.
	var collab tracking.Collaborators
	if db != nil {
		collab.Uploader = upload.NewService(db)
	}
	if redisClient != nil {
		collab.Wearable = wearable.NewNotifier(redisClient)
		collab.Sensors = wearable.NewSensorBridge(redisClient)
		collab.Achievements = wearable.NewAchievementQueue(redisClient)
	}
	if cfg.ExportDir != "" {
		collab.Exporter = export.NewExporter(cfg.ExportDir)
	}

	s.observer = stream.NewSnapshotObserver(s.Stream)
	observers := []tracking.StateObserver{s.observer}

	if local != nil {
		store, err := recovery.NewStore(local, recovery.Options{
			Interval: cfg.SnapshotInterval,
			MaxAge:   cfg.SnapshotMaxAge,
		})
		if err != nil {
			return nil, err
		}
		s.Recovery = store
		observers = append(observers, store)

		recorder, err := health.NewRecorder(local)
		if err != nil {
			return nil, err
		}
		collab.Health = recorder
	}

	s.Tracking = tracking.NewService(tracking.ServiceDeps{
		Config:    engineConfig(cfg),
		Collab:    collab,
		Observers: observers,
	})

	registerRoutes(s)
	return s, nil
}

// RecoverSession resurrects a crashed session, if the recovery store
// holds one that is still fresh enough.
func (s *Server) RecoverSession(ctx context.Context) error {
	if s.Recovery == nil {
		return nil
	}
	snap, err := s.Recovery.Load(ctx)
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}
	_, err = s.Tracking.Restore(ctx, *snap)
	return err
}

// Shutdown stops the engine without completing the live session, so the
// crash snapshot survives for the next start.
func (s *Server) Shutdown() {
	s.Tracking.Shutdown()
	s.observer.Close()
	if s.Recovery != nil {
		s.Recovery.Close()
	}
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	tracking.RegisterRoutes(s.App.Group("/sessions"), s.Tracking, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
	if s.DB != nil {
		history.RegisterRoutes(s.App.Group("/history"), history.NewService(s.DB), jwtMiddleware)
	}
}

// engineConfig maps the environment config onto the engine tunables.
// Unset fields keep the shipping defaults.
func engineConfig(cfg config.Config) tracking.Config {
	out := tracking.DefaultConfig()

	if cfg.MaxJumpM > 0 {
		out.MaxJumpM = cfg.MaxJumpM
	}
	if cfg.MinFixInterval > 0 {
		out.MinFixInterval = cfg.MinFixInterval
	}
	if cfg.MaxSpeedMps > 0 {
		out.MaxSpeedMps = cfg.MaxSpeedMps
	}
	if cfg.ElevationNoiseM > 0 {
		out.ElevationNoiseM = cfg.ElevationNoiseM
	}
	if cfg.ElevationMaxDeltaM > 0 {
		out.ElevationMaxDeltaM = cfg.ElevationMaxDeltaM
	}
	if cfg.TickInterval > 0 {
		out.TickInterval = cfg.TickInterval
	}
	if cfg.WatchdogInterval > 0 {
		out.WatchdogInterval = cfg.WatchdogInterval
	}
	if cfg.WatchdogTolerance > 0 {
		out.WatchdogTolerance = cfg.WatchdogTolerance
	}
	if cfg.GPSLostAfter > 0 {
		out.GPSLostAfter = cfg.GPSLostAfter
	}
	if cfg.SnapshotInterval > 0 {
		out.SnapshotInterval = cfg.SnapshotInterval
	}
	if cfg.SnapshotMaxAge > 0 {
		out.SnapshotMaxAge = cfg.SnapshotMaxAge
	}

	if cfg.CalAdjPerLoadRatio > 0 {
		out.Calories.AdjPerLoadRatio = cfg.CalAdjPerLoadRatio
	}
	if cfg.CalAdjCap > 0 {
		out.Calories.AdjCap = cfg.CalAdjCap
	}
	if cfg.CalAdjFloorKmh > 0 {
		out.Calories.AdjFloorKmh = cfg.CalAdjFloorKmh
	}
	if cfg.CalWattsFloor > 0 {
		out.Calories.WattsFloor = cfg.CalWattsFloor
	}
	if cfg.CalWattsCeil > 0 {
		out.Calories.WattsCeil = cfg.CalWattsCeil
	}
	if cfg.CalFusionBandPct > 0 {
		out.Calories.FusionBandPct = cfg.CalFusionBandPct
	}
	if cfg.UserAge > 0 {
		out.Calories.UserAge = cfg.UserAge
	}
	if cfg.UserGender != "" {
		out.Calories.UserGender = cfg.UserGender
	}

	return out
}
