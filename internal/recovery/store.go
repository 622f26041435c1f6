package recovery

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/orourkera/go-ruck-yourself-sub003/internal/tracking"
)

// Store persists a single-row crash snapshot of the live session. It
// observes the machine's state stream: writes are throttled to Interval
// and forced on status changes, and run on a worker goroutine behind a
// latest-wins mailbox so the event loop never waits on disk. Completion
// clears the row; Load on daemon start decides whether what it finds is
// fresh enough to resurrect.
type Store struct {
	db       *sql.DB
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time

	mu         sync.Mutex
	pending    *op
	lastStatus tracking.Status

	wake    chan struct{}
	done    chan struct{}
	closeFn sync.Once

	writeMu   sync.Mutex
	lastWrite time.Time
}

type op struct {
	snap  tracking.CrashSnapshot
	clear bool
	force bool
}

// Options tune the store. Zero values fall back to the shipping defaults.
type Options struct {
	Interval time.Duration
	MaxAge   time.Duration
	Now      func() time.Time
}

func NewStore(db *sql.DB, opts Options) (*Store, error) {
	if db == nil {
		return nil, errors.New("recovery: nil database handle")
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 6 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Store{
		db:       db,
		interval: opts.Interval,
		maxAge:   opts.MaxAge,
		now:      opts.Now,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	go s.worker()
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS crash_snapshots (
			slot             INTEGER PRIMARY KEY CHECK (slot = 1),
			session_id       TEXT NOT NULL,
			started_at_ns    INTEGER NOT NULL,
			body_mass_kg     REAL NOT NULL,
			load_mass_kg     REAL NOT NULL,
			distance_km      REAL NOT NULL,
			elevation_gain_m REAL NOT NULL,
			elevation_loss_m REAL NOT NULL,
			calories         REAL NOT NULL,
			elapsed_seconds  INTEGER NOT NULL,
			paused_seconds   INTEGER NOT NULL,
			active           INTEGER NOT NULL,
			saved_at_ns      INTEGER NOT NULL
		)
	`)
	return err
}

// OnState implements tracking.StateObserver. Created sessions are not yet
// worth persisting; Completed ones schedule a clear.
func (s *Store) OnState(snap tracking.StateSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	force := snap.Status != s.lastStatus
	s.lastStatus = snap.Status

	switch snap.Status {
	case tracking.StatusCreated:
		return
	case tracking.StatusCompleted:
		s.pending = &op{clear: true, force: true}
	default:
		s.pending = &op{
			snap: tracking.CrashSnapshot{
				SessionID:      snap.SessionID,
				StartedAt:      snap.StartedAt,
				BodyMassKg:     snap.BodyMassKg,
				LoadMassKg:     snap.LoadMassKg,
				DistanceKm:     snap.Metrics.DistanceKm,
				ElevationGainM: snap.Metrics.ElevationGainM,
				ElevationLossM: snap.Metrics.ElevationLossM,
				Calories:       snap.Metrics.Calories,
				ElapsedSeconds: snap.ElapsedSeconds,
				PausedSeconds:  snap.PausedSeconds,
				Active:         true,
				SavedAt:        s.now(),
			},
			force: force,
		}
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Store) worker() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		pending := s.take()
		if pending == nil {
			continue
		}

		if !pending.force {
			if wait := s.interval - s.now().Sub(s.lastWriteAt()); wait > 0 {
				select {
				case <-s.done:
					return
				case <-time.After(wait):
				}
				// A newer snapshot may have arrived while throttled.
				if latest := s.take(); latest != nil {
					pending = latest
				}
			}
		}

		var err error
		if pending.clear {
			err = s.Clear(context.Background())
		} else {
			err = s.save(pending.snap)
		}
		if err != nil {
			// Not fatal: the next emitted state retries.
			log.Printf("crash snapshot write failed: %v", err)
			continue
		}
		s.setLastWrite(s.now())
	}
}

func (s *Store) take() *op {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending
	s.pending = nil
	return p
}

func (s *Store) lastWriteAt() time.Time {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.lastWrite
}

func (s *Store) setLastWrite(t time.Time) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.lastWrite = t
}

func (s *Store) save(snap tracking.CrashSnapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO crash_snapshots
			(slot, session_id, started_at_ns, body_mass_kg, load_mass_kg,
			 distance_km, elevation_gain_m, elevation_loss_m, calories,
			 elapsed_seconds, paused_seconds, active, saved_at_ns)
		VALUES (1,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (slot) DO UPDATE SET
			session_id=excluded.session_id,
			started_at_ns=excluded.started_at_ns,
			body_mass_kg=excluded.body_mass_kg,
			load_mass_kg=excluded.load_mass_kg,
			distance_km=excluded.distance_km,
			elevation_gain_m=excluded.elevation_gain_m,
			elevation_loss_m=excluded.elevation_loss_m,
			calories=excluded.calories,
			elapsed_seconds=excluded.elapsed_seconds,
			paused_seconds=excluded.paused_seconds,
			active=excluded.active,
			saved_at_ns=excluded.saved_at_ns
	`, snap.SessionID, snap.StartedAt.UnixNano(), snap.BodyMassKg, snap.LoadMassKg,
		snap.DistanceKm, snap.ElevationGainM, snap.ElevationLossM, snap.Calories,
		snap.ElapsedSeconds, snap.PausedSeconds, boolToInt(snap.Active), snap.SavedAt.UnixNano())
	return err
}

// Load returns the persisted snapshot, if one exists and is still worth
// recovering. A snapshot older than the staleness ceiling is treated as
// an abandoned activity: it is deleted and nil is returned.
func (s *Store) Load(ctx context.Context) (*tracking.CrashSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, started_at_ns, body_mass_kg, load_mass_kg,
		       distance_km, elevation_gain_m, elevation_loss_m, calories,
		       elapsed_seconds, paused_seconds, active, saved_at_ns
		FROM crash_snapshots WHERE slot = 1
	`)

	var snap tracking.CrashSnapshot
	var startedNs, savedNs int64
	var active int
	err := row.Scan(&snap.SessionID, &startedNs, &snap.BodyMassKg, &snap.LoadMassKg,
		&snap.DistanceKm, &snap.ElevationGainM, &snap.ElevationLossM, &snap.Calories,
		&snap.ElapsedSeconds, &snap.PausedSeconds, &active, &savedNs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap.StartedAt = time.Unix(0, startedNs).UTC()
	snap.SavedAt = time.Unix(0, savedNs).UTC()
	snap.Active = active != 0

	if !snap.Active {
		return nil, nil
	}
	if s.now().Sub(snap.SavedAt) > s.maxAge {
		log.Printf("crash snapshot for session %s is stale, discarding", snap.SessionID)
		_ = s.Clear(ctx)
		return nil, nil
	}
	return &snap, nil
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM crash_snapshots WHERE slot = 1`)
	return err
}

// Close stops the worker. Pending writes are abandoned; the last durable
// snapshot stays put for the next start-up.
func (s *Store) Close() {
	s.closeFn.Do(func() { close(s.done) })
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
