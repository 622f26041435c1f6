package tracking

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

var (
	ErrSessionExists   = errors.New("another session is already in progress")
	ErrSessionNotFound = errors.New("session not found")
	ErrNoActiveSession = errors.New("no session in progress")
	ErrInvalidMass     = errors.New("body mass must be positive and load mass non-negative")
)

// ServiceDeps wires a Service. Observers are attached to every machine the
// service creates, including recovered ones.
type ServiceDeps struct {
	Config    Config
	Collab    Collaborators
	Observers []StateObserver

	// Estimator overrides the default mechanical model for every session.
	Estimator CalorieEstimator

	// Now and NewID exist for tests; they default to time.Now and a
	// random UUID.
	Now   func() time.Time
	NewID func() string
}

// Service enforces the one-session-per-device rule and owns the lifecycle
// of the machine behind it. All methods are safe for concurrent use.
type Service struct {
	cfg       Config
	collab    Collaborators
	observers []StateObserver
	estimator CalorieEstimator
	now       func() time.Time
	newID     func() string

	mu      sync.Mutex
	current *Machine
}

func NewService(deps ServiceDeps) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &Service{
		cfg:       deps.Config,
		collab:    deps.Collab,
		observers: deps.Observers,
		estimator: deps.Estimator,
		now:       deps.Now,
		newID:     deps.NewID,
	}
}

// Create opens a new session in the Created state. Only one session may
// exist at a time; completing the current one frees the slot.
func (s *Service) Create(ctx context.Context, bodyMassKg, loadMassKg float64) (StateSnapshot, error) {
	if bodyMassKg <= 0 || loadMassKg < 0 {
		return StateSnapshot{}, ErrInvalidMass
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return StateSnapshot{}, ErrSessionExists
	}
	s.current = NewMachine(MachineParams{
		Config:     s.cfg,
		SessionID:  s.newID(),
		BodyMassKg: bodyMassKg,
		LoadMassKg: loadMassKg,
		Collab:     s.collab,
		Observers:  s.observers,
		Estimator:  s.estimator,
		Now:        s.now,
	})
	return s.current.Snapshot(ctx)
}

// Restore rebuilds a mid-session machine from a crash snapshot. The caller
// decides whether the snapshot is fresh enough; the service only rebuilds.
func (s *Service) Restore(ctx context.Context, snap CrashSnapshot) (StateSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return StateSnapshot{}, ErrSessionExists
	}
	restored := snap
	s.current = NewMachine(MachineParams{
		Config:    s.cfg,
		Collab:    s.collab,
		Observers: s.observers,
		Estimator: s.estimator,
		Now:       s.now,
		Restored:  &restored,
	})
	log.Printf("session %s recovered, started %s", snap.SessionID, humanize.Time(snap.StartedAt))
	return s.current.Snapshot(ctx)
}

func (s *Service) Start(ctx context.Context, sessionID string) (StateSnapshot, error) {
	m, err := s.lookup(sessionID)
	if err != nil {
		return StateSnapshot{}, err
	}
	return m.Dispatch(ctx, StartEvent{At: s.now()})
}

func (s *Service) Pause(ctx context.Context, sessionID string) (StateSnapshot, error) {
	m, err := s.lookup(sessionID)
	if err != nil {
		return StateSnapshot{}, err
	}
	return m.Dispatch(ctx, PauseEvent{At: s.now()})
}

func (s *Service) Resume(ctx context.Context, sessionID string) (StateSnapshot, error) {
	m, err := s.lookup(sessionID)
	if err != nil {
		return StateSnapshot{}, err
	}
	return m.Dispatch(ctx, ResumeEvent{At: s.now()})
}

// Complete finishes the session and releases the single-session slot once
// the machine confirms the terminal state.
func (s *Service) Complete(ctx context.Context, sessionID, notes string, rating int) (StateSnapshot, error) {
	m, err := s.lookup(sessionID)
	if err != nil {
		return StateSnapshot{}, err
	}
	snap, err := m.Dispatch(ctx, CompleteEvent{At: s.now(), Notes: notes, Rating: rating})
	if err != nil {
		return snap, err
	}
	if snap.Status != StatusCompleted {
		return snap, nil
	}

	s.mu.Lock()
	if s.current == m {
		s.current = nil
	}
	s.mu.Unlock()
	m.Close()

	log.Printf("session %s completed: %.2f km, %d s elapsed, %.0f kcal, started %s",
		snap.SessionID, snap.Metrics.DistanceKm, snap.ElapsedSeconds,
		snap.Metrics.Calories, humanize.Time(snap.StartedAt))
	return snap, nil
}

func (s *Service) Location(ctx context.Context, sessionID string, p LocationPoint) (StateSnapshot, error) {
	m, err := s.lookup(sessionID)
	if err != nil {
		return StateSnapshot{}, err
	}
	return m.Dispatch(ctx, LocationEvent{Point: p})
}

func (s *Service) HeartRate(ctx context.Context, sessionID string, sample HeartRateSample) (StateSnapshot, error) {
	m, err := s.lookup(sessionID)
	if err != nil {
		return StateSnapshot{}, err
	}
	return m.Dispatch(ctx, HeartRateEvent{Sample: sample})
}

// WatchFailed records a wearable command failure reported from outside the
// engine, for companions that talk to the watch directly.
func (s *Service) WatchFailed(ctx context.Context, sessionID, reason string) (StateSnapshot, error) {
	m, err := s.lookup(sessionID)
	if err != nil {
		return StateSnapshot{}, err
	}
	return m.Dispatch(ctx, WatchFailedEvent{Reason: reason})
}

// Current returns the live session snapshot, if any.
func (s *Service) Current(ctx context.Context) (StateSnapshot, error) {
	s.mu.Lock()
	m := s.current
	s.mu.Unlock()
	if m == nil {
		return StateSnapshot{}, ErrNoActiveSession
	}
	return m.Snapshot(ctx)
}

// Shutdown abandons the live machine without completing it. The crash
// snapshot, if any, stays put so the session can be recovered on restart.
func (s *Service) Shutdown() {
	s.mu.Lock()
	m := s.current
	s.current = nil
	s.mu.Unlock()
	if m != nil {
		m.Close()
	}
}

func (s *Service) lookup(sessionID string) (*Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNoActiveSession
	}
	if s.current.ID() != sessionID {
		return nil, ErrSessionNotFound
	}
	return s.current, nil
}
