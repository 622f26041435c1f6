package tracking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

var (
	ErrSessionCompleted = errors.New("session already completed")
	ErrMachineClosed    = errors.New("session machine closed")
)

// collabTimeout bounds every fire-and-forget collaborator call.
const collabTimeout = 30 * time.Second

// eventBuffer sizes the machine mailbox. Producers emit at most a few
// events per second, so a small buffer absorbs any scheduling hiccup.
const eventBuffer = 64

// MachineParams configures a session machine. Collaborators and observers
// are fixed at construction; the machine never reaches into globals.
type MachineParams struct {
	Config     Config
	SessionID  string
	BodyMassKg float64
	LoadMassKg float64
	Collab     Collaborators
	Observers  []StateObserver

	// Estimator defaults to MechanicalEstimator with Config.Calories.
	Estimator CalorieEstimator

	// Now defaults to time.Now. Tests inject a fake clock here.
	Now func() time.Time

	// Restored, when set, reconstructs a mid-session machine from a crash
	// snapshot: it comes up Active with seeded totals and running timers.
	Restored *CrashSnapshot
}

// Machine owns one session. All mutation is serialized through a single
// loop goroutine; Dispatch and Snapshot are safe from any goroutine.
type Machine struct {
	cfg    Config
	collab Collaborators
	obs    []StateObserver
	now    func() time.Time

	events  chan envelope
	queries chan chan StateSnapshot
	done    chan struct{}
	closeFn sync.Once

	// Everything below is owned by the loop goroutine. The constructor may
	// touch it only before the loop starts.
	sess      Session
	validator *validator
	agg       *aggregator
	ticker    *ticker
	mode      TrackingMode
	recovered bool
	pausedAt  time.Time
	lastFixAt time.Time

	modeEvalElapsed int
	modeEvalDistKm  float64
}

type envelope struct {
	ev    Event
	reply chan result
}

type result struct {
	snap StateSnapshot
	err  error
}

func NewMachine(p MachineParams) *Machine {
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Estimator == nil {
		p.Estimator = MechanicalEstimator{Params: p.Config.Calories}
	}

	m := &Machine{
		cfg:     p.Config,
		collab:  p.Collab,
		obs:     p.Observers,
		now:     p.Now,
		events:  make(chan envelope, eventBuffer),
		queries: make(chan chan StateSnapshot),
		done:    make(chan struct{}),
		mode:    ModeHigh,
	}
	m.sess = Session{
		ID:         p.SessionID,
		Status:     StatusCreated,
		BodyMassKg: p.BodyMassKg,
		LoadMassKg: p.LoadMassKg,
	}
	m.validator = newValidator(p.Config)
	m.agg = newAggregator(p.Config, p.Estimator, p.BodyMassKg, p.LoadMassKg)
	m.ticker = newTicker(p.Config, p.Now, m.enqueue)

	if p.Restored != nil {
		m.restore(*p.Restored)
	}

	go m.loop()

	if p.Restored != nil {
		m.ticker.start()
		m.sensorOp("start", func(ctx context.Context) error {
			if m.collab.Sensors == nil {
				return nil
			}
			return m.collab.Sensors.StartUpdates(ctx)
		})
	}
	return m
}

// restore seeds loop-owned state from a crash snapshot. Runs before the
// loop goroutine exists.
func (m *Machine) restore(snap CrashSnapshot) {
	m.sess.ID = snap.SessionID
	m.sess.Status = StatusActive
	m.sess.BodyMassKg = snap.BodyMassKg
	m.sess.LoadMassKg = snap.LoadMassKg
	m.sess.StartedAt = snap.StartedAt
	m.sess.ElapsedSeconds = snap.ElapsedSeconds
	m.sess.PausedSeconds = snap.PausedSeconds
	m.sess.totalPaused = time.Duration(snap.PausedSeconds) * time.Second
	m.agg.bodyMassKg = snap.BodyMassKg
	m.agg.loadMassKg = snap.LoadMassKg
	m.agg.seed(snap)
	m.sess.Metrics = m.agg.snapshot()
	m.recovered = true
	m.lastFixAt = m.now()
	m.modeEvalElapsed = snap.ElapsedSeconds
	m.modeEvalDistKm = snap.DistanceKm
	m.emit(m.snapshot())
}

func (m *Machine) ID() string { return m.sess.ID }

// Dispatch sends one event into the machine and waits for the resulting
// state. The returned snapshot reflects the session after the event was
// applied (or ignored).
func (m *Machine) Dispatch(ctx context.Context, ev Event) (StateSnapshot, error) {
	env := envelope{ev: ev, reply: make(chan result, 1)}
	select {
	case m.events <- env:
	case <-m.done:
		return StateSnapshot{}, ErrMachineClosed
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	}
	select {
	case r := <-env.reply:
		return r.snap, r.err
	case <-m.done:
		// The loop may have replied just before shutting down.
		select {
		case r := <-env.reply:
			return r.snap, r.err
		default:
			return StateSnapshot{}, ErrMachineClosed
		}
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	}
}

// Snapshot returns the current state without mutating anything.
func (m *Machine) Snapshot(ctx context.Context) (StateSnapshot, error) {
	ch := make(chan StateSnapshot, 1)
	select {
	case m.queries <- ch:
	case <-m.done:
		return StateSnapshot{}, ErrMachineClosed
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	}
	select {
	case snap := <-ch:
		return snap, nil
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	}
}

// Close stops the timers and the loop. Events already dispatched may be
// dropped; Close is called only after the session reached a resting state.
func (m *Machine) Close() {
	m.closeFn.Do(func() {
		m.ticker.halt()
		close(m.done)
	})
}

// enqueue is the non-blocking path used by the ticker and by side-effect
// goroutines feeding failures back in. A refused event is reported to the
// caller, never waited on.
func (m *Machine) enqueue(ev Event) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.events <- envelope{ev: ev}:
		return true
	default:
		return false
	}
}

func (m *Machine) loop() {
	for {
		select {
		case <-m.done:
			return
		case ch := <-m.queries:
			ch <- m.snapshot()
		case env := <-m.events:
			snap, err := m.apply(env.ev)
			if env.reply != nil {
				env.reply <- result{snap: snap, err: err}
			}
		}
	}
}

// apply is the single exhaustive event switch. Every (state, event) pair
// has a defined outcome; unexpected pairs are counted and ignored, never
// fatal. The one hard error is mutation after completion.
func (m *Machine) apply(ev Event) (StateSnapshot, error) {
	if m.sess.Status == StatusCompleted {
		log.Printf("session %s: %T ignored, session completed", m.sess.ID, ev)
		return m.snapshot(), ErrSessionCompleted
	}

	switch e := ev.(type) {
	case StartEvent:
		m.applyStart(e)
	case LocationEvent:
		m.applyLocation(e)
	case HeartRateEvent:
		m.applyHeartRate(e)
	case TickEvent:
		m.applyTick(e)
	case PauseEvent:
		m.applyPause(e)
	case ResumeEvent:
		m.applyResume(e)
	case CompleteEvent:
		m.applyComplete(e)
	case WatchFailedEvent:
		m.sess.WatchFailed = true
		m.sess.LastWarning = "watch command failed: " + e.Reason
	}

	snap := m.snapshot()
	m.emit(snap)
	return snap, nil
}

func (m *Machine) applyStart(e StartEvent) {
	if m.sess.Status != StatusCreated {
		m.ignore(fmt.Sprintf("start ignored while %s", m.sess.Status))
		return
	}
	at := e.At
	if at.IsZero() {
		at = m.now()
	}
	m.sess.Status = StatusActive
	m.sess.StartedAt = at
	m.lastFixAt = m.now()
	m.modeEvalElapsed = 0
	m.modeEvalDistKm = 0
	m.ticker.start()
	m.sensorOp("start", m.sensorStart)
	m.notifyWearable(WearableStarted)
}

func (m *Machine) applyLocation(e LocationEvent) {
	if m.sess.Status != StatusActive {
		m.sess.IgnoredEvents++
		return
	}
	reason := m.validator.check(e.Point)
	if reason != RejectionNone {
		m.sess.RejectedPoints++
		m.sess.LastRejection = reason
		return
	}

	var prev *LocationPoint
	if n := len(m.sess.Route); n > 0 {
		prev = &m.sess.Route[n-1]
	}
	m.agg.addPoint(prev, e.Point)
	m.sess.Route = append(m.sess.Route, e.Point)
	m.sess.Metrics = m.agg.snapshot()
	m.lastFixAt = m.now()
	if m.sess.GPSSignalLost {
		m.sess.GPSSignalLost = false
		m.sess.LastWarning = ""
	}
}

func (m *Machine) applyHeartRate(e HeartRateEvent) {
	if m.sess.Status != StatusActive && m.sess.Status != StatusPaused {
		m.sess.IgnoredEvents++
		return
	}
	m.sess.HeartRate = append(m.sess.HeartRate, e.Sample)
	m.agg.addHeartRate(e.Sample)
	m.sess.Metrics = m.agg.snapshot()
}

func (m *Machine) applyTick(e TickEvent) {
	if m.sess.Status != StatusActive {
		m.sess.IgnoredEvents++
		return
	}
	// A catch-up tick replays each missed second individually so the
	// calorie floor sees the same intermediate values as live ticking.
	for i := 0; i < e.Seconds; i++ {
		m.sess.ElapsedSeconds++
		m.agg.tick(m.sess.ElapsedSeconds)
	}
	m.sess.Metrics = m.agg.snapshot()
	m.checkGPSSignal(e.At)
	m.evalTrackingMode()
}

// checkGPSSignal raises the signal-lost flag when no fix has been accepted
// for longer than the configured window and asks the sensor layer for a
// restart. The flag clears on the next accepted fix.
func (m *Machine) checkGPSSignal(at time.Time) {
	if m.sess.GPSSignalLost {
		return
	}
	if at.Sub(m.lastFixAt) <= m.cfg.GPSLostAfter {
		return
	}
	m.sess.GPSSignalLost = true
	m.sess.LastWarning = "gps signal lost"
	m.sensorOp("restart", m.sensorRestart)
}

// evalTrackingMode reassesses sampling aggressiveness from the distance
// covered in the last evaluation window and pushes changes to the sensor
// layer. It never touches recorded data.
func (m *Machine) evalTrackingMode() {
	windowSecs := m.sess.ElapsedSeconds - m.modeEvalElapsed
	if windowSecs < m.cfg.ModeEvalEvery {
		return
	}
	speed := (m.agg.distanceKm - m.modeEvalDistKm) * 1000 / float64(windowSecs)
	m.modeEvalElapsed = m.sess.ElapsedSeconds
	m.modeEvalDistKm = m.agg.distanceKm

	mode := ModeHigh
	switch {
	case speed < m.cfg.StationaryMps:
		mode = ModePowerSave
	case speed < m.cfg.SlowWalkMps:
		mode = ModeBalanced
	}
	if mode == m.mode {
		return
	}
	m.mode = mode
	m.sensorOp("set mode", func(ctx context.Context) error {
		if m.collab.Sensors == nil {
			return nil
		}
		return m.collab.Sensors.SetMode(ctx, mode)
	})
}

func (m *Machine) applyPause(e PauseEvent) {
	if m.sess.Status != StatusActive {
		m.ignore(fmt.Sprintf("pause ignored while %s", m.sess.Status))
		return
	}
	at := e.At
	if at.IsZero() {
		at = m.now()
	}
	m.sess.Status = StatusPaused
	m.pausedAt = at
	m.ticker.halt()
	m.sensorOp("stop", m.sensorStop)
	m.notifyWearable(WearablePaused)
}

func (m *Machine) applyResume(e ResumeEvent) {
	if m.sess.Status != StatusPaused {
		m.ignore(fmt.Sprintf("resume ignored while %s", m.sess.Status))
		return
	}
	at := e.At
	if at.IsZero() {
		at = m.now()
	}
	m.sess.Status = StatusActive
	m.sess.totalPaused += at.Sub(m.pausedAt)
	m.sess.PausedSeconds = int(m.sess.totalPaused / time.Second)
	m.pausedAt = time.Time{}
	m.lastFixAt = m.now()
	m.ticker.start()
	m.sensorOp("start", m.sensorStart)
	m.notifyWearable(WearableResumed)
}

func (m *Machine) applyComplete(e CompleteEvent) {
	if m.sess.Status != StatusActive && m.sess.Status != StatusPaused {
		m.ignore(fmt.Sprintf("complete ignored while %s", m.sess.Status))
		return
	}
	at := e.At
	if at.IsZero() {
		at = m.now()
	}
	if m.sess.Status == StatusPaused {
		m.sess.totalPaused += at.Sub(m.pausedAt)
		m.sess.PausedSeconds = int(m.sess.totalPaused / time.Second)
		m.pausedAt = time.Time{}
	}

	m.ticker.halt()
	m.agg.tick(m.sess.ElapsedSeconds)
	m.sess.Metrics = m.agg.snapshot()
	m.sess.Status = StatusCompleted
	m.sess.CompletedAt = at
	m.sess.Notes = e.Notes
	m.sess.Rating = e.Rating

	m.sensorOp("stop", m.sensorStop)
	m.notifyWearable(WearableCompleted)
	m.handoff(m.sess.finalize())
}

// handoff fans the finalized session out to the completion consumers. Each
// call is independent; a failure is logged and never revisits the session.
func (m *Machine) handoff(final Session) {
	run := func(name string, fn func(ctx context.Context) error) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), collabTimeout)
			defer cancel()
			if err := fn(ctx); err != nil {
				log.Printf("session %s: %s handoff failed: %v", final.ID, name, err)
			}
		}()
	}
	if m.collab.Uploader != nil {
		run("upload", func(ctx context.Context) error { return m.collab.Uploader.UploadSession(ctx, final) })
	}
	if m.collab.Health != nil {
		run("health", func(ctx context.Context) error { return m.collab.Health.RecordWorkout(ctx, final) })
	}
	if m.collab.Achievements != nil {
		run("achievements", func(ctx context.Context) error { return m.collab.Achievements.SessionCompleted(ctx, final) })
	}
	if m.collab.Exporter != nil {
		run("export", func(ctx context.Context) error { return m.collab.Exporter.Export(ctx, final) })
	}
}

func (m *Machine) ignore(warning string) {
	m.sess.IgnoredEvents++
	m.sess.LastWarning = warning
	log.Printf("session %s: %s", m.sess.ID, warning)
}

func (m *Machine) snapshot() StateSnapshot {
	return StateSnapshot{
		SessionID:      m.sess.ID,
		Status:         m.sess.Status,
		StartedAt:      m.sess.StartedAt,
		ElapsedSeconds: m.sess.ElapsedSeconds,
		PausedSeconds:  m.sess.PausedSeconds,
		Metrics:        m.sess.Metrics,
		Mode:           m.mode,
		RoutePoints:    len(m.sess.Route),
		HeartRateCount: len(m.sess.HeartRate),
		GPSSignalLost:  m.sess.GPSSignalLost,
		WatchFailed:    m.sess.WatchFailed,
		LastRejection:  m.sess.LastRejection,
		RejectedPoints: m.sess.RejectedPoints,
		IgnoredEvents:  m.sess.IgnoredEvents,
		LastWarning:    m.sess.LastWarning,
		Recovered:      m.recovered,
		BodyMassKg:     m.sess.BodyMassKg,
		LoadMassKg:     m.sess.LoadMassKg,
	}
}

func (m *Machine) emit(snap StateSnapshot) {
	for _, o := range m.obs {
		o.OnState(snap)
	}
}

func (m *Machine) sensorStart(ctx context.Context) error {
	if m.collab.Sensors == nil {
		return nil
	}
	return m.collab.Sensors.StartUpdates(ctx)
}

func (m *Machine) sensorStop(ctx context.Context) error {
	if m.collab.Sensors == nil {
		return nil
	}
	return m.collab.Sensors.StopUpdates(ctx)
}

func (m *Machine) sensorRestart(ctx context.Context) error {
	if m.collab.Sensors == nil {
		return nil
	}
	return m.collab.Sensors.RequestRestart(ctx)
}

// sensorOp runs one sensor-layer request off the loop goroutine. Failures
// are logged; the session never blocks on the sensor layer.
func (m *Machine) sensorOp(name string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), collabTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Printf("session %s: sensor %s failed: %v", m.sess.ID, name, err)
		}
	}()
}

// notifyWearable pushes a lifecycle stage to the watch off the loop
// goroutine. A failure becomes a WatchFailedEvent fed back through the
// mailbox; if the mailbox is full the failure is only logged.
func (m *Machine) notifyWearable(stage string) {
	if m.collab.Wearable == nil {
		return
	}
	snap := m.snapshot()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), collabTimeout)
		defer cancel()
		if err := m.collab.Wearable.Notify(ctx, stage, snap); err != nil {
			log.Printf("session %s: wearable %s failed: %v", m.sess.ID, stage, err)
			m.enqueue(WatchFailedEvent{Reason: err.Error()})
		}
	}()
}
