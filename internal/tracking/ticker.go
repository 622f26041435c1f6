package tracking

import (
	"sync"
	"time"
)

// ticker drives elapsed time for one session. A primary one-second timer
// emits unit ticks; a slower watchdog compares the wall clock against the
// last emitted tick and replays whole missed seconds in one event whenever
// the host starved the primary timer.
//
// emit must not block. When an emit is refused the tick is dropped and
// lastTick stays put, so the watchdog replays the lost time on a later pass.
type ticker struct {
	cfg  Config
	now  func() time.Time
	emit func(Event) bool

	mu       sync.Mutex
	lastTick time.Time
	stop     chan struct{}
	running  bool
}

func newTicker(cfg Config, now func() time.Time, emit func(Event) bool) *ticker {
	return &ticker{cfg: cfg, now: now, emit: emit}
}

func (t *ticker) start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.lastTick = t.now()
	t.stop = make(chan struct{})
	stop := t.stop
	t.mu.Unlock()

	go t.loop(t.cfg.TickInterval, stop, t.primaryTick)
	go t.loop(t.cfg.WatchdogInterval, stop, t.watchdogCheck)
}

func (t *ticker) halt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	close(t.stop)
}

func (t *ticker) runningNow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *ticker) loop(every time.Duration, stop <-chan struct{}, fn func()) {
	tk := time.NewTicker(every)
	defer tk.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tk.C:
			fn()
		}
	}
}

func (t *ticker) primaryTick() {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.emit(TickEvent{Seconds: 1, At: now}) {
		t.lastTick = now
	}
}

// watchdogCheck measures the gap since the last emitted tick and, past the
// tolerance, replays the missed whole seconds as a single catch-up event.
func (t *ticker) watchdogCheck() {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	gap := now.Sub(t.lastTick)
	if gap <= t.cfg.WatchdogTolerance {
		return
	}
	missed := int(gap / time.Second)
	if missed <= 0 {
		return
	}
	if t.emit(TickEvent{Seconds: missed, At: now}) {
		t.lastTick = now
	}
}
