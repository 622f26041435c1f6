package tracking

import "time"

// Event is the closed set of inputs the session machine understands. The
// machine processes every event in one exhaustive switch, so adding a
// variant without handling it is a compile-time smell, not a runtime one.
type Event interface{ isEvent() }

type StartEvent struct {
	At time.Time
}

type LocationEvent struct {
	Point LocationPoint
}

type HeartRateEvent struct {
	Sample HeartRateSample
}

// TickEvent advances elapsed time. Seconds is 1 for a normal primary tick;
// the watchdog emits larger values to replay ticks lost while the host
// starved the timers.
type TickEvent struct {
	Seconds int
	At      time.Time
}

type PauseEvent struct {
	At time.Time
}

type ResumeEvent struct {
	At time.Time
}

type CompleteEvent struct {
	At     time.Time
	Notes  string
	Rating int
}

// WatchFailedEvent reports a failed wearable command back into the loop.
// It only sets a warning flag; it never blocks session progression.
type WatchFailedEvent struct {
	Reason string
}

func (StartEvent) isEvent()       {}
func (LocationEvent) isEvent()    {}
func (HeartRateEvent) isEvent()   {}
func (TickEvent) isEvent()        {}
func (PauseEvent) isEvent()       {}
func (ResumeEvent) isEvent()      {}
func (CompleteEvent) isEvent()    {}
func (WatchFailedEvent) isEvent() {}
