// Package progress tracks how much of a run is done, whether it was asked to
// stop, and streams status events to whoever is watching it.
package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type State string

const (
	StateIdle       State = "idle"
	StateCounting   State = "counting"
	StateGenerating State = "generating"
	StateApplying   State = "applying"
	StateDone       State = "done"
	StateAborted    State = "aborted"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted || s == StateFailed
}

type EventKind string

const (
	EventProgress EventKind = "progress"
	EventMessage  EventKind = "message"
	EventState    EventKind = "state"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Event struct {
	Kind    EventKind
	Level   Level
	Message string
	Data    map[string]interface{}
	Percent int
	State   State
	Time    time.Time
}

// Tracker is shared by every phase of a run. Counters and the stop flag may be
// read from any goroutine; events are emitted from the run's goroutine.
type Tracker struct {
	done  atomic.Int64
	total atomic.Int64
	state atomic.Value

	stopOnce   sync.Once
	stopped    chan struct{}
	detachOnce sync.Once
	detached   chan struct{}

	percent atomic.Int64

	mu       sync.Mutex
	events   chan Event
	finished bool
}

// NewTracker returns a tracker that emits no events.
func NewTracker() *Tracker {
	t := &Tracker{
		stopped:  make(chan struct{}),
		detached: make(chan struct{}),
	}
	t.state.Store(StateIdle)
	return t
}

// NewTrackerWithEvents returns a tracker delivering events over a channel
// with the given buffer. Sends block while the buffer is full, so the
// consumer must keep reading until the channel is closed or call Detach.
func NewTrackerWithEvents(buffer int) *Tracker {
	t := NewTracker()
	t.events = make(chan Event, buffer)
	return t
}

// Events returns the event channel, or nil for a silent tracker. It is closed
// after the terminal state event.
func (t *Tracker) Events() <-chan Event {
	return t.events
}

// Detach drops all later events. Consumers that stop reading early call it
// so the run never blocks on them.
func (t *Tracker) Detach() {
	t.detachOnce.Do(func() { close(t.detached) })
}

// Stop asks the run to stop at the next row boundary.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}

// Aborted reports whether Stop was called or ctx is done.
func (t *Tracker) Aborted(ctx context.Context) bool {
	select {
	case <-t.stopped:
		return true
	default:
	}
	return ctx.Err() != nil
}

func (t *Tracker) SetTotal(n int) {
	t.total.Store(int64(n))
}

func (t *Tracker) Total() int {
	return int(t.total.Load())
}

func (t *Tracker) Done() int {
	return int(t.done.Load())
}

// Advance counts n units of work as done and emits a progress event when the
// whole percentage grew.
func (t *Tracker) Advance(n int) {
	if n <= 0 {
		return
	}
	t.done.Add(int64(n))
	t.mu.Lock()
	defer t.mu.Unlock()
	if p := t.computePercent(); p > t.Percent() {
		t.percent.Store(int64(p))
		t.emit(Event{Kind: EventProgress, Percent: p})
	}
}

// Percent returns the last reported completion, 0 to 100. It never
// decreases.
func (t *Tracker) Percent() int {
	return int(t.percent.Load())
}

func (t *Tracker) computePercent() int {
	total := t.total.Load()
	if total <= 0 {
		return 0
	}
	p := int(t.done.Load() * 100 / total)
	if p > 100 {
		return 100
	}
	return p
}

func (t *Tracker) State() State {
	return t.state.Load().(State)
}

// SetState records a non-terminal state transition. Terminal states go
// through Finish.
func (t *Tracker) SetState(s State) {
	t.state.Store(s)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emit(Event{Kind: EventState, State: s, Percent: t.Percent()})
}

// Message emits a status message.
func (t *Tracker) Message(level Level, msg string, data map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emit(Event{Kind: EventMessage, Level: level, Message: msg, Data: data, Percent: t.Percent()})
}

// Finish moves to the terminal state s, reports 100% and closes the event
// channel. Only the first call has any effect.
func (t *Tracker) Finish(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}
	t.state.Store(s)
	if t.Percent() < 100 {
		t.percent.Store(100)
		t.emit(Event{Kind: EventProgress, Percent: 100})
	}
	t.emit(Event{Kind: EventState, State: s, Percent: 100})
	t.finished = true
	if t.events != nil {
		close(t.events)
	}
}

// emit must be called with mu held.
func (t *Tracker) emit(e Event) {
	if t.events == nil || t.finished {
		return
	}
	e.Time = time.Now()
	select {
	case t.events <- e:
	case <-t.detached:
	}
}
