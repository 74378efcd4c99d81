package speech

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// EventType identifies a lifecycle event in the speech pipeline.
type EventType int

const (
	// EventFetchStarted fires when a synthesis request goes out for a node.
	EventFetchStarted EventType = iota
	// EventFetchStopped fires when a synthesis request completes or fails.
	EventFetchStopped
	// EventPlayStarted fires when a node starts through the audio output.
	EventPlayStarted
	// EventPlayStopped fires when a node finishes, is interrupted, or fails.
	EventPlayStopped
	// EventModeChanged fires when the orchestrator changes mode.
	EventModeChanged
	// EventQueueReset fires when the queue is discarded on a context change.
	EventQueueReset
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventFetchStarted:
		return "fetch_started"
	case EventFetchStopped:
		return "fetch_stopped"
	case EventPlayStarted:
		return "play_started"
	case EventPlayStopped:
		return "play_stopped"
	case EventModeChanged:
		return "mode_changed"
	case EventQueueReset:
		return "queue_reset"
	default:
		return "unknown"
	}
}

// Event is a single lifecycle notification. Node is nil for queue-level
// events; Err is non-nil when the underlying fetch or play failed.
type Event struct {
	Type EventType
	Node *Node
	Mode Mode
	Err  error
	At   time.Time
}

// Events fans lifecycle notifications out to any number of observers (UI,
// logging, tests) without the emitters special-casing call sites.
//
// Delivery is non-blocking: a subscriber that stops draining its channel
// loses events rather than stalling playback.
type Events struct {
	mu      sync.Mutex
	subs    map[int]chan Event
	nextID  int
	dropped int
}

// NewEvents creates an empty observer list.
func NewEvents() *Events {
	return &Events{subs: make(map[int]chan Event)}
}

// Subscribe registers an observer. The returned cancel function removes the
// subscription and closes the channel.
func (e *Events) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = ch
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

// emit delivers the event to every subscriber, dropping on full buffers.
func (e *Events) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sub := range e.subs {
		select {
		case sub <- ev:
		default:
			e.dropped++
			log.Debug("speech: dropped event for slow subscriber",
				"type", ev.Type, "dropped_total", e.dropped)
		}
	}
}

// Dropped returns how many events were discarded for slow subscribers.
func (e *Events) Dropped() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}
