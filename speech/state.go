package speech

import "sync"

// Mode represents what the orchestrator is doing with its queue.
type Mode int

const (
	// Stopped indicates nothing is playing.
	Stopped Mode = iota
	// ManualPlaying indicates one explicitly requested node is in flight.
	ManualPlaying
	// AutoPlaying indicates the orchestrator is walking the queue in order.
	AutoPlaying
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case Stopped:
		return "stopped"
	case ManualPlaying:
		return "manual"
	case AutoPlaying:
		return "autoplay"
	default:
		return "unknown"
	}
}

// machine is the orchestrator's transition table. Mode changes happen only
// through discrete transitions here, never by observing shared flags.
type machine struct {
	mu          sync.Mutex
	current     Mode
	transitions map[Mode][]Mode
	onEnter     map[Mode]func(Mode)
}

func newMachine() *machine {
	return &machine{
		current: Stopped,
		transitions: map[Mode][]Mode{
			Stopped:       {ManualPlaying, AutoPlaying},
			ManualPlaying: {Stopped, AutoPlaying},
			AutoPlaying:   {Stopped},
		},
		onEnter: make(map[Mode]func(Mode)),
	}
}

// transition attempts to move to the given mode, returning false if the
// table does not allow it. Self-transitions are rejected.
func (m *machine) transition(to Mode) bool {
	m.mu.Lock()
	valid := false
	for _, mode := range m.transitions[m.current] {
		if mode == to {
			valid = true
			break
		}
	}
	if !valid {
		m.mu.Unlock()
		return false
	}
	from := m.current
	m.current = to
	enter := m.onEnter[to]
	m.mu.Unlock()

	if enter != nil {
		enter(from)
	}
	return true
}

// mode returns the current mode.
func (m *machine) mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// enterHook registers a callback invoked after entering the given mode.
func (m *machine) enterHook(mode Mode, fn func(from Mode)) {
	m.mu.Lock()
	m.onEnter[mode] = fn
	m.mu.Unlock()
}
