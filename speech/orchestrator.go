package speech

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultNodeTimeout bounds how long one node may spend in fetch plus
// playback before the orchestrator gives up on it. An unresponsive synthesis
// endpoint or audio device would otherwise stall the sequence forever.
const DefaultNodeTimeout = 2 * time.Minute

// Orchestrator sequences node playback through the one shared audio output.
//
// It upholds two guarantees: nodes within a queue play strictly in enqueue
// order during autoplay, and at most one node plays at any instant. All play
// requests are serialized; a new request fully stops the previous one before
// its own audio starts.
type Orchestrator struct {
	queue  *Queue
	port   Port
	events *Events
	states *machine

	// nodeTimeout caps fetch+playback per node. Zero disables the cap.
	nodeTimeout time.Duration

	// mu guards the playback session: the node in flight, its cancel
	// function, and the autoplay switch.
	mu       sync.Mutex
	current  *Node
	cancel   context.CancelFunc
	autoplay bool

	// playMu is held for the full duration of one play invocation, so a
	// newer request cannot start audio until the older one has fully
	// returned.
	playMu sync.Mutex
}

// NewOrchestrator creates an orchestrator for the given queue and port.
// Autoplay starts enabled, matching the classroom default.
func NewOrchestrator(queue *Queue, port Port, events *Events) *Orchestrator {
	o := &Orchestrator{
		queue:       queue,
		port:        port,
		events:      events,
		states:      newMachine(),
		nodeTimeout: DefaultNodeTimeout,
		autoplay:    true,
	}
	for _, mode := range []Mode{Stopped, ManualPlaying, AutoPlaying} {
		mode := mode
		o.states.enterHook(mode, func(from Mode) {
			log.Debug("speech: mode change", "from", from, "to", mode)
			if o.events != nil {
				o.events.emit(Event{Type: EventModeChanged, Mode: mode})
			}
		})
	}
	return o
}

// SetNodeTimeout adjusts the per-node fetch+playback cap. Zero disables it.
func (o *Orchestrator) SetNodeTimeout(d time.Duration) {
	o.mu.Lock()
	o.nodeTimeout = d
	o.mu.Unlock()
}

// SetAutoplay flips the autoplay switch. Disabling it while a sequence is
// walking lets the current node finish and stops there.
func (o *Orchestrator) SetAutoplay(enabled bool) {
	o.mu.Lock()
	o.autoplay = enabled
	o.mu.Unlock()
}

// Autoplay reports whether autoplay is enabled.
func (o *Orchestrator) Autoplay() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.autoplay
}

// Mode returns the orchestrator's current mode.
func (o *Orchestrator) Mode() Mode {
	return o.states.mode()
}

// Current returns the node in flight, or nil. Lookup only; callers must not
// drive the node themselves.
func (o *Orchestrator) Current() *Node {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Queue returns the queue this orchestrator consumes.
func (o *Orchestrator) Queue() *Queue {
	return o.queue
}

// PlayNode plays one explicitly requested node, blocking until it finishes,
// fails, or is superseded by a newer request. Any playback already in flight
// is stopped first. On completion, if autoplay is enabled and the node has a
// successor, the sequence continues from there.
//
// A nil error is returned when the node completed or was superseded; a
// superseded play never reports failure.
func (o *Orchestrator) PlayNode(ctx context.Context, node *Node) error {
	if !o.queue.Has(node) {
		id := ""
		if node != nil {
			id = node.id
		}
		return newError(KindQueue, "play", id, ErrNodeNotTracked)
	}

	// Stop whatever is playing, then wait for its invocation to unwind.
	if err := o.Stop(); err != nil {
		log.Warn("speech: pausing previous node failed", "err", err)
	}
	o.playMu.Lock()
	defer o.playMu.Unlock()

	if !o.states.transition(ManualPlaying) {
		// A competing request won the race after our Stop.
		return nil
	}

	playCtx, done := o.beginNode(ctx, node)
	err := node.Play(playCtx, o.port)
	done()

	if interrupted(err) {
		return nil
	}
	if err != nil {
		o.toStopped()
		return err
	}

	// Finished cleanly. Resume the queue walk if autoplay wants it.
	if o.Autoplay() {
		if next := node.Next(); next != nil && o.states.transition(AutoPlaying) {
			return o.walk(ctx, next)
		}
	}
	o.toStopped()
	return nil
}

// StartAutoplay walks the queue from the first unheard node to the end,
// playing each in order. It is a no-op when autoplay is disabled, when
// something is already playing, or when everything has been heard.
//
// A synthesis or playback failure halts the walk at the failing node and is
// returned to the caller; the orchestrator does not silently skip ahead.
func (o *Orchestrator) StartAutoplay(ctx context.Context) error {
	if !o.Autoplay() || o.states.mode() != Stopped {
		return nil
	}

	o.playMu.Lock()
	defer o.playMu.Unlock()

	// Re-check under the play lock: another request may have started.
	if !o.Autoplay() || o.states.mode() != Stopped {
		return nil
	}
	start := o.queue.FirstUnplayed()
	if start == nil {
		return nil
	}
	if !o.states.transition(AutoPlaying) {
		return nil
	}
	return o.walk(ctx, start)
}

// Stop pauses the node in flight, detaches its completion wait, and returns
// the orchestrator to Stopped. Idempotent; stopping with nothing playing is
// a no-op.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	current := o.current
	cancel := o.cancel
	o.current = nil
	o.cancel = nil
	o.mu.Unlock()

	var err error
	if current != nil {
		err = current.Pause(o.port)
	}
	if cancel != nil {
		// Severs the play invocation's wait before Stop returns, so a
		// late "ended" signal from this node cannot touch a newer play.
		cancel()
	}
	o.states.transition(Stopped)
	return err
}

// Reset tears the playback session down along with its queue. Used when the
// surrounding context changes and both are rebuilt.
func (o *Orchestrator) Reset() {
	if err := o.Stop(); err != nil {
		log.Warn("speech: pause during reset failed", "err", err)
	}
	o.queue.Reset()
}

// walk plays node and each successor in order. Caller holds playMu and has
// already transitioned to AutoPlaying.
func (o *Orchestrator) walk(ctx context.Context, node *Node) error {
	for node != nil {
		if o.states.mode() != AutoPlaying {
			// Stopped externally between nodes.
			return nil
		}
		if !o.Autoplay() {
			// Disabled mid-sequence; stop after the finished node.
			break
		}

		playCtx, done := o.beginNode(ctx, node)
		err := node.Play(playCtx, o.port)
		done()

		if interrupted(err) {
			return nil
		}
		if err != nil {
			// Halt at the failing node; the caller decides whether to
			// retry it or advance manually.
			o.toStopped()
			return err
		}
		node = node.Next()
	}
	o.toStopped()
	return nil
}

// beginNode registers node as the playback session and returns its scoped
// context. The returned func clears the session if it still belongs to this
// invocation.
func (o *Orchestrator) beginNode(parent context.Context, node *Node) (context.Context, func()) {
	o.mu.Lock()
	timeout := o.nodeTimeout
	o.mu.Unlock()

	ctx := parent
	var cancelTimeout context.CancelFunc
	if timeout > 0 {
		ctx, cancelTimeout = context.WithTimeout(parent, timeout)
	}
	ctx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	o.current = node
	o.cancel = cancel
	o.mu.Unlock()

	done := func() {
		o.mu.Lock()
		if o.current == node {
			o.current = nil
			o.cancel = nil
		}
		o.mu.Unlock()
		cancel()
		if cancelTimeout != nil {
			cancelTimeout()
		}
	}
	return ctx, done
}

func (o *Orchestrator) toStopped() {
	o.states.transition(Stopped)
}

// interrupted reports whether a play ended because it was superseded or
// stopped rather than by finishing or failing.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
