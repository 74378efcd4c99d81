package speech

import (
	"context"
	"errors"
	"sync"
	"time"
)

// FetchState tracks the synthesis lifecycle of a node.
type FetchState int

const (
	// FetchPending indicates no synthesis request has been issued yet.
	FetchPending FetchState = iota
	// Fetching indicates a synthesis request is in flight.
	Fetching
	// FetchReady indicates audio is available for playback.
	FetchReady
	// FetchError indicates the last synthesis request failed.
	FetchError
)

// String returns the string representation of the fetch state.
func (s FetchState) String() string {
	switch s {
	case FetchPending:
		return "pending"
	case Fetching:
		return "fetching"
	case FetchReady:
		return "ready"
	case FetchError:
		return "error"
	default:
		return "unknown"
	}
}

// PlayState tracks the playback lifecycle of a node.
type PlayState int

const (
	// PlayIdle indicates the node has not been played.
	PlayIdle PlayState = iota
	// Playing indicates the node is going through the audio output now.
	Playing
	// PlayPaused indicates playback was suspended mid-node. Interrupted
	// nodes are marked Played instead (a started node counts as heard),
	// so this state only appears if that policy changes.
	PlayPaused
	// Played indicates the node has been heard, fully or in part.
	Played
)

// String returns the string representation of the play state.
func (s PlayState) String() string {
	switch s {
	case PlayIdle:
		return "idle"
	case Playing:
		return "playing"
	case PlayPaused:
		return "paused"
	case Played:
		return "played"
	default:
		return "unknown"
	}
}

// Speaker identifies who a text segment belongs to and which voice reads it.
type Speaker struct {
	ID      string
	Name    string
	Role    string // "teacher" or "student"
	IsUser  bool   // Local user; self-authored content is never spoken
	VoiceID string
}

// Node is one text segment destined for speech: a document section or a
// discussion message, with its synthesis and playback lifecycle.
//
// Identity fields are immutable. Lifecycle fields are guarded by the node's
// mutex. Links between nodes are owned by the Queue; a node never outlives
// the queue that created it.
type Node struct {
	id        string
	text      string
	speaker   Speaker
	createdAt time.Time

	synth  Synthesizer
	events *Events

	mu         sync.Mutex
	fetchState FetchState
	playState  PlayState
	audio      *Audio
	fetchErr   error
	fetchDone  chan struct{} // non-nil while a synthesis request is in flight
	next       *Node
}

// newNode builds a node bound to the queue's synthesizer and event emitter.
func newNode(id, text string, speaker Speaker, createdAt time.Time, synth Synthesizer, events *Events) *Node {
	return &Node{
		id:        id,
		text:      text,
		speaker:   speaker,
		createdAt: createdAt,
		synth:     synth,
		events:    events,
	}
}

// ID returns the node's immutable identifier.
func (n *Node) ID() string { return n.id }

// Text returns the raw text segment.
func (n *Node) Text() string { return n.text }

// Speaker returns the speaker the segment belongs to.
func (n *Node) Speaker() Speaker { return n.speaker }

// CreatedAt returns the segment's chronological timestamp.
func (n *Node) CreatedAt() time.Time { return n.createdAt }

// FetchState returns the current synthesis state.
func (n *Node) FetchState() FetchState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fetchState
}

// PlayState returns the current playback state.
func (n *Node) PlayState() PlayState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.playState
}

// Played reports whether the node has been heard.
func (n *Node) Played() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.playState == Played
}

// Audio returns the synthesized audio handle, or nil until FetchReady.
func (n *Node) Audio() *Audio {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.audio
}

// Next returns the chronologically following node, or nil at the tail.
func (n *Node) Next() *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.next
}

// setNext links the following node. Queue-owned; links never change after
// insertion except on full reset.
func (n *Node) setNext(next *Node) {
	n.mu.Lock()
	n.next = next
	n.mu.Unlock()
}

// Fetch synthesizes the node's cleaned text with the speaker's voice.
//
// Fetch is single-flight: while a request is outstanding, concurrent callers
// wait on it and share its result rather than issuing a second request. A
// node in FetchError can be fetched again; there is no automatic retry.
func (n *Node) Fetch(ctx context.Context) (*Audio, error) {
	n.mu.Lock()
	switch n.fetchState {
	case FetchReady:
		audio := n.audio
		n.mu.Unlock()
		return audio, nil

	case Fetching:
		done := n.fetchDone
		n.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		n.mu.Lock()
		audio, err := n.audio, n.fetchErr
		n.mu.Unlock()
		return audio, err
	}

	// Pending or Error: issue a fresh request.
	done := make(chan struct{})
	n.fetchDone = done
	n.fetchState = Fetching
	n.fetchErr = nil
	n.mu.Unlock()

	n.emit(EventFetchStarted, nil)

	audio, err := n.synth.Synthesize(ctx, CleanText(n.text), n.speaker.VoiceID)

	n.mu.Lock()
	if err != nil {
		var se *Error
		if !errors.As(err, &se) {
			err = newError(KindSynthesis, "fetch", n.id, err)
		}
		n.fetchState = FetchError
		n.fetchErr = err
		n.audio = nil
	} else {
		n.fetchState = FetchReady
		n.fetchErr = nil
		n.audio = audio
	}
	n.fetchDone = nil
	n.mu.Unlock()
	close(done)

	n.emit(EventFetchStopped, err)
	return audio, err
}

// Play fetches the node's audio if needed, then drives it through the port,
// blocking until playback ends or fails. Replaying a Played node restarts it
// from the beginning.
func (n *Node) Play(ctx context.Context, port Port) error {
	audio, err := n.Fetch(ctx)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.playState = Playing
	n.mu.Unlock()
	n.emit(EventPlayStarted, nil)

	err = port.Play(ctx, audio)

	n.mu.Lock()
	switch {
	case err == nil:
		n.playState = Played
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Interrupted by Pause/stop. Pause already marked the node Played;
		// cover the case where the context died without a pause.
		if n.playState == Playing {
			n.playState = Played
		}
	default:
		n.playState = PlayIdle
		var pe *Error
		if !errors.As(err, &pe) {
			err = newError(KindPlayback, "play", n.id, err)
		}
	}
	n.mu.Unlock()

	n.emit(EventPlayStopped, err)
	return err
}

// Pause halts the node if it is playing. A node that has been started counts
// as heard, so pausing marks it Played; replaying restarts from the top.
func (n *Node) Pause(port Port) error {
	n.mu.Lock()
	if n.playState != Playing {
		n.mu.Unlock()
		return nil
	}
	n.playState = Played
	n.mu.Unlock()
	return port.Pause()
}

func (n *Node) emit(typ EventType, err error) {
	if n.events == nil {
		return
	}
	n.events.emit(Event{Type: typ, Node: n, Err: err, At: time.Now()})
}
