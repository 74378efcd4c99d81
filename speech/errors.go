package speech

import (
	"errors"
	"fmt"
)

// Common errors for the speech pipeline.
var (
	// Synthesis errors
	ErrSynthesisFailed = errors.New("speech synthesis failed")
	ErrEmptyText       = errors.New("no text to synthesize")
	ErrNoVoice         = errors.New("no voice configured for speaker")
	ErrFetchInProgress = errors.New("synthesis already in progress")

	// Playback errors
	ErrPlaybackFailed = errors.New("audio playback failed")
	ErrNoAudio        = errors.New("no audio available for node")
	ErrAlreadyPlaying = errors.New("another node is already playing")
	ErrNothingPlaying = errors.New("no node is playing")

	// Queue errors
	ErrNodeNotTracked = errors.New("node is not tracked by the queue")
	ErrQueueEmpty     = errors.New("speech queue is empty")
	ErrQueueReset     = errors.New("speech queue was reset")

	// Connection errors
	ErrNotConnected   = errors.New("realtime channel is not connected")
	ErrConnectTimeout = errors.New("timed out waiting for connection")
	ErrChannelClosed  = errors.New("realtime channel closed")
)

// Kind classifies an error by the subsystem that raised it.
type Kind int

const (
	// KindNetwork indicates an unreachable transport or API.
	KindNetwork Kind = iota
	// KindSynthesis indicates a failed or malformed synthesis response.
	KindSynthesis
	// KindPlayback indicates a failure reported by the audio output.
	KindPlayback
	// KindConnection indicates a realtime channel failure.
	KindConnection
	// KindQueue indicates an operation on a node the queue no longer tracks.
	KindQueue
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindSynthesis:
		return "synthesis"
	case KindPlayback:
		return "playback"
	case KindConnection:
		return "connection"
	case KindQueue:
		return "queue"
	default:
		return "unknown"
	}
}

// Error wraps a failure with the subsystem and operation that produced it.
type Error struct {
	Kind Kind   // Subsystem classification
	Op   string // Operation being performed ("fetch", "play", "send", ...)
	Node string // Node id, if the error is tied to one node
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s %s (node %s): %v", e.Kind, e.Op, e.Node, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// newError wraps err for the given subsystem and operation.
func newError(kind Kind, op, node string, err error) *Error {
	return &Error{Kind: kind, Op: op, Node: node, Err: err}
}

// IsKind reports whether err (or any error it wraps) carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Transient reports whether the error is expected to clear on its own,
// such as a dropped realtime connection that the connection manager will
// re-establish. Transient errors are surfaced as notices, not halts.
func Transient(err error) bool {
	return IsKind(err, KindConnection) || errors.Is(err, ErrNotConnected)
}
