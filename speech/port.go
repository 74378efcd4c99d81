// Package speech sequences the fetching and playback of synthesized speech
// for classroom reading sections and discussion messages.
package speech

import (
	"context"
	"time"
)

// Audio is an opaque handle to synthesized speech for one node.
// The synthesizer fills it in; the playback port consumes it.
type Audio struct {
	URL      string        // Source returned by the synthesis provider
	Data     []byte        // Encoded audio bytes (MP3)
	Duration time.Duration // Decoded duration, zero if unknown
	Cached   bool          // True if served from the synthesis cache
}

// Port is the single shared audio output. Exactly one Port instance backs a
// running classroom session and only the orchestrator may call its mutating
// operations.
//
// Play blocks until the audio has finished, the context is canceled, or the
// device reports a failure. Each call owns its own completion signal: a Play
// that was canceled can never report completion into a later call.
type Port interface {
	// Play starts the given audio and waits for it to end.
	Play(ctx context.Context, audio *Audio) error

	// Pause halts the audio currently going through the port, if any.
	Pause() error
}

// Synthesizer converts cleaned text to audio for a voice.
// Implementations must be safe for concurrent use; repeated requests for the
// same (text, voice) pair should be served from cache without resynthesizing.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (*Audio, error)
}
