package speech

import (
	"context"
	"sync"
	"time"
)

// MockPort is an in-memory Port for tests and for running the classroom with
// audio muted. Playback takes PlayDelay per call (zero means immediate) and
// honors context cancellation the way a real device wait does.
type MockPort struct {
	// PlayDelay simulates audio duration.
	PlayDelay time.Duration
	// PlayErr, when set, is returned by every Play call.
	PlayErr error
	// PauseErr, when set, is returned by every Pause call.
	PauseErr error

	mu         sync.Mutex
	playing    bool
	played     []*Audio
	playCount  int
	pauseCount int
	maxActive  int
	active     int
	release    chan struct{} // when non-nil, Play blocks until signaled
}

// NewMockPort creates a mock port with immediate playback.
func NewMockPort() *MockPort {
	return &MockPort{}
}

// Hold makes subsequent Play calls block until Release is called, for tests
// that need a node pinned mid-playback.
func (p *MockPort) Hold() {
	p.mu.Lock()
	p.release = make(chan struct{})
	p.mu.Unlock()
}

// Release unblocks a held Play call.
func (p *MockPort) Release() {
	p.mu.Lock()
	release := p.release
	p.release = nil
	p.mu.Unlock()
	if release != nil {
		close(release)
	}
}

// Play records the audio and waits out the configured delay, the hold latch,
// or the context, whichever applies.
func (p *MockPort) Play(ctx context.Context, audio *Audio) error {
	p.mu.Lock()
	if p.PlayErr != nil {
		err := p.PlayErr
		p.mu.Unlock()
		return err
	}
	p.playing = true
	p.playCount++
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	p.played = append(p.played, audio)
	release := p.release
	delay := p.PlayDelay
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.playing = false
		p.active--
		p.mu.Unlock()
	}()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// Pause records the call.
func (p *MockPort) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PauseErr != nil {
		return p.PauseErr
	}
	p.playing = false
	p.pauseCount++
	return nil
}

// Playing reports whether a Play call is in progress.
func (p *MockPort) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// PlayCount returns how many Play calls started.
func (p *MockPort) PlayCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playCount
}

// PauseCount returns how many Pause calls were made.
func (p *MockPort) PauseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pauseCount
}

// MaxConcurrent returns the peak number of simultaneous Play calls. The
// exclusivity guarantee means this should never exceed one.
func (p *MockPort) MaxConcurrent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxActive
}

// PlayedAudio returns the audio handles in play order.
func (p *MockPort) PlayedAudio() []*Audio {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Audio, len(p.played))
	copy(out, p.played)
	return out
}
