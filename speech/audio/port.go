// Package audio implements the shared audio output on top of oto. One Port
// backs every speech node; the orchestrator guarantees at most one Play is
// active at a time.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/Horlarhyinka/ai-classroom/speech"
)

const (
	channelCount   = 2 // go-mp3 always decodes to 16-bit stereo
	bytesPerSample = 4
	pollInterval   = 100 * time.Millisecond
)

// Port plays decoded MP3 audio through the system output. It satisfies
// speech.Port: Play blocks until the clip ends, the context is canceled, or
// the device fails.
type Port struct {
	logger *log.Logger

	ctxOnce    sync.Once
	otoCtx     *oto.Context
	sampleRate int
	initErr    error

	mu      sync.Mutex
	current *oto.Player
}

// NewPort builds an audio port. The underlying device context is created
// lazily on the first Play, using the first clip's sample rate.
func NewPort(logger *log.Logger) *Port {
	if logger == nil {
		logger = log.Default()
	}
	return &Port{logger: logger.With("component", "audio-port")}
}

// Play decodes and plays one clip, blocking until it finishes. Cancellation
// pauses the device and returns ctx.Err() without waiting for the clip.
func (p *Port) Play(ctx context.Context, a *speech.Audio) error {
	if a == nil || len(a.Data) == 0 {
		return &speech.Error{Kind: speech.KindPlayback, Op: "play", Err: speech.ErrNoAudio}
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(a.Data))
	if err != nil {
		return &speech.Error{Kind: speech.KindPlayback, Op: "decode", Err: err}
	}
	if err := p.ensureContext(decoder.SampleRate()); err != nil {
		return &speech.Error{Kind: speech.KindPlayback, Op: "open-device", Err: err}
	}
	if decoder.SampleRate() != p.sampleRate {
		p.logger.Warn("sample rate mismatch, playback speed will drift",
			"clip", decoder.SampleRate(), "device", p.sampleRate)
	}
	if a.Duration == 0 {
		samples := decoder.Length() / bytesPerSample
		a.Duration = time.Duration(samples) * time.Second / time.Duration(decoder.SampleRate())
	}

	player := p.otoCtx.NewPlayer(decoder)
	p.setCurrent(player)
	defer func() {
		p.setCurrent(nil)
		_ = player.Close()
	}()

	player.Play()

	// oto has no completion callback; poll the player the same way the
	// device readiness is polled at startup.
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
			if err := player.Err(); err != nil {
				return &speech.Error{Kind: speech.KindPlayback, Op: "play", Err: err}
			}
			if !player.IsPlaying() {
				return nil
			}
		}
	}
}

// Pause stops the device without tearing down the decoded clip. The
// orchestrator marks the paused node as heard, so nothing resumes from here.
func (p *Port) Pause() error {
	p.mu.Lock()
	player := p.current
	p.mu.Unlock()
	if player == nil {
		return nil
	}
	player.Pause()
	return nil
}

// ensureContext opens the device once and waits for it to become ready.
func (p *Port) ensureContext(sampleRate int) error {
	p.ctxOnce.Do(func() {
		otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channelCount,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			p.initErr = fmt.Errorf("create audio context: %w", err)
			return
		}
		<-ready
		p.otoCtx = otoCtx
		p.sampleRate = sampleRate
		p.logger.Debug("audio device ready", "sampleRate", sampleRate)
	})
	return p.initErr
}

func (p *Port) setCurrent(player *oto.Player) {
	p.mu.Lock()
	p.current = player
	p.mu.Unlock()
}
