// Package synth talks to the speech synthesis provider and caches its output.
package synth

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/Horlarhyinka/ai-classroom/speech"
)

// DefaultVoiceID is used when a speaker has no voice of their own.
const DefaultVoiceID = "en-US-natalie"

const (
	defaultRequestTimeout = 30 * time.Second
	defaultRequestsPerSec = 2
	maxAudioBytes         = 32 << 20 // refuse absurd downloads
)

// Config controls the synthesis client.
type Config struct {
	BaseURL        string  // Synthesis endpoint, e.g. https://api.murf.ai/v1/speech/generate
	APIKey         string  // Sent as the api-key header
	DefaultVoice   string  // Fallback voice id; DefaultVoiceID if empty
	CacheDir       string  // Disk cache directory; empty keeps the cache in memory only
	RequestTimeout time.Duration
	RequestsPerSec float64 // Synthesis request rate cap
}

// request is the provider's synthesis payload.
type request struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
}

// response is the provider's synthesis reply.
type response struct {
	AudioFile string `json:"audioFile"`
}

// call tracks one in-flight synthesis for single-flight sharing.
type call struct {
	done  chan struct{}
	audio *speech.Audio
	err   error
}

// Client implements speech.Synthesizer against an HTTP synthesis provider.
//
// Requests are idempotent per (text, voice) pair: results are cached, and
// concurrent requests for the same pair share one outbound call.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cache   *Cache

	mu       sync.Mutex
	inflight map[string]*call
}

// New creates a synthesis client. The cache directory is created lazily on
// first write.
func New(cfg Config) *Client {
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = DefaultVoiceID
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = defaultRequestsPerSec
	}
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.RequestTimeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		cache:    NewCache(cfg.CacheDir),
		inflight: make(map[string]*call),
	}
}

// Cache exposes the client's cache for inspection.
func (c *Client) Cache() *Cache {
	return c.cache
}

// Synthesize converts text to audio for the given voice. The text is assumed
// to be cleaned prose already.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) (*speech.Audio, error) {
	if text == "" {
		return nil, &speech.Error{Kind: speech.KindSynthesis, Op: "synthesize", Err: speech.ErrEmptyText}
	}
	if voiceID == "" {
		voiceID = c.cfg.DefaultVoice
	}
	key := cacheKey(text, voiceID)

	if audio, ok := c.cache.Get(key); ok {
		return audio, nil
	}

	// Single-flight: join an in-flight request for the same pair.
	c.mu.Lock()
	if inflight, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-inflight.done:
			return inflight.audio, inflight.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	cl := &call{done: make(chan struct{})}
	c.inflight[key] = cl
	c.mu.Unlock()

	cl.audio, cl.err = c.synthesize(ctx, text, voiceID)
	if cl.err == nil {
		c.cache.Put(key, cl.audio)
	}

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	close(cl.done)

	return cl.audio, cl.err
}

func (c *Client) synthesize(ctx context.Context, text, voiceID string) (*speech.Audio, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(request{Text: text, VoiceID: voiceID})
	if err != nil {
		return nil, &speech.Error{Kind: speech.KindSynthesis, Op: "synthesize", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, &speech.Error{Kind: speech.KindSynthesis, Op: "synthesize", Err: err}
	}
	req.Header.Set("api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &speech.Error{Kind: speech.KindNetwork, Op: "synthesize", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &speech.Error{
			Kind: speech.KindSynthesis,
			Op:   "synthesize",
			Err:  fmt.Errorf("provider returned status %d", resp.StatusCode),
		}
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &speech.Error{Kind: speech.KindSynthesis, Op: "synthesize", Err: err}
	}
	if out.AudioFile == "" {
		return nil, &speech.Error{
			Kind: speech.KindSynthesis,
			Op:   "synthesize",
			Err:  fmt.Errorf("response carried no audio reference"),
		}
	}

	data, err := c.download(ctx, out.AudioFile)
	if err != nil {
		return nil, err
	}

	log.Debug("synth: synthesized segment",
		"voice", voiceID,
		"chars", len(text),
		"bytes", len(data),
		"took", time.Since(start))

	return &speech.Audio{URL: out.AudioFile, Data: data}, nil
}

// download pulls the synthesized audio file referenced by the provider.
func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &speech.Error{Kind: speech.KindNetwork, Op: "download", Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &speech.Error{Kind: speech.KindNetwork, Op: "download", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &speech.Error{
			Kind: speech.KindNetwork,
			Op:   "download",
			Err:  fmt.Errorf("audio fetch returned status %d", resp.StatusCode),
		}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, &speech.Error{Kind: speech.KindNetwork, Op: "download", Err: err}
	}
	return data, nil
}

// cacheKey addresses one (text, voice) pair.
func cacheKey(text, voiceID string) string {
	sum := sha256.Sum256([]byte(voiceID + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
