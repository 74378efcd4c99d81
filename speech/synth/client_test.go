package synth_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Horlarhyinka/ai-classroom/speech"
	"github.com/Horlarhyinka/ai-classroom/speech/synth"
)

// provider is a fake synthesis backend: a generate endpoint plus the audio
// file it points at.
type provider struct {
	t         *testing.T
	mu        sync.Mutex
	requests  []map[string]string
	apiKeys   []string
	status    int
	audioBody string
	hold      chan struct{}
	server    *httptest.Server
	genCalls  int64
}

func newProvider(t *testing.T) *provider {
	p := &provider{t: t, status: http.StatusOK, audioBody: "mp3-bytes"}
	mux := http.NewServeMux()
	mux.HandleFunc("/speech/generate", p.handleGenerate)
	mux.HandleFunc("/audio/", p.handleAudio)
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *provider) handleGenerate(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&p.genCalls, 1)

	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		p.t.Errorf("decoding request: %v", err)
	}
	p.mu.Lock()
	p.requests = append(p.requests, body)
	p.apiKeys = append(p.apiKeys, r.Header.Get("api-key"))
	status := p.status
	hold := p.hold
	p.mu.Unlock()

	if hold != nil {
		<-hold
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	fmt.Fprintf(w, `{"audioFile":%q}`, p.server.URL+"/audio/"+body["voiceId"])
}

func (p *provider) handleAudio(w http.ResponseWriter, _ *http.Request) {
	p.mu.Lock()
	body := p.audioBody
	p.mu.Unlock()
	_, _ = w.Write([]byte(body))
}

func (p *provider) client(dir string) *synth.Client {
	return synth.New(synth.Config{
		BaseURL:        p.server.URL + "/speech/generate",
		APIKey:         "test-key",
		CacheDir:       dir,
		RequestsPerSec: 1000, // don't slow tests down
	})
}

func (p *provider) generateCalls() int64 {
	return atomic.LoadInt64(&p.genCalls)
}

func TestSynthesizeSendsContract(t *testing.T) {
	p := newProvider(t)
	c := p.client("")

	audio, err := c.Synthesize(context.Background(), "hello class", "voice-1")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio.Data) != "mp3-bytes" {
		t.Fatalf("audio data = %q", audio.Data)
	}
	if audio.URL == "" {
		t.Fatal("audio handle should keep the provider URL")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(p.requests))
	}
	req := p.requests[0]
	if req["text"] != "hello class" || req["voiceId"] != "voice-1" {
		t.Fatalf("request payload = %v", req)
	}
	if p.apiKeys[0] != "test-key" {
		t.Fatalf("api-key header = %q", p.apiKeys[0])
	}
}

func TestSynthesizeDefaultVoiceFallback(t *testing.T) {
	p := newProvider(t)
	c := p.client("")

	if _, err := c.Synthesize(context.Background(), "hi", ""); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if got := p.requests[0]["voiceId"]; got != synth.DefaultVoiceID {
		t.Fatalf("voiceId = %q, want default %q", got, synth.DefaultVoiceID)
	}
}

func TestSynthesizeNon2xxIsSynthesisError(t *testing.T) {
	p := newProvider(t)
	p.status = http.StatusBadGateway
	c := p.client("")

	_, err := c.Synthesize(context.Background(), "hello", "v")
	if !speech.IsKind(err, speech.KindSynthesis) {
		t.Fatalf("error = %v, want synthesis kind", err)
	}
}

func TestSynthesizeEmptyTextRejected(t *testing.T) {
	p := newProvider(t)
	c := p.client("")

	_, err := c.Synthesize(context.Background(), "", "v")
	if !speech.IsKind(err, speech.KindSynthesis) {
		t.Fatalf("error = %v, want synthesis kind", err)
	}
	if got := p.generateCalls(); got != 0 {
		t.Fatalf("provider calls = %d, want 0", got)
	}
}

func TestSynthesizeCachesPerTextVoice(t *testing.T) {
	p := newProvider(t)
	c := p.client("")

	first, err := c.Synthesize(context.Background(), "repeat me", "v")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.Cached {
		t.Fatal("first synthesis must not be cache-served")
	}

	second, err := c.Synthesize(context.Background(), "repeat me", "v")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !second.Cached {
		t.Fatal("identical request should be served from cache")
	}
	if got := p.generateCalls(); got != 1 {
		t.Fatalf("provider calls = %d, want 1", got)
	}

	// A different voice is a different key.
	if _, err := c.Synthesize(context.Background(), "repeat me", "other"); err != nil {
		t.Fatalf("other voice: %v", err)
	}
	if got := p.generateCalls(); got != 2 {
		t.Fatalf("provider calls = %d, want 2", got)
	}

	stats := c.Cache().Stats()
	if stats.Entries != 2 || stats.Hits != 1 {
		t.Fatalf("cache stats = %+v", stats)
	}
}

func TestSynthesizeSingleFlight(t *testing.T) {
	p := newProvider(t)
	p.hold = make(chan struct{})
	c := p.client("")

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Synthesize(context.Background(), "same text", "v")
			errs <- err
		}()
	}

	// Give every caller time to join the in-flight request.
	deadline := time.Now().Add(time.Second)
	for p.generateCalls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(p.hold)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if got := p.generateCalls(); got != 1 {
		t.Fatalf("provider calls = %d, want 1 (single-flight)", got)
	}
}

func TestDiskCacheSurvivesClientRestart(t *testing.T) {
	p := newProvider(t)
	dir := t.TempDir()

	first := p.client(dir)
	if _, err := first.Synthesize(context.Background(), "persist me", "v"); err != nil {
		t.Fatalf("first client: %v", err)
	}

	second := p.client(dir)
	audio, err := second.Synthesize(context.Background(), "persist me", "v")
	if err != nil {
		t.Fatalf("second client: %v", err)
	}
	if !audio.Cached {
		t.Fatal("fresh client should hit the disk cache")
	}
	if got := p.generateCalls(); got != 1 {
		t.Fatalf("provider calls = %d, want 1", got)
	}
}

func TestCachePurge(t *testing.T) {
	p := newProvider(t)
	dir := t.TempDir()
	c := p.client(dir)

	if _, err := c.Synthesize(context.Background(), "to purge", "v"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if err := c.Cache().Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if stats := c.Cache().Stats(); stats.Entries != 0 || stats.Bytes != 0 {
		t.Fatalf("stats after purge = %+v", stats)
	}

	// Purged means the next request goes back to the provider.
	if _, err := c.Synthesize(context.Background(), "to purge", "v"); err != nil {
		t.Fatalf("resynthesize: %v", err)
	}
	if got := p.generateCalls(); got != 2 {
		t.Fatalf("provider calls = %d, want 2", got)
	}
}
