package speech_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Horlarhyinka/ai-classroom/speech"
)

// stubSynth implements speech.Synthesizer for tests.
type stubSynth struct {
	mu    sync.Mutex
	calls int
	texts []string
	voices []string
	err   error
	errFor map[string]error // per-text failures
	hold  chan struct{}     // when non-nil, Synthesize blocks until closed
}

func newStubSynth() *stubSynth {
	return &stubSynth{errFor: make(map[string]error)}
}

func (s *stubSynth) Synthesize(ctx context.Context, text, voiceID string) (*speech.Audio, error) {
	s.mu.Lock()
	s.calls++
	s.texts = append(s.texts, text)
	s.voices = append(s.voices, voiceID)
	hold := s.hold
	err := s.err
	if ferr, ok := s.errFor[text]; ok {
		err = ferr
	}
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &speech.Audio{URL: "audio://" + text, Data: []byte(text)}, nil
}

func (s *stubSynth) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubSynth) lastText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.texts) == 0 {
		return ""
	}
	return s.texts[len(s.texts)-1]
}

func testSegment(i int) speech.Segment {
	return speech.Segment{
		ID:        fmt.Sprintf("msg-%d", i),
		Text:      fmt.Sprintf("message number %d", i),
		Speaker:   speech.Speaker{ID: "p1", Name: "Ada", Role: "teacher", VoiceID: "en-US-natalie"},
		CreatedAt: time.Unix(int64(1700000000+i), 0),
	}
}

func TestNodeFetchSetsReady(t *testing.T) {
	synth := newStubSynth()
	q := speech.NewQueue(synth, nil)
	node := q.Enqueue(testSegment(1))

	if got := node.FetchState(); got != speech.FetchPending {
		t.Fatalf("fetch state = %v, want pending", got)
	}

	audio, err := node.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if audio == nil {
		t.Fatal("Fetch returned nil audio")
	}
	if got := node.FetchState(); got != speech.FetchReady {
		t.Fatalf("fetch state = %v, want ready", got)
	}
	if node.Audio() == nil {
		t.Fatal("audio handle is nil after successful fetch")
	}
	if synth.callCount() != 1 {
		t.Fatalf("synthesize calls = %d, want 1", synth.callCount())
	}
}

func TestNodeFetchSingleFlight(t *testing.T) {
	synth := newStubSynth()
	synth.hold = make(chan struct{})
	q := speech.NewQueue(synth, nil)
	node := q.Enqueue(testSegment(1))

	const callers = 4
	results := make(chan *speech.Audio, callers)
	errs := make(chan error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			audio, err := node.Fetch(context.Background())
			results <- audio
			errs <- err
		}()
	}

	// Let all callers get past the state check before releasing the
	// in-flight request.
	waitFor(t, func() bool { return node.FetchState() == speech.Fetching })
	time.Sleep(20 * time.Millisecond)
	close(synth.hold)
	wg.Wait()

	if synth.callCount() != 1 {
		t.Fatalf("synthesize calls = %d, want 1 (single-flight)", synth.callCount())
	}
	var first *speech.Audio
	for i := 0; i < callers; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
		audio := <-results
		if first == nil {
			first = audio
		} else if audio != first {
			t.Fatal("concurrent callers received different audio handles")
		}
	}
}

func TestNodeFetchErrorAllowsRetry(t *testing.T) {
	synth := newStubSynth()
	synth.err = errors.New("boom")
	q := speech.NewQueue(synth, nil)
	node := q.Enqueue(testSegment(1))

	if _, err := node.Fetch(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if got := node.FetchState(); got != speech.FetchError {
		t.Fatalf("fetch state = %v, want error", got)
	}
	if node.Audio() != nil {
		t.Fatal("audio handle must stay nil after a failed fetch")
	}

	// No automatic retry, but an explicit one works.
	synth.mu.Lock()
	synth.err = nil
	synth.mu.Unlock()
	if _, err := node.Fetch(context.Background()); err != nil {
		t.Fatalf("retry fetch: %v", err)
	}
	if got := node.FetchState(); got != speech.FetchReady {
		t.Fatalf("fetch state after retry = %v, want ready", got)
	}
	if synth.callCount() != 2 {
		t.Fatalf("synthesize calls = %d, want 2", synth.callCount())
	}
}

func TestNodeFetchWrapsSynthesisError(t *testing.T) {
	synth := newStubSynth()
	synth.err = errors.New("upstream said no")
	q := speech.NewQueue(synth, nil)
	node := q.Enqueue(testSegment(1))

	_, err := node.Fetch(context.Background())
	if !speech.IsKind(err, speech.KindSynthesis) {
		t.Fatalf("error kind = %v, want synthesis", err)
	}
}

func TestNodeFetchCleansText(t *testing.T) {
	synth := newStubSynth()
	q := speech.NewQueue(synth, nil)
	node := q.Enqueue(speech.Segment{
		ID:      "m1",
		Text:    "## Heading\n\nSome **bold** and a [link](https://example.com).",
		Speaker: speech.Speaker{VoiceID: "v1"},
	})

	if _, err := node.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := "Heading. Some bold and a link."
	if got := synth.lastText(); got != want {
		t.Fatalf("synthesized text = %q, want %q", got, want)
	}
}

func TestNodePlayMarksPlayed(t *testing.T) {
	synth := newStubSynth()
	q := speech.NewQueue(synth, nil)
	node := q.Enqueue(testSegment(1))
	port := speech.NewMockPort()

	if err := node.Play(context.Background(), port); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if got := node.PlayState(); got != speech.Played {
		t.Fatalf("play state = %v, want played", got)
	}
	if port.PlayCount() != 1 {
		t.Fatalf("port plays = %d, want 1", port.PlayCount())
	}

	// Replaying a played node is permitted.
	if err := node.Play(context.Background(), port); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if port.PlayCount() != 2 {
		t.Fatalf("port plays after replay = %d, want 2", port.PlayCount())
	}
	// The audio was fetched once; replays reuse the handle.
	if synth.callCount() != 1 {
		t.Fatalf("synthesize calls = %d, want 1", synth.callCount())
	}
}

func TestNodePlayFailureLeavesIdle(t *testing.T) {
	synth := newStubSynth()
	q := speech.NewQueue(synth, nil)
	node := q.Enqueue(testSegment(1))
	port := speech.NewMockPort()
	port.PlayErr = errors.New("device gone")

	err := node.Play(context.Background(), port)
	if !speech.IsKind(err, speech.KindPlayback) {
		t.Fatalf("error = %v, want playback kind", err)
	}
	if got := node.PlayState(); got != speech.PlayIdle {
		t.Fatalf("play state = %v, want idle", got)
	}
}

func TestNodePauseMarksPlayed(t *testing.T) {
	synth := newStubSynth()
	q := speech.NewQueue(synth, nil)
	node := q.Enqueue(testSegment(1))
	port := speech.NewMockPort()
	port.Hold()

	done := make(chan error, 1)
	go func() { done <- node.Play(context.Background(), port) }()
	waitFor(t, func() bool { return node.PlayState() == speech.Playing })

	if err := node.Pause(port); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if got := node.PlayState(); got != speech.Played {
		t.Fatalf("play state after pause = %v, want played", got)
	}
	if port.PauseCount() != 1 {
		t.Fatalf("port pauses = %d, want 1", port.PauseCount())
	}

	// Pausing an idle node is a no-op.
	other := q.Enqueue(testSegment(2))
	if err := other.Pause(port); err != nil {
		t.Fatalf("pause idle node: %v", err)
	}
	if port.PauseCount() != 1 {
		t.Fatalf("port pauses = %d, want still 1", port.PauseCount())
	}

	port.Release()
	<-done
}

// waitFor polls cond until it holds or the test deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
