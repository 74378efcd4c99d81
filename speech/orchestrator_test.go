package speech_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Horlarhyinka/ai-classroom/speech"
)

func newTestOrchestrator(synth speech.Synthesizer) (*speech.Orchestrator, *speech.Queue, *speech.MockPort) {
	events := speech.NewEvents()
	q := speech.NewQueue(synth, events)
	port := speech.NewMockPort()
	return speech.NewOrchestrator(q, port, events), q, port
}

func TestAutoplayPlaysInEnqueueOrder(t *testing.T) {
	synth := newStubSynth()
	orch, q, port := newTestOrchestrator(synth)

	a := q.Enqueue(testSegment(1))
	b := q.Enqueue(testSegment(2))
	c := q.Enqueue(testSegment(3))

	if err := orch.StartAutoplay(context.Background()); err != nil {
		t.Fatalf("StartAutoplay: %v", err)
	}

	for i, n := range []*speech.Node{a, b, c} {
		if got := n.PlayState(); got != speech.Played {
			t.Fatalf("node %d play state = %v, want played", i, got)
		}
		if got := n.FetchState(); got != speech.FetchReady {
			t.Fatalf("node %d fetch state = %v, want ready", i, got)
		}
	}

	played := port.PlayedAudio()
	if len(played) != 3 {
		t.Fatalf("port played %d nodes, want 3", len(played))
	}
	for i, audio := range played {
		want := "audio://" + testSegment(i+1).Text
		if audio.URL != want {
			t.Fatalf("play order [%d] = %q, want %q", i, audio.URL, want)
		}
	}
	if got := orch.Mode(); got != speech.Stopped {
		t.Fatalf("mode after exhaustion = %v, want stopped", got)
	}
	if port.MaxConcurrent() != 1 {
		t.Fatalf("max concurrent plays = %d, want 1", port.MaxConcurrent())
	}
}

func TestAutoplayResumesFromFirstUnplayed(t *testing.T) {
	synth := newStubSynth()
	orch, q, port := newTestOrchestrator(synth)

	a := q.Enqueue(testSegment(1))
	b := q.Enqueue(testSegment(2))
	if err := a.Play(context.Background(), port); err != nil {
		t.Fatalf("pre-play a: %v", err)
	}

	if err := orch.StartAutoplay(context.Background()); err != nil {
		t.Fatalf("StartAutoplay: %v", err)
	}

	// a was already heard; only b goes through the port again.
	if got := port.PlayCount(); got != 2 {
		t.Fatalf("port plays = %d, want 2", got)
	}
	if !b.Played() {
		t.Fatal("b should have played")
	}
}

func TestAutoplayDisabledIsNoop(t *testing.T) {
	synth := newStubSynth()
	orch, q, port := newTestOrchestrator(synth)
	q.Enqueue(testSegment(1))

	orch.SetAutoplay(false)
	if err := orch.StartAutoplay(context.Background()); err != nil {
		t.Fatalf("StartAutoplay: %v", err)
	}
	if port.PlayCount() != 0 {
		t.Fatal("autoplay must not start while disabled")
	}
}

func TestAutoplayHaltsAtFailingNode(t *testing.T) {
	synth := newStubSynth()
	synth.errFor["message number 3"] = errors.New("synthesis down")
	orch, q, _ := newTestOrchestrator(synth)

	a := q.Enqueue(testSegment(1))
	b := q.Enqueue(testSegment(2))
	c := q.Enqueue(testSegment(3))
	d := q.Enqueue(testSegment(4))

	err := orch.StartAutoplay(context.Background())
	if !speech.IsKind(err, speech.KindSynthesis) {
		t.Fatalf("error = %v, want synthesis kind", err)
	}

	if !a.Played() || !b.Played() {
		t.Fatal("nodes before the failure should stay played")
	}
	if got := c.FetchState(); got != speech.FetchError {
		t.Fatalf("failing node fetch state = %v, want error", got)
	}
	if d.Played() || d.FetchState() == speech.FetchReady {
		t.Fatal("autoplay must not skip past the failing node")
	}
	if got := orch.Mode(); got != speech.Stopped {
		t.Fatalf("mode after halt = %v, want stopped", got)
	}
}

func TestPlayNodeResumesAutoplayFromNext(t *testing.T) {
	synth := newStubSynth()
	orch, q, port := newTestOrchestrator(synth)

	a := q.Enqueue(testSegment(1))
	b := q.Enqueue(testSegment(2))
	c := q.Enqueue(testSegment(3))

	if err := orch.PlayNode(context.Background(), a); err != nil {
		t.Fatalf("PlayNode: %v", err)
	}

	// Autoplay is on by default, so the walk continues through b and c.
	for i, n := range []*speech.Node{a, b, c} {
		if !n.Played() {
			t.Fatalf("node %d not played", i)
		}
	}
	if got := port.PlayCount(); got != 3 {
		t.Fatalf("port plays = %d, want 3", got)
	}
}

func TestPlayNodeWithAutoplayOffStopsAfterNode(t *testing.T) {
	synth := newStubSynth()
	orch, q, port := newTestOrchestrator(synth)
	orch.SetAutoplay(false)

	a := q.Enqueue(testSegment(1))
	b := q.Enqueue(testSegment(2))

	if err := orch.PlayNode(context.Background(), a); err != nil {
		t.Fatalf("PlayNode: %v", err)
	}
	if !a.Played() {
		t.Fatal("a should have played")
	}
	if b.Played() {
		t.Fatal("b must not play when autoplay is off")
	}
	if port.PlayCount() != 1 {
		t.Fatalf("port plays = %d, want 1", port.PlayCount())
	}
	if got := orch.Mode(); got != speech.Stopped {
		t.Fatalf("mode = %v, want stopped", got)
	}
}

func TestPlayNodeRejectsUntrackedNode(t *testing.T) {
	synth := newStubSynth()
	orch, _, _ := newTestOrchestrator(synth)

	other := speech.NewQueue(synth, nil)
	stray := other.Enqueue(testSegment(9))

	err := orch.PlayNode(context.Background(), stray)
	if !speech.IsKind(err, speech.KindQueue) {
		t.Fatalf("error = %v, want queue kind", err)
	}
	if !errors.Is(err, speech.ErrNodeNotTracked) {
		t.Fatalf("error = %v, want ErrNodeNotTracked", err)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	synth := newStubSynth()
	orch, _, port := newTestOrchestrator(synth)

	if err := orch.Stop(); err != nil {
		t.Fatalf("Stop with nothing playing: %v", err)
	}
	if err := orch.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if port.PauseCount() != 0 {
		t.Fatal("Stop with nothing playing must not touch the port")
	}
}

func TestStopThenPlayNodeCancellation(t *testing.T) {
	synth := newStubSynth()
	orch, q, port := newTestOrchestrator(synth)
	orch.SetAutoplay(false)

	x := q.Enqueue(testSegment(1))
	y := q.Enqueue(testSegment(2))

	port.Hold()
	xDone := make(chan error, 1)
	go func() { xDone <- orch.PlayNode(context.Background(), x) }()
	waitFor(t, func() bool { return x.PlayState() == speech.Playing })

	if err := orch.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// X counts as heard even though it was cut off.
	if got := x.PlayState(); got != speech.Played {
		t.Fatalf("x play state = %v, want played", got)
	}
	// A superseded play resolves without error.
	if err := <-xDone; err != nil {
		t.Fatalf("superseded PlayNode returned %v", err)
	}

	port.Release()
	if err := orch.PlayNode(context.Background(), y); err != nil {
		t.Fatalf("PlayNode(y): %v", err)
	}
	if got := y.PlayState(); got != speech.Played {
		t.Fatalf("y play state = %v, want played", got)
	}
	// X's interrupted run never bled into Y's playback.
	if port.MaxConcurrent() != 1 {
		t.Fatalf("max concurrent plays = %d, want 1", port.MaxConcurrent())
	}
	if got := orch.Current(); got != nil {
		t.Fatalf("current = %v, want nil after completion", got.ID())
	}
}

func TestPlayNodeSupersedesPlayNode(t *testing.T) {
	synth := newStubSynth()
	orch, q, port := newTestOrchestrator(synth)
	orch.SetAutoplay(false)

	x := q.Enqueue(testSegment(1))
	y := q.Enqueue(testSegment(2))

	port.Hold()
	xDone := make(chan error, 1)
	go func() { xDone <- orch.PlayNode(context.Background(), x) }()
	waitFor(t, func() bool { return x.PlayState() == speech.Playing })

	// The new request stops x before y starts.
	yDone := make(chan error, 1)
	go func() { yDone <- orch.PlayNode(context.Background(), y) }()

	waitFor(t, func() bool { return x.PlayState() == speech.Played })
	if err := <-xDone; err != nil {
		t.Fatalf("superseded play: %v", err)
	}

	port.Release()
	if err := <-yDone; err != nil {
		t.Fatalf("PlayNode(y): %v", err)
	}
	if !y.Played() {
		t.Fatal("y should have played")
	}
	if port.MaxConcurrent() != 1 {
		t.Fatalf("max concurrent plays = %d, want 1", port.MaxConcurrent())
	}
}

func TestOrchestratorResetTearsDownSession(t *testing.T) {
	synth := newStubSynth()
	orch, q, _ := newTestOrchestrator(synth)
	q.Enqueue(testSegment(1))

	orch.Reset()
	if q.Len() != 0 {
		t.Fatal("reset must discard the queue")
	}
	if orch.Mode() != speech.Stopped {
		t.Fatal("reset must return the orchestrator to stopped")
	}
	if orch.Current() != nil {
		t.Fatal("reset must clear the current node")
	}
}

func TestNodeTimeoutHaltsStalledPlayback(t *testing.T) {
	synth := newStubSynth()
	orch, q, port := newTestOrchestrator(synth)
	orch.SetAutoplay(false)
	orch.SetNodeTimeout(30 * time.Millisecond)

	node := q.Enqueue(testSegment(1))
	port.Hold()
	defer port.Release()

	err := orch.PlayNode(context.Background(), node)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
	if got := orch.Mode(); got != speech.Stopped {
		t.Fatalf("mode = %v, want stopped", got)
	}
}
