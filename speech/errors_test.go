package speech_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Horlarhyinka/ai-classroom/speech"
)

func TestErrorWrapping(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("sending: %w", &speech.Error{
		Kind: speech.KindNetwork,
		Op:   "synthesize",
		Node: "msg-1",
		Err:  base,
	})

	if !speech.IsKind(err, speech.KindNetwork) {
		t.Fatal("IsKind should see through wrapping")
	}
	if speech.IsKind(err, speech.KindPlayback) {
		t.Fatal("IsKind matched the wrong kind")
	}
	if !errors.Is(err, base) {
		t.Fatal("errors.Is should reach the base error")
	}

	var se *speech.Error
	if !errors.As(err, &se) {
		t.Fatal("errors.As should extract *speech.Error")
	}
	if se.Op != "synthesize" || se.Node != "msg-1" {
		t.Fatalf("unexpected fields: op=%q node=%q", se.Op, se.Node)
	}
}

func TestTransient(t *testing.T) {
	conn := &speech.Error{Kind: speech.KindConnection, Op: "read", Err: errors.New("eof")}
	if !speech.Transient(conn) {
		t.Fatal("connection errors are transient")
	}
	if !speech.Transient(speech.ErrNotConnected) {
		t.Fatal("ErrNotConnected is transient")
	}
	synthErr := &speech.Error{Kind: speech.KindSynthesis, Op: "fetch", Err: errors.New("500")}
	if speech.Transient(synthErr) {
		t.Fatal("synthesis errors are not transient")
	}
}
