// Package stream keeps the local discussion view synchronized with the
// realtime feed: it owns the websocket connection, replays queued sends
// after reconnects, and folds confirmed messages into the speech queue.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Wire event names shared with the backend.
const (
	EventJoinDiscussion  = "join_discussion"
	EventStartDiscussion = "start_discussion"
	EventUserMessage     = "user_message"
	EventMessage         = "message"
)

// Frame is one realtime message: the event name plus its JSON payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals v into a frame for the given event.
func NewFrame(event string, v any) (Frame, error) {
	if v == nil {
		return Frame{Event: event}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Frame{}, fmt.Errorf("stream: encode %s payload: %w", event, err)
	}
	return Frame{Event: event, Data: data}, nil
}

// Session is one live realtime connection. Receive blocks until a frame
// arrives or the session fails.
type Session interface {
	Send(Frame) error
	Receive() (Frame, error)
	Close() error
}

// Transport dials realtime sessions. The connection manager redials through
// the same transport after a drop.
type Transport interface {
	Dial(ctx context.Context) (Session, error)
}

// WSConfig configures the websocket transport.
type WSConfig struct {
	URL   string // ws://, wss://, or an http(s) URL to convert
	Token string
}

// WSTransport dials the backend over a websocket.
type WSTransport struct {
	url    string
	header http.Header
}

// NewWSTransport builds a websocket transport. http and https URLs are
// rewritten to their websocket schemes.
func NewWSTransport(cfg WSConfig) (*WSTransport, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, fmt.Errorf("stream: websocket url is required")
	}
	if strings.HasPrefix(raw, "https://") {
		raw = "wss://" + strings.TrimPrefix(raw, "https://")
	} else if strings.HasPrefix(raw, "http://") {
		raw = "ws://" + strings.TrimPrefix(raw, "http://")
	}
	if _, err := url.Parse(raw); err != nil {
		return nil, fmt.Errorf("stream: invalid websocket url: %w", err)
	}

	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}
	return &WSTransport{url: raw, header: header}, nil
}

// Dial opens a websocket session.
func (t *WSTransport) Dial(ctx context.Context) (Session, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		return nil, fmt.Errorf("stream: dial %s: %w", t.url, err)
	}
	return &wsSession{conn: conn}, nil
}

type wsSession struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Send writes one frame. Serialized because the websocket allows a single
// concurrent writer.
func (s *wsSession) Send(frame Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("stream: send %s: %w", frame.Event, err)
	}
	return nil
}

func (s *wsSession) Receive() (Frame, error) {
	var frame Frame
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
			) {
				return Frame{}, fmt.Errorf("stream: channel closed: %w", err)
			}
			return Frame{}, fmt.Errorf("stream: receive: %w", err)
		}
		if err := json.Unmarshal(payload, &frame); err != nil {
			// Skip frames we cannot parse rather than dropping the feed.
			continue
		}
		return frame, nil
	}
}

func (s *wsSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}
