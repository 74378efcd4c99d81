package stream

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/Horlarhyinka/ai-classroom/classroom"
	"github.com/Horlarhyinka/ai-classroom/speech"
)

// Sender writes events to the realtime channel. Conn satisfies it; tests
// substitute a recorder.
type Sender interface {
	Send(event string, v any) error
}

// The discussion's id doubles as its realtime channel name.
type joinPayload struct {
	Channel string `json:"channel"`
}

type startPayload struct {
	DocID   string `json:"docId"`
	Chapter int    `json:"chapter"`
	Channel string `json:"channel"`
}

type userMessagePayload struct {
	Channel string `json:"channel"`
	Body    string `json:"body"`
	TempID  string `json:"tempId,omitempty"`
}

// messageEnvelope is the feed's double-wrapped message delivery shape.
type messageEnvelope struct {
	Data struct {
		Data classroom.Message `json:"data"`
	} `json:"data"`
}

// Synchronizer keeps the local conversation view consistent with the
// realtime feed. Confirmed AI turns flow into the speech queue in arrival
// order; the user's own sends are echoed optimistically and reconciled when
// the confirmed copy arrives, without ever entering the speech queue. Sends
// attempted while offline are buffered and replayed in order after the next
// connect.
//
// Synchronizer implements Handler; wire it as the Conn's handler.
type Synchronizer struct {
	sender Sender
	queue  *speech.Queue
	logger *log.Logger

	mu           sync.Mutex
	self         classroom.Persona
	discussionID string
	docID        string
	chapter      int
	messages     []classroom.Message
	seen         map[string]bool      // confirmed message ids
	pending      []userMessagePayload // sends buffered while offline
	startWanted  bool                 // start_discussion owed to the backend
	connected    bool
	notify       func()
}

// NewSynchronizer builds a synchronizer for one user identity.
func NewSynchronizer(sender Sender, queue *speech.Queue, self classroom.Persona, logger *log.Logger) *Synchronizer {
	if logger == nil {
		logger = log.Default()
	}
	return &Synchronizer{
		sender: sender,
		queue:  queue,
		self:   self,
		seen:   make(map[string]bool),
		logger: logger.With("component", "stream-sync"),
	}
}

// SetSender binds the outbound channel. The synchronizer and the connection
// reference each other, so one side attaches after construction.
func (s *Synchronizer) SetSender(sender Sender) {
	s.mu.Lock()
	s.sender = sender
	s.mu.Unlock()
}

// SetNotify registers a callback invoked after every conversation change.
// Used by the UI to refresh its view.
func (s *Synchronizer) SetNotify(fn func()) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

// Attach binds the synchronizer to a chapter's discussion and seeds it with
// history. Confirmed AI turns from the history enter the speech queue so
// playback can cover the whole conversation, not just live traffic.
func (s *Synchronizer) Attach(discussionID, docID string, chapter int, history []classroom.Message) {
	s.mu.Lock()
	s.discussionID = discussionID
	s.docID = docID
	s.chapter = chapter
	s.messages = nil
	s.seen = make(map[string]bool)
	s.pending = nil
	s.startWanted = false

	for _, msg := range history {
		if msg.ID == "" || s.seen[msg.ID] {
			continue
		}
		s.seen[msg.ID] = true
		s.messages = append(s.messages, msg)
		if !s.authoredBySelf(msg) {
			s.queue.Enqueue(segmentFor(msg))
		}
	}
	connected := s.connected
	s.mu.Unlock()

	if connected {
		s.join(discussionID)
	}
	s.changed()
}

// Send records an optimistic copy of the user's message and emits it on the
// live channel. While offline the send is buffered; buffered sends replay in
// the order they were made once the connection returns.
func (s *Synchronizer) Send(body string) classroom.Message {
	msg := classroom.Message{
		Body:       body,
		Persona:    s.self,
		CreatedAt:  time.Now(),
		Optimistic: true,
		TempID:     uuid.NewString(),
	}
	payload := userMessagePayload{Body: body, TempID: msg.TempID}

	s.mu.Lock()
	payload.Channel = s.discussionID
	connected := s.connected
	if !connected {
		msg.Queued = true
		s.pending = append(s.pending, payload)
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	if connected {
		if err := s.send(EventUserMessage, payload); err != nil {
			s.logger.Warn("send failed, buffering", "tempId", msg.TempID, "error", err)
			s.mu.Lock()
			s.pending = append(s.pending, payload)
			s.markQueued(msg.TempID)
			s.mu.Unlock()
		}
	}

	s.changed()
	return msg
}

// StartDiscussion asks the backend to begin the AI discussion for the bound
// chapter. Offline requests are remembered and replayed on reconnect.
func (s *Synchronizer) StartDiscussion() error {
	s.mu.Lock()
	payload := s.startPayload()
	connected := s.connected
	if !connected {
		s.startWanted = true
	}
	s.mu.Unlock()

	if !connected {
		return &speech.Error{Kind: speech.KindConnection, Op: "start", Err: speech.ErrNotConnected}
	}
	return s.send(EventStartDiscussion, payload)
}

// startPayload builds the start_discussion payload. Callers hold mu.
func (s *Synchronizer) startPayload() startPayload {
	return startPayload{DocID: s.docID, Chapter: s.chapter, Channel: s.discussionID}
}

// Messages returns an ordered snapshot of the conversation.
func (s *Synchronizer) Messages() []classroom.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]classroom.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// HandleConnect implements Handler. The join is re-sent on every connect,
// including redials, because the backend scopes the feed per connection.
// Buffered sends drain afterwards in their original order.
func (s *Synchronizer) HandleConnect() {
	s.mu.Lock()
	s.connected = true
	id := s.discussionID
	start := s.startPayload()
	startWanted := s.startWanted
	s.startWanted = false
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if id != "" {
		s.join(id)
	}
	if startWanted {
		if err := s.send(EventStartDiscussion, start); err != nil {
			s.logger.Warn("deferred start failed", "error", err)
		}
	}

	for _, payload := range pending {
		if err := s.send(EventUserMessage, payload); err != nil {
			s.logger.Warn("replay failed, re-buffering", "tempId", payload.TempID, "error", err)
			s.mu.Lock()
			s.pending = append(s.pending, payload)
			s.mu.Unlock()
			break
		}
		s.mu.Lock()
		s.clearQueued(payload.TempID)
		s.mu.Unlock()
	}
	s.changed()
}

// HandleFrame implements Handler.
func (s *Synchronizer) HandleFrame(frame Frame) {
	switch frame.Event {
	case EventMessage:
		var envelope messageEnvelope
		if err := json.Unmarshal(frame.Data, &envelope); err != nil {
			s.logger.Warn("malformed message frame", "error", err)
			return
		}
		s.handleMessage(envelope.Data.Data)
	default:
		s.logger.Debug("ignoring frame", "event", frame.Event)
	}
}

// HandleDisconnect implements Handler. The conversation view is kept as is;
// sends made during the outage buffer until the next connect.
func (s *Synchronizer) HandleDisconnect(err error) {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	s.logger.Warn("feed disconnected", "error", err)
	s.changed()
}

// handleMessage folds one confirmed feed message into the conversation.
// Self-authored messages reconcile the matching optimistic entry and never
// reach the speech queue. Duplicate deliveries of a confirmed id are
// dropped.
func (s *Synchronizer) handleMessage(msg classroom.Message) {
	if msg.ID == "" {
		s.logger.Warn("dropping message without id")
		return
	}

	s.mu.Lock()
	if s.seen[msg.ID] {
		s.mu.Unlock()
		return
	}
	s.seen[msg.ID] = true

	if s.authoredBySelf(msg) {
		msg.Optimistic = false
		msg.Sent = true
		if i := s.optimisticIndex(msg); i >= 0 {
			s.messages[i] = msg
		} else {
			s.messages = append(s.messages, msg)
		}
		s.mu.Unlock()
		s.changed()
		return
	}

	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.queue.Enqueue(segmentFor(msg))
	s.changed()
}

// optimisticIndex finds the optimistic entry the confirmed msg replaces.
// Matches by tempId when the echo carries one, otherwise by the earliest
// unconfirmed entry with the same body. Callers hold mu.
func (s *Synchronizer) optimisticIndex(msg classroom.Message) int {
	for i, m := range s.messages {
		if !m.Optimistic {
			continue
		}
		if msg.TempID != "" && m.TempID == msg.TempID {
			return i
		}
		if msg.TempID == "" && m.Body == msg.Body {
			return i
		}
	}
	return -1
}

// authoredBySelf reports whether the message is the local user's. Callers
// hold mu or operate on values that never change after construction.
func (s *Synchronizer) authoredBySelf(msg classroom.Message) bool {
	return msg.Persona.IsUser || (s.self.ID != "" && msg.Persona.ID == s.self.ID)
}

func (s *Synchronizer) markQueued(tempID string) {
	for i := range s.messages {
		if s.messages[i].TempID == tempID {
			s.messages[i].Queued = true
			return
		}
	}
}

func (s *Synchronizer) clearQueued(tempID string) {
	for i := range s.messages {
		if s.messages[i].TempID == tempID {
			s.messages[i].Queued = false
			return
		}
	}
}

// send snapshots the bound sender and writes through it.
func (s *Synchronizer) send(event string, v any) error {
	s.mu.Lock()
	sender := s.sender
	s.mu.Unlock()
	if sender == nil {
		return &speech.Error{Kind: speech.KindConnection, Op: "send", Err: speech.ErrNotConnected}
	}
	return sender.Send(event, v)
}

func (s *Synchronizer) join(discussionID string) {
	if err := s.send(EventJoinDiscussion, joinPayload{Channel: discussionID}); err != nil {
		s.logger.Warn("join failed", "discussion", discussionID, "error", err)
	}
}

func (s *Synchronizer) changed() {
	s.mu.Lock()
	fn := s.notify
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func segmentFor(msg classroom.Message) speech.Segment {
	return speech.Segment{
		ID:        msg.ID,
		Text:      msg.Body,
		Speaker:   msg.Persona.Speaker(),
		CreatedAt: msg.CreatedAt,
	}
}
