// Package classroom holds the document and discussion model shared by the
// transport, the speech pipeline, and the UI.
package classroom

import (
	"time"

	"github.com/Horlarhyinka/ai-classroom/speech"
)

// Voice is one synthesis voice from the provider catalog.
type Voice struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Gender string `json:"gender,omitempty"`
}

// Persona is a discussion participant: an AI teacher/student or the local
// user.
type Persona struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Role   string `json:"role"` // "teacher" or "student"
	IsUser bool   `json:"isUser"`
	Voice  *Voice `json:"voice,omitempty"`
}

// Speaker converts the persona to the speech pipeline's speaker value.
func (p Persona) Speaker() speech.Speaker {
	voice := ""
	if p.Voice != nil {
		voice = p.Voice.ID
	}
	return speech.Speaker{
		ID:      p.ID,
		Name:    p.Name,
		Role:    p.Role,
		IsUser:  p.IsUser,
		VoiceID: voice,
	}
}

// Message is one discussion entry. Confirmed messages carry a durable ID
// from the feed; optimistic messages carry a client-generated TempID until
// the confirmed echo arrives.
type Message struct {
	ID         string    `json:"_id"`
	Body       string    `json:"body"`
	Persona    Persona   `json:"persona"`
	Sent       bool      `json:"sent"`
	CreatedAt  time.Time `json:"createdAt"`
	Optimistic bool      `json:"isOptimistic,omitempty"`
	TempID     string    `json:"tempId,omitempty"`
	Queued     bool      `json:"-"` // awaiting reconnect before send
}

// Confirmed reports whether the message came from the feed rather than an
// optimistic local echo.
func (m Message) Confirmed() bool {
	return !m.Optimistic
}

// Chapter is one chapter of a document.
type Chapter struct {
	ID                string `json:"_id"`
	DocID             string `json:"docId"`
	Title             string `json:"title"`
	Index             int    `json:"index"`
	DiscussionStarted bool   `json:"discussionStarted"`
}

// Section is one readable slice of a chapter.
type Section struct {
	ID      string `json:"_id"`
	DocID   string `json:"docId"`
	Chapter int    `json:"chapter"`
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

// Discussion is a persisted discussion: its channel id plus history.
type Discussion struct {
	ID       string    `json:"_id"`
	Messages []Message `json:"messages"`
}
