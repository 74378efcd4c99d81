package classroom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
)

func newTestAPI(t *testing.T, handler http.Handler) *API {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	api, err := NewAPI(APIConfig{BaseURL: server.URL, Token: "test-token"}, log.Default())
	if err != nil {
		t.Fatalf("NewAPI: %v", err)
	}
	return api
}

func TestChaptersSendsAuthAndDecodes(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/docs/doc-1/chapters", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]Chapter{
			{ID: "ch-1", DocID: "doc-1", Title: "Intro", Index: 1},
			{ID: "ch-2", DocID: "doc-1", Title: "Basics", Index: 2, DiscussionStarted: true},
		})
	})

	api := newTestAPI(t, mux)
	chapters, err := api.Chapters(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Chapters: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if len(chapters) != 2 || chapters[1].Title != "Basics" || !chapters[1].DiscussionStarted {
		t.Errorf("unexpected chapters: %+v", chapters)
	}
}

func TestSectionsPassesChapterQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/docs/doc-1/sections", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("chapter"); got != "3" {
			t.Errorf("chapter query = %q, want 3", got)
		}
		json.NewEncoder(w).Encode([]Section{{ID: "s-1", Chapter: 3, Index: 1, Body: "text"}})
	})

	api := newTestAPI(t, mux)
	sections, err := api.Sections(context.Background(), "doc-1", 3)
	if err != nil {
		t.Fatalf("Sections: %v", err)
	}
	if len(sections) != 1 || sections[0].Body != "text" {
		t.Errorf("unexpected sections: %+v", sections)
	}
}

func TestDiscussionCreatesViaPost(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/docs/doc-1/chapters/2/discussion", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		json.NewEncoder(w).Encode(Discussion{
			ID: "disc-1",
			Messages: []Message{
				{ID: "m-1", Body: "welcome", Persona: Persona{ID: "p-1", Name: "Teacher"}},
			},
		})
	})

	api := newTestAPI(t, mux)
	discussion, err := api.Discussion(context.Background(), "doc-1", 2)
	if err != nil {
		t.Fatalf("Discussion: %v", err)
	}
	if discussion.ID != "disc-1" || len(discussion.Messages) != 1 {
		t.Errorf("unexpected discussion: %+v", discussion)
	}
}

func TestErrorStatusSurfacesBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/voices", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "catalog unavailable", http.StatusBadGateway)
	})

	api := newTestAPI(t, mux)
	if _, err := api.Voices(context.Background()); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestPersonaSpeakerCarriesVoice(t *testing.T) {
	p := Persona{
		ID:    "p-1",
		Name:  "Prof. Ada",
		Role:  "teacher",
		Voice: &Voice{ID: "en-US-natalie", Name: "Natalie"},
	}
	speaker := p.Speaker()
	if speaker.VoiceID != "en-US-natalie" || speaker.IsUser {
		t.Errorf("unexpected speaker: %+v", speaker)
	}
	user := Persona{ID: "u-1", Name: "You", IsUser: true}
	if got := user.Speaker(); got.VoiceID != "" || !got.IsUser {
		t.Errorf("unexpected user speaker: %+v", got)
	}
}
