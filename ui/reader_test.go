package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Horlarhyinka/ai-classroom/classroom"
	"github.com/Horlarhyinka/ai-classroom/speech"
)

func testChapter() (classroom.Chapter, []classroom.Section) {
	chapter := classroom.Chapter{ID: "ch-1", DocID: "doc-1", Title: "Basics", Index: 1}
	sections := []classroom.Section{
		{ID: "s-1", DocID: "doc-1", Chapter: 1, Index: 1, Title: "Intro", Body: "First things first."},
		{ID: "s-2", DocID: "doc-1", Chapter: 1, Index: 2, Title: "More", Body: "Then this."},
	}
	return chapter, sections
}

func TestLoadPrefetchesVisibleSection(t *testing.T) {
	app, _ := newTestApp()
	m := newReaderModel(&commonModel{}, app)

	chapter, sections := testChapter()
	m.load(chapter, sections)

	cmd := m.prefetchCurrent()
	if cmd == nil {
		t.Fatal("no prefetch command for the visible section")
	}
	cmd()

	node := m.currentNode()
	if node == nil {
		t.Fatal("visible section has no node")
	}
	if node.FetchState() != speech.FetchReady {
		t.Errorf("fetch state = %v, want ready", node.FetchState())
	}
}

func TestNavigationPrefetchesNextSection(t *testing.T) {
	app, _ := newTestApp()
	m := newReaderModel(&commonModel{}, app)

	chapter, sections := testChapter()
	m.load(chapter, sections)

	next, cmd := m.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	if cmd == nil {
		t.Fatal("no prefetch command after moving to the next section")
	}
	cmd()

	node := next.currentNode()
	if node == nil || node.ID() != "section:s-2" {
		t.Fatalf("unexpected node after navigation: %v", node)
	}
	if node.FetchState() != speech.FetchReady {
		t.Errorf("fetch state = %v, want ready", node.FetchState())
	}
}
