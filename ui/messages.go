package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Horlarhyinka/ai-classroom/classroom"
	"github.com/Horlarhyinka/ai-classroom/speech"
)

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// noticeMsg carries a transient failure that should not interrupt the view.
type noticeMsg struct{ err error }

type chaptersLoadedMsg struct {
	chapters []classroom.Chapter
}

type sectionsLoadedMsg struct {
	chapter  classroom.Chapter
	sections []classroom.Section
}

type discussionReadyMsg struct {
	chapter    classroom.Chapter
	discussion *classroom.Discussion
}

// conversationChangedMsg fires whenever the synchronizer folds a change into
// the conversation view.
type conversationChangedMsg struct{}

// speechEventMsg wraps one speech lifecycle event for the UI.
type speechEventMsg speech.Event

// playDoneMsg reports the outcome of a blocking play invocation.
type playDoneMsg struct{ err error }

func loadChaptersCmd(app *App, docID string) tea.Cmd {
	return func() tea.Msg {
		chapters, err := app.API.Chapters(context.Background(), docID)
		if err != nil {
			return errMsg{err}
		}
		return chaptersLoadedMsg{chapters: chapters}
	}
}

func loadSectionsCmd(app *App, chapter classroom.Chapter) tea.Cmd {
	return func() tea.Msg {
		sections, err := app.API.Sections(context.Background(), chapter.DocID, chapter.Index)
		if err != nil {
			return errMsg{err}
		}
		return sectionsLoadedMsg{chapter: chapter, sections: sections}
	}
}

func openDiscussionCmd(app *App, chapter classroom.Chapter) tea.Cmd {
	return func() tea.Msg {
		discussion, err := app.API.Discussion(context.Background(), chapter.DocID, chapter.Index)
		if err != nil {
			return errMsg{err}
		}
		return discussionReadyMsg{chapter: chapter, discussion: discussion}
	}
}

// waitForSpeechEvent blocks on the subscription channel and re-arms itself
// after every delivered message.
func waitForSpeechEvent(ch <-chan speech.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return speechEventMsg(event)
	}
}

// prefetchNodeCmd warms a node's audio in the background so playback can
// start without a synthesis round trip. Fetch is single-flight per node, so
// repeated prefetches of the same section are cheap.
func prefetchNodeCmd(node *speech.Node) tea.Cmd {
	return func() tea.Msg {
		_, _ = node.Fetch(context.Background())
		return nil
	}
}

// playNodeCmd runs one manual play invocation. It blocks until the node
// finishes or the orchestrator is stopped, so it must run as a command.
func playNodeCmd(app *App, node *speech.Node) tea.Cmd {
	return func() tea.Msg {
		return playDoneMsg{err: app.Orch.PlayNode(context.Background(), node)}
	}
}

func startAutoplayCmd(app *App) tea.Cmd {
	return func() tea.Msg {
		return playDoneMsg{err: app.Orch.StartAutoplay(context.Background())}
	}
}

func stopSpeechCmd(app *App) tea.Cmd {
	return func() tea.Msg {
		if err := app.Orch.Stop(); err != nil {
			return noticeMsg{err}
		}
		return nil
	}
}

func sendMessageCmd(app *App, body string) tea.Cmd {
	return func() tea.Msg {
		app.Sync.Send(body)
		return conversationChangedMsg{}
	}
}

func startDiscussionCmd(app *App) tea.Cmd {
	return func() tea.Msg {
		if err := app.Sync.StartDiscussion(); err != nil {
			return noticeMsg{err}
		}
		return nil
	}
}
