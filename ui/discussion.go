package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/Horlarhyinka/ai-classroom/classroom"
	"github.com/Horlarhyinka/ai-classroom/speech"
	"github.com/Horlarhyinka/ai-classroom/stream"
)

// discussionModel is the live classroom chat. AI turns arrive over the feed
// and can be spoken; the user's own messages are echoed optimistically.
type discussionModel struct {
	common *commonModel
	app    *App

	chapter classroom.Chapter
	started bool

	selected int // index into the conversation, -1 follows the tail

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	ready    bool
}

func newDiscussionModel(common *commonModel, app *App) discussionModel {
	input := textinput.New()
	input.Placeholder = "Ask the classroom…"
	input.CharLimit = 500

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = dimStyle

	return discussionModel{
		common:   common,
		app:      app,
		selected: -1,
		input:    input,
		spinner:  s,
	}
}

// load binds the chat to a chapter's discussion and seeds history. The
// speech queue restarts from the discussion's own turns.
func (m *discussionModel) load(chapter classroom.Chapter, discussion *classroom.Discussion) tea.Cmd {
	m.chapter = chapter
	m.started = chapter.DiscussionStarted || len(discussion.Messages) > 0
	m.selected = -1

	m.app.Orch.Reset()
	m.app.Sync.Attach(discussion.ID, chapter.DocID, chapter.Index, discussion.Messages)
	m.refresh()
	return m.input.Focus()
}

func (m *discussionModel) setSize(width, height int) {
	if !m.ready {
		m.viewport = viewport.New(width, height-4)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = height - 4
	}
	m.input.Width = width - 4
	m.refresh()
}

// selectedNode returns the speech node for the highlighted message, if it is
// an AI turn the queue tracks.
func (m *discussionModel) selectedNode() *speech.Node {
	messages := m.app.Sync.Messages()
	i := m.selected
	if i < 0 {
		// Follow mode: fall back to the first unheard AI turn.
		return m.app.Queue.FirstUnplayed()
	}
	if i >= len(messages) {
		return nil
	}
	node, _ := m.app.Queue.Get(messages[i].ID)
	return node
}

func (m *discussionModel) refresh() {
	if !m.ready {
		return
	}
	follow := m.selected < 0 || m.viewport.AtBottom()
	m.viewport.SetContent(m.renderConversation())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *discussionModel) renderConversation() string {
	messages := m.app.Sync.Messages()
	if len(messages) == 0 {
		if m.started {
			return dimStyle.Render("  Waiting for the classroom…")
		}
		return dimStyle.Render("  Press s to start the discussion.")
	}

	width := max(20, m.viewport.Width-4)
	current := m.app.Orch.Current()

	var b strings.Builder
	for i, msg := range messages {
		name := personaStyle(msg.Persona.Role, msg.Persona.IsUser).Render(msg.Persona.Name)

		var marks []string
		if msg.Queued {
			marks = append(marks, queuedStyle.Render("queued"))
		} else if msg.Optimistic {
			marks = append(marks, dimStyle.Render("sending…"))
		}
		if node, ok := m.app.Queue.Get(msg.ID); ok {
			switch {
			case current == node && node.PlayState() == speech.Playing:
				marks = append(marks, speakingStyle.Render("speaking"))
			case node.Played():
				marks = append(marks, dimStyle.Render("heard"))
			case node.FetchState() == speech.Fetching:
				marks = append(marks, dimStyle.Render(m.spinner.View()+"fetching"))
			case node.FetchState() == speech.FetchError:
				marks = append(marks, statusErrStyle.Render("audio failed"))
			}
		}

		header := name
		if len(marks) > 0 {
			header += "  " + strings.Join(marks, " ")
		}
		if i == m.selected {
			header = selectedStyle.Render("› ") + header
		} else {
			header = "  " + header
		}

		b.WriteString(header + "\n")
		b.WriteString(indentLines(wordwrap.String(msg.Body, width), 4) + "\n\n")
	}
	return b.String()
}

func (m discussionModel) update(msg tea.Msg) (discussionModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			body := strings.TrimSpace(m.input.Value())
			if body == "" {
				return m, nil
			}
			m.input.Reset()
			return m, sendMessageCmd(m.app, body)

		case "up", "ctrl+p":
			count := len(m.app.Sync.Messages())
			if m.selected < 0 {
				m.selected = count - 1
			} else if m.selected > 0 {
				m.selected--
			}
			m.refresh()
			return m, nil

		case "down", "ctrl+n":
			count := len(m.app.Sync.Messages())
			if m.selected >= 0 && m.selected < count-1 {
				m.selected++
			} else {
				m.selected = -1 // back to following the tail
			}
			m.refresh()
			return m, nil

		case "ctrl+s":
			if !m.started {
				m.started = true
				return m, startDiscussionCmd(m.app)
			}
			return m, nil

		case "ctrl+space", "ctrl+o":
			if m.app.Orch.Mode() != speech.Stopped {
				return m, stopSpeechCmd(m.app)
			}
			if node := m.selectedNode(); node != nil {
				return m, playNodeCmd(m.app, node)
			}
			return m, nil

		case "ctrl+a":
			m.app.Orch.SetAutoplay(!m.app.Orch.Autoplay())
			if m.app.Orch.Autoplay() && m.app.Orch.Mode() == speech.Stopped {
				return m, startAutoplayCmd(m.app)
			}
			return m, nil

		case "s":
			// Only intercept before the input owns the keys.
			if !m.input.Focused() && !m.started {
				m.started = true
				return m, startDiscussionCmd(m.app)
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case conversationChangedMsg:
		m.refresh()
		// A fresh AI turn starts speaking on its own when autoplay is on
		// and nothing is going through the port.
		if m.app.Orch.Autoplay() && m.app.Orch.Mode() == speech.Stopped && m.app.Queue.FirstUnplayed() != nil {
			return m, startAutoplayCmd(m.app)
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m discussionModel) view() string {
	if !m.ready {
		return ""
	}
	return m.viewport.View() + "\n" + m.statusBar() + "\n  " + m.input.View()
}

func (m discussionModel) statusBar() string {
	left := fmt.Sprintf(" %s · discussion ", m.chapter.Title)

	var middle string
	switch m.app.Conn.State() {
	case stream.Connected:
		switch m.app.Orch.Mode() {
		case speech.ManualPlaying:
			middle = speakingStyle.Render("▶ speaking")
		case speech.AutoPlaying:
			middle = speakingStyle.Render("▶▶ auto")
		}
	case stream.Connecting:
		middle = dimStyle.Render(m.spinner.View() + "reconnecting…")
	default:
		middle = statusErrStyle.Render("offline, messages will queue")
	}

	right := " ctrl+o: listen  ctrl+a: auto  esc: back "
	gap := max(0, m.viewport.Width-lipgloss.Width(left+middle+right))
	return statusBarStyle.Render(left + middle + strings.Repeat(" ", gap) + right)
}

func indentLines(s string, n int) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = pad + line
	}
	return strings.Join(lines, "\n")
}
