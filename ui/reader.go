package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/Horlarhyinka/ai-classroom/classroom"
	"github.com/Horlarhyinka/ai-classroom/speech"
)

// readerModel shows one chapter section at a time, rendered with glamour,
// with the section's narration wired to the speech queue.
type readerModel struct {
	common *commonModel
	app    *App

	chapter  classroom.Chapter
	sections []classroom.Section
	index    int

	viewport viewport.Model
	ready    bool
}

func newReaderModel(common *commonModel, app *App) readerModel {
	return readerModel{common: common, app: app}
}

// load binds the reader to a chapter. The speech queue is rebuilt so every
// section has a node, in reading order.
func (m *readerModel) load(chapter classroom.Chapter, sections []classroom.Section) {
	m.chapter = chapter
	m.sections = sections
	m.index = 0

	m.app.Orch.Reset()
	for _, section := range sections {
		m.app.Queue.Enqueue(sectionSegment(section))
	}
	m.render()
}

func sectionSegment(section classroom.Section) speech.Segment {
	return speech.Segment{
		ID:   "section:" + section.ID,
		Text: section.Body,
		Speaker: speech.Speaker{
			ID:   "narrator",
			Name: "Narrator",
			Role: "teacher",
		},
		CreatedAt: time.Now(),
	}
}

func (m *readerModel) setSize(width, height int) {
	if !m.ready {
		m.viewport = viewport.New(width, height-3)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = height - 3
	}
	m.render()
}

// prefetchCurrent warms the audio for the visible section.
func (m *readerModel) prefetchCurrent() tea.Cmd {
	node := m.currentNode()
	if node == nil {
		return nil
	}
	return prefetchNodeCmd(node)
}

func (m *readerModel) currentNode() *speech.Node {
	if m.index < 0 || m.index >= len(m.sections) {
		return nil
	}
	node, _ := m.app.Queue.Get("section:" + m.sections[m.index].ID)
	return node
}

func (m *readerModel) render() {
	if !m.ready || len(m.sections) == 0 {
		return
	}
	section := m.sections[m.index]

	width := m.viewport.Width
	if m.common.cfg.GlamourMaxWidth > 0 && int(m.common.cfg.GlamourMaxWidth) < width {
		width = int(m.common.cfg.GlamourMaxWidth)
	}

	style := m.common.cfg.GlamourStyle
	if style == "" {
		style = styles.AutoStyle
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		m.viewport.SetContent(section.Body)
		return
	}

	body := fmt.Sprintf("# %s\n\n%s", section.Title, section.Body)
	rendered, err := renderer.Render(body)
	if err != nil {
		m.viewport.SetContent(section.Body)
		return
	}
	m.viewport.SetContent(rendered)
	m.viewport.GotoTop()
}

func (m readerModel) update(msg tea.Msg) (readerModel, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "n", "right":
			if m.index < len(m.sections)-1 {
				m.index++
				m.render()
				return m, m.prefetchCurrent()
			}
			return m, nil
		case "p", "left":
			if m.index > 0 {
				m.index--
				m.render()
				return m, m.prefetchCurrent()
			}
			return m, nil
		case " ":
			if m.app.Orch.Mode() != speech.Stopped {
				return m, stopSpeechCmd(m.app)
			}
			if node := m.currentNode(); node != nil {
				return m, playNodeCmd(m.app, node)
			}
			return m, nil
		case "a":
			m.app.Orch.SetAutoplay(!m.app.Orch.Autoplay())
			if m.app.Orch.Autoplay() && m.app.Orch.Mode() == speech.Stopped {
				return m, startAutoplayCmd(m.app)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m readerModel) view() string {
	if len(m.sections) == 0 {
		return "\n" + dimStyle.Render("  This chapter has no sections.") + "\n"
	}
	return m.viewport.View() + "\n" + m.statusBar()
}

func (m readerModel) statusBar() string {
	left := fmt.Sprintf(" %s · section %d/%d ", m.chapter.Title, m.index+1, len(m.sections))

	var middle string
	switch m.app.Orch.Mode() {
	case speech.ManualPlaying:
		middle = speakingStyle.Render("▶ reading")
	case speech.AutoPlaying:
		middle = speakingStyle.Render("▶▶ auto-reading")
	default:
		if node := m.currentNode(); node != nil && node.FetchState() == speech.Fetching {
			middle = dimStyle.Render("fetching audio…")
		}
	}

	right := " space: listen  a: autoplay  n/p: section  esc: back "
	bar := left + middle + strings.Repeat(" ", max(0, m.viewport.Width-lipgloss.Width(left+middle+right))) + right
	return statusBarStyle.Render(truncate.StringWithTail(bar, uint(max(0, m.viewport.Width)), ellipsis))
}
