// Package ui provides the terminal UI for the classroom application.
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	te "github.com/muesli/termenv"

	"github.com/Horlarhyinka/ai-classroom/speech"
)

const ellipsis = "…"

// state is the top-level application state.
type state int

const (
	statePicker state = iota
	stateReader
	stateDiscussion
)

func (s state) String() string {
	return map[state]string{
		statePicker:     "picking a chapter",
		stateReader:     "reading",
		stateDiscussion: "in discussion",
	}[s]
}

// Common stuff we'll need to access in all models.
type commonModel struct {
	cfg    Config
	width  int
	height int
}

type model struct {
	common   *commonModel
	app      *App
	state    state
	fatalErr error
	notice   string

	picker     pickerModel
	reader     readerModel
	discussion discussionModel

	speechEvents <-chan speech.Event
	unsubscribe  func()
}

// NewProgram returns a new Tea program wired to the application stack.
func NewProgram(cfg Config, app *App) *tea.Program {
	log.Debug("starting classroom", "doc", cfg.DocID, "autoplay", cfg.Autoplay)

	if cfg.GlamourStyle == "" || cfg.GlamourStyle == styles.AutoStyle {
		if te.HasDarkBackground() {
			cfg.GlamourStyle = styles.DarkStyle
		} else {
			cfg.GlamourStyle = styles.LightStyle
		}
	}

	m := newModel(cfg, app)
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	program := tea.NewProgram(m, opts...)

	// The synchronizer mutates the conversation off the UI goroutine; poke
	// the program so it re-renders.
	app.Sync.SetNotify(func() {
		program.Send(conversationChangedMsg{})
	})

	return program
}

func newModel(cfg Config, app *App) *model {
	common := commonModel{cfg: cfg}
	events, unsubscribe := app.Events.Subscribe(16)

	return &model{
		common:       &common,
		app:          app,
		state:        statePicker,
		picker:       newPickerModel(&common),
		reader:       newReaderModel(&common, app),
		discussion:   newDiscussionModel(&common, app),
		speechEvents: events,
		unsubscribe:  unsubscribe,
	}
}

func (m *model) Init() tea.Cmd {
	m.app.Start()
	return tea.Batch(
		loadChaptersCmd(m.app, m.common.cfg.DocID),
		waitForSpeechEvent(m.speechEvents),
		m.discussion.spinner.Tick,
	)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been a fatal error, any key exits.
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, m.quit()
		}
		return m, nil
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, m.quit()

		case "q":
			// In the discussion the input owns plain keys.
			if m.state == stateDiscussion && m.discussion.input.Focused() {
				break
			}
			if m.state == statePicker && m.picker.filtering {
				break
			}
			return m, m.quit()

		case "esc":
			if m.state == stateReader || (m.state == stateDiscussion && !m.discussion.input.Focused()) {
				m.leaveChapter()
				return m, nil
			}
			if m.state == stateDiscussion {
				m.discussion.input.Blur()
				return m, nil
			}

		case "enter":
			if m.state == statePicker && !m.picker.filtering {
				if chapter, ok := m.picker.selected(); ok {
					return m, loadSectionsCmd(m.app, chapter)
				}
				return m, nil
			}

		case "d":
			if m.state == statePicker && !m.picker.filtering {
				if chapter, ok := m.picker.selected(); ok {
					return m, openDiscussionCmd(m.app, chapter)
				}
				return m, nil
			}

		case "ctrl+z":
			return m, tea.Suspend
		}

	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.reader.setSize(msg.Width, msg.Height)
		m.discussion.setSize(msg.Width, msg.Height)

	case chaptersLoadedMsg:
		m.picker.setChapters(msg.chapters)

	case sectionsLoadedMsg:
		m.state = stateReader
		m.reader.load(msg.chapter, msg.sections)
		m.reader.setSize(m.common.width, m.common.height)
		cmds = append(cmds, m.reader.prefetchCurrent())

	case discussionReadyMsg:
		m.state = stateDiscussion
		m.discussion.setSize(m.common.width, m.common.height)
		cmds = append(cmds, m.discussion.load(msg.chapter, msg.discussion))

	case speechEventMsg:
		m.handleSpeechEvent(speech.Event(msg))
		cmds = append(cmds, waitForSpeechEvent(m.speechEvents))

	case playDoneMsg:
		if msg.err != nil && !speech.Transient(msg.err) {
			m.notice = msg.err.Error()
		}

	case noticeMsg:
		m.notice = msg.err.Error()

	case errMsg:
		log.Error("fatal UI error", "error", msg.err)
		m.fatalErr = msg.err
		return m, nil
	}

	switch m.state {
	case statePicker:
		var cmd tea.Cmd
		m.picker, cmd = m.picker.update(msg)
		cmds = append(cmds, cmd)
	case stateReader:
		var cmd tea.Cmd
		m.reader, cmd = m.reader.update(msg)
		cmds = append(cmds, cmd)
	case stateDiscussion:
		var cmd tea.Cmd
		m.discussion, cmd = m.discussion.update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleSpeechEvent folds playback lifecycle changes into the view state.
func (m *model) handleSpeechEvent(event speech.Event) {
	switch event.Type {
	case speech.EventPlayStopped:
		if event.Err != nil && !speech.Transient(event.Err) {
			m.notice = event.Err.Error()
		}
	case speech.EventFetchStopped:
		if event.Err != nil {
			m.notice = event.Err.Error()
		}
	}
	m.reader.render()
	m.discussion.refresh()
}

// leaveChapter returns to the picker and tears down the playback session.
// The queue restarts from scratch on the next chapter.
func (m *model) leaveChapter() {
	m.app.Orch.Reset()
	m.state = statePicker
	m.notice = ""
}

func (m *model) quit() tea.Cmd {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.app.Shutdown()
	return tea.Quit
}

func (m *model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}

	var view string
	switch m.state {
	case stateReader:
		view = m.reader.view()
	case stateDiscussion:
		view = m.discussion.view()
	default:
		view = m.picker.view()
	}

	if m.notice != "" {
		view += "\n  " + statusErrStyle.Render(m.notice)
	}
	return view
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
