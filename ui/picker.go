package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/Horlarhyinka/ai-classroom/classroom"
)

// pickerModel lets the user choose a chapter. Typing filters the list with
// fuzzy matching, the same interaction as a file stash.
type pickerModel struct {
	common *commonModel

	chapters []classroom.Chapter
	filtered []classroom.Chapter
	cursor   int

	filterInput textinput.Model
	filtering   bool
	loaded      bool
}

func newPickerModel(common *commonModel) pickerModel {
	input := textinput.New()
	input.Prompt = "Filter: "
	input.CharLimit = 64
	return pickerModel{common: common, filterInput: input}
}

func (m *pickerModel) setChapters(chapters []classroom.Chapter) {
	m.chapters = chapters
	m.filtered = chapters
	m.cursor = 0
	m.loaded = true
}

// chapterTitles implements fuzzy.Source over the chapter list.
type chapterTitles []classroom.Chapter

func (c chapterTitles) String(i int) string { return c[i].Title }
func (c chapterTitles) Len() int            { return len(c) }

func (m *pickerModel) applyFilter() {
	query := strings.TrimSpace(m.filterInput.Value())
	if query == "" {
		m.filtered = m.chapters
	} else {
		matches := fuzzy.FindFrom(query, chapterTitles(m.chapters))
		m.filtered = make([]classroom.Chapter, 0, len(matches))
		for _, match := range matches {
			m.filtered = append(m.filtered, m.chapters[match.Index])
		}
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
}

func (m *pickerModel) selected() (classroom.Chapter, bool) {
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return classroom.Chapter{}, false
	}
	return m.filtered[m.cursor], true
}

func (m pickerModel) update(msg tea.Msg) (pickerModel, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if m.filtering {
			switch keyMsg.String() {
			case "esc":
				m.filtering = false
				m.filterInput.Reset()
				m.filterInput.Blur()
				m.applyFilter()
				return m, nil
			case "enter":
				m.filtering = false
				m.filterInput.Blur()
				return m, nil
			default:
				var cmd tea.Cmd
				m.filterInput, cmd = m.filterInput.Update(msg)
				m.applyFilter()
				return m, cmd
			}
		}

		switch keyMsg.String() {
		case "/":
			m.filtering = true
			return m, m.filterInput.Focus()
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
			}
		case "home", "g":
			m.cursor = 0
		case "end", "G":
			m.cursor = len(m.filtered) - 1
		}
	}
	return m, nil
}

func (m pickerModel) view() string {
	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("Chapters") + "\n\n")

	if !m.loaded {
		b.WriteString(dimStyle.Render("  Loading chapters…") + "\n")
		return b.String()
	}
	if len(m.filtered) == 0 {
		b.WriteString(dimStyle.Render("  Nothing found.") + "\n")
	}

	for i, chapter := range m.filtered {
		line := fmt.Sprintf("%2d. %s", chapter.Index, chapter.Title)
		if chapter.DiscussionStarted {
			line += dimStyle.Render("  (discussion in progress)")
		}
		if i == m.cursor {
			b.WriteString("  " + selectedStyle.Render("› "+line) + "\n")
		} else {
			b.WriteString("    " + line + "\n")
		}
	}

	b.WriteString("\n")
	if m.filtering {
		b.WriteString("  " + m.filterInput.View() + "\n")
	} else {
		b.WriteString("  " + subtleStyle.Render("enter: read  d: discuss  /: filter  q: quit") + "\n")
	}
	return b.String()
}
