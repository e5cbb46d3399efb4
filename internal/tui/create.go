package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/raleighpd/scenelog/pkg/domain"
)

type createField int

const (
	fieldTitle createField = iota
	fieldCase
	fieldPerimeter
	numCreateFields
)

// createSubmitMsg asks the app to run SubmitCreateScene.
type createSubmitMsg struct {
	title      string
	caseNumber string
	perimeter  domain.Perimeter
}

type createModel struct {
	inputs [numCreateFields]textinput.Model
	focus  createField
	// parseErr is a perimeter the form could not even parse; it never
	// reaches the machine.
	parseErr string
}

func newCreateModel() createModel {
	title := textinput.New()
	title.Placeholder = "Vehicle collision, Capital Blvd"
	title.CharLimit = 200
	title.Width = 60

	caseNo := textinput.New()
	caseNo.Placeholder = "optional"
	caseNo.CharLimit = 64
	caseNo.Width = 30

	perim := textinput.New()
	perim.Placeholder = "lon,lat lon,lat ... (first = last)"
	perim.CharLimit = 4096
	perim.Width = 70
	perim.SetValue(domain.DefaultPerimeter().String())

	m := createModel{inputs: [numCreateFields]textinput.Model{title, caseNo, perim}}
	m.inputs[fieldTitle].Focus()
	return m
}

func (m createModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m createModel) Update(msg tea.Msg) (createModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		m.parseErr = ""
		switch key.String() {
		case "tab", "down":
			return m.setFocus((m.focus + 1) % numCreateFields), nil
		case "shift+tab", "up":
			return m.setFocus((m.focus - 1 + numCreateFields) % numCreateFields), nil
		case "ctrl+s":
			return m.submit()
		case "enter":
			if m.focus < fieldPerimeter {
				return m.setFocus(m.focus + 1), nil
			}
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m createModel) setFocus(f createField) createModel {
	m.inputs[m.focus].Blur()
	m.focus = f
	m.inputs[m.focus].Focus()
	return m
}

func (m createModel) submit() (createModel, tea.Cmd) {
	perimeter, err := domain.ParsePerimeter(m.inputs[fieldPerimeter].Value())
	if err != nil {
		m.parseErr = err.Error()
		return m.setFocus(fieldPerimeter), nil
	}
	sub := createSubmitMsg{
		title:      m.inputs[fieldTitle].Value(),
		caseNumber: strings.TrimSpace(m.inputs[fieldCase].Value()),
		perimeter:  perimeter,
	}
	return m, func() tea.Msg { return sub }
}

// reset empties title and case number for the next scene. The perimeter
// stays, officers usually log several scenes at one location.
func (m createModel) reset() createModel {
	m.inputs[fieldTitle].Reset()
	m.inputs[fieldCase].Reset()
	m.parseErr = ""
	return m.setFocus(fieldTitle)
}

func (m createModel) View() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("new scene") + "\n\n")
	labels := [numCreateFields]string{"title", "case number", "perimeter"}
	for i := createField(0); i < numCreateFields; i++ {
		cursor := " "
		style := metaStyle
		if i == m.focus {
			cursor = accentStyle.Render(">")
			style = selectedStyle
		}
		b.WriteString(cursor + " " + style.Render(labels[i]) + "\n")
		b.WriteString("  " + m.inputs[i].View() + "\n\n")
	}
	if m.parseErr != "" {
		b.WriteString(errorStyle.Render(m.parseErr) + "\n")
	}
	return b.String()
}
