package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type loginField int

const (
	loginEmail loginField = iota
	loginPassword
	numLoginFields
)

// loginSubmitMsg asks the app to run SubmitLogin with the form's values.
type loginSubmitMsg struct {
	email    string
	password string
}

type loginModel struct {
	inputs [numLoginFields]textinput.Model
	focus  loginField
}

func newLoginModel(defaultEmail string) loginModel {
	email := textinput.New()
	email.Placeholder = "officer@raleighnc.gov"
	email.CharLimit = 254
	email.Width = 40
	email.SetValue(defaultEmail)

	pw := textinput.New()
	pw.Placeholder = "password"
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'
	pw.CharLimit = 128
	pw.Width = 40

	m := loginModel{inputs: [numLoginFields]textinput.Model{email, pw}}
	if defaultEmail != "" {
		m.focus = loginPassword
	}
	m.inputs[m.focus].Focus()
	return m
}

func (m loginModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m loginModel) Update(msg tea.Msg) (loginModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			return m.setFocus((m.focus + 1) % numLoginFields), nil
		case "shift+tab", "up":
			return m.setFocus((m.focus - 1 + numLoginFields) % numLoginFields), nil
		case "enter":
			if m.focus == loginEmail {
				return m.setFocus(loginPassword), nil
			}
			return m, m.submit()
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m loginModel) setFocus(f loginField) loginModel {
	m.inputs[m.focus].Blur()
	m.focus = f
	m.inputs[m.focus].Focus()
	return m
}

func (m loginModel) submit() tea.Cmd {
	sub := loginSubmitMsg{
		email:    strings.TrimSpace(m.inputs[loginEmail].Value()),
		password: m.inputs[loginPassword].Value(),
	}
	return func() tea.Msg { return sub }
}

// reset clears the password, keeping the email for the next attempt.
func (m loginModel) reset() loginModel {
	m.inputs[loginPassword].Reset()
	return m.setFocus(loginPassword)
}

func (m loginModel) View() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("sign in") + "\n\n")
	labels := [numLoginFields]string{"email", "password"}
	for i := loginField(0); i < numLoginFields; i++ {
		cursor := " "
		style := metaStyle
		if i == m.focus {
			cursor = accentStyle.Render(">")
			style = selectedStyle
		}
		b.WriteString(cursor + " " + style.Render(labels[i]) + "\n")
		b.WriteString("  " + m.inputs[i].View() + "\n\n")
	}
	return b.String()
}
