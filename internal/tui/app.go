package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/raleighpd/scenelog/internal/browser"
	"github.com/raleighpd/scenelog/internal/lifecycle"
	"github.com/raleighpd/scenelog/pkg/domain"
)

type view int

const (
	viewLogin view = iota
	viewCreate
	viewScene
)

// loginDoneMsg carries the result of SubmitLogin.
type loginDoneMsg struct {
	err error
}

// sceneCreatedMsg carries the result of SubmitCreateScene.
type sceneCreatedMsg struct {
	scene domain.Scene
	err   error
}

// exportDoneMsg carries the result of RequestExport.
type exportDoneMsg struct {
	link domain.ExportLink
	err  error
}

type copyResultMsg struct {
	err error
}

type openResultMsg struct {
	err error
}

// App is the root Bubbletea model. The lifecycle machine decides which view
// is shown; the app only collects input and reports results.
type App struct {
	ctx     context.Context
	machine *lifecycle.Machine

	login     loginModel
	create    createModel
	scene     sceneModel
	composing bool // SceneReady, but the user asked for a new scene

	status string
	err    error

	width  int
	height int
	frame  int // logo shimmer animation frame

	copyText func(string) error
	openURL  func(string) error
}

// Option configures an App.
type Option func(*App)

// WithDefaultEmail prefills the login form.
func WithDefaultEmail(email string) Option {
	return func(a *App) { a.login = newLoginModel(email) }
}

// NewApp creates the TUI over m. ctx bounds every request the app starts.
func NewApp(ctx context.Context, m *lifecycle.Machine, opts ...Option) App {
	a := App{
		ctx:      ctx,
		machine:  m,
		login:    newLoginModel(""),
		create:   newCreateModel(),
		copyText: clipboard.WriteAll,
		openURL:  browser.Open,
	}
	for _, opt := range opts {
		opt(&a)
	}
	if sc, ok := m.Scene(); ok {
		a.scene = newSceneModel(sc)
	}
	return a
}

func (a App) Init() tea.Cmd {
	return tea.Batch(a.login.Init(), shimmerTickCmd())
}

func (a App) currentView() view {
	switch lifecycle.Effective(a.machine.State()).(type) {
	case lifecycle.Unauthenticated, lifecycle.Authenticating:
		return viewLogin
	case lifecycle.SceneReady:
		if a.composing {
			return viewCreate
		}
		return viewScene
	}
	return viewCreate
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.scene.width = msg.Width
		return a, nil

	case shimmerTickMsg:
		a.frame++
		return a, shimmerTickCmd()

	case loginSubmitMsg:
		a.clearStatus()
		a.status = "signing in..."
		m, ctx := a.machine, a.ctx
		return a, func() tea.Msg {
			return loginDoneMsg{err: m.SubmitLogin(ctx, msg.email, msg.password)}
		}

	case loginDoneMsg:
		a.clearStatus()
		if msg.err != nil {
			a.err = msg.err
			if lifecycle.Reason(msg.err) != lifecycle.ReasonBusy {
				a.login = a.login.reset()
			}
			return a, nil
		}
		if s, ok := a.machine.Session(); ok {
			a.status = "signed in as " + s.Email
		}
		a.composing = false
		a.create = a.create.reset()
		return a, nil

	case createSubmitMsg:
		a.clearStatus()
		a.status = "creating scene..."
		m, ctx := a.machine, a.ctx
		return a, func() tea.Msg {
			sc, err := m.SubmitCreateScene(ctx, msg.title, msg.caseNumber, msg.perimeter)
			return sceneCreatedMsg{scene: sc, err: err}
		}

	case sceneCreatedMsg:
		a.clearStatus()
		if msg.err != nil {
			a.err = msg.err
			return a, nil
		}
		a.composing = false
		a.scene = newSceneModel(msg.scene)
		a.scene.width = a.width
		a.create = a.create.reset()
		a.status = "scene " + msg.scene.ID + " created"
		return a, nil

	case exportDoneMsg:
		a.clearStatus()
		if msg.err != nil {
			a.err = msg.err
			return a, nil
		}
		a.scene = a.scene.withLink(msg.link)
		a.status = strings.ToUpper(string(msg.link.Kind)) + " link ready"
		return a, nil

	case copyResultMsg:
		a.clearStatus()
		if msg.err != nil {
			a.err = fmt.Errorf("copy failed: %w", msg.err)
		} else {
			a.status = "link copied"
		}
		return a, nil

	case openResultMsg:
		a.clearStatus()
		if msg.err != nil {
			a.err = fmt.Errorf("open failed: %w", msg.err)
		}
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "ctrl+l":
			// Also valid mid-request: the late response is dropped.
			a.machine.Logout()
			a.clearStatus()
			a.status = "logged out"
			a.composing = false
			a.scene = sceneModel{}
			a.login = a.login.reset()
			return a, nil
		}
		return a.updateKeys(msg)
	}

	// Everything else (cursor blink and friends) goes to the focused form.
	var cmd tea.Cmd
	switch a.currentView() {
	case viewLogin:
		a.login, cmd = a.login.Update(msg)
	case viewCreate:
		a.create, cmd = a.create.Update(msg)
	}
	return a, cmd
}

func (a App) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.currentView() {
	case viewLogin:
		a.login, cmd = a.login.Update(msg)
	case viewCreate:
		if msg.String() == "esc" && a.composing {
			a.composing = false
			return a, nil
		}
		a.create, cmd = a.create.Update(msg)
	case viewScene:
		return a.updateScene(msg)
	}
	return a, cmd
}

func (a App) updateScene(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "c":
		return a, a.export(domain.ExportCSV)
	case "p":
		return a, a.export(domain.ExportPDF)
	case "n":
		a.clearStatus()
		a.composing = true
		return a, a.create.Init()
	case "y":
		link, ok := a.scene.lastLink()
		if !ok {
			a.clearStatus()
			a.status = "no link to copy yet"
			return a, nil
		}
		copyText := a.copyText
		return a, func() tea.Msg {
			return copyResultMsg{err: copyText(link.URL)}
		}
	case "o":
		link, ok := a.scene.lastLink()
		if !ok {
			a.clearStatus()
			a.status = "no link to open yet"
			return a, nil
		}
		openURL := a.openURL
		return a, func() tea.Msg {
			return openResultMsg{err: openURL(link.URL)}
		}
	}
	return a, nil
}

func (a App) export(kind domain.ExportKind) tea.Cmd {
	m, ctx := a.machine, a.ctx
	return func() tea.Msg {
		link, err := m.RequestExport(ctx, kind)
		return exportDoneMsg{link: link, err: err}
	}
}

func (a *App) clearStatus() {
	a.status = ""
	a.err = nil
}

func (a App) View() string {
	// Header: centered shimmer logo, state badge below
	logo := renderShimmerLogo(a.frame)
	header := center(logo, a.width)

	st := a.machine.State()
	badge := stateStyle(st.Name()).Render(st.Name())
	if s, ok := a.machine.Session(); ok {
		badge += metaStyle.Render(" . " + s.Email)
	}
	header += "\n" + center(badge, a.width)

	var body, help string
	switch a.currentView() {
	case viewLogin:
		body = a.login.View()
		help = " " + helpEntry("tab", "next") + "  " + helpEntry("enter", "sign in") + "  " + helpEntry("ctrl+c", "quit")
	case viewCreate:
		body = a.create.View()
		help = " " + helpEntry("tab", "next") + "  " + helpEntry("ctrl+s", "create") + "  " + helpEntry("ctrl+l", "logout")
		if a.composing {
			help += "  " + helpEntry("esc", "back")
		}
		help += "  " + helpEntry("ctrl+c", "quit")
	case viewScene:
		body = a.scene.View()
		help = " " + helpEntry("c", "csv") + "  " + helpEntry("p", "pdf") + "  " + helpEntry("y", "copy") + "  " + helpEntry("o", "open") + "  " + helpEntry("n", "new scene") + "  " + helpEntry("ctrl+l", "logout") + "  " + helpEntry("q", "quit")
	}

	var statusLine string
	switch {
	case a.err != nil:
		statusLine = " " + errorStyle.Render(describeError(a.err))
	case a.status != "":
		statusLine = " " + dimStyle.Render(a.status)
	}

	// Chrome budget: header(2) + blank(1) + status(1) + help(1) = 5 lines + body
	chrome := 5
	body = strings.TrimRight(truncateToHeight(body, a.height-chrome), "\n")

	return fmt.Sprintf("%s\n\n%s\n%s\n%s", header, body, statusLine, help)
}

func center(s string, width int) string {
	pad := (width - lipgloss.Width(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s
}
