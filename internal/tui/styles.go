package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Shimmer animation for the header wordmark.
type shimmerTickMsg time.Time

func shimmerTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return shimmerTickMsg(t)
	})
}

// renderShimmerLogo renders "SCENE LOG" as a slow wave of light.
// Navy (#1e3a5f) -> signal blue (#60a5fa).
func renderShimmerLogo(frame int) string {
	const text = "SCENELOG"
	n := len(text)

	var b strings.Builder
	t := float64(frame)

	for i := 0; i < n; i++ {
		x := float64(i) / float64(n-1)
		phase := t*0.1 - x*3.0
		br := math.Sin(phase)*0.5 + 0.5
		br = br*0.8 + 0.2

		r := clampByte(30 + br*(96-30))
		g := clampByte(58 + br*(165-58))
		bl := clampByte(95 + br*(250-95))

		s := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", r, g, bl)))
		b.WriteString(s.Render(string(text[i])))

		// Word gap after SCENE, letter spacing elsewhere
		switch {
		case i == 4:
			b.WriteString("    ")
		case i < n-1:
			b.WriteString("  ")
		}
	}
	return b.String()
}

func clampByte(v float64) int {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	helpLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#60a5fa"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#4ade80"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e06060"))

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#60a5fa")).
			Underline(true)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#606878"))
)

// stateStyle colors the lifecycle state badge in the header.
func stateStyle(name string) lipgloss.Style {
	switch name {
	case "scene_ready", "authenticated":
		return okStyle
	case "error":
		return errorStyle
	case "authenticating", "creating_scene":
		return accentStyle
	}
	return dimStyle
}

func helpEntry(key, label string) string {
	return helpKeyStyle.Render(key) + " " + helpLabelStyle.Render(label)
}
