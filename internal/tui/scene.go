package tui

import (
	"fmt"
	"strings"

	"github.com/raleighpd/scenelog/pkg/domain"
)

type sceneModel struct {
	scene domain.Scene
	links map[domain.ExportKind]domain.ExportLink
	last  domain.ExportKind
	width int
}

func newSceneModel(sc domain.Scene) sceneModel {
	return sceneModel{
		scene: sc,
		links: make(map[domain.ExportKind]domain.ExportLink, len(domain.ExportKinds)),
	}
}

func (m sceneModel) withLink(link domain.ExportLink) sceneModel {
	links := make(map[domain.ExportKind]domain.ExportLink, len(m.links)+1)
	for k, v := range m.links {
		links[k] = v
	}
	links[link.Kind] = link
	m.links = links
	m.last = link.Kind
	return m
}

// lastLink is the link the copy and open keys act on.
func (m sceneModel) lastLink() (domain.ExportLink, bool) {
	if m.last == "" {
		return domain.ExportLink{}, false
	}
	l, ok := m.links[m.last]
	return l, ok
}

func (m sceneModel) View() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("scene") + "\n\n")

	row := func(label, value string) {
		fmt.Fprintf(&b, "  %s %s\n", metaStyle.Render(fmt.Sprintf("%-10s", label)), normalStyle.Render(value))
	}
	row("id", m.scene.ID)
	row("title", m.scene.Title)
	caseNo := m.scene.CaseNumber
	if caseNo == "" {
		caseNo = dimStyle.Render("none")
	}
	row("case", caseNo)
	row("perimeter", fmt.Sprintf("%d points", len(m.scene.Perimeter)))

	b.WriteString("\n" + sectionHeaderStyle.Render("exports") + "\n\n")
	if len(m.links) == 0 {
		b.WriteString(dimStyle.Render("  no export links yet, press c for CSV or p for PDF") + "\n")
		return b.String()
	}
	maxURL := m.width - 10
	for _, kind := range domain.ExportKinds {
		link, ok := m.links[kind]
		if !ok {
			continue
		}
		marker := " "
		if kind == m.last {
			marker = accentStyle.Render("*")
		}
		fmt.Fprintf(&b, " %s %s  %s\n", marker, selectedStyle.Render(strings.ToUpper(string(kind))), linkStyle.Render(truncStr(link.URL, maxURL)))
	}
	b.WriteString("\n" + dimStyle.Render("  open this on your phone after logging in") + "\n")
	return b.String()
}
