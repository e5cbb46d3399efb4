package domain

import (
	"fmt"
	"strings"
)

// ExportKind selects the file format produced by the export functions.
type ExportKind string

const (
	ExportCSV ExportKind = "csv"
	ExportPDF ExportKind = "pdf"
)

// ExportKinds lists the supported kinds in display order.
var ExportKinds = []ExportKind{ExportCSV, ExportPDF}

// Valid returns true if k is a known export kind.
func (k ExportKind) Valid() bool {
	return k == ExportCSV || k == ExportPDF
}

// ParseExportKind accepts "csv" or "pdf" in any case.
func ParseExportKind(s string) (ExportKind, error) {
	k := ExportKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown export kind %q (want csv or pdf)", s)
	}
	return k, nil
}

// ExportLink is a single-use export URL derived for a scene. It is rebuilt on
// every export request and never stored.
type ExportLink struct {
	SceneID string     `json:"scene_id"`
	Kind    ExportKind `json:"kind"`
	URL     string     `json:"url"`
}
