package tui

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/raleighpd/scenelog/internal/lifecycle"
	"github.com/raleighpd/scenelog/pkg/client"
)

// truncateToHeight limits output to maxLines newline-delimited lines.
// Returns the original string if it fits or maxLines is <= 0.
func truncateToHeight(s string, maxLines int) string {
	if maxLines <= 0 {
		return s
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
			if n >= maxLines {
				return s[:i+1]
			}
		}
	}
	return s
}

// truncStr truncates a string to maxLen runes, appending an ellipsis if needed.
func truncStr(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-1]) + "…"
}

var reasonText = map[string]string{
	lifecycle.ReasonInvalidPerimeter:     "perimeter is not a closed ring",
	lifecycle.ReasonInvalidTitle:         "title is required",
	lifecycle.ReasonMissingCredentials:   "email and password are required",
	lifecycle.ReasonInvalidExportKind:    "unknown export format",
	lifecycle.ReasonNoSession:            "please log in first",
	lifecycle.ReasonNoScene:              "create a scene first",
	lifecycle.ReasonBusy:                 "still working on the previous request",
	lifecycle.ReasonAlreadyAuthenticated: "already logged in",
	lifecycle.ReasonSuperseded:           "request finished after logout and was dropped",
}

// describeError turns a transition error into a one-line message.
func describeError(err error) string {
	if err == nil {
		return ""
	}
	prefix := "error"
	var opErr *lifecycle.OpError
	if errors.As(err, &opErr) {
		prefix = strings.ReplaceAll(opErr.Op, "_", " ") + " failed"
	}

	var ve *lifecycle.ValidationError
	if errors.As(err, &ve) {
		text := reasonText[ve.Reason]
		switch {
		case ve.Detail == "" || ve.Detail == text:
			return prefix + ": " + text
		case text == "":
			return prefix + ": " + ve.Detail
		}
		return prefix + ": " + text + " (" + ve.Detail + ")"
	}
	if text, ok := reasonText[lifecycle.Reason(err)]; ok {
		return prefix + ": " + text
	}
	var authErr *client.AuthError
	if errors.As(err, &authErr) {
		return prefix + ": " + authErr.Error()
	}
	var repoErr *client.RepositoryError
	if errors.As(err, &repoErr) {
		return prefix + ": " + repoErr.Error()
	}
	if opErr != nil {
		return prefix + ": " + opErr.Err.Error()
	}
	return prefix + ": " + err.Error()
}
