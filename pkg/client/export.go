package client

import (
	"net/url"
	"strings"

	"github.com/raleighpd/scenelog/pkg/domain"
)

// ExportLinks formats export function URLs. It does no I/O.
type ExportLinks struct {
	baseURL string
}

// NewExportLinks returns a builder rooted at the backend base URL.
func NewExportLinks(baseURL string) ExportLinks {
	return ExportLinks{baseURL: strings.TrimRight(baseURL, "/")}
}

// ExportLinks returns a link builder sharing the client's base URL.
func (c *Client) ExportLinks() ExportLinks {
	return NewExportLinks(c.baseURL)
}

// BuildExportURL returns
// {base}/functions/v1/export-scene-{kind}?sceneId={id}&token={token}
// with both values query-escaped. The link is only as good as the token;
// whether it is still accepted when opened is up to the export service.
func (b ExportLinks) BuildExportURL(sceneID string, kind domain.ExportKind, token string) string {
	return b.baseURL + "/functions/v1/export-scene-" + string(kind) +
		"?sceneId=" + url.QueryEscape(sceneID) +
		"&token=" + url.QueryEscape(token)
}

// Link wraps BuildExportURL into an ExportLink.
func (b ExportLinks) Link(sceneID string, kind domain.ExportKind, token string) domain.ExportLink {
	return domain.ExportLink{
		SceneID: sceneID,
		Kind:    kind,
		URL:     b.BuildExportURL(sceneID, kind, token),
	}
}
