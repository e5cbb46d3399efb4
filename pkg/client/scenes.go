package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/raleighpd/scenelog/pkg/domain"
)

// CreateScene inserts one scene row and returns its server-assigned id.
// The insert is authorized by the caller's token. There is no upsert and no
// retry, so submitting the same payload twice creates two rows.
func (c *Client) CreateScene(ctx context.Context, scene domain.NewScene, authToken string) (string, error) {
	if authToken == "" {
		return "", fmt.Errorf("client.CreateScene: %w", &AuthError{Message: "missing bearer token"})
	}
	hdr := http.Header{}
	hdr.Set("Prefer", "return=representation")
	hdr.Set("Accept", "application/vnd.pgrst.object+json")

	var created struct {
		ID json.RawMessage `json:"id"`
	}
	if err := c.post(ctx, "/rest/v1/scenes?select=id", scene, &created, requestOpts{token: authToken, header: hdr}); err != nil {
		return "", fmt.Errorf("client.CreateScene: %w", repositoryErrorFrom(err))
	}
	id := rawString(created.ID)
	if id == "" {
		return "", fmt.Errorf("client.CreateScene: %w", &RepositoryError{Message: "insert returned no id"})
	}
	c.log.Info().Str("scene_id", id).Str("created_by", scene.CreatedBy).Msg("scene created")
	return id, nil
}
