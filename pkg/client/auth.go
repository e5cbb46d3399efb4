package client

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/raleighpd/scenelog/pkg/domain"
)

// tokenResponse is the auth gateway's session payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// SignIn exchanges an email and password for a session. Any rejection is an
// *AuthError carrying the gateway's message verbatim.
func (c *Client) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	body := map[string]string{"email": email, "password": password}
	s, err := c.tokenGrant(ctx, "password", body)
	if err != nil {
		return domain.Session{}, fmt.Errorf("client.SignIn: %w", err)
	}
	c.log.Info().Str("user_id", s.UserID).Msg("signed in")
	return s, nil
}

// CurrentSession re-validates a session before its token is handed out.
// A fresh session is returned unchanged. A stale one is refreshed when it
// carries a refresh token; otherwise (nil, nil) signals there is no usable
// session left. A refresh rejection is an *AuthError.
func (c *Client) CurrentSession(ctx context.Context, current domain.Session) (*domain.Session, error) {
	if !current.Valid() {
		return nil, nil
	}
	if current.ExpiresAt.IsZero() {
		current.ExpiresAt = tokenExpiry(current.AccessToken)
	}
	if current.FreshAt(c.now(), c.refreshLeeway) {
		return &current, nil
	}
	if current.RefreshToken == "" {
		c.log.Info().Str("user_id", current.UserID).Msg("session expired without refresh token")
		return nil, nil
	}

	refreshed, err := c.tokenGrant(ctx, "refresh_token", map[string]string{"refresh_token": current.RefreshToken})
	if err != nil {
		return nil, fmt.Errorf("client.CurrentSession: %w", err)
	}
	if refreshed.UserID != current.UserID {
		return nil, fmt.Errorf("client.CurrentSession: %w", &AuthError{Message: "refreshed session belongs to a different user"})
	}
	if refreshed.Email == "" {
		refreshed.Email = current.Email
	}
	c.log.Info().Str("user_id", refreshed.UserID).Time("expires_at", refreshed.ExpiresAt).Msg("session refreshed")
	return &refreshed, nil
}

func (c *Client) tokenGrant(ctx context.Context, grant string, body any) (domain.Session, error) {
	var resp tokenResponse
	if err := c.post(ctx, "/auth/v1/token?grant_type="+grant, body, &resp, requestOpts{}); err != nil {
		return domain.Session{}, authErrorFrom(err)
	}
	if resp.AccessToken == "" || resp.User.ID == "" {
		return domain.Session{}, &AuthError{Message: "auth gateway returned an incomplete session"}
	}
	return c.sessionFrom(resp), nil
}

func (c *Client) sessionFrom(resp tokenResponse) domain.Session {
	s := domain.Session{
		UserID:       resp.User.ID,
		Email:        resp.User.Email,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	switch {
	case resp.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
	case resp.ExpiresIn > 0:
		s.ExpiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	default:
		s.ExpiresAt = tokenExpiry(resp.AccessToken)
	}
	return s
}

// tokenExpiry reads the exp claim without verifying the signature; the
// gateway is the only party that verifies. Opaque tokens yield the zero time.
func tokenExpiry(raw string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
