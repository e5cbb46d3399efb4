package domain

import "time"

// Session is an authenticated principal plus the bearer credential issued for it.
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Valid reports whether the session carries an identity and a bearer token.
func (s Session) Valid() bool {
	return s.UserID != "" && s.AccessToken != ""
}

// FreshAt reports whether the access token is still usable at t, treating
// anything expiring within leeway as stale. An unknown expiry counts as fresh.
func (s Session) FreshAt(t time.Time, leeway time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return true
	}
	return t.Add(leeway).Before(s.ExpiresAt)
}
