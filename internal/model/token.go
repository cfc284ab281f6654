package model

import "time"

// Token is an application access token issued by the Twitch OAuth2 server.
type Token struct {
	Value     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token can no longer be handed out at now.
// The zero Token is always expired.
func (t Token) Expired(now time.Time) bool {
	return t.Value == "" || !now.Before(t.ExpiresAt)
}
