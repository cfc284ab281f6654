// Package auth manages the Twitch application access token used for conduit
// and EventSub management. Tokens are obtained with the OAuth2 client
// credentials grant and refreshed on demand when they expire.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kappopher "github.com/Its-donkey/kappopher/helix"
	"golang.org/x/sync/singleflight"

	"github.com/Guliveer/twitch-eventsub-relay/internal/constants"
	"github.com/Guliveer/twitch-eventsub-relay/internal/logger"
	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
)

// TokenRefreshError is returned when the token endpoint rejects a refresh.
// The previously stored token is left in place.
type TokenRefreshError struct {
	StatusCode int
	Err        error
}

func (e *TokenRefreshError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("app token refresh failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("app token refresh failed: %v", e.Err)
}

func (e *TokenRefreshError) Unwrap() error { return e.Err }

// Grant is a freshly issued access token and its lifetime.
type Grant struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// Issuer performs one client credentials grant.
type Issuer func(ctx context.Context) (Grant, error)

// ClientCredentials issues app tokens through ac. Helix clients built on
// the same AuthClient send whichever token was issued last.
func ClientCredentials(ac *kappopher.AuthClient) Issuer {
	return func(ctx context.Context) (Grant, error) {
		tok, err := ac.GetAppAccessToken(ctx)
		if err != nil {
			return Grant{}, err
		}
		return Grant{
			AccessToken: tok.AccessToken,
			ExpiresIn:   time.Duration(tok.ExpiresIn) * time.Second,
		}, nil
	}
}

// Option configures an AppCredential.
type Option func(*AppCredential)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(a *AppCredential) { a.now = now }
}

// WithExpirySkew sets how long before its declared expiry a token is treated as stale.
func WithExpirySkew(d time.Duration) Option {
	return func(a *AppCredential) { a.skew = d }
}

// AppCredential holds the application access token and refreshes it when
// a caller observes it expired. Concurrent refreshes collapse into one
// request. It is safe for concurrent use.
type AppCredential struct {
	mu    sync.RWMutex
	token model.Token

	issue Issuer
	group singleflight.Group
	now   func() time.Time
	skew  time.Duration
	log   *logger.Logger
}

// NewAppCredential creates an AppCredential backed by issue.
// No request is made until Current is first called.
func NewAppCredential(issue Issuer, log *logger.Logger, opts ...Option) *AppCredential {
	a := &AppCredential{
		issue: issue,
		now:   time.Now,
		skew:  constants.TokenExpirySkew,
		log:   log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Current returns the stored token, refreshing it first if it is expired.
// A refresh failure is returned as-is; callers must not fall back to the
// stale token.
func (a *AppCredential) Current(ctx context.Context) (model.Token, error) {
	a.mu.RLock()
	token := a.token
	a.mu.RUnlock()

	if !token.Expired(a.now().Add(a.skew)) {
		return token, nil
	}

	v, err, _ := a.group.Do("app-token", func() (any, error) {
		// Another caller may have finished a refresh while we were waiting.
		a.mu.RLock()
		latest := a.token
		a.mu.RUnlock()
		if !latest.Expired(a.now().Add(a.skew)) {
			return latest, nil
		}
		return a.refresh(ctx)
	})
	if err != nil {
		return model.Token{}, err
	}
	return v.(model.Token), nil
}

// Invalidate marks the stored token expired so the next Current refreshes it.
func (a *AppCredential) Invalidate() {
	a.mu.Lock()
	a.token.ExpiresAt = time.Time{}
	a.mu.Unlock()
}

func (a *AppCredential) refresh(ctx context.Context) (model.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultHTTPTimeout)
	defer cancel()

	grant, err := a.issue(ctx)
	if err != nil {
		refreshErr := &TokenRefreshError{Err: err}
		var apiErr *kappopher.APIError
		if errors.As(err, &apiErr) {
			refreshErr.StatusCode = apiErr.StatusCode
		}
		return model.Token{}, refreshErr
	}
	if grant.AccessToken == "" {
		return model.Token{}, &TokenRefreshError{Err: errors.New("token response has no access_token")}
	}

	token := model.Token{
		Value:     grant.AccessToken,
		ExpiresAt: a.now().Add(grant.ExpiresIn),
	}

	a.mu.Lock()
	a.token = token
	a.mu.Unlock()

	a.log.Debug("Refreshed app access token", "expires_at", token.ExpiresAt.Format(time.RFC3339))
	return token, nil
}
