package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	kappopher "github.com/Its-donkey/kappopher/helix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/twitch-eventsub-relay/internal/logger"
	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
)

// countingIssuer returns an Issuer that counts its invocations and
// delegates to grant.
func countingIssuer(calls *atomic.Int32, grant func(n int32) (Grant, error)) Issuer {
	return func(ctx context.Context) (Grant, error) {
		n := calls.Add(1)
		if _, ok := ctx.Deadline(); !ok {
			return Grant{}, errors.New("issuer called without a deadline")
		}
		return grant(n)
	}
}

func hourGrant(value string) func(int32) (Grant, error) {
	return func(int32) (Grant, error) {
		return Grant{AccessToken: value, ExpiresIn: time.Hour}, nil
	}
}

func TestCurrent_RefreshesWhenEmpty(t *testing.T) {
	var calls atomic.Int32
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cred := NewAppCredential(countingIssuer(&calls, hourGrant("app-token")), logger.Nop(),
		WithClock(func() time.Time { return now }))

	token, err := cred.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "app-token", token.Value)
	assert.Equal(t, now.Add(time.Hour), token.ExpiresAt)

	again, err := cred.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token, again)
	assert.Equal(t, int32(1), calls.Load(), "valid token must not be refreshed")
}

func TestCurrent_RefreshesExpiredTokenOnce(t *testing.T) {
	var calls atomic.Int32
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cred := NewAppCredential(countingIssuer(&calls, hourGrant("fresh")), logger.Nop(),
		WithClock(func() time.Time { return now }))
	cred.token = model.Token{Value: "stale", ExpiresAt: now.Add(-time.Minute)}

	token, err := cred.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token.Value)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCurrent_ConcurrentCallersShareOneRefresh(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	cred := NewAppCredential(countingIssuer(&calls, func(int32) (Grant, error) {
		<-release
		return Grant{AccessToken: "shared", ExpiresIn: time.Hour}, nil
	}), logger.Nop())

	const callers = 8
	var wg sync.WaitGroup
	results := make([]model.Token, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cred.Current(context.Background())
		}(i)
	}

	// Let every caller queue up behind the in-flight refresh.
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i].Value)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestCurrent_FailureKeepsPreviousToken(t *testing.T) {
	var calls atomic.Int32
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cred := NewAppCredential(countingIssuer(&calls, func(int32) (Grant, error) {
		return Grant{}, &kappopher.APIError{StatusCode: http.StatusForbidden}
	}), logger.Nop(), WithClock(func() time.Time { return now }))
	stale := model.Token{Value: "stale", ExpiresAt: now.Add(-time.Minute)}
	cred.token = stale

	token, err := cred.Current(context.Background())
	require.Error(t, err)
	assert.Empty(t, token.Value, "a stale token must never be handed out")

	var refreshErr *TokenRefreshError
	require.ErrorAs(t, err, &refreshErr)
	assert.Equal(t, http.StatusForbidden, refreshErr.StatusCode)
	assert.Contains(t, refreshErr.Error(), "status 403")

	assert.Equal(t, stale, cred.token)
}

func TestCurrent_TransportFailureHasNoStatus(t *testing.T) {
	var calls atomic.Int32
	cred := NewAppCredential(countingIssuer(&calls, func(int32) (Grant, error) {
		return Grant{}, assert.AnError
	}), logger.Nop())

	_, err := cred.Current(context.Background())

	var refreshErr *TokenRefreshError
	require.ErrorAs(t, err, &refreshErr)
	assert.Zero(t, refreshErr.StatusCode)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestCurrent_EmptyAccessTokenFails(t *testing.T) {
	var calls atomic.Int32
	cred := NewAppCredential(countingIssuer(&calls, hourGrant("")), logger.Nop())

	_, err := cred.Current(context.Background())

	var refreshErr *TokenRefreshError
	require.ErrorAs(t, err, &refreshErr)
	assert.Contains(t, err.Error(), "no access_token")
}

func TestCurrent_RefreshesWithinSkew(t *testing.T) {
	var calls atomic.Int32
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cred := NewAppCredential(countingIssuer(&calls, hourGrant("renewed")), logger.Nop(),
		WithClock(func() time.Time { return now }),
		WithExpirySkew(time.Minute),
	)
	cred.token = model.Token{Value: "almost", ExpiresAt: now.Add(30 * time.Second)}

	token, err := cred.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "renewed", token.Value)
}

func TestInvalidate_ForcesRefresh(t *testing.T) {
	var calls atomic.Int32
	cred := NewAppCredential(countingIssuer(&calls, func(n int32) (Grant, error) {
		if n == 1 {
			return Grant{AccessToken: "first", ExpiresIn: time.Hour}, nil
		}
		return Grant{AccessToken: "second", ExpiresIn: time.Hour}, nil
	}), logger.Nop())

	first, err := cred.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", first.Value)

	cred.Invalidate()

	second, err := cred.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", second.Value)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTokenRefreshError_Message(t *testing.T) {
	err := &TokenRefreshError{Err: assert.AnError}
	assert.Contains(t, err.Error(), "app token refresh failed:")
	assert.ErrorIs(t, err, assert.AnError)
}
