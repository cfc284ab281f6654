package auth

import (
	"context"

	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
)

// TokenSource hands out a non-expired application access token.
// *AppCredential satisfies this interface.
type TokenSource interface {
	Current(ctx context.Context) (model.Token, error)
}
