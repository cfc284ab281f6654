package eventsub

import (
	"errors"
	"fmt"
)

// ErrMalformedMessage is returned when a frame does not match any known
// envelope shape, or a known notification cannot be decoded.
var ErrMalformedMessage = errors.New("malformed eventsub message")

// RevocationError is returned by Session.Run when Twitch revokes a
// subscription. The session never reconnects after a revocation.
type RevocationError struct {
	SubscriptionID   string
	SubscriptionType string
	Status           string
	BroadcasterID    string
}

func (e *RevocationError) Error() string {
	return fmt.Sprintf("subscription %s (%s, broadcaster %s) revoked: %s",
		e.SubscriptionID, e.SubscriptionType, e.BroadcasterID, e.Status)
}

// errKeepaliveTimeout marks a connection that went silent for longer than
// the negotiated keepalive window.
var errKeepaliveTimeout = errors.New("keepalive timeout")

// errReconnectRequested ends a receive loop after a session_reconnect has
// been handled so Run dials the new URL right away.
var errReconnectRequested = errors.New("reconnect requested")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}
