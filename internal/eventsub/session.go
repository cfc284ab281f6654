package eventsub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"

	"github.com/Guliveer/twitch-eventsub-relay/internal/auth"
	"github.com/Guliveer/twitch-eventsub-relay/internal/constants"
	"github.com/Guliveer/twitch-eventsub-relay/internal/helix"
	"github.com/Guliveer/twitch-eventsub-relay/internal/logger"
	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingWelcome
	StateLive
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingWelcome:
		return "awaiting_welcome"
	case StateLive:
		return "live"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Topology is what the session needs from the Coordinator.
type Topology interface {
	RepointShard(ctx context.Context, conduit model.Conduit, shardIndex int, sessionID string, token model.Token) error
	EnsureSubscriptions(ctx context.Context, conduit model.Conduit, specs []model.SubscriptionSpec, token model.Token) error
}

// Publisher receives every decoded channel event.
type Publisher interface {
	Publish(event *model.ChannelEvent)
}

type invalidator interface {
	Invalidate()
}

// SessionConfig configures a Session. Zero durations and tries fall back to
// the defaults in the constants package.
type SessionConfig struct {
	URL        string
	Conduit    model.Conduit
	ShardIndex int
	Specs      []model.SubscriptionSpec

	DialMaxTries       int
	DialInitialBackoff time.Duration
	DialMaxBackoff     time.Duration
	KeepaliveGrace     time.Duration
}

func (c *SessionConfig) applyDefaults() {
	if c.URL == "" {
		c.URL = constants.EventSubWebSocketURL
	}
	if c.DialMaxTries <= 0 {
		c.DialMaxTries = constants.DialMaxTries
	}
	if c.DialInitialBackoff <= 0 {
		c.DialInitialBackoff = constants.DialInitialBackoff
	}
	if c.DialMaxBackoff <= 0 {
		c.DialMaxBackoff = constants.DialMaxBackoff
	}
	if c.KeepaliveGrace <= 0 {
		c.KeepaliveGrace = constants.KeepaliveGrace
	}
}

// Session owns the single EventSub WebSocket connection of the relay. It
// handles the welcome/reconnect handshake, re-binds the conduit shard to
// every new session id, and publishes decoded notifications.
type Session struct {
	cfg       SessionConfig
	topology  Topology
	tokens    auth.TokenSource
	publisher Publisher
	log       *logger.Logger

	state atomic.Int32

	mu      sync.RWMutex
	current model.SessionState

	// Owned by the Run goroutine.
	connectURL string
	keepalive  time.Duration
	subscribed bool
	welcomed   bool
}

// NewSession creates a Session in StateDisconnected.
func NewSession(cfg SessionConfig, topology Topology, tokens auth.TokenSource, publisher Publisher, log *logger.Logger) *Session {
	cfg.applyDefaults()
	return &Session{
		cfg:        cfg,
		topology:   topology,
		tokens:     tokens,
		publisher:  publisher,
		log:        log,
		connectURL: cfg.URL,
		keepalive:  constants.DefaultKeepaliveTimeout,
	}
}

// State returns the current lifecycle state. Safe for concurrent use.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Current returns the identity of the most recent session. Safe for
// concurrent use.
func (s *Session) Current() model.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Session) setState(state State) {
	prev := State(s.state.Swap(int32(state)))
	if prev != state {
		s.log.Debug("Session state changed", "from", prev, "to", state)
	}
}

// Run connects and processes messages until ctx is cancelled or a fatal
// error occurs. Transport resets and keepalive timeouts reconnect to the
// current connect URL. A session_reconnect moves to the new URL at once.
// Connections that drop before a welcome share one backoff, and after
// DialMaxTries of them in a row Run gives up. A revocation ends the session
// with *RevocationError.
func (s *Session) Run(ctx context.Context) error {
	defer s.setState(StateClosed)

	retry := s.newBackOff()
	failures := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.setState(StateConnecting)
		conn, err := s.dial(ctx)
		if err != nil {
			return err
		}

		s.setState(StateAwaitingWelcome)
		s.welcomed = false
		err = s.receive(ctx, conn)
		conn.CloseNow()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !s.recoverable(err) {
			return err
		}

		s.setState(StateReconnecting)
		if s.welcomed {
			retry.Reset()
			failures = 0
			if errors.Is(err, errReconnectRequested) {
				s.log.Info("Moving EventSub connection", "url", s.connectURL)
			} else {
				s.log.Warn("EventSub connection lost, reconnecting", "error", err, "url", s.connectURL)
			}
			continue
		}

		failures++
		if failures >= s.cfg.DialMaxTries {
			return fmt.Errorf("eventsub connection to %s dropped before welcome %d times: %w",
				s.connectURL, failures, err)
		}

		wait := retry.NextBackOff()
		s.log.Warn("EventSub connection dropped before welcome, retrying",
			"error", err, "url", s.connectURL, "attempt", failures, "backoff", wait.Round(time.Millisecond))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Session) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.DialInitialBackoff
	b.MaxInterval = s.cfg.DialMaxBackoff
	b.Reset()
	return b
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	url := s.connectURL

	conn, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
		conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{})
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, err
		}
		return conn, nil
	},
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(uint(s.cfg.DialMaxTries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.log.Warn("Failed to connect to EventSub, retrying",
				"url", url, "error", err, "backoff", next.Round(time.Millisecond))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", url, err)
	}

	conn.SetReadLimit(constants.MaxMessageSize)
	s.log.Debug("Connected to EventSub", "url", url)
	return conn, nil
}

// readError is a failure of the socket itself, as opposed to a failure
// while handling a message that was read.
type readError struct {
	err error
}

func (e *readError) Error() string { return "reading from eventsub socket: " + e.err.Error() }
func (e *readError) Unwrap() error { return e.err }

func (s *Session) receive(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		window := s.keepalive + s.cfg.KeepaliveGrace
		readCtx, cancel := context.WithTimeout(ctx, window)
		typ, data, err := conn.Read(readCtx)
		timedOut := readCtx.Err() != nil
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if timedOut {
				return &readError{err: fmt.Errorf("%w: nothing received for %s", errKeepaliveTimeout, window)}
			}
			return &readError{err: err}
		}

		if typ != websocket.MessageText {
			s.log.Debug("Ignoring non-text frame", "type", typ)
			continue
		}

		if err := s.handle(ctx, data); err != nil {
			return err
		}
	}
}

// recoverable reports whether err should lead to a reconnect rather than
// ending the session.
func (s *Session) recoverable(err error) bool {
	if errors.Is(err, errReconnectRequested) {
		return true
	}

	var rerr *readError
	if !errors.As(err, &rerr) {
		return false
	}

	switch {
	case errors.Is(err, errKeepaliveTimeout):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, syscall.ECONNRESET):
		return true
	}
	return false
}

func (s *Session) handle(ctx context.Context, data []byte) error {
	env, err := ParseEnvelope(data)
	if err != nil {
		return err
	}

	switch env.Metadata.MessageType {
	case MessageTypeWelcome:
		return s.handleSession(ctx, env, false)
	case MessageTypeReconnect:
		return s.handleSession(ctx, env, true)
	case MessageTypeKeepalive:
		return nil
	case MessageTypeNotification:
		return s.handleNotification(env)
	case MessageTypeRevocation:
		return s.handleRevocation(ctx, env)
	default:
		s.log.Debug("Ignoring unknown message type", "type", env.Metadata.MessageType)
		return nil
	}
}

// handleSession processes welcome and reconnect messages: it records the new
// session identity, refreshes the app token when stale, re-binds the shard,
// and creates the subscriptions the first time the session goes live. A
// handled reconnect returns errReconnectRequested.
func (s *Session) handleSession(ctx context.Context, env *Envelope, reconnect bool) error {
	session, err := ParseSession(env)
	if err != nil {
		return err
	}

	if session.KeepaliveTimeoutSeconds != nil && *session.KeepaliveTimeoutSeconds > 0 {
		s.keepalive = time.Duration(*session.KeepaliveTimeoutSeconds) * time.Second
	}
	if session.ReconnectURL != nil && *session.ReconnectURL != "" {
		s.connectURL = *session.ReconnectURL
	}
	s.mu.Lock()
	s.current = model.SessionState{
		ID:               session.ID,
		ConnectURL:       s.connectURL,
		KeepaliveTimeout: s.keepalive,
	}
	s.mu.Unlock()

	token, err := s.tokens.Current(ctx)
	if err != nil {
		return fmt.Errorf("getting app token for session %s: %w", session.ID, err)
	}

	token, err = s.repoint(ctx, session.ID, token)
	if err != nil {
		return err
	}

	if !s.subscribed {
		if err := s.topology.EnsureSubscriptions(ctx, s.cfg.Conduit, s.cfg.Specs, token); err != nil {
			return err
		}
		s.subscribed = true
	}

	s.welcomed = true
	s.setState(StateLive)
	if reconnect {
		s.log.Event(ctx, model.EventSessionReconnect, "EventSub asked to reconnect",
			"session_id", session.ID, "url", s.connectURL)
		return errReconnectRequested
	}
	s.log.Event(ctx, model.EventSessionWelcome, "EventSub session live",
		"session_id", session.ID, "keepalive", s.keepalive)
	return nil
}

// repoint binds the shard to sessionID. A token Helix rejects is refreshed
// once and the call retried. It returns the token that was accepted.
func (s *Session) repoint(ctx context.Context, sessionID string, token model.Token) (model.Token, error) {
	err := s.topology.RepointShard(ctx, s.cfg.Conduit, s.cfg.ShardIndex, sessionID, token)

	if inv, ok := s.tokens.(invalidator); ok && helix.IsUnauthorized(err) {
		s.log.Warn("App token rejected by Helix, refreshing", "session_id", sessionID)
		inv.Invalidate()

		token, err = s.tokens.Current(ctx)
		if err != nil {
			return model.Token{}, fmt.Errorf("getting app token for session %s: %w", sessionID, err)
		}
		err = s.topology.RepointShard(ctx, s.cfg.Conduit, s.cfg.ShardIndex, sessionID, token)
	}

	if err != nil {
		return model.Token{}, fmt.Errorf("binding shard %d to session %s: %w", s.cfg.ShardIndex, sessionID, err)
	}
	return token, nil
}

func (s *Session) handleNotification(env *Envelope) error {
	event, err := DecodeNotification(env)
	if err != nil {
		return err
	}
	if event == nil {
		s.log.Debug("Ignoring notification", "type", env.Metadata.SubscriptionType)
		return nil
	}

	s.publisher.Publish(event)
	return nil
}

func (s *Session) handleRevocation(ctx context.Context, env *Envelope) error {
	payload, err := ParseSubscriptionPayload(env)
	if err != nil {
		return err
	}

	sub := payload.Subscription
	s.log.Event(ctx, model.EventSubscriptionRevoked, "EventSub subscription revoked",
		"topic", sub.Type, "broadcaster", sub.Condition.BroadcasterUserID, "status", sub.Status)

	return &RevocationError{
		SubscriptionID:   sub.ID,
		SubscriptionType: sub.Type,
		Status:           sub.Status,
		BroadcasterID:    sub.Condition.BroadcasterUserID,
	}
}
