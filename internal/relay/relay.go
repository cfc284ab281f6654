// Package relay wires the EventSub relay together: it owns the app
// credential, the Helix client, the conduit coordinator, the socket session
// and the event bus, and supervises them under one cancellation context.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kappopher "github.com/Its-donkey/kappopher/helix"
	"golang.org/x/sync/errgroup"

	"github.com/Guliveer/twitch-eventsub-relay/internal/auth"
	"github.com/Guliveer/twitch-eventsub-relay/internal/config"
	"github.com/Guliveer/twitch-eventsub-relay/internal/eventbus"
	"github.com/Guliveer/twitch-eventsub-relay/internal/eventsub"
	"github.com/Guliveer/twitch-eventsub-relay/internal/helix"
	"github.com/Guliveer/twitch-eventsub-relay/internal/logger"
	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
	"github.com/Guliveer/twitch-eventsub-relay/internal/notify"
)

// Option configures a Relay.
type Option func(*options)

type options struct {
	api         helix.TwitchAPI
	issuer      auth.Issuer
	dialBackoff time.Duration
}

// WithTwitchAPI replaces the Helix API the relay manages conduits and
// subscriptions through.
func WithTwitchAPI(api helix.TwitchAPI) Option {
	return func(o *options) { o.api = api }
}

// WithIssuer replaces the client credentials grant used for app tokens.
func WithIssuer(issue auth.Issuer) Option {
	return func(o *options) { o.issuer = issue }
}

// WithDialBackoff sets the first delay between failed socket dials.
func WithDialBackoff(d time.Duration) Option {
	return func(o *options) { o.dialBackoff = d }
}

// Relay is the top-level component of the EventSub relay.
type Relay struct {
	cfg   *config.Config
	specs []model.SubscriptionSpec
	log   *logger.Logger
	opts  options

	tokens      *auth.AppCredential
	coordinator *eventsub.Coordinator
	bus         *eventbus.Bus
	notifier    *notify.Dispatcher

	mu        sync.RWMutex
	session   *eventsub.Session
	conduit   model.Conduit
	startedAt time.Time
	running   bool
	lastErr   error
}

// New builds a Relay from a validated configuration.
func New(cfg *config.Config, log *logger.Logger, opts ...Option) (*Relay, error) {
	specs, err := cfg.SubscriptionSpecs()
	if err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	notifier := notify.NewDispatcher(cfg.Notifications, log.WithComponent("notify"))
	if notifier.HasNotifiers() {
		log.SetNotifyFunc(notifier.NotifyFunc())
		log.Info("Notifications enabled", "providers", notifier.Names())
	}

	// The Helix client authorizes with whatever token the shared AuthClient
	// issued last, so refreshes through the credential apply to it too.
	if o.api == nil || o.issuer == nil {
		authClient := kappopher.NewAuthClient(kappopher.AuthConfig{
			ClientID:     cfg.Twitch.ClientID,
			ClientSecret: cfg.Twitch.ClientSecret,
		})
		if o.api == nil {
			o.api = helix.NewTwitchAPI(cfg.Twitch.ClientID, authClient)
		}
		if o.issuer == nil {
			o.issuer = auth.ClientCredentials(authClient)
		}
	}

	tokens := auth.NewAppCredential(o.issuer, log.WithComponent("auth"))
	api := helix.NewClient(o.api, log.WithComponent("helix"))

	return &Relay{
		cfg:         cfg,
		specs:       specs,
		log:         log,
		opts:        o,
		tokens:      tokens,
		coordinator: eventsub.NewCoordinator(api, cfg.EventSub.ShardCount, log.WithComponent("conduit")),
		bus:         eventbus.New(cfg.Bus.Capacity),
		notifier:    notifier,
	}, nil
}

// Events returns the bus consumers subscribe to, keyed by broadcaster id.
func (r *Relay) Events() eventbus.Subscriber {
	return r.bus
}

// Run acquires an app token, adopts a conduit, and runs the socket session
// until ctx is cancelled or the session fails. Per-channel event loggers run
// alongside the session and stop with it.
func (r *Relay) Run(ctx context.Context) (err error) {
	r.mu.Lock()
	r.running = true
	r.startedAt = time.Now()
	r.lastErr = nil
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		if ctx.Err() == nil {
			r.lastErr = err
		}
		r.mu.Unlock()

		if err != nil && ctx.Err() == nil {
			r.log.Event(ctx, model.EventSessionFailed, "Relay stopped", "error", err)
		}
		r.flushNotifications()
	}()

	token, err := r.tokens.Current(ctx)
	if err != nil {
		return fmt.Errorf("getting app token: %w", err)
	}

	conduit, err := r.coordinator.EnsureConduit(ctx, token)
	if err != nil {
		return fmt.Errorf("ensuring conduit: %w", err)
	}

	session := eventsub.NewSession(eventsub.SessionConfig{
		URL:                r.cfg.EventSub.URL,
		Conduit:            conduit,
		ShardIndex:         r.cfg.EventSub.ShardIndex,
		Specs:              r.specs,
		DialMaxTries:       r.cfg.EventSub.DialMaxTries,
		DialInitialBackoff: r.opts.dialBackoff,
		KeepaliveGrace:     r.cfg.EventSub.KeepaliveGrace,
	}, r.coordinator, r.tokens, r.bus, r.log.WithComponent("eventsub"))

	r.mu.Lock()
	r.session = session
	r.conduit = conduit
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	eventLog := r.log.WithComponent("events")
	for _, ch := range r.cfg.Channels {
		if !ch.ShouldLogEvents() {
			continue
		}
		sub := r.bus.Subscribe(ch.BroadcasterID)
		g.Go(func() error {
			logChannelEvents(gctx, eventLog, ch, sub)
			return nil
		})
	}

	g.Go(func() error {
		return session.Run(gctx)
	})

	r.log.Info("Relay started",
		"conduit_id", conduit.ID, "channels", len(r.cfg.Channels), "subscriptions", len(r.specs))

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (r *Relay) flushNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.notifier.Wait(ctx); err != nil {
		r.log.Warn("Pending notifications were not delivered", "error", err)
	}
}
