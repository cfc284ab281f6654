// Package notify delivers relay alerts (session failures, revoked
// subscriptions, moderation events) to Discord, Telegram, or a generic
// webhook, filtered per provider by event kind.
package notify

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/Guliveer/twitch-eventsub-relay/internal/config"
	"github.com/Guliveer/twitch-eventsub-relay/internal/logger"
	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
)

// defaultHTTPTimeout is the timeout for notification HTTP requests.
const defaultHTTPTimeout = 5 * time.Second

// Title is the heading used for every relay notification.
const Title = "Twitch EventSub Relay"

// Notifier is implemented by every notification provider.
type Notifier interface {
	Send(ctx context.Context, event model.Event, title, message string) error
	Name() string
	ShouldNotify(event model.Event) bool
}

// Dispatcher fans notifications out to every provider subscribed to the
// event. Sends run in the background; Wait blocks until they finish.
type Dispatcher struct {
	notifiers []Notifier
	log       *logger.Logger
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with every enabled provider of cfg.
func NewDispatcher(cfg config.NotificationsConfig, log *logger.Logger) *Dispatcher {
	httpClient := &http.Client{
		Timeout: defaultHTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	var notifiers []Notifier
	if t := cfg.Telegram; t != nil && t.Enabled {
		notifiers = append(notifiers, &Telegram{
			baseNotifier:        newBase("Telegram", t.Events, httpClient),
			apiURL:              telegramAPIURL,
			token:               t.Token,
			chatID:              t.ChatID,
			disableNotification: t.DisableNotification,
		})
	}
	if d := cfg.Discord; d != nil && d.Enabled {
		notifiers = append(notifiers, &Discord{
			baseNotifier: newBase("Discord", d.Events, httpClient),
			webhookURL:   d.WebhookURL,
		})
	}
	if w := cfg.Webhook; w != nil && w.Enabled {
		method := w.Method
		if method == "" {
			method = http.MethodPost
		}
		notifiers = append(notifiers, &Webhook{
			baseNotifier: newBase("Webhook", w.Events, httpClient),
			url:          w.Endpoint,
			method:       method,
		})
	}

	return NewDispatcherWith(log, notifiers...)
}

// NewDispatcherWith creates a Dispatcher over explicit notifiers.
func NewDispatcherWith(log *logger.Logger, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers, log: log}
}

// Dispatch sends a notification to every provider subscribed to event.
// It does not wait for delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, event model.Event, title, message string) {
	// Deliveries outlive the caller's context, e.g. an alert about shutdown.
	ctx = context.WithoutCancel(ctx)

	for _, n := range d.notifiers {
		if !n.ShouldNotify(event) {
			continue
		}
		d.wg.Add(1)
		go func(notifier Notifier) {
			defer d.wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, defaultHTTPTimeout)
			defer cancel()
			if err := notifier.Send(sendCtx, event, title, message); err != nil {
				d.log.Warn("Notification send failed",
					"provider", notifier.Name(),
					"event", string(event),
					"error", err,
				)
			}
		}(n)
	}
}

// Wait blocks until every pending send finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifyFunc returns a logger.NotifyFunc that dispatches via this Dispatcher.
func (d *Dispatcher) NotifyFunc() logger.NotifyFunc {
	return func(ctx context.Context, message string, event model.Event) {
		d.Dispatch(ctx, event, Title, message)
	}
}

// HasNotifiers reports whether any provider is enabled.
func (d *Dispatcher) HasNotifiers() bool {
	return len(d.notifiers) > 0
}

// Names returns the names of the enabled providers.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.notifiers))
	for _, n := range d.notifiers {
		names = append(names, n.Name())
	}
	return names
}

// parseEvents converts event names to model.Event values, skipping unknown
// names.
func parseEvents(names []string) []model.Event {
	events := make([]model.Event, 0, len(names))
	for _, name := range names {
		if e := model.ParseEvent(name); e != "" {
			events = append(events, e)
		}
	}
	return slices.Clip(events)
}
