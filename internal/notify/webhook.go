package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
)

// Webhook sends notifications to a generic HTTP endpoint.
type Webhook struct {
	baseNotifier
	url    string
	method string
}

// Send delivers a notification to the configured endpoint. POST sends a
// JSON body; GET carries the same fields as query parameters.
func (w *Webhook) Send(ctx context.Context, event model.Event, title, message string) error {
	switch method := strings.ToUpper(w.method); method {
	case http.MethodPost:
		return w.postJSON(ctx, w.url, map[string]string{
			"event":   string(event),
			"title":   title,
			"message": message,
		})

	case http.MethodGet:
		u, err := url.Parse(w.url)
		if err != nil {
			return fmt.Errorf("%s: parse url: %w", w.name, err)
		}
		q := u.Query()
		q.Set("event_name", string(event))
		q.Set("title", title)
		q.Set("message", message)
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return fmt.Errorf("%s: create request: %w", w.name, err)
		}
		return w.do(req)

	default:
		return fmt.Errorf("%s: unsupported method %q (use GET or POST)", w.name, method)
	}
}
