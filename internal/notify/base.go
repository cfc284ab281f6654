package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
)

// baseNotifier holds what every provider shares: its name, the events it
// subscribed to, and the HTTP client.
type baseNotifier struct {
	name       string
	events     []model.Event
	httpClient *http.Client
}

func newBase(name string, events []string, client *http.Client) baseNotifier {
	return baseNotifier{name: name, events: parseEvents(events), httpClient: client}
}

// Name returns the human-readable name of the notifier.
func (b *baseNotifier) Name() string { return b.name }

// ShouldNotify reports whether this notifier fires for event.
func (b *baseNotifier) ShouldNotify(event model.Event) bool {
	return slices.Contains(b.events, event)
}

// postJSON sends payload as a JSON body and fails on any status >= 400.
// Errors are prefixed with the provider name.
func (b *baseNotifier) postJSON(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal payload: %w", b.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", b.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return b.do(req)
}

func (b *baseNotifier) do(req *http.Request) error {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", b.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if len(detail) > 0 {
			return fmt.Errorf("%s: unexpected status %d: %s", b.name, resp.StatusCode, detail)
		}
		return fmt.Errorf("%s: unexpected status %d", b.name, resp.StatusCode)
	}
	return nil
}
