package notify

import (
	"context"

	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
)

// Embed colors per event severity.
const (
	discordColorInfo  = 6570404  // Twitch purple
	discordColorWarn  = 16753920 // orange
	discordColorError = 15158332 // red
)

// Discord sends notifications via a Discord webhook.
type Discord struct {
	baseNotifier
	webhookURL string
}

// Send posts an embed to the configured Discord webhook.
func (d *Discord) Send(ctx context.Context, event model.Event, title, message string) error {
	payload := map[string]any{
		"username": "EventSub Relay",
		"embeds": []map[string]any{
			{
				"title":       title,
				"description": message,
				"color":       discordColor(event),
				"footer":      map[string]string{"text": string(event)},
			},
		},
	}
	return d.postJSON(ctx, d.webhookURL, payload)
}

func discordColor(event model.Event) int {
	switch event {
	case model.EventSessionFailed, model.EventSubscriptionRevoked:
		return discordColorError
	case model.EventSessionReconnect, model.EventChannelBan:
		return discordColorWarn
	default:
		return discordColorInfo
	}
}
