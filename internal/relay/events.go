package relay

import (
	"context"

	"github.com/Guliveer/twitch-eventsub-relay/internal/config"
	"github.com/Guliveer/twitch-eventsub-relay/internal/eventbus"
	"github.com/Guliveer/twitch-eventsub-relay/internal/logger"
	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
)

// logChannelEvents writes every event of one channel to the log until ctx
// is done or the subscription is closed.
func logChannelEvents(ctx context.Context, log *logger.Logger, ch config.ChannelConfig, sub *eventbus.Subscription) {
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			logEvent(ctx, log, ch, ev)
		}
	}
}

func logEvent(ctx context.Context, log *logger.Logger, ch config.ChannelConfig, ev *model.ChannelEvent) {
	switch p := ev.Payload.(type) {
	case *model.ChatMessage:
		log.Event(ctx, model.EventChatMessage, p.Chatter.Name+": "+p.Text,
			"broadcaster", ch.DisplayName(), "chatter", p.Chatter.Login)

	case *model.Ban:
		args := []any{"broadcaster", ch.DisplayName(), "user", p.User.Login, "moderator", p.Moderator.Login}
		if p.Reason != "" {
			args = append(args, "reason", p.Reason)
		}
		if p.IsPermanent || p.EndsAt == nil {
			log.Event(ctx, model.EventChannelBan, p.User.Login+" was banned", args...)
			return
		}
		args = append(args, "duration", p.EndsAt.Sub(p.BannedAt).String())
		log.Event(ctx, model.EventChannelBan, p.User.Login+" was timed out", args...)

	case *model.Unban:
		log.Event(ctx, model.EventChannelUnban, p.User.Login+" was unbanned",
			"broadcaster", ch.DisplayName(), "moderator", p.Moderator.Login)

	default:
		log.Debug("Unhandled event payload", "broadcaster", ch.DisplayName(), "topic", ev.Topic)
	}
}
