package eventsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
)

const chatNotification = `{
  "metadata": {
    "message_id": "msg-1",
    "message_type": "notification",
    "message_timestamp": "2026-03-01T10:00:00.5Z",
    "subscription_type": "channel.chat.message",
    "subscription_version": "1"
  },
  "payload": {
    "subscription": {
      "id": "sub-1", "status": "enabled", "type": "channel.chat.message", "version": "1",
      "condition": {"broadcaster_user_id": "1001", "user_id": "9001"},
      "transport": {"method": "conduit", "conduit_id": "c-1"},
      "created_at": "2026-03-01T09:00:00Z"
    },
    "event": {
      "broadcaster_user_id": "1001", "broadcaster_user_login": "streamer", "broadcaster_user_name": "Streamer",
      "chatter_user_id": "2002", "chatter_user_login": "viewer", "chatter_user_name": "Viewer",
      "message_id": "chat-1",
      "message": {"text": "hello chat", "fragments": [{"type": "text", "text": "hello chat"}]},
      "color": "#FF0000",
      "badges": [{"set_id": "subscriber", "id": "12", "info": "16"}],
      "message_type": "text",
      "reply": {"parent_message_id": "chat-0"}
    }
  }
}`

func TestDecodeNotification_ChatMessage(t *testing.T) {
	env, err := ParseEnvelope([]byte(chatNotification))
	require.NoError(t, err)

	event, err := DecodeNotification(env)
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, "1001", event.BroadcasterID)
	assert.Equal(t, "msg-1", event.MessageID)
	assert.Equal(t, model.TopicChatMessage, event.Topic)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 500_000_000, time.UTC), event.Timestamp.UTC())

	msg, ok := event.Payload.(*model.ChatMessage)
	require.True(t, ok)
	assert.Equal(t, "hello chat", msg.Text)
	assert.Equal(t, model.UserRef{ID: "2002", Login: "viewer", Name: "Viewer"}, msg.Chatter)
	assert.Equal(t, []model.ChatBadge{{SetID: "subscriber", ID: "12", Info: "16"}}, msg.Badges)
	assert.Equal(t, "chat-0", msg.ReplyParent)
}

func TestDecodeNotification_Ban(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{
	  "metadata": {"message_id": "m", "message_type": "notification", "message_timestamp": "2026-03-01T10:00:00Z"},
	  "payload": {
	    "subscription": {"id": "s", "type": "channel.ban", "version": "1", "condition": {"broadcaster_user_id": "1001"}},
	    "event": {
	      "user_id": "3003", "user_login": "troll", "user_name": "Troll",
	      "broadcaster_user_id": "1001", "broadcaster_user_login": "streamer", "broadcaster_user_name": "Streamer",
	      "moderator_user_id": "4004", "moderator_user_login": "mod", "moderator_user_name": "Mod",
	      "reason": "spam", "banned_at": "2026-03-01T10:00:00Z", "ends_at": "2026-03-01T10:10:00Z", "is_permanent": false
	    }
	  }
	}`))
	require.NoError(t, err)

	event, err := DecodeNotification(env)
	require.NoError(t, err)
	require.NotNil(t, event)

	ban, ok := event.Payload.(*model.Ban)
	require.True(t, ok)
	assert.Equal(t, model.TopicChannelBan, event.Topic)
	assert.Equal(t, "troll", ban.User.Login)
	assert.Equal(t, "mod", ban.Moderator.Login)
	assert.Equal(t, "spam", ban.Reason)
	require.NotNil(t, ban.EndsAt)
	assert.Equal(t, 10*time.Minute, ban.EndsAt.Sub(ban.BannedAt))
	assert.False(t, ban.IsPermanent)
}

func TestDecodeNotification_Unban(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{
	  "metadata": {"message_id": "m", "message_type": "notification", "message_timestamp": "2026-03-01T10:00:00Z",
	               "subscription_type": "channel.unban"},
	  "payload": {
	    "subscription": {"id": "s", "type": "channel.unban", "version": "1"},
	    "event": {"user_id": "3003", "user_login": "troll", "broadcaster_user_id": "1001", "moderator_user_id": "4004"}
	  }
	}`))
	require.NoError(t, err)

	event, err := DecodeNotification(env)
	require.NoError(t, err)
	require.NotNil(t, event)

	unban, ok := event.Payload.(*model.Unban)
	require.True(t, ok)
	assert.Equal(t, "1001", event.BroadcasterID)
	assert.Equal(t, "3003", unban.User.ID)
}

func TestDecodeNotification_UnknownTopicIgnored(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{
	  "metadata": {"message_id": "m", "message_type": "notification", "message_timestamp": "2026-03-01T10:00:00Z"},
	  "payload": {"subscription": {"type": "channel.follow", "version": "2"}, "event": {"user_id": "1"}}
	}`))
	require.NoError(t, err)

	event, err := DecodeNotification(env)
	assert.NoError(t, err)
	assert.Nil(t, event)
}

func TestDecodeNotification_MalformedKnownEvent(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{
	  "metadata": {"message_id": "m", "message_type": "notification", "message_timestamp": "2026-03-01T10:00:00Z"},
	  "payload": {"subscription": {"type": "channel.ban", "version": "1"}, "event": {"banned_at": 42}}
	}`))
	require.NoError(t, err)

	_, err = DecodeNotification(env)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestParseEnvelope_Malformed(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":        `hello`,
		"no message type": `{"metadata": {"message_id": "x"}, "payload": {}}`,
		"wrong shape":     `{"metadata": "nope"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseEnvelope([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestParseSession(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{
	  "metadata": {"message_id": "m", "message_type": "session_reconnect", "message_timestamp": "2026-03-01T10:00:00Z"},
	  "payload": {"session": {"id": "sess-2", "status": "reconnecting", "keepalive_timeout_seconds": null,
	              "reconnect_url": "wss://eventsub.example/ws?id=2", "connected_at": "2026-03-01T09:00:00Z"}}
	}`))
	require.NoError(t, err)

	session, err := ParseSession(env)
	require.NoError(t, err)
	assert.Equal(t, "sess-2", session.ID)
	assert.Nil(t, session.KeepaliveTimeoutSeconds)
	require.NotNil(t, session.ReconnectURL)
	assert.Equal(t, "wss://eventsub.example/ws?id=2", *session.ReconnectURL)

	env.Payload = []byte(`{"session": {"status": "connected"}}`)
	_, err = ParseSession(env)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}
