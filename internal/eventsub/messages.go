// Package eventsub implements the Twitch EventSub WebSocket session and the
// conduit/shard/subscription bookkeeping that keeps it routed.
package eventsub

import (
	"encoding/json"
	"time"

	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
)

// EventSub WebSocket message types.
const (
	// MessageTypeWelcome is the first message on every new socket.
	MessageTypeWelcome = "session_welcome"
	// MessageTypeKeepalive is sent when no notification was sent for a while.
	MessageTypeKeepalive = "session_keepalive"
	// MessageTypeNotification carries a subscribed event.
	MessageTypeNotification = "notification"
	// MessageTypeReconnect asks the client to move to a new URL.
	MessageTypeReconnect = "session_reconnect"
	// MessageTypeRevocation reports a subscription Twitch cancelled.
	MessageTypeRevocation = "revocation"
)

// Envelope is the outer shape of every EventSub WebSocket message.
type Envelope struct {
	Metadata Metadata        `json:"metadata"`
	Payload  json.RawMessage `json:"payload"`
}

// Metadata identifies a message and, for notifications and revocations,
// the subscription it belongs to.
type Metadata struct {
	MessageID           string    `json:"message_id"`
	MessageType         string    `json:"message_type"`
	MessageTimestamp    time.Time `json:"message_timestamp"`
	SubscriptionType    string    `json:"subscription_type,omitempty"`
	SubscriptionVersion string    `json:"subscription_version,omitempty"`
}

// SessionPayload is the payload of welcome and reconnect messages.
type SessionPayload struct {
	Session WireSession `json:"session"`
}

// WireSession describes the socket session as sent by Twitch.
type WireSession struct {
	ID                      string    `json:"id"`
	Status                  string    `json:"status"`
	ConnectedAt             time.Time `json:"connected_at"`
	KeepaliveTimeoutSeconds *int      `json:"keepalive_timeout_seconds"`
	ReconnectURL            *string   `json:"reconnect_url"`
}

// SubscriptionPayload is the payload of notification and revocation messages.
type SubscriptionPayload struct {
	Subscription WireSubscription `json:"subscription"`
	Event        json.RawMessage  `json:"event,omitempty"`
}

// WireSubscription is the subscription object embedded in a payload.
type WireSubscription struct {
	ID        string                      `json:"id"`
	Status    string                      `json:"status"`
	Type      string                      `json:"type"`
	Version   string                      `json:"version"`
	Condition model.SubscriptionCondition `json:"condition"`
	CreatedAt time.Time                   `json:"created_at"`
}

type wireUser struct {
	ID    string
	Login string
	Name  string
}

func (u wireUser) ref() model.UserRef {
	return model.UserRef{ID: u.ID, Login: u.Login, Name: u.Name}
}

type chatMessageEvent struct {
	BroadcasterUserID    string `json:"broadcaster_user_id"`
	BroadcasterUserLogin string `json:"broadcaster_user_login"`
	BroadcasterUserName  string `json:"broadcaster_user_name"`
	ChatterUserID        string `json:"chatter_user_id"`
	ChatterUserLogin     string `json:"chatter_user_login"`
	ChatterUserName      string `json:"chatter_user_name"`
	MessageID            string `json:"message_id"`
	Message              struct {
		Text string `json:"text"`
	} `json:"message"`
	MessageType string `json:"message_type"`
	Color       string `json:"color"`
	Badges      []struct {
		SetID string `json:"set_id"`
		ID    string `json:"id"`
		Info  string `json:"info"`
	} `json:"badges"`
	Reply *struct {
		ParentMessageID string `json:"parent_message_id"`
	} `json:"reply"`
}

type banEvent struct {
	UserID               string     `json:"user_id"`
	UserLogin            string     `json:"user_login"`
	UserName             string     `json:"user_name"`
	BroadcasterUserID    string     `json:"broadcaster_user_id"`
	BroadcasterUserLogin string     `json:"broadcaster_user_login"`
	BroadcasterUserName  string     `json:"broadcaster_user_name"`
	ModeratorUserID      string     `json:"moderator_user_id"`
	ModeratorUserLogin   string     `json:"moderator_user_login"`
	ModeratorUserName    string     `json:"moderator_user_name"`
	Reason               string     `json:"reason"`
	BannedAt             time.Time  `json:"banned_at"`
	EndsAt               *time.Time `json:"ends_at"`
	IsPermanent          bool       `json:"is_permanent"`
}

type unbanEvent struct {
	UserID               string `json:"user_id"`
	UserLogin            string `json:"user_login"`
	UserName             string `json:"user_name"`
	BroadcasterUserID    string `json:"broadcaster_user_id"`
	BroadcasterUserLogin string `json:"broadcaster_user_login"`
	BroadcasterUserName  string `json:"broadcaster_user_name"`
	ModeratorUserID      string `json:"moderator_user_id"`
	ModeratorUserLogin   string `json:"moderator_user_login"`
	ModeratorUserName    string `json:"moderator_user_name"`
}

// ParseEnvelope decodes a text frame into its envelope.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, malformed("decoding envelope: %v", err)
	}
	if env.Metadata.MessageType == "" {
		return nil, malformed("envelope without message_type")
	}
	return &env, nil
}

// ParseSession decodes the payload of a welcome or reconnect message.
func ParseSession(env *Envelope) (*WireSession, error) {
	var payload SessionPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return nil, malformed("decoding %s payload: %v", env.Metadata.MessageType, err)
	}
	if payload.Session.ID == "" {
		return nil, malformed("%s without session id", env.Metadata.MessageType)
	}
	return &payload.Session, nil
}

// ParseSubscriptionPayload decodes the payload of a notification or revocation.
func ParseSubscriptionPayload(env *Envelope) (*SubscriptionPayload, error) {
	var payload SubscriptionPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return nil, malformed("decoding %s payload: %v", env.Metadata.MessageType, err)
	}
	return &payload, nil
}

// DecodeNotification converts a notification into a ChannelEvent. It returns
// (nil, nil) for subscription types the relay does not handle.
func DecodeNotification(env *Envelope) (*model.ChannelEvent, error) {
	payload, err := ParseSubscriptionPayload(env)
	if err != nil {
		return nil, err
	}

	subType := payload.Subscription.Type
	if subType == "" {
		subType = env.Metadata.SubscriptionType
	}
	topic := model.ParseTopic(subType)
	if topic == model.TopicUnknown {
		return nil, nil
	}
	if len(payload.Event) == 0 {
		return nil, malformed("%s notification without event", topic)
	}

	var (
		broadcasterID string
		body          model.EventPayload
	)
	switch topic {
	case model.TopicChatMessage:
		var ev chatMessageEvent
		if err := json.Unmarshal(payload.Event, &ev); err != nil {
			return nil, malformed("decoding %s event: %v", topic, err)
		}
		broadcasterID = ev.BroadcasterUserID
		body = ev.toModel()
	case model.TopicChannelBan:
		var ev banEvent
		if err := json.Unmarshal(payload.Event, &ev); err != nil {
			return nil, malformed("decoding %s event: %v", topic, err)
		}
		broadcasterID = ev.BroadcasterUserID
		body = ev.toModel()
	case model.TopicChannelUnban:
		var ev unbanEvent
		if err := json.Unmarshal(payload.Event, &ev); err != nil {
			return nil, malformed("decoding %s event: %v", topic, err)
		}
		broadcasterID = ev.BroadcasterUserID
		body = ev.toModel()
	}

	if broadcasterID == "" {
		return nil, malformed("%s event without broadcaster_user_id", topic)
	}

	return &model.ChannelEvent{
		BroadcasterID: broadcasterID,
		MessageID:     env.Metadata.MessageID,
		Topic:         topic,
		Timestamp:     env.Metadata.MessageTimestamp,
		Payload:       body,
	}, nil
}

func (ev *chatMessageEvent) toModel() *model.ChatMessage {
	msg := &model.ChatMessage{
		Broadcaster: wireUser{ev.BroadcasterUserID, ev.BroadcasterUserLogin, ev.BroadcasterUserName}.ref(),
		Chatter:     wireUser{ev.ChatterUserID, ev.ChatterUserLogin, ev.ChatterUserName}.ref(),
		MessageID:   ev.MessageID,
		Text:        ev.Message.Text,
		MessageType: ev.MessageType,
		Color:       ev.Color,
	}
	for _, b := range ev.Badges {
		msg.Badges = append(msg.Badges, model.ChatBadge{SetID: b.SetID, ID: b.ID, Info: b.Info})
	}
	if ev.Reply != nil {
		msg.ReplyParent = ev.Reply.ParentMessageID
	}
	return msg
}

func (ev *banEvent) toModel() *model.Ban {
	return &model.Ban{
		Broadcaster: wireUser{ev.BroadcasterUserID, ev.BroadcasterUserLogin, ev.BroadcasterUserName}.ref(),
		User:        wireUser{ev.UserID, ev.UserLogin, ev.UserName}.ref(),
		Moderator:   wireUser{ev.ModeratorUserID, ev.ModeratorUserLogin, ev.ModeratorUserName}.ref(),
		Reason:      ev.Reason,
		BannedAt:    ev.BannedAt,
		EndsAt:      ev.EndsAt,
		IsPermanent: ev.IsPermanent,
	}
}

func (ev *unbanEvent) toModel() *model.Unban {
	return &model.Unban{
		Broadcaster: wireUser{ev.BroadcasterUserID, ev.BroadcasterUserLogin, ev.BroadcasterUserName}.ref(),
		User:        wireUser{ev.UserID, ev.UserLogin, ev.UserName}.ref(),
		Moderator:   wireUser{ev.ModeratorUserID, ev.ModeratorUserLogin, ev.ModeratorUserName}.ref(),
	}
}
