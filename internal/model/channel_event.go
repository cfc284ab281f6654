package model

import "time"

// ChannelEvent is a decoded EventSub notification tagged with the channel it
// originated from. It is immutable once constructed and shared read-only by
// every subscriber that receives it.
type ChannelEvent struct {
	BroadcasterID string
	MessageID     string
	Topic         SubscriptionTopic
	Timestamp     time.Time
	Payload       EventPayload
}

// EventPayload is one of *ChatMessage, *Ban or *Unban.
type EventPayload interface {
	Topic() SubscriptionTopic
}

// UserRef identifies a Twitch user in an event payload.
type UserRef struct {
	ID    string
	Login string
	Name  string
}

// ChatMessage is the payload of a channel.chat.message notification.
type ChatMessage struct {
	Broadcaster UserRef
	Chatter     UserRef
	MessageID   string
	Text        string
	MessageType string
	Color       string
	Badges      []ChatBadge
	ReplyParent string
}

// ChatBadge is one chat badge shown next to the chatter's name.
type ChatBadge struct {
	SetID string
	ID    string
	Info  string
}

// Topic implements EventPayload.
func (*ChatMessage) Topic() SubscriptionTopic { return TopicChatMessage }

// Ban is the payload of a channel.ban notification.
type Ban struct {
	Broadcaster UserRef
	User        UserRef
	Moderator   UserRef
	Reason      string
	BannedAt    time.Time
	EndsAt      *time.Time
	IsPermanent bool
}

// Topic implements EventPayload.
func (*Ban) Topic() SubscriptionTopic { return TopicChannelBan }

// Unban is the payload of a channel.unban notification.
type Unban struct {
	Broadcaster UserRef
	User        UserRef
	Moderator   UserRef
}

// Topic implements EventPayload.
func (*Unban) Topic() SubscriptionTopic { return TopicChannelUnban }
