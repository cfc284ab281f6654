package model

import (
	"fmt"
	"time"

	"github.com/Guliveer/twitch-eventsub-relay/internal/constants"
)

// SubscriptionTopic identifies a supported EventSub subscription type.
type SubscriptionTopic int

const (
	// TopicUnknown is any EventSub type this relay does not decode.
	TopicUnknown SubscriptionTopic = iota
	// TopicChatMessage delivers chat messages of a channel.
	TopicChatMessage
	// TopicChannelBan delivers bans and timeouts in a channel.
	TopicChannelBan
	// TopicChannelUnban delivers unbans in a channel.
	TopicChannelUnban
)

var topicNames = map[SubscriptionTopic]string{
	TopicChatMessage:  constants.TopicChatMessage,
	TopicChannelBan:   constants.TopicChannelBan,
	TopicChannelUnban: constants.TopicChannelUnban,
}

// String returns the EventSub type name of the topic.
func (t SubscriptionTopic) String() string {
	if name, ok := topicNames[t]; ok {
		return name
	}
	return "unknown"
}

// Version returns the EventSub version the relay subscribes to.
func (t SubscriptionTopic) Version() string {
	return "1"
}

// RequiresUser reports whether the subscription condition must carry the bot user id.
func (t SubscriptionTopic) RequiresUser() bool {
	return t == TopicChatMessage
}

// ParseTopic converts an EventSub type name to a SubscriptionTopic.
// Unknown names map to TopicUnknown.
func ParseTopic(s string) SubscriptionTopic {
	for topic, name := range topicNames {
		if name == s {
			return topic
		}
	}
	return TopicUnknown
}

// SubscriptionCondition is the condition object of an EventSub subscription.
type SubscriptionCondition struct {
	BroadcasterUserID string `json:"broadcaster_user_id"`
	UserID            string `json:"user_id,omitempty"`
}

// SubscriptionSpec is a desired (topic, condition) pair.
type SubscriptionSpec struct {
	Topic     SubscriptionTopic
	Condition SubscriptionCondition
}

// String returns a compact description used in logs and errors.
func (s SubscriptionSpec) String() string {
	return fmt.Sprintf("%s(broadcaster=%s)", s.Topic, s.Condition.BroadcasterUserID)
}

// Validate checks that the spec can be sent to Helix.
func (s SubscriptionSpec) Validate() error {
	if s.Topic == TopicUnknown {
		return fmt.Errorf("subscription topic is unknown")
	}
	if s.Condition.BroadcasterUserID == "" {
		return fmt.Errorf("%s: broadcaster_user_id is required", s.Topic)
	}
	if s.Topic.RequiresUser() && s.Condition.UserID == "" {
		return fmt.Errorf("%s: user_id is required", s.Topic)
	}
	return nil
}

// BuildSubscriptionSpecs returns one spec per broadcaster and topic.
func BuildSubscriptionSpecs(broadcasterIDs []string, topics []SubscriptionTopic, botUserID string) []SubscriptionSpec {
	specs := make([]SubscriptionSpec, 0, len(broadcasterIDs)*len(topics))
	for _, broadcasterID := range broadcasterIDs {
		for _, topic := range topics {
			cond := SubscriptionCondition{BroadcasterUserID: broadcasterID}
			if topic.RequiresUser() {
				cond.UserID = botUserID
			}
			specs = append(specs, SubscriptionSpec{Topic: topic, Condition: cond})
		}
	}
	return specs
}

// Subscription is an EventSub subscription as returned by Helix.
type Subscription struct {
	ID        string                `json:"id"`
	Type      string                `json:"type"`
	Version   string                `json:"version"`
	Status    string                `json:"status"`
	Condition SubscriptionCondition `json:"condition"`
	ConduitID string                `json:"-"`
	CreatedAt time.Time             `json:"created_at"`
}
