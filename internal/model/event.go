package model

// Event represents a relay event kind for notification filtering and logging.
type Event string

// All supported relay events.
const (
	EventSessionWelcome      Event = "SESSION_WELCOME"
	EventSessionReconnect    Event = "SESSION_RECONNECT"
	EventSessionFailed       Event = "SESSION_FAILED"
	EventSubscriptionRevoked Event = "SUBSCRIPTION_REVOKED"
	EventChatMessage         Event = "CHAT_MESSAGE"
	EventChannelBan          Event = "CHANNEL_BAN"
	EventChannelUnban        Event = "CHANNEL_UNBAN"
	EventTest                Event = "TEST"
)

// AllEvents returns a slice of all defined events.
func AllEvents() []Event {
	return []Event{
		EventSessionWelcome,
		EventSessionReconnect,
		EventSessionFailed,
		EventSubscriptionRevoked,
		EventChatMessage,
		EventChannelBan,
		EventChannelUnban,
		EventTest,
	}
}

// String returns the string representation of an Event.
func (e Event) String() string {
	return string(e)
}

// ParseEvent converts a string to an Event. Returns empty string if invalid.
func ParseEvent(s string) Event {
	for _, e := range AllEvents() {
		if string(e) == s {
			return e
		}
	}
	return ""
}
