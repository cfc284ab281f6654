// Package constants defines the EventSub endpoint and topic names, the
// socket read limit, and default timeout/interval values used throughout
// the relay.
package constants

import "time"

const (
	// EventSubWebSocketURL is the default Twitch EventSub WebSocket endpoint.
	EventSubWebSocketURL = "wss://eventsub.wss.twitch.tv/ws"

	// MaxMessageSize bounds a single WebSocket message read from EventSub.
	// coder/websocket has no separate per-frame limit.
	MaxMessageSize = 64 << 20 // 64 MiB
)

const (
	// TopicChatMessage is the EventSub type for chat messages.
	TopicChatMessage = "channel.chat.message"
	// TopicChannelBan is the EventSub type for bans and timeouts.
	TopicChannelBan = "channel.ban"
	// TopicChannelUnban is the EventSub type for unbans.
	TopicChannelUnban = "channel.unban"
)

const (
	// DefaultShardCount is the shard count used when creating a conduit.
	// One socket maps to one shard.
	DefaultShardCount = 1
	// DefaultShardIndex is the shard bound to the relay's socket.
	DefaultShardIndex = 0
	// DefaultBusCapacity is the per-subscriber buffer of the event bus.
	DefaultBusCapacity = 64
	// SubscriptionWorkers bounds concurrent subscription creation calls.
	SubscriptionWorkers = 4
)

const (
	// DefaultHTTPTimeout bounds a single app token request.
	DefaultHTTPTimeout = 15 * time.Second
	// DefaultMaxRetries is the number of retries for transient Helix failures.
	DefaultMaxRetries = 3
	// DefaultKeepaliveTimeout is assumed until a welcome message declares one.
	DefaultKeepaliveTimeout = 10 * time.Second
	// KeepaliveGrace is added to the declared keepalive timeout before the
	// connection is considered dead.
	KeepaliveGrace = 5 * time.Second
	// TokenExpirySkew is subtracted from a token's expiry when checking staleness.
	TokenExpirySkew = 30 * time.Second
	// DialMaxTries bounds consecutive failed dial attempts, and consecutive
	// connections dropped before a welcome, before the session gives up.
	DialMaxTries = 5
	// DialInitialBackoff is the first delay between failed dial attempts.
	DialInitialBackoff = time.Second
	// DialMaxBackoff caps the delay between failed dial attempts.
	DialMaxBackoff = 30 * time.Second
	// DefaultGracefulShutdownTimeout is the timeout for graceful HTTP server shutdown.
	DefaultGracefulShutdownTimeout = 5 * time.Second
)
