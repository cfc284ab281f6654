package model

import (
	"strconv"
	"time"
)

// TransportWebSocket is the shard transport method bound to an EventSub socket session.
const TransportWebSocket = "websocket"

// Conduit is a durable EventSub subscription container owned by the app.
type Conduit struct {
	ID         string `json:"id"`
	ShardCount int    `json:"shard_count"`
}

// Shard is one transport slot of a conduit.
type Shard struct {
	ID        string         `json:"id"`
	Transport ShardTransport `json:"transport"`
}

// ShardTransport points a shard at a live socket session.
type ShardTransport struct {
	Method    string `json:"method"`
	SessionID string `json:"session_id,omitempty"`
}

// NewWebSocketShard returns the shard at index bound to sessionID.
func NewWebSocketShard(index int, sessionID string) Shard {
	return Shard{
		ID: strconv.Itoa(index),
		Transport: ShardTransport{
			Method:    TransportWebSocket,
			SessionID: sessionID,
		},
	}
}

// SessionState is the logical identity of an EventSub socket.
// It is replaced wholesale on every welcome or reconnect.
type SessionState struct {
	ID               string        `json:"id"`
	ConnectURL       string        `json:"connect_url"`
	KeepaliveTimeout time.Duration `json:"keepalive_timeout"`
}
