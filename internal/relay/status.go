package relay

import (
	"time"

	"github.com/Guliveer/twitch-eventsub-relay/internal/eventbus"
	"github.com/Guliveer/twitch-eventsub-relay/internal/eventsub"
)

// Status is a point-in-time view of the relay for the health endpoint.
type Status struct {
	Running          bool                  `json:"running"`
	State            string                `json:"state"`
	Live             bool                  `json:"live"`
	SessionID        string                `json:"session_id,omitempty"`
	ConnectURL       string                `json:"connect_url,omitempty"`
	KeepaliveTimeout string                `json:"keepalive_timeout,omitempty"`
	ConduitID        string                `json:"conduit_id,omitempty"`
	StartedAt        *time.Time            `json:"started_at,omitempty"`
	Error            string                `json:"error,omitempty"`
	Topics           []eventbus.TopicStats `json:"topics"`
}

// Status returns the current state of the relay. Safe for concurrent use.
func (r *Relay) Status() Status {
	r.mu.RLock()
	session := r.session
	st := Status{
		Running:   r.running,
		State:     eventsub.StateDisconnected.String(),
		ConduitID: r.conduit.ID,
	}
	if !r.startedAt.IsZero() {
		started := r.startedAt
		st.StartedAt = &started
	}
	if r.lastErr != nil {
		st.Error = r.lastErr.Error()
	}
	r.mu.RUnlock()

	if session != nil {
		state := session.State()
		current := session.Current()
		st.State = state.String()
		st.Live = state == eventsub.StateLive
		st.SessionID = current.ID
		st.ConnectURL = current.ConnectURL
		if current.KeepaliveTimeout > 0 {
			st.KeepaliveTimeout = current.KeepaliveTimeout.String()
		}
	}

	st.Topics = r.bus.Stats()
	return st
}
