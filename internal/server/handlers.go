package server

import (
	"encoding/json"
	"net/http"
	"time"
)

type healthResponse struct {
	Status      string    `json:"status"`
	Timestamp   string    `json:"timestamp"`
	State       string    `json:"state"`
	SessionID   string    `json:"session_id,omitempty"`
	ConduitID   string    `json:"conduit_id,omitempty"`
	Channels    []channel `json:"channels"`
	Subscribers int       `json:"subscribers"`
}

type channel struct {
	BroadcasterID string `json:"broadcaster_id"`
	Subscribers   int    `json:"subscribers"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleHealth reports 200 only while the session is live.
func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.status()

	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		State:     st.State,
		SessionID: st.SessionID,
		ConduitID: st.ConduitID,
		Channels:  make([]channel, 0, len(st.Topics)),
	}
	for _, t := range st.Topics {
		resp.Channels = append(resp.Channels, channel{BroadcasterID: t.BroadcasterID, Subscribers: t.Subscribers})
		resp.Subscribers += t.Subscribers
	}

	status := http.StatusOK
	if !st.Live {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *StatusServer) handleChannel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	for _, t := range s.status().Topics {
		if t.BroadcasterID == id {
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "no subscribers for channel " + id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v) //nolint:errcheck
}
