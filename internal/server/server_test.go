package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/twitch-eventsub-relay/internal/eventbus"
	"github.com/Guliveer/twitch-eventsub-relay/internal/logger"
	"github.com/Guliveer/twitch-eventsub-relay/internal/relay"
)

func liveStatus() relay.Status {
	return relay.Status{
		Running:   true,
		State:     "live",
		Live:      true,
		SessionID: "session-1",
		ConduitID: "conduit-1",
		Topics: []eventbus.TopicStats{
			{BroadcasterID: "1001", Subscribers: 2, Published: 10},
			{BroadcasterID: "1002", Subscribers: 1, Published: 3, Dropped: 1},
		},
	}
}

func newTestServer(t *testing.T, status StatusFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewStatusServer(":0", status, logger.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHealth_Live(t *testing.T) {
	srv := newTestServer(t, liveStatus)

	var body healthResponse
	code := get(t, srv.URL+"/health", &body)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "session-1", body.SessionID)
	assert.Equal(t, "conduit-1", body.ConduitID)
	assert.Equal(t, 3, body.Subscribers)
	assert.Equal(t, []channel{{"1001", 2}, {"1002", 1}}, body.Channels)
}

func TestHealth_NotLiveIsUnavailable(t *testing.T) {
	srv := newTestServer(t, func() relay.Status {
		return relay.Status{State: "reconnecting"}
	})

	var body healthResponse
	code := get(t, srv.URL+"/health", &body)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "reconnecting", body.State)
	assert.Empty(t, body.Channels)
}

func TestStatus(t *testing.T) {
	srv := newTestServer(t, liveStatus)

	var body relay.Status
	code := get(t, srv.URL+"/api/status", &body)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, liveStatus(), body)
}

func TestChannel(t *testing.T) {
	srv := newTestServer(t, liveStatus)

	var stats eventbus.TopicStats
	code := get(t, srv.URL+"/api/channels/1002", &stats)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, uint64(1), stats.Dropped)

	var errBody errorResponse
	code = get(t, srv.URL+"/api/channels/404", &errBody)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, errBody.Error, "404")
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := NewStatusServer(addr, liveStatus, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
