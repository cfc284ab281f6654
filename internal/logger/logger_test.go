package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestWithComponent_PrefixesLines(t *testing.T) {
	var buf bytes.Buffer
	root, err := Setup(Config{Level: slog.LevelDebug, Output: &buf})
	require.NoError(t, err)

	root.WithComponent("eventsub").Info("connected", "session_id", "abc")

	line := buf.String()
	assert.Contains(t, line, "[eventsub] connected")
	assert.Contains(t, line, "session_id=abc")
}

func TestEvent_DispatchesNotification(t *testing.T) {
	var buf bytes.Buffer
	var gotEvent model.Event
	var gotMsg string

	log, err := Setup(Config{
		Level:  slog.LevelInfo,
		Output: &buf,
		NotifyFn: func(_ context.Context, message string, event model.Event) {
			gotEvent = event
			gotMsg = message
		},
	})
	require.NoError(t, err)

	log.WithComponent("relay").Event(context.Background(), model.EventSubscriptionRevoked, "Subscription revoked", "topic", "channel.ban")

	assert.Equal(t, model.EventSubscriptionRevoked, gotEvent)
	assert.Contains(t, gotMsg, "Subscription revoked")
	assert.Contains(t, buf.String(), "event=SUBSCRIPTION_REVOKED")
}

func TestEvent_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := Setup(Config{Level: slog.LevelWarn, Output: &buf})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
