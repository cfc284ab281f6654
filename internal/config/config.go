// Package config loads the relay configuration: a YAML file with defaults,
// environment variable overrides for secrets, and command-line options.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Guliveer/twitch-eventsub-relay/internal/constants"
	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
)

// DefaultConfigPath is the config file used when none is given.
const DefaultConfigPath = "config.yaml"

// DefaultServerAddr is the listen address of the health endpoint.
const DefaultServerAddr = ":8080"

// Load reads the YAML file at path, applies defaults and overlays secrets
// from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document into a Config, then applies defaults and
// environment overrides.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.EventSub.URL == "" {
		cfg.EventSub.URL = constants.EventSubWebSocketURL
	}
	if cfg.EventSub.ShardCount == 0 {
		cfg.EventSub.ShardCount = constants.DefaultShardCount
	}
	if len(cfg.EventSub.Topics) == 0 {
		cfg.EventSub.Topics = []string{constants.TopicChannelBan, constants.TopicChannelUnban}
		if cfg.Twitch.BotUserID != "" {
			cfg.EventSub.Topics = append(cfg.EventSub.Topics, constants.TopicChatMessage)
		}
	}
	if cfg.EventSub.KeepaliveGrace == 0 {
		cfg.EventSub.KeepaliveGrace = constants.KeepaliveGrace
	}
	if cfg.EventSub.DialMaxTries == 0 {
		cfg.EventSub.DialMaxTries = constants.DialMaxTries
	}

	if cfg.Bus.Capacity == 0 {
		cfg.Bus.Capacity = constants.DefaultBusCapacity
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.FileLevel == "" {
		cfg.Logging.FileLevel = "DEBUG"
	}
}

// applyEnvOverrides overlays environment variables for secrets. Notification
// variables only apply to providers present in the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TWITCH_CLIENT_ID"); v != "" {
		cfg.Twitch.ClientID = v
	}
	if v := os.Getenv("TWITCH_CLIENT_SECRET"); v != "" {
		cfg.Twitch.ClientSecret = v
	}
	if v := os.Getenv("TWITCH_BOT_USER_ID"); v != "" {
		cfg.Twitch.BotUserID = v
	}

	if cfg.Notifications.Telegram != nil {
		if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
			cfg.Notifications.Telegram.Token = v
		}
		if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
			cfg.Notifications.Telegram.ChatID = v
		}
	}

	if cfg.Notifications.Discord != nil {
		if v := os.Getenv("DISCORD_WEBHOOK"); v != "" {
			cfg.Notifications.Discord.WebhookURL = v
		}
	}

	if cfg.Notifications.Webhook != nil {
		if v := os.Getenv("WEBHOOK_URL"); v != "" {
			cfg.Notifications.Webhook.Endpoint = v
		}
	}
}

// Validate checks the configuration for common errors.
func Validate(cfg *Config) error {
	if cfg.Twitch.ClientID == "" {
		return errors.New("twitch.client_id is required (or set TWITCH_CLIENT_ID)")
	}
	if cfg.Twitch.ClientSecret == "" {
		return errors.New("client secret is required (set TWITCH_CLIENT_SECRET)")
	}

	if len(cfg.Channels) == 0 {
		return errors.New("at least one channel must be configured")
	}
	seen := make(map[string]bool, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		if ch.BroadcasterID == "" {
			return fmt.Errorf("channel at index %d has empty broadcaster_id", i)
		}
		if seen[ch.BroadcasterID] {
			return fmt.Errorf("channel %s is configured twice", ch.BroadcasterID)
		}
		seen[ch.BroadcasterID] = true
	}

	topics, err := cfg.SubscriptionTopics()
	if err != nil {
		return err
	}
	for _, topic := range topics {
		if topic.RequiresUser() && cfg.Twitch.BotUserID == "" {
			return fmt.Errorf("topic %s requires twitch.bot_user_id (or TWITCH_BOT_USER_ID)", topic)
		}
	}

	if cfg.EventSub.ShardIndex < 0 || cfg.EventSub.ShardIndex >= cfg.EventSub.ShardCount {
		return fmt.Errorf("eventsub.shard_index %d out of range for %d shards", cfg.EventSub.ShardIndex, cfg.EventSub.ShardCount)
	}
	if cfg.Bus.Capacity < 1 {
		return fmt.Errorf("bus.capacity must be positive, got %d", cfg.Bus.Capacity)
	}

	if t := cfg.Notifications.Telegram; t != nil && t.Enabled {
		if t.Token == "" || t.ChatID == "" {
			return errors.New("telegram enabled but token or chat_id not set (use env vars TELEGRAM_TOKEN and TELEGRAM_CHAT_ID)")
		}
	}
	if d := cfg.Notifications.Discord; d != nil && d.Enabled && d.WebhookURL == "" {
		return errors.New("discord enabled but webhook_url not set (use env var DISCORD_WEBHOOK)")
	}
	if w := cfg.Notifications.Webhook; w != nil && w.Enabled && w.Endpoint == "" {
		return errors.New("webhook enabled but endpoint not set (use env var WEBHOOK_URL)")
	}

	return nil
}

// SubscriptionTopics parses the configured EventSub topic names.
func (c *Config) SubscriptionTopics() ([]model.SubscriptionTopic, error) {
	topics := make([]model.SubscriptionTopic, 0, len(c.EventSub.Topics))
	for _, name := range c.EventSub.Topics {
		topic := model.ParseTopic(strings.TrimSpace(name))
		if topic == model.TopicUnknown {
			return nil, fmt.Errorf("unsupported eventsub topic %q", name)
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

// BroadcasterIDs returns the ids of all configured channels in file order.
func (c *Config) BroadcasterIDs() []string {
	ids := make([]string, 0, len(c.Channels))
	for _, ch := range c.Channels {
		ids = append(ids, ch.BroadcasterID)
	}
	return ids
}

// SubscriptionSpecs returns the desired subscriptions: every configured
// topic for every channel.
func (c *Config) SubscriptionSpecs() ([]model.SubscriptionSpec, error) {
	topics, err := c.SubscriptionTopics()
	if err != nil {
		return nil, err
	}
	return model.BuildSubscriptionSpecs(c.BroadcasterIDs(), topics, c.Twitch.BotUserID), nil
}
