package config

import "time"

// Config is the full relay configuration loaded from a YAML file and
// overlaid with environment variables.
type Config struct {
	Twitch        TwitchConfig        `yaml:"twitch"`
	EventSub      EventSubConfig      `yaml:"eventsub"`
	Channels      []ChannelConfig     `yaml:"channels"`
	Bus           BusConfig           `yaml:"bus"`
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// TwitchConfig holds the application credentials.
type TwitchConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"-"`
	// BotUserID is the user the relay reads chat as. Required for chat topics.
	BotUserID string `yaml:"bot_user_id"`
}

// EventSubConfig holds the socket and conduit settings.
type EventSubConfig struct {
	URL            string        `yaml:"url,omitempty"`
	ShardCount     int           `yaml:"shard_count"`
	ShardIndex     int           `yaml:"shard_index"`
	Topics         []string      `yaml:"topics"`
	KeepaliveGrace time.Duration `yaml:"keepalive_grace"`
	DialMaxTries   int           `yaml:"dial_max_tries"`
}

// ChannelConfig is one broadcaster the relay subscribes to.
type ChannelConfig struct {
	BroadcasterID string `yaml:"broadcaster_id"`
	Name          string `yaml:"name,omitempty"`
	LogEvents     *bool  `yaml:"log_events,omitempty"`
}

// ShouldLogEvents reports whether events of the channel are written to the log.
func (c ChannelConfig) ShouldLogEvents() bool {
	return c.LogEvents == nil || *c.LogEvents
}

// DisplayName returns the channel name, or its id when no name is set.
func (c ChannelConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.BroadcasterID
}

// BusConfig sizes the in-process event bus.
type BusConfig struct {
	Capacity int `yaml:"capacity"`
}

// ServerConfig controls the health endpoint.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig controls console and file logging.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	FileLevel string `yaml:"file_level"`
	Dir       string `yaml:"dir,omitempty"`
}

// NotificationsConfig holds all notification provider configurations.
type NotificationsConfig struct {
	Telegram *TelegramConfig `yaml:"telegram,omitempty"`
	Discord  *DiscordConfig  `yaml:"discord,omitempty"`
	Webhook  *WebhookConfig  `yaml:"webhook,omitempty"`
}

// TelegramConfig holds Telegram notification settings.
type TelegramConfig struct {
	Enabled             bool     `yaml:"enabled"`
	Token               string   `yaml:"token,omitempty"`
	ChatID              string   `yaml:"chat_id,omitempty"`
	Events              []string `yaml:"events"`
	DisableNotification bool     `yaml:"disable_notification"`
}

// DiscordConfig holds Discord notification settings.
type DiscordConfig struct {
	Enabled    bool     `yaml:"enabled"`
	WebhookURL string   `yaml:"webhook_url,omitempty"`
	Events     []string `yaml:"events"`
}

// WebhookConfig holds generic webhook notification settings.
type WebhookConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Endpoint string   `yaml:"endpoint,omitempty"`
	Method   string   `yaml:"method"`
	Events   []string `yaml:"events"`
}
