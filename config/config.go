package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// TomlFeed represents one watched feed endpoint. The order of feeds in the
// file is the order posts are detected and announced in.
type TomlFeed struct {
	Name     string `toml:"name"`
	URL      string `toml:"url"`
	Category string `toml:"category"`
}

// TomlFormatting holds the notification rendering rules
type TomlFormatting struct {
	StripPhrases []string `toml:"strip_phrases"`
	LinkBase     string   `toml:"link_base"`
	FallbackLink string   `toml:"fallback_link"`
	Color        int      `toml:"color"`
}

// TomlDiscord holds the delivery channel configuration. The bot token is
// deliberately not part of the file, it comes from the environment.
type TomlDiscord struct {
	ChannelID string `toml:"channel_id"`
}

// TomlTimings holds the poll and pacing durations in seconds
type TomlTimings struct {
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	MessageDelayMs      int `toml:"message_delay_ms"`
	ReadyTimeoutSeconds int `toml:"ready_timeout_seconds"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Feeds      []TomlFeed     `toml:"feeds"`
	Formatting TomlFormatting `toml:"formatting"`
	Discord    TomlDiscord    `toml:"discord"`
	Timings    TomlTimings    `toml:"timings"`
}

const (
	DefaultPollInterval = 60 * time.Second
	DefaultMessageDelay = 2 * time.Second
	DefaultReadyTimeout = 60 * time.Second
)

func LoadConfig(path string) (*TomlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config TomlConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

// PollInterval returns the configured poll interval or the default
func (c *TomlConfig) PollInterval() time.Duration {
	if c.Timings.PollIntervalSeconds > 0 {
		return time.Duration(c.Timings.PollIntervalSeconds) * time.Second
	}
	return DefaultPollInterval
}

// MessageDelay returns the configured inter-message delay or the default
func (c *TomlConfig) MessageDelay() time.Duration {
	if c.Timings.MessageDelayMs > 0 {
		return time.Duration(c.Timings.MessageDelayMs) * time.Millisecond
	}
	return DefaultMessageDelay
}

// ReadyTimeout returns how long to wait for the delivery channel to become
// ready before giving up on startup
func (c *TomlConfig) ReadyTimeout() time.Duration {
	if c.Timings.ReadyTimeoutSeconds > 0 {
		return time.Duration(c.Timings.ReadyTimeoutSeconds) * time.Second
	}
	return DefaultReadyTimeout
}
