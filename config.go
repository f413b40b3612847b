package ryzensmu

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amkillam/ryzen-smu/internal/mailbox"
	"github.com/amkillam/ryzen-smu/internal/pmtable"
)

// Defaults and clamp bounds for the externally tunable knobs. Out-of-range
// values are clamped, not rejected, so a bad config file cannot produce
// pathological busy-waiting or premature timeouts.
const (
	DefaultTimeoutAttempts = mailbox.DefaultAttempts

	MaxPollIntervalUs = 10000

	DefaultRefreshIntervalMs = 1000
)

// Config carries the engine's tunable bounds. The zero value means "use
// defaults". Nothing is persisted; all state is re-derived at each start.
type Config struct {
	// TimeoutAttempts bounds response polling per command. Clamped to
	// [500, 32768].
	TimeoutAttempts uint `yaml:"timeoutAttempts,omitempty"`

	// PollIntervalUs is slept between response polls, in microseconds.
	// Zero busy-polls, matching the hardware mailbox's expected latency.
	// Clamped to at most 10000.
	PollIntervalUs uint `yaml:"pollIntervalUs,omitempty"`

	// RefreshIntervalMs is the minimum spacing between PM table refresh
	// triggers, in milliseconds. Clamped to [1, 60000].
	RefreshIntervalMs uint `yaml:"refreshIntervalMs,omitempty"`
}

// LoadConfig reads a yaml Config from path.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// withDefaults fills unset fields and clamps the rest.
func (c Config) withDefaults() Config {
	if c.TimeoutAttempts == 0 {
		c.TimeoutAttempts = DefaultTimeoutAttempts
	}
	c.TimeoutAttempts = mailbox.ClampAttempts(c.TimeoutAttempts)

	if c.PollIntervalUs > MaxPollIntervalUs {
		c.PollIntervalUs = MaxPollIntervalUs
	}

	if c.RefreshIntervalMs == 0 {
		c.RefreshIntervalMs = DefaultRefreshIntervalMs
	}
	return c
}

func (c Config) pollInterval() time.Duration {
	return time.Duration(c.PollIntervalUs) * time.Microsecond
}

func (c Config) refreshInterval() time.Duration {
	return pmtable.ClampRefreshInterval(time.Duration(c.RefreshIntervalMs) * time.Millisecond)
}
