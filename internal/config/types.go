package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the daemon configuration. YAML or JSON on disk; YAML is
// coerced to JSON so both share one strict decoder.
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Notifier  NotifierConfig  `json:"notifier,omitempty"`

	// Propagation controls the cascade's read-error policy.
	Propagation PropagationConfig `json:"propagation,omitempty"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console *bool      `json:"console,omitempty"` // default true
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

type StorageConfig struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string (e.g. "500ms").
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type SchedulerConfig struct {
	Workers  int    `json:"workers,omitempty"`
	Timezone string `json:"timezone,omitempty"` // IANA TZ for job triggers; empty = UTC

	// ExpirySyncAt is the daily HH:MM at which overdue actions are
	// swept to DELAYED.
	ExpirySyncAt string `json:"expiry_sync_at,omitempty"`

	// HorizonCron triggers occurrence generation; HorizonDays is how
	// far ahead occurrences are materialized.
	HorizonCron string `json:"horizon_cron,omitempty"`
	HorizonDays int    `json:"horizon_days,omitempty"`
}

type NotifierConfig struct {
	Enabled    *bool  `json:"enabled,omitempty"` // default true
	Workers    int    `json:"workers,omitempty"`
	QueueSize  int    `json:"queue_size,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	// PollInterval is a Go duration string.
	PollInterval string `json:"poll_interval,omitempty"`
}

type PropagationConfig struct {
	// FailClosed aborts a cascade on repository read errors instead of
	// degrading to an empty child set.
	FailClosed bool `json:"fail_closed,omitempty"`
}

// Normalize fills defaults in place.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "INFO"
	}
	if c.Scheduler.Workers <= 0 {
		c.Scheduler.Workers = 2
	}
	if strings.TrimSpace(c.Scheduler.ExpirySyncAt) == "" {
		c.Scheduler.ExpirySyncAt = "02:00"
	}
	if strings.TrimSpace(c.Scheduler.HorizonCron) == "" {
		c.Scheduler.HorizonCron = "@daily"
	}
	if c.Scheduler.HorizonDays <= 0 {
		c.Scheduler.HorizonDays = 7
	}
}

// Validate rejects configs the daemon cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("notifier.poll_interval", c.Notifier.PollInterval); err != nil {
		return err
	}
	return nil
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// BoolOr resolves an optional bool with a default.
func BoolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
