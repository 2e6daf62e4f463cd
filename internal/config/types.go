package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`

	// Timers is the plan applied on startup and on every reload.
	Timers []TimerConfig `json:"timers,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls timeout scheduler diagnostics.
//
// Defaults (when fields are omitted/zero):
//   - panic_log_per_sec: 1
//   - panic_log_burst: 5
type SchedulerConfig struct {
	PanicLogPerSec float64 `json:"panic_log_per_sec,omitempty"`
	PanicLogBurst  int     `json:"panic_log_burst,omitempty"`

	// Timezone for "at" cron specs (IANA TZ, e.g. "Europe/Warsaw").
	// Empty means the local timezone.
	Timezone string `json:"timezone,omitempty"`
}

// TimerConfig declares one named one-shot timeout.
//
// Exactly one of Delay or At must be set:
//   - delay: Go duration string ("500ms", "10s", "1m")
//   - at: cron expression; the timer fires once at its next occurrence
//
// StopAfter (Go duration string) cancels the timer after that long; a
// StopAfter shorter than the delay means the callback never runs.
type TimerConfig struct {
	Name      string `json:"name"`
	Delay     string `json:"delay,omitempty"`
	At        string `json:"at,omitempty"`
	StopAfter string `json:"stop_after,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Validate checks structural rules that do not need a clock.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Scheduler.PanicLogPerSec < 0 {
		return errors.New("scheduler.panic_log_per_sec: must be >= 0")
	}
	if c.Scheduler.PanicLogBurst < 0 {
		return errors.New("scheduler.panic_log_burst: must be >= 0")
	}
	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
	}

	seen := make(map[string]bool, len(c.Timers))
	var errs []error
	for i, tc := range c.Timers {
		path := fmt.Sprintf("timers[%d]", i)
		name := strings.TrimSpace(tc.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%s.name: required", path))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("%s.name: duplicate %q", path, name))
		}
		seen[name] = true

		hasDelay := strings.TrimSpace(tc.Delay) != ""
		hasAt := strings.TrimSpace(tc.At) != ""
		switch {
		case hasDelay && hasAt:
			errs = append(errs, fmt.Errorf("%s: delay and at are mutually exclusive", path))
		case !hasDelay && !hasAt:
			errs = append(errs, fmt.Errorf("%s: one of delay or at is required", path))
		case hasDelay:
			if _, err := ParseDurationField(path+".delay", tc.Delay); err != nil {
				errs = append(errs, err)
			}
		default:
			if _, err := ParseAt(path+".at", tc.At); err != nil {
				errs = append(errs, err)
			}
		}
		if _, err := ParseDurationField(path+".stop_after", tc.StopAfter); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
