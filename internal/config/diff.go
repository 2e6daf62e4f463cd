package config

import (
	"sort"
	"strings"

	logx "timeoutsched/pkg/logx"
)

// TimerChanges lists timer names by how they differ between two configs.
type TimerChanges struct {
	Added   []string
	Removed []string
	Changed []string
}

func (c TimerChanges) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// DiffTimers compares the timer plans of two configs by name.
func DiffTimers(oldCfg, newCfg *Config) TimerChanges {
	oldT := timersByName(oldCfg)
	newT := timersByName(newCfg)

	var ch TimerChanges
	for name, nt := range newT {
		ot, ok := oldT[name]
		switch {
		case !ok:
			ch.Added = append(ch.Added, name)
		case ot != nt:
			ch.Changed = append(ch.Changed, name)
		}
	}
	for name := range oldT {
		if _, ok := newT[name]; !ok {
			ch.Removed = append(ch.Removed, name)
		}
	}
	sort.Strings(ch.Added)
	sort.Strings(ch.Removed)
	sort.Strings(ch.Changed)
	return ch
}

func timersByName(cfg *Config) map[string]TimerConfig {
	m := map[string]TimerConfig{}
	if cfg == nil {
		return m
	}
	for _, tc := range cfg.Timers {
		m[strings.TrimSpace(tc.Name)] = tc
	}
	return m
}

// SummarizeConfigChange returns the changed sections and structured attrs
// for logging a reload.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 3)
	attrs := make([]logx.Field, 0, 8)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Float64("scheduler.panic_log_per_sec", newCfg.Scheduler.PanicLogPerSec),
			logx.Int("scheduler.panic_log_burst", newCfg.Scheduler.PanicLogBurst),
		)
	}
	if tc := DiffTimers(oldCfg, newCfg); !tc.Empty() {
		changed = append(changed, "timers")
		attrs = append(attrs,
			logx.Any("timers.added", tc.Added),
			logx.Any("timers.removed", tc.Removed),
			logx.Any("timers.changed", tc.Changed),
		)
	}
	return changed, attrs
}
