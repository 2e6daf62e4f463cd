package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// cronParser accepts 5-field and 6-field (with seconds) expressions plus
// descriptors such as "@daily".
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseAt parses a timer's "at" cron expression.
func ParseAt(path, raw string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid cron expression %q: %w", path, raw, err)
	}
	return sched, nil
}
