package app

import (
	"fmt"
	"strings"
	"time"

	"timeoutsched/internal/config"
)

// plannedTimer is a TimerConfig resolved against a clock.
type plannedTimer struct {
	name      string
	delay     time.Duration
	stopAfter time.Duration
	message   string
	source    string // "delay" | "at"
}

// resolveTimer turns a TimerConfig into a concrete delay from now.
//
// An "at" spec fires once at its next occurrence after now; it is never
// re-armed after firing.
func resolveTimer(tc config.TimerConfig, now time.Time, loc *time.Location) (plannedTimer, error) {
	name := strings.TrimSpace(tc.Name)
	pt := plannedTimer{name: name, message: tc.Message}

	stopAfter, err := config.ParseDurationField(name+".stop_after", tc.StopAfter)
	if err != nil {
		return plannedTimer{}, err
	}
	pt.stopAfter = stopAfter

	if at := strings.TrimSpace(tc.At); at != "" {
		sched, err := config.ParseAt(name+".at", at)
		if err != nil {
			return plannedTimer{}, err
		}
		if loc == nil {
			loc = time.Local
		}
		next := sched.Next(now.In(loc))
		if next.IsZero() {
			return plannedTimer{}, fmt.Errorf("%s.at: %q has no future occurrence", name, at)
		}
		pt.delay = next.Sub(now)
		pt.source = "at"
		return pt, nil
	}

	d, err := config.ParseDurationField(name+".delay", tc.Delay)
	if err != nil {
		return plannedTimer{}, err
	}
	pt.delay = d
	pt.source = "delay"
	return pt, nil
}
