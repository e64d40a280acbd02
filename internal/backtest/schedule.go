package backtest

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is a rebalancing cadence. Targets fall on period ends and are
// snapped onto the actual trading calendar before use.
type Frequency string

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
)

// ParseFrequency accepts the canonical names plus the common short aliases.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "d":
		return Daily, nil
	case "weekly", "w":
		return Weekly, nil
	case "monthly", "m", "me":
		return Monthly, nil
	case "quarterly", "q", "qe":
		return Quarterly, nil
	default:
		return "", fmt.Errorf("unknown rebalance frequency: %q", s)
	}
}

// TargetDates generates the period-end target dates within [start, end].
// Weekly targets fall on Sundays, monthly on the last calendar day of each
// month, quarterly on the last day of March, June, September, and December.
func TargetDates(freq Frequency, start, end time.Time) []time.Time {
	var targets []time.Time
	switch freq {
	case Daily:
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			targets = append(targets, d)
		}
	case Weekly:
		d := start
		for d.Weekday() != time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		for ; !d.After(end); d = d.AddDate(0, 0, 7) {
			targets = append(targets, d)
		}
	case Monthly:
		for d := monthEnd(start); !d.After(end); d = monthEnd(d.AddDate(0, 0, 1)) {
			if !d.Before(start) {
				targets = append(targets, d)
			}
		}
	case Quarterly:
		for d := monthEnd(start); !d.After(end); d = monthEnd(d.AddDate(0, 0, 1)) {
			if !d.Before(start) && d.Month()%3 == 0 {
				targets = append(targets, d)
			}
		}
	}
	return targets
}

// monthEnd returns the last day of d's month, preserving location, with the
// clock truncated to midnight.
func monthEnd(d time.Time) time.Time {
	firstOfNext := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location()).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1)
}

// SnapToCalendar maps each target date to the first calendar date at or after
// it, falling back to the last calendar date when none follows, and drops
// duplicates while preserving order. The calendar must be ascending.
func SnapToCalendar(targets, calendar []time.Time) []time.Time {
	if len(calendar) == 0 {
		return nil
	}
	var out []time.Time
	seen := make(map[time.Time]struct{})
	for _, target := range targets {
		snapped := calendar[len(calendar)-1]
		for _, d := range calendar {
			if !d.Before(target) {
				snapped = d
				break
			}
		}
		if _, dup := seen[snapped]; dup {
			continue
		}
		seen[snapped] = struct{}{}
		out = append(out, snapped)
	}
	return out
}
