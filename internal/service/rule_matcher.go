package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/medwatch/emias-tracker-api/internal/models"
)

// minuteOfDay is a clock time within one day, minute precision.
type minuteOfDay int

func clockOf(t time.Time) minuteOfDay {
	return minuteOfDay(t.Hour()*60 + t.Minute())
}

// parseWindow parses a normalised or raw "HH:MM-HH:MM" window. A bare
// "HH:MM" degenerates to a single-minute window.
func parseWindow(window string) (start, end minuteOfDay, ok bool) {
	s := dashRe.ReplaceAllString(strings.TrimSpace(window), "-")
	parts := strings.SplitN(s, "-", 2)
	if len(parts) == 1 {
		point, pointOK := parseClockMinutes(parts[0])
		return point, point, pointOK
	}
	start, ok = parseClockMinutes(parts[0])
	if !ok {
		return 0, 0, false
	}
	end, ok = parseClockMinutes(parts[1])
	return start, end, ok
}

func parseClockMinutes(raw string) (minuteOfDay, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ".", ":")
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return minuteOfDay(hour*60 + minute), true
}

// timeInWindows reports whether the clock time falls into any window.
// No windows means the whole day. Bounds are inclusive; a window whose
// end precedes its start spans midnight. A window string that cannot be
// parsed imposes no constraint, so the rule still matches: the engine
// prefers over-notification to silently dead rules.
func timeInWindows(clock minuteOfDay, windows []string) bool {
	if len(windows) == 0 {
		return true
	}
	for _, window := range windows {
		start, end, ok := parseWindow(window)
		if !ok {
			return true
		}
		if start <= end {
			if clock >= start && clock <= end {
				return true
			}
		} else if clock >= start || clock <= end {
			return true
		}
	}
	return false
}

// MatchesRules reports whether the instant satisfies the rule list.
// An empty list matches everything; rules combine with OR. Weekday rules
// recur weekly; date rules match one calendar day. Date comparison is in
// the instant's own location.
func MatchesRules(t time.Time, rules models.RuleList) bool {
	if len(rules) == 0 {
		return true
	}
	clock := clockOf(t)
	for _, rule := range rules {
		switch rule.Kind {
		case models.RuleKindWeekday:
			wd, ok := weekdayTokens[strings.ToLower(rule.Value)]
			if !ok || t.Weekday() != wd {
				continue
			}
			if timeInWindows(clock, rule.Windows) {
				return true
			}
		case models.RuleKindDate:
			target, ok := parseRuleDate(rule.Value, t)
			if !ok {
				continue
			}
			y1, m1, d1 := target.Date()
			y2, m2, d2 := t.Date()
			if y1 != y2 || m1 != m2 || d1 != d2 {
				continue
			}
			if timeInWindows(clock, rule.Windows) {
				return true
			}
		}
	}
	return false
}
