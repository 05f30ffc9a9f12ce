package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/medwatch/emias-tracker-api/internal/models"
)

// Day tokens accepted in tracking input. Russian is the primary input
// language; English weekday names are accepted as well.
var weekdayTokens = map[string]time.Weekday{
	"понедельник": time.Monday,
	"вторник":     time.Tuesday,
	"среда":       time.Wednesday,
	"четверг":     time.Thursday,
	"пятница":     time.Friday,
	"суббота":     time.Saturday,
	"воскресенье": time.Sunday,
	"monday":      time.Monday,
	"tuesday":     time.Tuesday,
	"wednesday":   time.Wednesday,
	"thursday":    time.Thursday,
	"friday":      time.Friday,
	"saturday":    time.Saturday,
	"sunday":      time.Sunday,
}

// weekdayValue canonicalises a recognised weekday token to the stored
// English name.
var weekdayValue = map[time.Weekday]string{
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
	time.Sunday:    "sunday",
}

var monthTokens = map[string]time.Month{
	"январь": time.January, "января": time.January,
	"февраль": time.February, "февраля": time.February,
	"март": time.March, "марта": time.March,
	"апрель": time.April, "апреля": time.April,
	"май": time.May, "мая": time.May,
	"июнь": time.June, "июня": time.June,
	"июль": time.July, "июля": time.July,
	"август": time.August, "августа": time.August,
	"сентябрь": time.September, "сентября": time.September,
	"октябрь": time.October, "октября": time.October,
	"ноябрь": time.November, "ноября": time.November,
	"декабрь": time.December, "декабря": time.December,
}

var (
	dashRe      = regexp.MustCompile(`[–—]`)
	timeRangeRe = regexp.MustCompile(`\d{1,2}[:.]\d{2}\s*[-–—]\s*\d{1,2}[:.]\d{2}`)
	isoDateRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// NormalizeTimeRange canonicalises a time window to "HH:MM-HH:MM":
// unicode dashes become hyphens, surrounding spaces are dropped and
// hours get a leading zero. Strings that do not look like a window are
// returned unchanged.
func NormalizeTimeRange(raw string) string {
	s := strings.TrimSpace(dashRe.ReplaceAllString(raw, "-"))
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return s
	}
	start, okStart := normalizeClock(parts[0])
	end, okEnd := normalizeClock(parts[1])
	if !okStart || !okEnd {
		return s
	}
	return start + "-" + end
}

func normalizeClock(raw string) (string, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ".", ":")
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return "", false
	}
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hour < 0 || hour > 23 {
		return "", false
	}
	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || minute < 0 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// ParseTrackingInput turns free-form tracking text into rules. Clauses
// are comma separated; each clause is a day token optionally followed by
// time windows ("понедельник: 08:00-12:00;14:00-16:00" or
// "завтра 10:00-12:00"). Relative day tokens are frozen to calendar
// dates at parse time; weekday tokens stay recurring. Unrecognised day
// tokens are kept as fallback date rules so the user can inspect them.
// The function never fails: empty input yields an empty list.
func ParseTrackingInput(text string, now time.Time) models.RuleList {
	rules := models.RuleList{}
	for _, clause := range strings.Split(text, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		rules = append(rules, parseClause(clause, now))
	}
	return rules
}

func parseClause(clause string, now time.Time) models.Rule {
	lower := strings.ToLower(clause)

	// "day: window;window" — everything after the first colon that is a
	// clause separator (not part of a clock value) is the window list.
	if day, windows, ok := splitDayWindows(lower); ok {
		return normalizeRule(day, windows, now)
	}

	// "day window" — single window after the day token.
	if loc := timeRangeRe.FindStringIndex(lower); loc != nil {
		day := strings.TrimSpace(lower[:loc[0]])
		window := lower[loc[0]:loc[1]]
		if day == "" {
			// Bare time window constrains every day.
			return normalizeRule("", []string{window}, now)
		}
		return normalizeRule(day, []string{window}, now)
	}

	// Bare day token, whole day.
	return normalizeRule(lower, nil, now)
}

// splitDayWindows handles the explicit "day: r1;r2" form. The colon must
// come before any digit so that "10:00-12:00" is not mistaken for a
// separator.
func splitDayWindows(clause string) (string, []string, bool) {
	idx := strings.Index(clause, ":")
	if idx < 0 {
		return "", nil, false
	}
	day := strings.TrimSpace(clause[:idx])
	if day == "" || strings.ContainsAny(day, "0123456789") && !looksLikeDate(day) {
		return "", nil, false
	}
	if looksLikeClockPrefix(day) {
		return "", nil, false
	}
	var windows []string
	for _, part := range strings.Split(clause[idx+1:], ";") {
		if part = strings.TrimSpace(part); part != "" {
			windows = append(windows, part)
		}
	}
	return day, windows, true
}

func looksLikeDate(s string) bool {
	if isoDateRe.MatchString(s) || strings.Contains(s, ".") {
		return true
	}
	fields := strings.Fields(s)
	if len(fields) == 2 {
		if _, err := strconv.Atoi(fields[0]); err == nil {
			_, ok := monthTokens[fields[1]]
			return ok
		}
	}
	return false
}

// looksLikeClockPrefix guards against treating "10:00-12:00" as a day
// clause: the text before the colon is then a bare hour.
func looksLikeClockPrefix(day string) bool {
	if len(day) > 2 {
		return false
	}
	_, err := strconv.Atoi(day)
	return err == nil
}

func normalizeRule(day string, windows []string, now time.Time) models.Rule {
	normalized := make([]string, 0, len(windows))
	for _, window := range windows {
		normalized = append(normalized, NormalizeTimeRange(window))
	}

	day = strings.TrimSpace(day)
	if wd, ok := weekdayTokens[day]; ok {
		return models.Rule{Kind: models.RuleKindWeekday, Value: weekdayValue[wd], Windows: normalized}
	}
	if target, ok := resolveRelativeDay(day, now); ok {
		return models.Rule{Kind: models.RuleKindDate, Value: target.Format("2006-01-02"), Windows: normalized}
	}
	if target, ok := parseRuleDate(day, now); ok {
		return models.Rule{Kind: models.RuleKindDate, Value: target.Format("2006-01-02"), Windows: normalized}
	}
	// Unrecognised token: keep the literal so the rule is visible and
	// fixable instead of silently dropped.
	return models.Rule{Kind: models.RuleKindDate, Value: day, Windows: normalized, Fallback: true}
}

func resolveRelativeDay(token string, now time.Time) (time.Time, bool) {
	switch token {
	case "сегодня", "today":
		return now, true
	case "завтра", "tomorrow":
		return now.AddDate(0, 0, 1), true
	}
	return time.Time{}, false
}

// parseRuleDate resolves a day token to a calendar date: ISO
// "YYYY-MM-DD", "DD.MM" and "DD.MM.YYYY", or "DD <russian month>"
// with an optional year. Years default to the reference year.
func parseRuleDate(token string, now time.Time) (time.Time, bool) {
	token = strings.TrimSpace(strings.ToLower(token))
	if token == "" {
		return time.Time{}, false
	}
	if target, ok := resolveRelativeDay(token, now); ok {
		return target, true
	}
	for _, layout := range []string{"2006-01-02", "02.01.2006", "2.1.2006"} {
		if t, err := time.Parse(layout, token); err == nil {
			return t, true
		}
	}
	if strings.Contains(token, ".") {
		parts := strings.Split(token, ".")
		if len(parts) >= 2 {
			day, errDay := strconv.Atoi(parts[0])
			month, errMonth := strconv.Atoi(parts[1])
			if errDay == nil && errMonth == nil && month >= 1 && month <= 12 && day >= 1 && day <= 31 {
				return time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location()), true
			}
		}
		return time.Time{}, false
	}
	fields := strings.Fields(strings.ReplaceAll(token, "-", " "))
	if len(fields) >= 2 {
		day, err := strconv.Atoi(fields[0])
		if err != nil {
			return time.Time{}, false
		}
		month, ok := monthTokens[fields[1]]
		if !ok {
			return time.Time{}, false
		}
		year := now.Year()
		if len(fields) >= 3 {
			if y, err := strconv.Atoi(fields[2]); err == nil {
				year = y
			}
		}
		if day < 1 || day > 31 {
			return time.Time{}, false
		}
		return time.Date(year, month, day, 0, 0, 0, 0, now.Location()), true
	}
	return time.Time{}, false
}

// MigrateRules re-normalises stored rules: still-relative values are
// frozen, recognisable non-ISO date values are rewritten to ISO, and
// date rules that point before today are dropped. Returns the cleaned
// list and whether anything changed. Idempotent.
func MigrateRules(rules models.RuleList, now time.Time) (models.RuleList, bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	cleaned := make(models.RuleList, 0, len(rules))
	changed := false

	for _, rule := range rules {
		if rule.Kind != models.RuleKindDate {
			cleaned = append(cleaned, rule)
			continue
		}
		value := strings.ToLower(strings.TrimSpace(rule.Value))
		if !isoDateRe.MatchString(value) {
			target, ok := parseRuleDate(value, now)
			if !ok {
				// Still unrecognised: keep the fallback rule as is.
				cleaned = append(cleaned, rule)
				continue
			}
			value = target.Format("2006-01-02")
		}
		if value != rule.Value {
			rule.Value = value
			rule.Fallback = false
			changed = true
		}
		target, err := time.ParseInLocation("2006-01-02", value, now.Location())
		if err == nil && target.Before(today) {
			changed = true
			continue
		}
		cleaned = append(cleaned, rule)
	}
	return cleaned, changed
}
