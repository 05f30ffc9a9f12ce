package service

import (
	"sort"
	"time"

	"github.com/medwatch/emias-tracker-api/internal/models"
)

// FilterByRules returns the sorted slot keys that are strictly in the
// future and satisfy the rules. Keys that do not parse are skipped.
func FilterByRules(slots models.SlotSet, rules models.RuleList, now time.Time) []string {
	filtered := make([]string, 0, len(slots))
	for _, key := range slots.Keys() {
		slotTime, err := time.ParseInLocation(models.SlotKeyLayout, key, now.Location())
		if err != nil {
			continue
		}
		if !slotTime.After(now) {
			continue
		}
		if MatchesRules(slotTime, rules) {
			filtered = append(filtered, key)
		}
	}
	return filtered
}

// CollectMatching walks the raw schedule and returns every future slot
// satisfying the rules, sorted by start, with the original portal
// timestamps preserved for booking. Future is judged against the slot's
// own offset when it carries one.
func CollectMatching(days []models.ScheduleDay, rules models.RuleList, now time.Time) []models.SlotCandidate {
	var candidates []models.SlotCandidate
	for _, day := range days {
		for _, block := range day.ScheduleBySlot {
			for _, slot := range block.Slots {
				if slot.StartTime == "" {
					continue
				}
				start, err := parseSlotStart(slot.StartTime, now.Location())
				if err != nil {
					continue
				}
				if !start.After(now) {
					continue
				}
				if !MatchesRules(start, rules) {
					continue
				}
				candidates = append(candidates, models.SlotCandidate{
					Key:      start.Format(models.SlotKeyLayout),
					Start:    start,
					StartISO: slot.StartTime,
					EndISO:   slot.EndTime,
				})
			}
		}
	}
	// Stable keeps first-seen order for equal starts across sub-resources.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Start.Before(candidates[j].Start)
	})
	return candidates
}

// parseSlotStart parses a portal start timestamp. Timestamps carrying an
// offset keep it; naive ones are interpreted in the reference location so
// "future" is judged against the same clock.
func parseSlotStart(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", raw, loc)
}

// EarliestMatching returns the first matching future slot or nil.
func EarliestMatching(days []models.ScheduleDay, rules models.RuleList, now time.Time) *models.SlotCandidate {
	candidates := CollectMatching(days, rules, now)
	if len(candidates) == 0 {
		return nil
	}
	return &candidates[0]
}
