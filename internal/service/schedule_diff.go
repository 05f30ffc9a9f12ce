package service

import (
	"github.com/medwatch/emias-tracker-api/internal/models"
)

// FlattenSchedule reduces an upstream schedule to the set of canonical
// slot keys "YYYY-MM-DD HH:MM". The key is cut from the raw startTime
// string so the slot keeps its own local clock regardless of offset.
func FlattenSchedule(days []models.ScheduleDay) models.SlotSet {
	set := models.SlotSet{}
	for _, day := range days {
		for _, block := range day.ScheduleBySlot {
			for _, slot := range block.Slots {
				if len(slot.StartTime) < 16 {
					continue
				}
				// "2025-03-24T18:15:00+03:00" → "2025-03-24 18:15"
				set.Add(slot.StartTime[:10] + " " + slot.StartTime[11:16])
			}
		}
	}
	return set
}

// DiffSnapshots compares two slot baselines and returns the slots that
// appeared and disappeared. changed is false only when both sets are
// identical.
func DiffSnapshots(old, new models.SlotSet) (added, removed models.SlotSet, changed bool) {
	added = models.SlotSet{}
	removed = models.SlotSet{}
	for key := range new {
		if !old.Has(key) {
			added.Add(key)
		}
	}
	for key := range old {
		if !new.Has(key) {
			removed.Add(key)
		}
	}
	return added, removed, len(added) > 0 || len(removed) > 0
}
