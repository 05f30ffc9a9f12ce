package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// SlotKeyLayout is the canonical slot identity format: local date and
// start time, minute precision, e.g. "2025-07-01 10:30".
const SlotKeyLayout = "2006-01-02 15:04"

// Slot is a bookable interval as returned by the portal.
type Slot struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// SlotBlock groups slots belonging to one sub-resource of a schedule day.
type SlotBlock struct {
	Slots []Slot `json:"slot"`
}

// ScheduleDay is one day of the upstream schedule payload.
type ScheduleDay struct {
	Date           string      `json:"date"`
	ScheduleBySlot []SlotBlock `json:"scheduleBySlot"`
}

// SlotCandidate is a matching slot with its parsed start instant and the
// original portal timestamps needed for booking.
type SlotCandidate struct {
	Key      string    `json:"key"`
	Start    time.Time `json:"start"`
	StartISO string    `json:"start_iso"`
	EndISO   string    `json:"end_iso"`
}

// ParseSlotTime parses a portal timestamp. Offsets are preserved so that
// "future" is judged against the slot's own local clock.
func ParseSlotTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse slot time %q: %w", raw, err)
	}
	return t, nil
}

// SlotSet is a set of canonical slot keys.
type SlotSet map[string]struct{}

// NewSlotSet builds a set from keys.
func NewSlotSet(keys ...string) SlotSet {
	set := make(SlotSet, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}
	return set
}

// Add inserts a key.
func (s SlotSet) Add(key string) { s[key] = struct{}{} }

// Has reports membership.
func (s SlotSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the sorted key list.
func (s SlotSet) Keys() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// SlotKeys is the JSONB column persisting a schedule baseline.
type SlotKeys []string

// Value marshals the keys for persistence.
func (k SlotKeys) Value() (driver.Value, error) {
	if k == nil {
		k = SlotKeys{}
	}
	data, err := json.Marshal(k)
	if err != nil {
		return nil, fmt.Errorf("marshal slot keys: %w", err)
	}
	return data, nil
}

// Scan unmarshals persisted keys.
func (k *SlotKeys) Scan(value interface{}) error {
	if value == nil {
		*k = SlotKeys{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for SlotKeys", value)
	}
	if len(data) == 0 {
		*k = SlotKeys{}
		return nil
	}
	if err := json.Unmarshal(data, k); err != nil {
		return fmt.Errorf("unmarshal slot keys: %w", err)
	}
	return nil
}

// Set converts the stored keys into a SlotSet.
func (k SlotKeys) Set() SlotSet {
	return NewSlotSet(k...)
}
