package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// RuleKind discriminates tracking rule variants.
type RuleKind string

const (
	// RuleKindDate matches a single calendar day (value is an ISO date,
	// or a not-yet-frozen relative token such as "сегодня").
	RuleKindDate RuleKind = "date"
	// RuleKindWeekday matches a recurring day of week (value is the
	// lowercase English weekday name, e.g. "monday").
	RuleKindWeekday RuleKind = "weekday"
)

// Rule is a single tracking constraint. A slot is relevant when its day
// matches the rule and its time falls into any of the windows. An empty
// window list means the whole day.
type Rule struct {
	Kind    RuleKind `json:"kind"`
	Value   string   `json:"value"`
	Windows []string `json:"windows,omitempty"`
	// Fallback marks rules whose day token could not be recognised; the
	// literal token is preserved so the user can inspect and fix it.
	Fallback bool `json:"fallback,omitempty"`
}

// Key returns the structural identity of the rule used for deduplication:
// kind, value and the sorted window list.
func (r Rule) Key() string {
	windows := make([]string, len(r.Windows))
	copy(windows, r.Windows)
	sort.Strings(windows)
	return fmt.Sprintf("%s|%s|%s", r.Kind, strings.ToLower(r.Value), strings.Join(windows, ";"))
}

// RuleList is the JSONB column holding a record's rules.
type RuleList []Rule

// Value marshals the rules to JSON for persistence.
func (l RuleList) Value() (driver.Value, error) {
	if l == nil {
		l = RuleList{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal rules: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the rule list.
func (l *RuleList) Scan(value interface{}) error {
	if value == nil {
		*l = RuleList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for RuleList", value)
	}
	if len(data) == 0 {
		*l = RuleList{}
		return nil
	}
	if err := json.Unmarshal(data, l); err != nil {
		return fmt.Errorf("unmarshal rules: %w", err)
	}
	return nil
}

// Dedupe returns the list with structural duplicates removed, keeping the
// first occurrence of each rule.
func (l RuleList) Dedupe() RuleList {
	seen := make(map[string]struct{}, len(l))
	result := make(RuleList, 0, len(l))
	for _, rule := range l {
		key := rule.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, rule)
	}
	return result
}
