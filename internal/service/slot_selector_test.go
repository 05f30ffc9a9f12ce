package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medwatch/emias-tracker-api/internal/models"
)

func scheduleFixture() []models.ScheduleDay {
	return []models.ScheduleDay{
		{
			Date: "2025-07-01",
			ScheduleBySlot: []models.SlotBlock{
				{Slots: []models.Slot{
					{StartTime: "2025-07-01T09:00:00+03:00", EndTime: "2025-07-01T09:15:00+03:00"},
					{StartTime: "2025-07-01T15:00:00+03:00", EndTime: "2025-07-01T15:15:00+03:00"},
				}},
			},
		},
		{
			Date: "2025-07-02",
			ScheduleBySlot: []models.SlotBlock{
				{Slots: []models.Slot{
					{StartTime: "2025-07-02T10:00:00+03:00", EndTime: "2025-07-02T10:15:00+03:00"},
				}},
			},
		},
	}
}

func TestFilterByRulesFutureOnlyAndSorted(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	slots := models.NewSlotSet("2025-07-01 09:00", "2025-07-01 15:00", "2025-07-02 10:00", "garbage")

	keys := FilterByRules(slots, nil, now)
	assert.Equal(t, []string{"2025-07-01 15:00", "2025-07-02 10:00"}, keys)
}

func TestFilterByRulesAppliesRules(t *testing.T) {
	now := time.Date(2025, 7, 1, 8, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	slots := models.NewSlotSet("2025-07-01 09:00", "2025-07-01 15:00", "2025-07-02 10:00")
	rules := models.RuleList{{Kind: models.RuleKindDate, Value: "2025-07-02"}}

	keys := FilterByRules(slots, rules, now)
	assert.Equal(t, []string{"2025-07-02 10:00"}, keys)
}

func TestCollectMatchingKeepsPortalTimestamps(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600))

	candidates := CollectMatching(scheduleFixture(), nil, now)
	require.Len(t, candidates, 2)
	assert.Equal(t, "2025-07-01 15:00", candidates[0].Key)
	assert.Equal(t, "2025-07-01T15:00:00+03:00", candidates[0].StartISO)
	assert.Equal(t, "2025-07-01T15:15:00+03:00", candidates[0].EndISO)
	assert.Equal(t, "2025-07-02 10:00", candidates[1].Key)
}

func TestCollectMatchingNaiveTimestamps(t *testing.T) {
	days := []models.ScheduleDay{{
		Date: "2025-07-01",
		ScheduleBySlot: []models.SlotBlock{
			{Slots: []models.Slot{{StartTime: "2025-07-01T15:00:00"}}},
		},
	}}
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	candidates := CollectMatching(days, nil, now)
	require.Len(t, candidates, 1)
	assert.Equal(t, "2025-07-01 15:00", candidates[0].Key)
}

func TestEarliestMatching(t *testing.T) {
	now := time.Date(2025, 7, 1, 8, 0, 0, 0, time.FixedZone("MSK", 3*3600))

	earliest := EarliestMatching(scheduleFixture(), nil, now)
	require.NotNil(t, earliest)
	assert.Equal(t, "2025-07-01 09:00", earliest.Key)
}

func TestEarliestMatchingNoCandidates(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rules := models.RuleList{{Kind: models.RuleKindDate, Value: "2025-07-01"}}
	assert.Nil(t, EarliestMatching(scheduleFixture(), rules, now))
}

func TestEarliestMatchingTieFirstSeen(t *testing.T) {
	days := []models.ScheduleDay{{
		Date: "2025-07-01",
		ScheduleBySlot: []models.SlotBlock{
			{Slots: []models.Slot{{StartTime: "2025-07-01T09:00:00+03:00", EndTime: "2025-07-01T09:20:00+03:00"}}},
			{Slots: []models.Slot{{StartTime: "2025-07-01T09:00:00+03:00", EndTime: "2025-07-01T09:10:00+03:00"}}},
		},
	}}
	now := time.Date(2025, 7, 1, 8, 0, 0, 0, time.FixedZone("MSK", 3*3600))

	earliest := EarliestMatching(days, nil, now)
	require.NotNil(t, earliest)
	assert.Equal(t, "2025-07-01T09:20:00+03:00", earliest.EndISO, "first sub-resource wins the tie")
}
