package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medwatch/emias-tracker-api/internal/models"
	appErrors "github.com/medwatch/emias-tracker-api/pkg/errors"
)

type stubRecordStore struct {
	records      map[string]*models.TrackingRecord
	watchers     int
	deleted      []string
	updatedRules map[string]models.RuleList
	activeSet    map[string]bool
	autoSet      map[string]bool
}

func newStubRecordStore() *stubRecordStore {
	return &stubRecordStore{
		records:      map[string]*models.TrackingRecord{},
		updatedRules: map[string]models.RuleList{},
		activeSet:    map[string]bool{},
		autoSet:      map[string]bool{},
	}
}

func recordKey(userID, resourceID int64) string { return fmt.Sprintf("%d:%d", userID, resourceID) }

func (s *stubRecordStore) ListByUser(ctx context.Context, userID int64) ([]models.TrackingRecord, error) {
	var result []models.TrackingRecord
	for _, record := range s.records {
		if record.UserID == userID {
			result = append(result, *record)
		}
	}
	return result, nil
}

func (s *stubRecordStore) Get(ctx context.Context, userID, resourceID int64) (*models.TrackingRecord, error) {
	record, ok := s.records[recordKey(userID, resourceID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *record
	return &copied, nil
}

func (s *stubRecordStore) CountByResource(ctx context.Context, resourceID int64) (int, error) {
	return s.watchers, nil
}

func (s *stubRecordStore) Upsert(ctx context.Context, record *models.TrackingRecord) error {
	if record.ID == "" {
		record.ID = fmt.Sprintf("rec-%d-%d", record.UserID, record.ResourceID)
	}
	copied := *record
	s.records[recordKey(record.UserID, record.ResourceID)] = &copied
	return nil
}

func (s *stubRecordStore) UpdateRules(ctx context.Context, id string, rules models.RuleList) error {
	s.updatedRules[id] = rules
	return nil
}

func (s *stubRecordStore) SetActive(ctx context.Context, id string, active bool) error {
	s.activeSet[id] = active
	return nil
}

func (s *stubRecordStore) SetAutoBooking(ctx context.Context, id string, enabled bool) error {
	s.autoSet[id] = enabled
	return nil
}

func (s *stubRecordStore) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type stubSnapshotStore struct {
	snapshot *models.ScheduleSnapshot
	upserted []models.ScheduleSnapshot
	deleted  []int64
}

func (s *stubSnapshotStore) Get(ctx context.Context, resourceID int64) (*models.ScheduleSnapshot, error) {
	if s.snapshot == nil {
		return nil, sql.ErrNoRows
	}
	return s.snapshot, nil
}

func (s *stubSnapshotStore) Upsert(ctx context.Context, snapshot *models.ScheduleSnapshot) error {
	s.upserted = append(s.upserted, *snapshot)
	return nil
}

func (s *stubSnapshotStore) Delete(ctx context.Context, resourceID int64) error {
	s.deleted = append(s.deleted, resourceID)
	return nil
}

func newTrackingFixture(records *stubRecordStore, snapshots *stubSnapshotStore, portal trackingPortal) (*TrackingService, *stubAudit) {
	audit := &stubAudit{}
	service := NewTrackingService(
		records,
		snapshots,
		&stubProfiles{profile: &models.PatientProfile{UserID: 42, Token: "tok"}},
		&stubResources{resource: &models.Resource{ID: 555, Name: "Иванов И.И.", SpecialityCode: "69"}},
		&stubLinks{},
		portal,
		audit,
		NewSpecialityAliases(nil),
		zap.NewNop(),
	)
	// 08:00 Moscow time, comfortably before the fixture's 10:00 slot.
	service.now = func() time.Time { return time.Date(2025, 7, 1, 5, 0, 0, 0, time.UTC) }
	return service, audit
}

func TestStartTrackingParsesRules(t *testing.T) {
	records := newStubRecordStore()
	service, audit := newTrackingFixture(records, &stubSnapshotStore{}, nil)

	record, err := service.StartTracking(context.Background(), 42, 555, "понедельник: 08:00-12:00", false)
	require.NoError(t, err)
	assert.True(t, record.Active)
	require.Len(t, record.Rules, 1)
	assert.Equal(t, "monday", record.Rules[0].Value)

	stored, err := records.Get(context.Background(), 42, 555)
	require.NoError(t, err)
	assert.Equal(t, record.ID, stored.ID)

	require.Len(t, audit.records, 1)
	assert.Equal(t, models.AuditActionTrackStart, audit.records[0].Action)
}

func TestStartTrackingUnknownResource(t *testing.T) {
	service := NewTrackingService(
		newStubRecordStore(), &stubSnapshotStore{},
		&stubProfiles{}, &stubResources{}, &stubLinks{},
		nil, &stubAudit{}, NewSpecialityAliases(nil), zap.NewNop(),
	)

	_, err := service.StartTracking(context.Background(), 42, 999, "", false)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestStopTrackingDropsOrphanedBaseline(t *testing.T) {
	records := newStubRecordStore()
	records.records[recordKey(42, 555)] = &models.TrackingRecord{ID: "rec-1", UserID: 42, ResourceID: 555}
	snapshots := &stubSnapshotStore{}
	service, audit := newTrackingFixture(records, snapshots, nil)

	require.NoError(t, service.StopTracking(context.Background(), 42, 555))
	assert.Equal(t, []string{"rec-1"}, records.deleted)
	assert.Equal(t, []int64{555}, snapshots.deleted)
	assert.Equal(t, models.AuditActionTrackStop, audit.records[0].Action)
}

func TestStopTrackingKeepsSharedBaseline(t *testing.T) {
	records := newStubRecordStore()
	records.records[recordKey(42, 555)] = &models.TrackingRecord{ID: "rec-1", UserID: 42, ResourceID: 555}
	records.watchers = 1
	snapshots := &stubSnapshotStore{}
	service, _ := newTrackingFixture(records, snapshots, nil)

	require.NoError(t, service.StopTracking(context.Background(), 42, 555))
	assert.Empty(t, snapshots.deleted)
}

func TestSetActivePauseAndResume(t *testing.T) {
	records := newStubRecordStore()
	records.records[recordKey(42, 555)] = &models.TrackingRecord{ID: "rec-1", UserID: 42, ResourceID: 555, Active: true}
	service, audit := newTrackingFixture(records, &stubSnapshotStore{}, nil)

	record, err := service.SetActive(context.Background(), 42, 555, false)
	require.NoError(t, err)
	assert.False(t, record.Active)
	assert.Equal(t, models.AuditActionTrackPause, audit.records[0].Action)

	_, err = service.SetActive(context.Background(), 42, 555, true)
	require.NoError(t, err)
	assert.Equal(t, models.AuditActionTrackResume, audit.records[1].Action)
}

func TestAppendRulesDeduplicates(t *testing.T) {
	records := newStubRecordStore()
	records.records[recordKey(42, 555)] = &models.TrackingRecord{
		ID: "rec-1", UserID: 42, ResourceID: 555,
		Rules: models.RuleList{{Kind: models.RuleKindWeekday, Value: "monday", Windows: []string{"08:00-12:00"}}},
	}
	service, _ := newTrackingFixture(records, &stubSnapshotStore{}, nil)

	record, err := service.AppendRules(context.Background(), 42, 555, "понедельник: 08:00-12:00, вторник")
	require.NoError(t, err)
	require.Len(t, record.Rules, 2, "identical rule is not duplicated")
	assert.Equal(t, "monday", record.Rules[0].Value)
	assert.Equal(t, "tuesday", record.Rules[1].Value)
	assert.Equal(t, record.Rules, records.updatedRules["rec-1"])
}

func TestSetAutoBookingAudited(t *testing.T) {
	records := newStubRecordStore()
	records.records[recordKey(42, 555)] = &models.TrackingRecord{ID: "rec-1", UserID: 42, ResourceID: 555}
	service, audit := newTrackingFixture(records, &stubSnapshotStore{}, nil)

	record, err := service.SetAutoBooking(context.Background(), 42, 555, true)
	require.NoError(t, err)
	assert.True(t, record.AutoBooking)
	assert.True(t, records.autoSet["rec-1"])
	assert.Equal(t, models.AuditActionAutoBookToggle, audit.records[0].Action)
}

func TestFindSlotsEmptyIsAResult(t *testing.T) {
	records := newStubRecordStore()
	records.records[recordKey(42, 555)] = &models.TrackingRecord{ID: "rec-1", UserID: 42, ResourceID: 555}
	portal := &stubPortal{scheduleResult: bookingFixtureSchedule()}
	service, _ := newTrackingFixture(records, &stubSnapshotStore{}, portal)
	// Every slot in the fixture is in the past for this clock.
	service.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	result, err := service.FindSlots(context.Background(), 42, 555)
	require.NoError(t, err)
	assert.True(t, result.Checked)
	assert.Empty(t, result.Slots)
}

func TestFindSlotsReturnsCandidates(t *testing.T) {
	records := newStubRecordStore()
	records.records[recordKey(42, 555)] = &models.TrackingRecord{ID: "rec-1", UserID: 42, ResourceID: 555}
	portal := &stubPortal{scheduleResult: bookingFixtureSchedule()}
	service, _ := newTrackingFixture(records, &stubSnapshotStore{}, portal)

	result, err := service.FindSlots(context.Background(), 42, 555)
	require.NoError(t, err)
	require.Len(t, result.Slots, 1)
	assert.Equal(t, "2025-07-01 10:00", result.Slots[0].Key)
}

func TestFindSlotsFetchFailure(t *testing.T) {
	records := newStubRecordStore()
	records.records[recordKey(42, 555)] = &models.TrackingRecord{ID: "rec-1", UserID: 42, ResourceID: 555}
	portal := &stubPortal{scheduleErr: fmt.Errorf("portal down")}
	service, _ := newTrackingFixture(records, &stubSnapshotStore{}, portal)

	_, err := service.FindSlots(context.Background(), 42, 555)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrFetchFailed))
}
