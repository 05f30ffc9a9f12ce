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

	"github.com/medwatch/emias-tracker-api/internal/emias"
	"github.com/medwatch/emias-tracker-api/internal/models"
)

type stubCycleRecords struct {
	active       []models.TrackingRecord
	updatedRules map[string]models.RuleList
	autoSet      map[string]bool
}

func (s *stubCycleRecords) ListActive(ctx context.Context) ([]models.TrackingRecord, error) {
	return s.active, nil
}

func (s *stubCycleRecords) UpdateRules(ctx context.Context, id string, rules models.RuleList) error {
	if s.updatedRules == nil {
		s.updatedRules = map[string]models.RuleList{}
	}
	s.updatedRules[id] = rules
	return nil
}

func (s *stubCycleRecords) SetAutoBooking(ctx context.Context, id string, enabled bool) error {
	if s.autoSet == nil {
		s.autoSet = map[string]bool{}
	}
	s.autoSet[id] = enabled
	return nil
}

type stubCycleSnapshots struct {
	stored   *models.ScheduleSnapshot
	upserted []models.ScheduleSnapshot
}

func (s *stubCycleSnapshots) Get(ctx context.Context, resourceID int64) (*models.ScheduleSnapshot, error) {
	if s.stored == nil {
		return nil, sql.ErrNoRows
	}
	return s.stored, nil
}

func (s *stubCycleSnapshots) Upsert(ctx context.Context, snapshot *models.ScheduleSnapshot) error {
	s.upserted = append(s.upserted, *snapshot)
	return nil
}

type stubBooker struct {
	result *models.BookingResult
	err    error
	slots  []string
}

func (s *stubBooker) BookFromTracker(ctx context.Context, userID, resourceID int64, slotKey string) (*models.BookingResult, error) {
	s.slots = append(s.slots, slotKey)
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &models.BookingResult{Kind: models.BookingKindCreate, SlotKey: slotKey}, nil
}

type recordingNotifier struct {
	texts   []string
	options [][]SlotOption
}

func (n *recordingNotifier) Send(ctx context.Context, userID int64, text string) error {
	n.texts = append(n.texts, text)
	n.options = append(n.options, nil)
	return nil
}

func (n *recordingNotifier) SendWithOptions(ctx context.Context, userID int64, text string, options []SlotOption) error {
	n.texts = append(n.texts, text)
	n.options = append(n.options, options)
	return nil
}

type countingPortal struct {
	*stubPortal
	fetches int
}

func (p *countingPortal) FetchSchedule(ctx context.Context, profile models.PatientProfile, resource models.Resource, appointmentID *string, speciality *models.Speciality) (*emias.ScheduleResult, error) {
	p.fetches++
	return p.stubPortal.FetchSchedule(ctx, profile, resource, appointmentID, speciality)
}

type cycleFixture struct {
	records   *stubCycleRecords
	snapshots *stubCycleSnapshots
	portal    *countingPortal
	booker    *stubBooker
	notifier  *recordingNotifier
	links     *stubLinks
	service   *CycleService
}

func newCycleFixture(records []models.TrackingRecord, snapshots *stubCycleSnapshots, portal *stubPortal) *cycleFixture {
	f := &cycleFixture{
		records:   &stubCycleRecords{active: records},
		snapshots: snapshots,
		portal:    &countingPortal{stubPortal: portal},
		booker:    &stubBooker{},
		notifier:  &recordingNotifier{},
		links:     &stubLinks{},
	}
	f.service = NewCycleService(
		f.records,
		f.snapshots,
		&stubProfiles{profile: &models.PatientProfile{UserID: 42, Token: "tok"}},
		&stubResources{resource: &models.Resource{ID: 555, Name: "Иванов И.И.", SpecialityCode: "69", SpecialityName: "Терапевт"}},
		f.links,
		f.portal,
		f.booker,
		f.notifier,
		nil,
		NewSpecialityAliases(nil),
		zap.NewNop(),
	)
	// 08:00 Moscow time on the fixture day.
	f.service.now = func() time.Time { return time.Date(2025, 7, 1, 5, 0, 0, 0, time.UTC) }
	return f
}

func activeRecord() models.TrackingRecord {
	return models.TrackingRecord{ID: "rec-1", UserID: 42, ResourceID: 555, Active: true}
}

func twoSlotSchedule() *emias.ScheduleResult {
	return &emias.ScheduleResult{Days: []models.ScheduleDay{{
		Date: "2025-07-01",
		ScheduleBySlot: []models.SlotBlock{{
			Slots: []models.Slot{
				{StartTime: "2025-07-01T10:00:00+03:00", EndTime: "2025-07-01T10:15:00+03:00"},
				{StartTime: "2025-07-01T11:00:00+03:00", EndTime: "2025-07-01T11:15:00+03:00"},
			},
		}},
	}}}
}

func TestCycleInitialRevealNotifies(t *testing.T) {
	f := newCycleFixture([]models.TrackingRecord{activeRecord()}, &stubCycleSnapshots{}, &stubPortal{scheduleResult: bookingFixtureSchedule()})

	require.NoError(t, f.service.RunCycleOnce(context.Background()))

	require.Len(t, f.notifier.texts, 1)
	assert.Contains(t, f.notifier.texts[0], "Появились подходящие слоты")
	assert.Contains(t, f.notifier.texts[0], "Иванов И.И.")
	require.Len(t, f.notifier.options[0], 1)
	assert.Equal(t, "2025-07-01 10:00", f.notifier.options[0][0].SlotKey)

	require.Len(t, f.snapshots.upserted, 1)
	assert.Equal(t, models.SlotKeys{"2025-07-01 10:00"}, f.snapshots.upserted[0].Slots)
}

func TestCycleSteadyStateStaysSilent(t *testing.T) {
	snapshots := &stubCycleSnapshots{stored: &models.ScheduleSnapshot{
		ResourceID: 555,
		Slots:      models.SlotKeys{"2025-07-01 10:00"},
	}}
	f := newCycleFixture([]models.TrackingRecord{activeRecord()}, snapshots, &stubPortal{scheduleResult: bookingFixtureSchedule()})

	require.NoError(t, f.service.RunCycleOnce(context.Background()))

	assert.Empty(t, f.notifier.texts)
	require.Len(t, f.snapshots.upserted, 1, "baseline is refreshed even without changes")
}

func TestCycleNewSlotNotifiesOnlyAdded(t *testing.T) {
	snapshots := &stubCycleSnapshots{stored: &models.ScheduleSnapshot{
		ResourceID: 555,
		Slots:      models.SlotKeys{"2025-07-01 10:00"},
	}}
	f := newCycleFixture([]models.TrackingRecord{activeRecord()}, snapshots, &stubPortal{scheduleResult: twoSlotSchedule()})

	require.NoError(t, f.service.RunCycleOnce(context.Background()))

	require.Len(t, f.notifier.texts, 1)
	assert.Contains(t, f.notifier.texts[0], "Новые подходящие слоты")
	require.Len(t, f.notifier.options[0], 1, "only the added slot is offered")
	assert.Equal(t, "2025-07-01 11:00", f.notifier.options[0][0].SlotKey)
	assert.Contains(t, f.notifier.texts[0], "Ближайший: 2025-07-01 10:00")
}

func TestCycleRemovedSlotsStaySilent(t *testing.T) {
	snapshots := &stubCycleSnapshots{stored: &models.ScheduleSnapshot{
		ResourceID: 555,
		Slots:      models.SlotKeys{"2025-07-01 10:00", "2025-07-01 11:00"},
	}}
	f := newCycleFixture([]models.TrackingRecord{activeRecord()}, snapshots, &stubPortal{scheduleResult: bookingFixtureSchedule()})

	require.NoError(t, f.service.RunCycleOnce(context.Background()))

	assert.Empty(t, f.notifier.texts)
	assert.Equal(t, models.SlotKeys{"2025-07-01 10:00"}, f.snapshots.upserted[0].Slots)
}

func TestCycleInactiveRecordSkipped(t *testing.T) {
	record := activeRecord()
	record.Active = false
	f := newCycleFixture([]models.TrackingRecord{record}, &stubCycleSnapshots{}, &stubPortal{scheduleResult: bookingFixtureSchedule()})

	require.NoError(t, f.service.RunCycleOnce(context.Background()))

	assert.Equal(t, 0, f.portal.fetches)
	assert.Empty(t, f.notifier.texts)
	assert.Empty(t, f.snapshots.upserted)
}

func TestCycleAutoBookingSuccessDisablesFlag(t *testing.T) {
	record := activeRecord()
	record.AutoBooking = true
	f := newCycleFixture([]models.TrackingRecord{record}, &stubCycleSnapshots{}, &stubPortal{scheduleResult: bookingFixtureSchedule()})

	require.NoError(t, f.service.RunCycleOnce(context.Background()))

	assert.Equal(t, []string{"2025-07-01 10:00"}, f.booker.slots)
	assert.False(t, f.records.autoSet["rec-1"])
	_, toggled := f.records.autoSet["rec-1"]
	assert.True(t, toggled, "auto-booking is a one-shot")

	require.Len(t, f.notifier.texts, 1)
	assert.Contains(t, f.notifier.texts[0], "Запись создана")
	assert.Contains(t, f.notifier.texts[0], "Автозапись отключена")
	require.Len(t, f.snapshots.upserted, 1, "baseline is synced even in booking mode")
}

func TestCycleAutoBookingShiftHeadline(t *testing.T) {
	record := activeRecord()
	record.AutoBooking = true
	f := newCycleFixture([]models.TrackingRecord{record}, &stubCycleSnapshots{}, &stubPortal{scheduleResult: bookingFixtureSchedule()})
	f.booker.result = &models.BookingResult{Kind: models.BookingKindShift, SlotKey: "2025-07-01 10:00"}

	require.NoError(t, f.service.RunCycleOnce(context.Background()))

	require.Len(t, f.notifier.texts, 1)
	assert.Contains(t, f.notifier.texts[0], "Приём перенесён")
}

func TestCycleAutoBookingFailureKeepsFlag(t *testing.T) {
	record := activeRecord()
	record.AutoBooking = true
	f := newCycleFixture([]models.TrackingRecord{record}, &stubCycleSnapshots{}, &stubPortal{scheduleResult: bookingFixtureSchedule()})
	f.booker.err = fmt.Errorf("Нет свободных слотов")

	require.NoError(t, f.service.RunCycleOnce(context.Background()))

	_, toggled := f.records.autoSet["rec-1"]
	assert.False(t, toggled, "failed attempt keeps auto-booking armed for the next pass")
	require.Len(t, f.notifier.texts, 1)
	assert.Contains(t, f.notifier.texts[0], "Автозапись не удалась")
	assert.Contains(t, f.notifier.texts[0], "Нет свободных слотов")
}

func TestCycleAutoBookingNoMatchDoesNothing(t *testing.T) {
	record := activeRecord()
	record.AutoBooking = true
	record.Rules = models.RuleList{{Kind: models.RuleKindWeekday, Value: "monday"}}
	// 2025-07-01 is a Tuesday.
	f := newCycleFixture([]models.TrackingRecord{record}, &stubCycleSnapshots{}, &stubPortal{scheduleResult: bookingFixtureSchedule()})

	require.NoError(t, f.service.RunCycleOnce(context.Background()))

	assert.Empty(t, f.booker.slots)
	assert.Empty(t, f.notifier.texts)
}

func TestCycleFetchFailureDoesNotAbortPass(t *testing.T) {
	second := activeRecord()
	second.ID = "rec-2"
	second.UserID = 43
	f := newCycleFixture([]models.TrackingRecord{activeRecord(), second}, &stubCycleSnapshots{}, &stubPortal{scheduleResult: bookingFixtureSchedule()})
	// The first record hits a portal outage; the second one is served.
	f.service.portal = &failOncePortal{inner: f.portal.stubPortal}

	require.NoError(t, f.service.RunCycleOnce(context.Background()))

	require.Len(t, f.notifier.texts, 1, "the healthy record is still processed")
}

type failOncePortal struct {
	inner  *stubPortal
	failed bool
}

func (p *failOncePortal) FetchSchedule(ctx context.Context, profile models.PatientProfile, resource models.Resource, appointmentID *string, speciality *models.Speciality) (*emias.ScheduleResult, error) {
	if !p.failed {
		p.failed = true
		return nil, fmt.Errorf("portal down")
	}
	return p.inner.scheduleResult, nil
}

func TestCyclePanicRecovered(t *testing.T) {
	booking := activeRecord()
	booking.AutoBooking = true
	passive := activeRecord()
	passive.ID = "rec-2"
	passive.UserID = 43
	f := newCycleFixture([]models.TrackingRecord{booking, passive}, &stubCycleSnapshots{}, &stubPortal{scheduleResult: bookingFixtureSchedule()})
	f.service.booker = panickingBooker{}

	require.NoError(t, f.service.RunCycleOnce(context.Background()))

	require.Len(t, f.notifier.texts, 1, "panic in one record never stops the pass")
	assert.Contains(t, f.notifier.texts[0], "Появились подходящие слоты")
}

type panickingBooker struct{}

func (panickingBooker) BookFromTracker(ctx context.Context, userID, resourceID int64, slotKey string) (*models.BookingResult, error) {
	panic("boom")
}

func TestCycleMigratesOutdatedRules(t *testing.T) {
	record := activeRecord()
	record.Rules = models.RuleList{{Kind: models.RuleKindDate, Value: "2020-01-01"}}
	f := newCycleFixture([]models.TrackingRecord{record}, &stubCycleSnapshots{}, &stubPortal{scheduleResult: bookingFixtureSchedule()})

	require.NoError(t, f.service.RunCycleOnce(context.Background()))

	migrated, ok := f.records.updatedRules["rec-1"]
	require.True(t, ok, "outdated date rule is dropped and persisted")
	assert.Empty(t, migrated)
	// With no rules left the whole schedule is relevant again.
	require.Len(t, f.notifier.texts, 1)
}

func TestCycleStaleAppointmentClearsLink(t *testing.T) {
	apptID := "9001"
	f := newCycleFixture([]models.TrackingRecord{activeRecord()}, &stubCycleSnapshots{}, &stubPortal{
		scheduleResult: &emias.ScheduleResult{
			Days:             bookingFixtureSchedule().Days,
			StaleAppointment: true,
		},
	})
	f.links.link = &models.AppointmentLink{UserID: 42, SpecialityGroup: "69", AppointmentID: &apptID}

	require.NoError(t, f.service.RunCycleOnce(context.Background()))

	assert.Contains(t, f.links.cleared, "69")
}
