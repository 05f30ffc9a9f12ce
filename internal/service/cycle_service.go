package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/medwatch/emias-tracker-api/internal/models"
)

type cycleRecordStore interface {
	ListActive(ctx context.Context) ([]models.TrackingRecord, error)
	UpdateRules(ctx context.Context, id string, rules models.RuleList) error
	SetAutoBooking(ctx context.Context, id string, enabled bool) error
}

type cycleSnapshotStore interface {
	Get(ctx context.Context, resourceID int64) (*models.ScheduleSnapshot, error)
	Upsert(ctx context.Context, snapshot *models.ScheduleSnapshot) error
}

type cycleBooker interface {
	BookFromTracker(ctx context.Context, userID, resourceID int64, slotKey string) (*models.BookingResult, error)
}

// CycleService runs one full tracking pass: every active record gets its
// schedule fetched, diffed against the stored baseline and acted upon.
type CycleService struct {
	records   cycleRecordStore
	snapshots cycleSnapshotStore
	profiles  bookingProfileStore
	resources trackingResourceStore
	links     bookingLinkStore
	portal    trackingPortal
	booker    cycleBooker
	notifier  Notifier
	metrics   *MetricsService
	aliases   *SpecialityAliases
	logger    *zap.Logger
	now       func() time.Time
}

// NewCycleService constructs the pass runner.
func NewCycleService(
	records cycleRecordStore,
	snapshots cycleSnapshotStore,
	profiles bookingProfileStore,
	resources trackingResourceStore,
	links bookingLinkStore,
	portal trackingPortal,
	booker cycleBooker,
	notifier Notifier,
	metrics *MetricsService,
	aliases *SpecialityAliases,
	logger *zap.Logger,
) *CycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &CycleService{
		records:   records,
		snapshots: snapshots,
		profiles:  profiles,
		resources: resources,
		links:     links,
		portal:    portal,
		booker:    booker,
		notifier:  notifier,
		metrics:   metrics,
		aliases:   aliases,
		logger:    logger,
		now:       time.Now,
	}
}

// RunCycleOnce processes every active tracking record sequentially. A
// failing or panicking record is logged and never aborts the pass.
func (s *CycleService) RunCycleOnce(ctx context.Context) error {
	started := s.now()
	records, err := s.records.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active tracking records: %w", err)
	}
	s.logger.Info("tracking pass started", zap.Int("records", len(records)))

	for i := range records {
		s.processRecordSafe(ctx, &records[i])
	}

	duration := s.now().Sub(started)
	s.metrics.ObserveCycle(len(records), duration)
	s.logger.Info("tracking pass finished",
		zap.Int("records", len(records)),
		zap.Duration("duration", duration))
	return nil
}

func (s *CycleService) processRecordSafe(ctx context.Context, record *models.TrackingRecord) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tracking record processing panicked",
				zap.String("record_id", record.ID),
				zap.Int64("resource_id", record.ResourceID),
				zap.Any("panic", r))
		}
	}()
	if err := s.processRecord(ctx, record); err != nil {
		s.logger.Warn("tracking record processing failed",
			zap.String("record_id", record.ID),
			zap.Int64("user_id", record.UserID),
			zap.Int64("resource_id", record.ResourceID),
			zap.Error(err))
	}
}

func (s *CycleService) processRecord(ctx context.Context, record *models.TrackingRecord) error {
	if !record.Active {
		return nil
	}
	now := s.now()

	// Re-freeze relative values and drop outdated date rules before
	// matching anything.
	rules, changed := MigrateRules(record.Rules, now)
	if changed {
		if err := s.records.UpdateRules(ctx, record.ID, rules); err != nil {
			s.logger.Warn("failed to persist migrated rules", zap.String("record_id", record.ID), zap.Error(err))
		}
	}
	record.Rules = rules

	resource, err := s.resources.Get(ctx, record.ResourceID)
	if err != nil {
		return fmt.Errorf("load resource %d: %w", record.ResourceID, err)
	}
	profile, err := s.profiles.Get(ctx, record.UserID)
	if err != nil {
		return fmt.Errorf("load profile for user %d: %w", record.UserID, err)
	}

	// The baseline must be captured before the fetch so the diff compares
	// against what the previous pass saw.
	oldSet := models.SlotSet{}
	baselineMissing := false
	snapshot, err := s.snapshots.Get(ctx, record.ResourceID)
	switch {
	case err == nil:
		oldSet = snapshot.Slots.Set()
	case errors.Is(err, sql.ErrNoRows):
		baselineMissing = true
	default:
		return fmt.Errorf("load schedule baseline: %w", err)
	}

	var speciality *models.Speciality
	if sp, err := s.resources.GetSpeciality(ctx, resource.SpecialityCode); err == nil {
		speciality = sp
	}
	group := s.aliases.Canonical(resource.SpecialityCode)
	var appointmentID *string
	if link, err := s.links.Get(ctx, record.UserID, group); err == nil && link.AppointmentID != nil {
		appointmentID = link.AppointmentID
	}

	schedule, err := s.portal.FetchSchedule(ctx, *profile, *resource, appointmentID, speciality)
	if err != nil {
		s.metrics.RecordFetchFailure()
		return fmt.Errorf("fetch schedule for resource %d: %w", record.ResourceID, err)
	}
	if schedule.StaleAppointment {
		if err := s.links.ClearAppointmentID(ctx, record.UserID, group); err != nil {
			s.logger.Warn("failed to clear stale appointment link",
				zap.Int64("user_id", record.UserID), zap.Error(err))
		}
	}

	newSet := FlattenSchedule(schedule.Days)

	if record.AutoBooking {
		return s.runAutoBooking(ctx, record, resource, schedule.Days, newSet, now)
	}
	return s.runPassive(ctx, record, resource, oldSet, newSet, baselineMissing, now)
}

// runAutoBooking refreshes the baseline unconditionally (no diff, no
// change notifications) and books the earliest matching slot. Success
// disables auto-booking; it is a one-shot.
func (s *CycleService) runAutoBooking(ctx context.Context, record *models.TrackingRecord, resource *models.Resource, days []models.ScheduleDay, newSet models.SlotSet, now time.Time) error {
	if err := s.persistBaseline(ctx, record.ResourceID, newSet); err != nil {
		s.logger.Warn("failed to sync baseline before booking attempt",
			zap.Int64("resource_id", record.ResourceID), zap.Error(err))
	}

	best := EarliestMatching(days, record.Rules, now)
	if best == nil {
		return nil
	}

	result, err := s.booker.BookFromTracker(ctx, record.UserID, record.ResourceID, best.Key)
	if err != nil {
		s.logger.Warn("auto-booking attempt failed",
			zap.Int64("user_id", record.UserID),
			zap.Int64("resource_id", record.ResourceID),
			zap.String("slot", best.Key),
			zap.Error(err))
		text := fmt.Sprintf("⚠️ <b>Автозапись не удалась</b>\n👨‍⚕️ %s (%s)\nСлот: %s\nОшибка: %s",
			resource.Name, resource.SpecialityName, best.Key, err.Error())
		s.notify(ctx, record.UserID, record.ResourceID, text, nil)
		return nil
	}

	if err := s.records.SetAutoBooking(ctx, record.ID, false); err != nil {
		s.logger.Warn("failed to disable auto-booking after success",
			zap.String("record_id", record.ID), zap.Error(err))
	}
	headline := "Запись создана"
	if result.Kind == models.BookingKindShift {
		headline = "Приём перенесён"
	}
	text := fmt.Sprintf("✅ <b>%s</b>\n👨‍⚕️ %s (%s)\nСлот: %s\nАвтозапись отключена.",
		headline, resource.Name, resource.SpecialityName, result.SlotKey)
	s.notify(ctx, record.UserID, record.ResourceID, text, nil)
	return nil
}

// runPassive diffs the schedule against the captured baseline, persists
// the new baseline, and notifies about newly relevant slots. A steady
// schedule stays silent.
func (s *CycleService) runPassive(ctx context.Context, record *models.TrackingRecord, resource *models.Resource, oldSet, newSet models.SlotSet, baselineMissing bool, now time.Time) error {
	added, _, _ := DiffSnapshots(oldSet, newSet)
	if err := s.persistBaseline(ctx, record.ResourceID, newSet); err != nil {
		return fmt.Errorf("persist schedule baseline: %w", err)
	}

	relevantAdded := FilterByRules(added, record.Rules, now)
	allRelevantNow := FilterByRules(newSet, record.Rules, now)
	oldRelevant := FilterByRules(oldSet, record.Rules, now)

	// Catch "was zero, now some" even when the diff itself carries no new
	// keys (e.g. rules changed, or the baseline never existed).
	initialReveal := (len(oldRelevant) == 0 && len(allRelevantNow) > 0 && len(relevantAdded) == 0) ||
		(baselineMissing && len(allRelevantNow) > 0)

	if !initialReveal && len(relevantAdded) == 0 {
		return nil
	}

	headline := "📢 <b>Новые подходящие слоты!</b>"
	slotsToShow := relevantAdded
	if initialReveal {
		headline = "📢 <b>Появились подходящие слоты!</b>"
		slotsToShow = allRelevantNow
	}

	text := fmt.Sprintf("%s\n👨‍⚕️ %s (%s)", headline, resource.Name, resource.SpecialityName)
	if len(slotsToShow) > 0 {
		text += "\n\n🎯 <b>Доступно:</b>\n" + GroupSlotsByDate(slotsToShow)
	}
	if len(allRelevantNow) > 0 {
		text += fmt.Sprintf("\n\n🔎 Ближайший: %s", allRelevantNow[0])
	}

	s.notify(ctx, record.UserID, record.ResourceID, text, SlotOptions(record.ResourceID, slotsToShow))
	return nil
}

func (s *CycleService) persistBaseline(ctx context.Context, resourceID int64, slots models.SlotSet) error {
	return s.snapshots.Upsert(ctx, &models.ScheduleSnapshot{
		ResourceID: resourceID,
		Slots:      models.SlotKeys(slots.Keys()),
	})
}

func (s *CycleService) notify(ctx context.Context, userID, resourceID int64, text string, options []SlotOption) {
	var err error
	if len(options) > 0 {
		err = s.notifier.SendWithOptions(ctx, userID, text, options)
	} else {
		err = s.notifier.Send(ctx, userID, text)
	}
	if err != nil {
		s.logger.Warn("failed to deliver notification",
			zap.Int64("user_id", userID),
			zap.Int64("resource_id", resourceID),
			zap.Error(err))
		return
	}
	s.metrics.RecordNotification()
}
