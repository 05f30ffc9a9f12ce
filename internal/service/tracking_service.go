package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/medwatch/emias-tracker-api/internal/emias"
	"github.com/medwatch/emias-tracker-api/internal/models"
	appErrors "github.com/medwatch/emias-tracker-api/pkg/errors"
)

type trackingRecordStore interface {
	ListByUser(ctx context.Context, userID int64) ([]models.TrackingRecord, error)
	Get(ctx context.Context, userID, resourceID int64) (*models.TrackingRecord, error)
	CountByResource(ctx context.Context, resourceID int64) (int, error)
	Upsert(ctx context.Context, record *models.TrackingRecord) error
	UpdateRules(ctx context.Context, id string, rules models.RuleList) error
	SetActive(ctx context.Context, id string, active bool) error
	SetAutoBooking(ctx context.Context, id string, enabled bool) error
	Delete(ctx context.Context, id string) error
}

type trackingSnapshotStore interface {
	Delete(ctx context.Context, resourceID int64) error
}

type trackingPortal interface {
	FetchSchedule(ctx context.Context, profile models.PatientProfile, resource models.Resource, appointmentID *string, speciality *models.Speciality) (*emias.ScheduleResult, error)
}

type trackingResourceStore interface {
	Get(ctx context.Context, id int64) (*models.Resource, error)
	GetSpeciality(ctx context.Context, code string) (*models.Speciality, error)
}

// FindSlotsResult is the outcome of a manual slot search. Empty Slots with
// Checked=true is a legitimate "nothing available" answer, not an error.
type FindSlotsResult struct {
	Checked bool                   `json:"checked"`
	Slots   []models.SlotCandidate `json:"slots"`
}

// TrackingService implements the tracked-resource operations behind the
// API: lifecycle of tracking records, rule editing, and manual searches.
type TrackingService struct {
	records   trackingRecordStore
	snapshots trackingSnapshotStore
	profiles  bookingProfileStore
	resources trackingResourceStore
	links     bookingLinkStore
	portal    trackingPortal
	audit     bookingAuditWriter
	aliases   *SpecialityAliases
	logger    *zap.Logger
	now       func() time.Time
}

// NewTrackingService constructs the service.
func NewTrackingService(
	records trackingRecordStore,
	snapshots trackingSnapshotStore,
	profiles bookingProfileStore,
	resources trackingResourceStore,
	links bookingLinkStore,
	portal trackingPortal,
	audit bookingAuditWriter,
	aliases *SpecialityAliases,
	logger *zap.Logger,
) *TrackingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackingService{
		records:   records,
		snapshots: snapshots,
		profiles:  profiles,
		resources: resources,
		links:     links,
		portal:    portal,
		audit:     audit,
		aliases:   aliases,
		logger:    logger,
		now:       time.Now,
	}
}

// StartTracking creates or reactivates the tracking record for the
// (user, resource) pair. rulesText is parsed leniently; an empty text
// tracks the whole schedule.
func (s *TrackingService) StartTracking(ctx context.Context, userID, resourceID int64, rulesText string, autoBooking bool) (*models.TrackingRecord, error) {
	if _, err := s.resources.Get(ctx, resourceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource is not known")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}

	rules := ParseTrackingInput(rulesText, s.now()).Dedupe()
	record := &models.TrackingRecord{
		UserID:      userID,
		ResourceID:  resourceID,
		Active:      true,
		AutoBooking: autoBooking,
		Rules:       rules,
	}
	if existing, err := s.records.Get(ctx, userID, resourceID); err == nil {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tracking record")
	}

	if err := s.records.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store tracking record")
	}
	s.recordAudit(ctx, userID, &resourceID, models.AuditActionTrackStart, map[string]interface{}{
		"rules":        rules,
		"auto_booking": autoBooking,
	})
	return record, nil
}

// StopTracking removes the record. The schedule baseline is dropped when
// nobody else watches the resource, so a later restart sees a fresh
// initial reveal instead of a stale diff.
func (s *TrackingService) StopTracking(ctx context.Context, userID, resourceID int64) error {
	record, err := s.getRecord(ctx, userID, resourceID)
	if err != nil {
		return err
	}
	if err := s.records.Delete(ctx, record.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete tracking record")
	}
	if remaining, err := s.records.CountByResource(ctx, resourceID); err == nil && remaining == 0 {
		if err := s.snapshots.Delete(ctx, resourceID); err != nil {
			s.logger.Warn("failed to drop orphaned schedule baseline",
				zap.Int64("resource_id", resourceID), zap.Error(err))
		}
	}
	s.recordAudit(ctx, userID, &resourceID, models.AuditActionTrackStop, nil)
	return nil
}

// SetActive pauses or resumes the record without losing its rules.
func (s *TrackingService) SetActive(ctx context.Context, userID, resourceID int64, active bool) (*models.TrackingRecord, error) {
	record, err := s.getRecord(ctx, userID, resourceID)
	if err != nil {
		return nil, err
	}
	if err := s.records.SetActive(ctx, record.ID, active); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update tracking state")
	}
	record.Active = active
	action := models.AuditActionTrackPause
	if active {
		action = models.AuditActionTrackResume
	}
	s.recordAudit(ctx, userID, &resourceID, action, nil)
	return record, nil
}

// SetAutoBooking toggles one-shot auto-booking for the record.
func (s *TrackingService) SetAutoBooking(ctx context.Context, userID, resourceID int64, enabled bool) (*models.TrackingRecord, error) {
	record, err := s.getRecord(ctx, userID, resourceID)
	if err != nil {
		return nil, err
	}
	if err := s.records.SetAutoBooking(ctx, record.ID, enabled); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update auto-booking")
	}
	record.AutoBooking = enabled
	s.recordAudit(ctx, userID, &resourceID, models.AuditActionAutoBookToggle, map[string]interface{}{"enabled": enabled})
	return record, nil
}

// ReplaceRules overwrites the record's rules with the parsed input.
func (s *TrackingService) ReplaceRules(ctx context.Context, userID, resourceID int64, rulesText string) (*models.TrackingRecord, error) {
	record, err := s.getRecord(ctx, userID, resourceID)
	if err != nil {
		return nil, err
	}
	rules := ParseTrackingInput(rulesText, s.now()).Dedupe()
	if err := s.records.UpdateRules(ctx, record.ID, rules); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update rules")
	}
	record.Rules = rules
	s.recordAudit(ctx, userID, &resourceID, models.AuditActionRulesUpdate, map[string]interface{}{"rules": rules})
	return record, nil
}

// AppendRules adds the parsed input to the existing rules, dropping
// structural duplicates.
func (s *TrackingService) AppendRules(ctx context.Context, userID, resourceID int64, rulesText string) (*models.TrackingRecord, error) {
	record, err := s.getRecord(ctx, userID, resourceID)
	if err != nil {
		return nil, err
	}
	parsed := ParseTrackingInput(rulesText, s.now())
	rules := append(append(models.RuleList{}, record.Rules...), parsed...).Dedupe()
	if err := s.records.UpdateRules(ctx, record.ID, rules); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update rules")
	}
	record.Rules = rules
	s.recordAudit(ctx, userID, &resourceID, models.AuditActionRulesUpdate, map[string]interface{}{"rules": rules})
	return record, nil
}

// ListTracked returns all tracking records of a user.
func (s *TrackingService) ListTracked(ctx context.Context, userID int64) ([]models.TrackingRecord, error) {
	records, err := s.records.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tracking records")
	}
	if records == nil {
		records = []models.TrackingRecord{}
	}
	return records, nil
}

// FindSlots runs a manual search for slots currently matching the
// record's rules. Finding nothing is a result, not an error.
func (s *TrackingService) FindSlots(ctx context.Context, userID, resourceID int64) (*FindSlotsResult, error) {
	record, err := s.getRecord(ctx, userID, resourceID)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient profile is not registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load patient profile")
	}
	resource, err := s.resources.Get(ctx, resourceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}

	var speciality *models.Speciality
	if sp, err := s.resources.GetSpeciality(ctx, resource.SpecialityCode); err == nil {
		speciality = sp
	}
	var appointmentID *string
	if link, err := s.links.Get(ctx, userID, s.aliases.Canonical(resource.SpecialityCode)); err == nil && link.AppointmentID != nil {
		appointmentID = link.AppointmentID
	}

	schedule, err := s.portal.FetchSchedule(ctx, *profile, *resource, appointmentID, speciality)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrFetchFailed.Code, appErrors.ErrFetchFailed.Status, "failed to fetch schedule")
	}

	rules, _ := MigrateRules(record.Rules, s.now())
	candidates := CollectMatching(schedule.Days, rules, s.now())
	if candidates == nil {
		candidates = []models.SlotCandidate{}
	}
	return &FindSlotsResult{Checked: true, Slots: candidates}, nil
}

func (s *TrackingService) getRecord(ctx context.Context, userID, resourceID int64) (*models.TrackingRecord, error) {
	record, err := s.records.Get(ctx, userID, resourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tracking record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tracking record")
	}
	return record, nil
}

func (s *TrackingService) recordAudit(ctx context.Context, userID int64, resourceID *int64, action string, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	var payload []byte
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			payload = data
		}
	}
	if err := s.audit.Create(ctx, &models.AuditRecord{
		UserID:     userID,
		Action:     action,
		ResourceID: resourceID,
		Details:    payload,
		Source:     models.AuditSourceAPI,
		Status:     models.AuditStatusSuccess,
	}); err != nil {
		s.logger.Warn("failed to record audit entry", zap.String("action", action), zap.Error(err))
	}
}
