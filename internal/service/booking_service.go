package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/medwatch/emias-tracker-api/internal/emias"
	"github.com/medwatch/emias-tracker-api/internal/models"
	appErrors "github.com/medwatch/emias-tracker-api/pkg/errors"
)

type bookingPortal interface {
	FetchSchedule(ctx context.Context, profile models.PatientProfile, resource models.Resource, appointmentID *string, speciality *models.Speciality) (*emias.ScheduleResult, error)
	FetchAppointments(ctx context.Context, profile models.PatientProfile) ([]emias.Reception, error)
	CreateAppointment(ctx context.Context, profile models.PatientProfile, resource models.Resource, startISO, endISO string, receptionTypeID, purposeCode, purposeID int) (string, error)
	ShiftAppointment(ctx context.Context, profile models.PatientProfile, resource models.Resource, startISO, endISO, appointmentID string, receptionTypeID int) (string, error)
}

type bookingProfileStore interface {
	Get(ctx context.Context, userID int64) (*models.PatientProfile, error)
}

type bookingResourceStore interface {
	Get(ctx context.Context, id int64) (*models.Resource, error)
	GetSpeciality(ctx context.Context, code string) (*models.Speciality, error)
}

type bookingLinkStore interface {
	Get(ctx context.Context, userID int64, group string) (*models.AppointmentLink, error)
	SetAppointmentID(ctx context.Context, userID int64, group string, appointmentID *string) error
	ClearAppointmentID(ctx context.Context, userID int64, group string) error
}

type bookingAuditWriter interface {
	Create(ctx context.Context, record *models.AuditRecord) error
}

// BookingConfig carries the speciality aliasing and referral policy knobs.
type BookingConfig struct {
	// AliasGroups maps a speciality code to the codes treated as the same
	// speciality for appointment purposes.
	AliasGroups map[string][]string
	// ReferralWhitelist lists speciality codes bookable without a referral
	// regardless of the stored policy (dispensary services).
	ReferralWhitelist []string
}

// BookingService decides between shifting an existing appointment and
// creating a new one, and executes the booking against the portal.
type BookingService struct {
	portal    bookingPortal
	profiles  bookingProfileStore
	resources bookingResourceStore
	links     bookingLinkStore
	audit     bookingAuditWriter
	metrics   *MetricsService
	logger    *zap.Logger
	aliases   *SpecialityAliases
	config    BookingConfig
}

// NewBookingService constructs the orchestrator.
func NewBookingService(
	portal bookingPortal,
	profiles bookingProfileStore,
	resources bookingResourceStore,
	links bookingLinkStore,
	audit bookingAuditWriter,
	metrics *MetricsService,
	logger *zap.Logger,
	config BookingConfig,
) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		portal:    portal,
		profiles:  profiles,
		resources: resources,
		links:     links,
		audit:     audit,
		metrics:   metrics,
		logger:    logger,
		aliases:   NewSpecialityAliases(config.AliasGroups),
		config:    config,
	}
}

// Book places the user into the slot, shifting their existing appointment
// for the speciality when one exists and creating a new one otherwise.
// slotKey is the canonical "YYYY-MM-DD HH:MM" identity.
func (s *BookingService) Book(ctx context.Context, userID, resourceID int64, slotKey string) (*models.BookingResult, error) {
	return s.bookWithSource(ctx, models.AuditSourceAPI, userID, resourceID, slotKey)
}

// BookFromTracker is Book invoked by the background pass; only the audit
// source differs.
func (s *BookingService) BookFromTracker(ctx context.Context, userID, resourceID int64, slotKey string) (*models.BookingResult, error) {
	return s.bookWithSource(ctx, models.AuditSourceTracker, userID, resourceID, slotKey)
}

func (s *BookingService) bookWithSource(ctx context.Context, source string, userID, resourceID int64, slotKey string) (*models.BookingResult, error) {
	result, err := s.book(ctx, userID, resourceID, slotKey)
	s.recordOutcome(ctx, source, userID, resourceID, slotKey, result, err)
	return result, err
}

func (s *BookingService) book(ctx context.Context, userID, resourceID int64, slotKey string) (*models.BookingResult, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient profile is not registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load patient profile")
	}

	resource, err := s.resources.Get(ctx, resourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource is not known")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}

	speciality := s.lookupSpeciality(ctx, resource.SpecialityCode)
	group := s.aliases.Canonical(resource.SpecialityCode)

	link, err := s.links.Get(ctx, userID, group)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment link")
	}

	appointmentID := s.discoverAppointmentID(ctx, userID, *profile, resource.SpecialityCode, group, link)

	var storedID *string
	if appointmentID != "" {
		storedID = &appointmentID
	}
	schedule, err := s.portal.FetchSchedule(ctx, *profile, *resource, storedID, speciality)
	if err != nil {
		return nil, s.portalError(err, "failed to fetch schedule")
	}
	if schedule.StaleAppointment {
		appointmentID = ""
		if clearErr := s.links.ClearAppointmentID(ctx, userID, group); clearErr != nil {
			s.logger.Warn("failed to clear stale appointment id", zap.Int64("user_id", userID), zap.Error(clearErr))
		}
	}

	startISO, endISO, found := findSlotTimes(schedule.Days, slotKey)
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNoSlotFound, "slot is no longer available")
	}

	receptionTypeID := 0
	purposeCode, purposeID := 0, 0
	if speciality != nil {
		receptionTypeID = speciality.ReceptionTypeID
		purposeCode = speciality.InquiryPurposeCode
		purposeID = speciality.InquiryPurposeID
	} else {
		s.logger.Info("no speciality parameters stored, using zero reception type",
			zap.String("speciality_code", resource.SpecialityCode),
			zap.Int64("resource_id", resourceID))
	}

	if appointmentID != "" {
		newID, err := s.portal.ShiftAppointment(ctx, *profile, *resource, startISO, endISO, appointmentID, receptionTypeID)
		if err != nil {
			return nil, s.portalError(err, "shift rejected")
		}
		s.rememberAppointment(ctx, userID, group, newID, appointmentID)
		return &models.BookingResult{
			Kind:          models.BookingKindShift,
			AppointmentID: firstNonEmpty(newID, appointmentID),
			SlotKey:       slotKey,
			StartISO:      startISO,
			EndISO:        endISO,
		}, nil
	}

	if err := s.checkReferralPolicy(resource.SpecialityCode, speciality, link); err != nil {
		return nil, err
	}

	newID, err := s.portal.CreateAppointment(ctx, *profile, *resource, startISO, endISO, receptionTypeID, purposeCode, purposeID)
	if err != nil {
		// The portal sometimes refuses creation because an appointment
		// already exists for the speciality. Re-discover and retry as a
		// shift once before giving up.
		if retryID := s.findReceptionID(ctx, *profile, resource.SpecialityCode); retryID != "" {
			s.logger.Info("create rejected but an existing appointment surfaced, retrying as shift",
				zap.Int64("user_id", userID),
				zap.String("appointment_id", retryID))
			shiftedID, shiftErr := s.portal.ShiftAppointment(ctx, *profile, *resource, startISO, endISO, retryID, receptionTypeID)
			if shiftErr != nil {
				return nil, s.portalError(shiftErr, "shift retry rejected")
			}
			s.rememberAppointment(ctx, userID, group, shiftedID, retryID)
			return &models.BookingResult{
				Kind:          models.BookingKindShift,
				AppointmentID: firstNonEmpty(shiftedID, retryID),
				SlotKey:       slotKey,
				StartISO:      startISO,
				EndISO:        endISO,
			}, nil
		}
		return nil, s.portalError(err, "booking rejected")
	}

	if newID == "" {
		// Creation succeeded without an id in the response; recover it
		// from a fresh receptions fetch so shifts keep working.
		newID = s.findReceptionID(ctx, *profile, resource.SpecialityCode)
	}
	s.rememberAppointment(ctx, userID, group, newID, "")
	return &models.BookingResult{
		Kind:          models.BookingKindCreate,
		AppointmentID: newID,
		SlotKey:       slotKey,
		StartISO:      startISO,
		EndISO:        endISO,
	}, nil
}

// discoverAppointmentID prefers a fresh look at the patient's receptions
// and falls back to the stored link. The link is reconciled with what the
// portal reports.
func (s *BookingService) discoverAppointmentID(ctx context.Context, userID int64, profile models.PatientProfile, code, group string, link *models.AppointmentLink) string {
	receptions, err := s.portal.FetchAppointments(ctx, profile)
	if err != nil {
		s.logger.Warn("failed to fetch receptions, falling back to stored link",
			zap.Int64("user_id", userID), zap.Error(err))
		if link != nil && link.AppointmentID != nil {
			return *link.AppointmentID
		}
		return ""
	}

	if id := receptionIDForGroup(receptions, s.aliases.Group(code)); id != "" {
		if link == nil || link.AppointmentID == nil || *link.AppointmentID != id {
			if err := s.links.SetAppointmentID(ctx, userID, group, &id); err != nil {
				s.logger.Warn("failed to reconcile appointment link", zap.Int64("user_id", userID), zap.Error(err))
			}
		}
		return id
	}

	// Upstream knows no appointment for this speciality; a stored id is
	// stale.
	if link != nil && link.AppointmentID != nil {
		if err := s.links.ClearAppointmentID(ctx, userID, group); err != nil {
			s.logger.Warn("failed to clear stale appointment link", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	return ""
}

func (s *BookingService) findReceptionID(ctx context.Context, profile models.PatientProfile, code string) string {
	receptions, err := s.portal.FetchAppointments(ctx, profile)
	if err != nil {
		return ""
	}
	return receptionIDForGroup(receptions, s.aliases.Group(code))
}

func receptionIDForGroup(receptions []emias.Reception, group []string) string {
	members := make(map[string]struct{}, len(group))
	for _, code := range group {
		members[code] = struct{}{}
	}
	for _, reception := range receptions {
		if _, ok := members[reception.SpecialityCode()]; !ok {
			continue
		}
		if id := reception.ReceptionID(); id != "" {
			return id
		}
	}
	return ""
}

// checkReferralPolicy gates appointment creation. Shifts are never gated:
// the patient already holds an appointment.
func (s *BookingService) checkReferralPolicy(code string, speciality *models.Speciality, link *models.AppointmentLink) error {
	for _, allowed := range s.config.ReferralWhitelist {
		if allowed == code {
			return nil
		}
	}
	policy := models.ReferralFallback
	if speciality != nil && speciality.ReferralPolicy != "" {
		policy = speciality.ReferralPolicy
	}
	if link != nil && link.ReferralID != nil && *link.ReferralID != "" {
		return nil
	}
	switch policy {
	case models.ReferralAlwaysAllow:
		return nil
	case models.ReferralStrict:
		return appErrors.Clone(appErrors.ErrReferralRequired, "speciality requires a referral")
	default:
		s.logger.Info("no referral on record, attempting creation anyway",
			zap.String("speciality_code", code))
		return nil
	}
}

func (s *BookingService) lookupSpeciality(ctx context.Context, code string) *models.Speciality {
	speciality, err := s.resources.GetSpeciality(ctx, code)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to load speciality parameters", zap.String("code", code), zap.Error(err))
		}
		return nil
	}
	return speciality
}

func (s *BookingService) rememberAppointment(ctx context.Context, userID int64, group, newID, previousID string) {
	id := firstNonEmpty(newID, previousID)
	if id == "" {
		return
	}
	if err := s.links.SetAppointmentID(ctx, userID, group, &id); err != nil {
		s.logger.Warn("failed to store appointment link",
			zap.Int64("user_id", userID),
			zap.String("speciality_group", group),
			zap.Error(err))
	}
}

// portalError maps an upstream failure into a domain error, keeping the
// portal's own description verbatim when it provided one.
func (s *BookingService) portalError(err error, fallback string) error {
	var portalErr *emias.PortalError
	if errors.As(err, &portalErr) && portalErr.Description != "" {
		return appErrors.Wrap(err, appErrors.ErrBookingRejected.Code, appErrors.ErrBookingRejected.Status, portalErr.Description)
	}
	return appErrors.Wrap(err, appErrors.ErrBookingRejected.Code, appErrors.ErrBookingRejected.Status, fallback)
}

func (s *BookingService) recordOutcome(ctx context.Context, source string, userID, resourceID int64, slotKey string, result *models.BookingResult, err error) {
	kind := string(models.BookingKindCreate)
	details := map[string]interface{}{"slot": slotKey}
	action := models.AuditActionBookingSuccess
	status := models.AuditStatusSuccess
	if result != nil {
		kind = string(result.Kind)
		details["kind"] = kind
		details["appointment_id"] = result.AppointmentID
	}
	if err != nil {
		action = models.AuditActionBookingFailure
		status = models.AuditStatusFailure
		details["error"] = err.Error()
	}
	s.metrics.RecordBooking(kind, err == nil)

	if s.audit == nil {
		return
	}
	payload, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		payload = nil
	}
	if auditErr := s.audit.Create(ctx, &models.AuditRecord{
		UserID:     userID,
		Action:     action,
		ResourceID: &resourceID,
		Details:    payload,
		Source:     source,
		Status:     status,
	}); auditErr != nil {
		s.logger.Warn("failed to record booking audit entry", zap.Error(auditErr))
	}
}

// findSlotTimes locates the portal timestamps of the slot identified by
// the canonical key. The key maps to the ISO prefix "YYYY-MM-DDTHH:MM".
func findSlotTimes(days []models.ScheduleDay, slotKey string) (startISO, endISO string, found bool) {
	prefix := strings.Replace(slotKey, " ", "T", 1)
	if len(prefix) > 16 {
		prefix = prefix[:16]
	}
	for _, day := range days {
		for _, block := range day.ScheduleBySlot {
			for _, slot := range block.Slots {
				if len(slot.StartTime) >= 16 && slot.StartTime[:16] == prefix {
					return slot.StartTime, slot.EndTime, true
				}
			}
		}
	}
	return "", "", false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
