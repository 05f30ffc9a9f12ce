package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/medwatch/emias-tracker-api/internal/dto"
	"github.com/medwatch/emias-tracker-api/internal/models"
	appErrors "github.com/medwatch/emias-tracker-api/pkg/errors"
)

type registryProfileStore interface {
	Get(ctx context.Context, userID int64) (*models.PatientProfile, error)
	Upsert(ctx context.Context, profile *models.PatientProfile) error
}

type registryResourceStore interface {
	Get(ctx context.Context, id int64) (*models.Resource, error)
	Upsert(ctx context.Context, resource *models.Resource) error
	GetSpeciality(ctx context.Context, code string) (*models.Speciality, error)
	UpsertSpeciality(ctx context.Context, speciality *models.Speciality) error
}

// RegistryService maintains the portal identities and resource metadata
// the tracker operates on: patient profiles, resources, speciality
// booking parameters.
type RegistryService struct {
	profiles  registryProfileStore
	resources registryResourceStore
	logger    *zap.Logger
}

// NewRegistryService constructs the service.
func NewRegistryService(profiles registryProfileStore, resources registryResourceStore, logger *zap.Logger) *RegistryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryService{profiles: profiles, resources: resources, logger: logger}
}

// UpsertProfile registers or refreshes the portal identity of a user.
func (s *RegistryService) UpsertProfile(ctx context.Context, req dto.UpsertProfileRequest) (*models.PatientProfile, error) {
	profile := &models.PatientProfile{
		UserID:    req.UserID,
		OMSNumber: req.OMSNumber,
		BirthDate: req.BirthDate,
		Token:     req.Token,
	}
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store patient profile")
	}
	return profile, nil
}

// GetProfile returns the registered identity of a user.
func (s *RegistryService) GetProfile(ctx context.Context, userID int64) (*models.PatientProfile, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient profile is not registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load patient profile")
	}
	return profile, nil
}

// UpsertResource registers resource metadata learned from the portal.
func (s *RegistryService) UpsertResource(ctx context.Context, req dto.UpsertResourceRequest) (*models.Resource, error) {
	resource := &models.Resource{
		ID:                req.ID,
		Name:              req.Name,
		ComplexResourceID: req.ComplexResourceID,
		SpecialityCode:    req.SpecialityCode,
		SpecialityName:    req.SpecialityName,
	}
	if err := s.resources.Upsert(ctx, resource); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store resource")
	}
	return resource, nil
}

// GetResource returns a registered resource.
func (s *RegistryService) GetResource(ctx context.Context, id int64) (*models.Resource, error) {
	resource, err := s.resources.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource is not known")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	return resource, nil
}

// UpsertSpeciality stores speciality booking parameters. An empty policy
// keeps the portal-deciding fallback behaviour.
func (s *RegistryService) UpsertSpeciality(ctx context.Context, req dto.UpsertSpecialityRequest) (*models.Speciality, error) {
	policy := models.ReferralPolicy(req.ReferralPolicy)
	if policy == "" {
		policy = models.ReferralFallback
	}
	speciality := &models.Speciality{
		Code:               req.Code,
		Name:               req.Name,
		InquiryPurposeCode: req.InquiryPurposeCode,
		InquiryPurposeID:   req.InquiryPurposeID,
		ReceptionTypeID:    req.ReceptionTypeID,
		ReferralPolicy:     policy,
	}
	if err := s.resources.UpsertSpeciality(ctx, speciality); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store speciality")
	}
	return speciality, nil
}
