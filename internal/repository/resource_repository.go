package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/medwatch/emias-tracker-api/internal/models"
)

// ResourceRepository persists doctor resources and speciality parameters.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository constructs the repository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Get returns a resource by its portal id.
func (r *ResourceRepository) Get(ctx context.Context, id int64) (*models.Resource, error) {
	const query = `SELECT id, name, complex_resource_id, speciality_code, speciality_name, updated_at
FROM resources WHERE id = $1`
	var resource models.Resource
	if err := r.db.GetContext(ctx, &resource, query, id); err != nil {
		return nil, err
	}
	return &resource, nil
}

// Upsert stores resource metadata learned from the portal.
func (r *ResourceRepository) Upsert(ctx context.Context, resource *models.Resource) error {
	resource.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO resources (id, name, complex_resource_id, speciality_code, speciality_name, updated_at)
VALUES (:id, :name, :complex_resource_id, :speciality_code, :speciality_name, :updated_at)
ON CONFLICT (id)
DO UPDATE SET name = EXCLUDED.name, complex_resource_id = EXCLUDED.complex_resource_id,
              speciality_code = EXCLUDED.speciality_code, speciality_name = EXCLUDED.speciality_name,
              updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, resource); err != nil {
		return fmt.Errorf("upsert resource: %w", err)
	}
	return nil
}

// GetSpeciality returns booking parameters for a speciality code.
func (r *ResourceRepository) GetSpeciality(ctx context.Context, code string) (*models.Speciality, error) {
	const query = `SELECT code, name, inquiry_purpose_code, inquiry_purpose_id, reception_type_id, referral_policy
FROM specialities WHERE code = $1`
	var speciality models.Speciality
	if err := r.db.GetContext(ctx, &speciality, query, code); err != nil {
		return nil, err
	}
	return &speciality, nil
}

// UpsertSpeciality stores speciality booking parameters.
func (r *ResourceRepository) UpsertSpeciality(ctx context.Context, speciality *models.Speciality) error {
	const query = `INSERT INTO specialities (code, name, inquiry_purpose_code, inquiry_purpose_id, reception_type_id, referral_policy)
VALUES (:code, :name, :inquiry_purpose_code, :inquiry_purpose_id, :reception_type_id, :referral_policy)
ON CONFLICT (code)
DO UPDATE SET name = EXCLUDED.name, inquiry_purpose_code = EXCLUDED.inquiry_purpose_code,
              inquiry_purpose_id = EXCLUDED.inquiry_purpose_id, reception_type_id = EXCLUDED.reception_type_id,
              referral_policy = EXCLUDED.referral_policy`
	if _, err := r.db.NamedExecContext(ctx, query, speciality); err != nil {
		return fmt.Errorf("upsert speciality: %w", err)
	}
	return nil
}
