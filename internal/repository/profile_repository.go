package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/medwatch/emias-tracker-api/internal/models"
)

// ProfileRepository persists patient portal identities.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs the repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get returns the profile for a user.
func (r *ProfileRepository) Get(ctx context.Context, userID int64) (*models.PatientProfile, error) {
	const query = `SELECT user_id, oms_number, birth_date, token, updated_at FROM patient_profiles WHERE user_id = $1`
	var profile models.PatientProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Upsert stores the profile for a user.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *models.PatientProfile) error {
	profile.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO patient_profiles (user_id, oms_number, birth_date, token, updated_at)
VALUES (:user_id, :oms_number, :birth_date, :token, :updated_at)
ON CONFLICT (user_id)
DO UPDATE SET oms_number = EXCLUDED.oms_number, birth_date = EXCLUDED.birth_date,
              token = EXCLUDED.token, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("upsert patient profile: %w", err)
	}
	return nil
}
