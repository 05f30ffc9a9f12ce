package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medwatch/emias-tracker-api/internal/models"
)

// LinkRepository persists appointment links keyed by (user, speciality
// group). Aliased speciality codes share one row.
type LinkRepository struct {
	db *sqlx.DB
}

// NewLinkRepository constructs the repository.
func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// Get returns the link for a user and speciality group.
func (r *LinkRepository) Get(ctx context.Context, userID int64, group string) (*models.AppointmentLink, error) {
	const query = `SELECT id, user_id, speciality_group, appointment_id, referral_id, updated_at
FROM appointment_links WHERE user_id = $1 AND speciality_group = $2`
	var link models.AppointmentLink
	if err := r.db.GetContext(ctx, &link, query, userID, group); err != nil {
		return nil, err
	}
	return &link, nil
}

// Upsert stores the link, replacing the appointment and referral ids.
func (r *LinkRepository) Upsert(ctx context.Context, link *models.AppointmentLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	link.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO appointment_links (id, user_id, speciality_group, appointment_id, referral_id, updated_at)
VALUES (:id, :user_id, :speciality_group, :appointment_id, :referral_id, :updated_at)
ON CONFLICT (user_id, speciality_group)
DO UPDATE SET appointment_id = EXCLUDED.appointment_id, referral_id = EXCLUDED.referral_id,
              updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("upsert appointment link: %w", err)
	}
	return nil
}

// SetAppointmentID updates only the appointment id, creating the link row
// when missing.
func (r *LinkRepository) SetAppointmentID(ctx context.Context, userID int64, group string, appointmentID *string) error {
	const query = `INSERT INTO appointment_links (id, user_id, speciality_group, appointment_id, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, speciality_group)
DO UPDATE SET appointment_id = EXCLUDED.appointment_id, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), userID, group, appointmentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("set appointment id: %w", err)
	}
	return nil
}

// ClearAppointmentID drops the stale appointment id but keeps the referral.
func (r *LinkRepository) ClearAppointmentID(ctx context.Context, userID int64, group string) error {
	const query = `UPDATE appointment_links SET appointment_id = NULL, updated_at = $1
WHERE user_id = $2 AND speciality_group = $3`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), userID, group); err != nil {
		return fmt.Errorf("clear appointment id: %w", err)
	}
	return nil
}

// ListByUser returns all links of a user.
func (r *LinkRepository) ListByUser(ctx context.Context, userID int64) ([]models.AppointmentLink, error) {
	const query = `SELECT id, user_id, speciality_group, appointment_id, referral_id, updated_at
FROM appointment_links WHERE user_id = $1 ORDER BY speciality_group ASC`
	var links []models.AppointmentLink
	if err := r.db.SelectContext(ctx, &links, query, userID); err != nil {
		return nil, fmt.Errorf("list appointment links: %w", err)
	}
	return links, nil
}
