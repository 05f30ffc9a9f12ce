package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medwatch/emias-tracker-api/internal/models"
)

// TrackingRepository persists user tracking records.
type TrackingRepository struct {
	db *sqlx.DB
}

// NewTrackingRepository constructs the repository.
func NewTrackingRepository(db *sqlx.DB) *TrackingRepository {
	return &TrackingRepository{db: db}
}

const trackingColumns = `id, user_id, resource_id, active, auto_booking, rules, created_at, updated_at`

// ListActive returns every active tracking record ordered by creation time.
// The polling cycle walks this list.
func (r *TrackingRepository) ListActive(ctx context.Context) ([]models.TrackingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM tracking_records WHERE active = TRUE ORDER BY created_at ASC`, trackingColumns)
	var records []models.TrackingRecord
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list active tracking records: %w", err)
	}
	return records, nil
}

// ListByUser returns every record of the user, active or not.
func (r *TrackingRepository) ListByUser(ctx context.Context, userID int64) ([]models.TrackingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM tracking_records WHERE user_id = $1 ORDER BY created_at ASC`, trackingColumns)
	var records []models.TrackingRecord
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("list tracking records for user %d: %w", userID, err)
	}
	return records, nil
}

// Get fetches the record for a (user, resource) pair.
func (r *TrackingRepository) Get(ctx context.Context, userID, resourceID int64) (*models.TrackingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM tracking_records WHERE user_id = $1 AND resource_id = $2`, trackingColumns)
	var record models.TrackingRecord
	if err := r.db.GetContext(ctx, &record, query, userID, resourceID); err != nil {
		return nil, err
	}
	return &record, nil
}

// CountByResource reports how many records still watch the resource.
func (r *TrackingRepository) CountByResource(ctx context.Context, resourceID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM tracking_records WHERE resource_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, resourceID); err != nil {
		return 0, fmt.Errorf("count tracking records for resource %d: %w", resourceID, err)
	}
	return count, nil
}

// Upsert inserts or reactivates the record for a (user, resource) pair.
func (r *TrackingRepository) Upsert(ctx context.Context, record *models.TrackingRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO tracking_records (id, user_id, resource_id, active, auto_booking, rules, created_at, updated_at)
VALUES (:id, :user_id, :resource_id, :active, :auto_booking, :rules, :created_at, :updated_at)
ON CONFLICT (user_id, resource_id)
DO UPDATE SET active = EXCLUDED.active, auto_booking = EXCLUDED.auto_booking,
              rules = EXCLUDED.rules, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert tracking record: %w", err)
	}
	return nil
}

// UpdateRules replaces the stored rules for a record.
func (r *TrackingRepository) UpdateRules(ctx context.Context, id string, rules models.RuleList) error {
	const query = `UPDATE tracking_records SET rules = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, rules, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update tracking rules: %w", err)
	}
	return nil
}

// SetActive toggles the active flag.
func (r *TrackingRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE tracking_records SET active = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, active, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set tracking active: %w", err)
	}
	return nil
}

// SetAutoBooking toggles the auto-booking flag.
func (r *TrackingRepository) SetAutoBooking(ctx context.Context, id string, enabled bool) error {
	const query = `UPDATE tracking_records SET auto_booking = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, enabled, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set tracking auto booking: %w", err)
	}
	return nil
}

// Delete removes a tracking record.
func (r *TrackingRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tracking_records WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete tracking record: %w", err)
	}
	return nil
}
