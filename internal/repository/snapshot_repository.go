package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/medwatch/emias-tracker-api/internal/models"
)

// SnapshotRepository persists schedule baselines per resource.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository constructs the repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Get returns the stored baseline for a resource, sql.ErrNoRows when the
// resource has never been snapshotted.
func (r *SnapshotRepository) Get(ctx context.Context, resourceID int64) (*models.ScheduleSnapshot, error) {
	const query = `SELECT resource_id, slots, updated_at FROM schedule_snapshots WHERE resource_id = $1`
	var snapshot models.ScheduleSnapshot
	if err := r.db.GetContext(ctx, &snapshot, query, resourceID); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Upsert replaces the baseline for a resource.
func (r *SnapshotRepository) Upsert(ctx context.Context, snapshot *models.ScheduleSnapshot) error {
	snapshot.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO schedule_snapshots (resource_id, slots, updated_at)
VALUES (:resource_id, :slots, :updated_at)
ON CONFLICT (resource_id)
DO UPDATE SET slots = EXCLUDED.slots, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, snapshot); err != nil {
		return fmt.Errorf("upsert schedule snapshot: %w", err)
	}
	return nil
}

// Delete drops the baseline for a resource (used when tracking stops and no
// other record watches the resource).
func (r *SnapshotRepository) Delete(ctx context.Context, resourceID int64) error {
	const query = `DELETE FROM schedule_snapshots WHERE resource_id = $1`
	if _, err := r.db.ExecContext(ctx, query, resourceID); err != nil {
		return fmt.Errorf("delete schedule snapshot: %w", err)
	}
	return nil
}
