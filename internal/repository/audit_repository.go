package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medwatch/emias-tracker-api/internal/models"
)

// AuditRepository persists the user action trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create stores an audit record.
func (r *AuditRepository) Create(ctx context.Context, record *models.AuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO booking_audits (id, user_id, action, resource_id, details, source, status, created_at)
VALUES (:id, :user_id, :action, :resource_id, :details, :source, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create audit record: %w", err)
	}
	return nil
}

// List returns filtered audit records, newest first, with a total count for
// pagination.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditRecord, int, error) {
	where, args := buildAuditWhere(filter)

	countQuery := "SELECT COUNT(*) FROM booking_audits" + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit records: %w", err)
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	query := fmt.Sprintf(`SELECT id, user_id, action, resource_id, details, source, status, created_at
FROM booking_audits%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	var records []models.AuditRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit records: %w", err)
	}
	return records, total, nil
}

// ListForExport streams records matching the filter without pagination,
// oldest first, capped to keep exports bounded.
func (r *AuditRepository) ListForExport(ctx context.Context, filter models.AuditFilter, limit int) ([]models.AuditRecord, error) {
	if limit <= 0 {
		limit = 10000
	}
	where, args := buildAuditWhere(filter)
	query := fmt.Sprintf(`SELECT id, user_id, action, resource_id, details, source, status, created_at
FROM booking_audits%s ORDER BY created_at ASC LIMIT $%d`, where, len(args)+1)
	args = append(args, limit)

	var records []models.AuditRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list audit records for export: %w", err)
	}
	return records, nil
}

func buildAuditWhere(filter models.AuditFilter) (string, []interface{}) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.ResourceID != nil {
		args = append(args, *filter.ResourceID)
		conditions = append(conditions, fmt.Sprintf("resource_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
