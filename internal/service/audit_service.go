package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/medwatch/emias-tracker-api/internal/dto"
	"github.com/medwatch/emias-tracker-api/internal/models"
	appErrors "github.com/medwatch/emias-tracker-api/pkg/errors"
)

type auditLister interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditRecord, int, error)
}

// AuditService serves the action trail with response caching.
type AuditService struct {
	repo   auditLister
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(repo auditLister, cache *CacheService, ttl time.Duration, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AuditService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// List returns a page of audit records. The second return value reports
// whether the response came from cache.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) (*dto.AuditListResponse, bool, error) {
	key := auditCacheKey(filter)
	if s.cache.Enabled() {
		var cached dto.AuditListResponse
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit records")
	}
	if records == nil {
		records = []models.AuditRecord{}
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	resp := &dto.AuditListResponse{
		Items:    records,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, key, resp, s.ttl); err != nil {
			s.logger.Warn("failed to cache audit page", zap.Error(err))
		}
	}
	return resp, false, nil
}

// Invalidate drops cached audit pages (called after writes when
// freshness matters more than the TTL).
func (s *AuditService) Invalidate(ctx context.Context) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, "audits:*"); err != nil {
		s.logger.Warn("failed to invalidate audit cache", zap.Error(err))
	}
}

func auditCacheKey(filter models.AuditFilter) string {
	return fmt.Sprintf("audits:%s:%s:%s:%s:%s:%d:%d",
		formatID(filter.UserID), formatID(filter.ResourceID), filter.Action,
		formatTimeKey(filter.From), formatTimeKey(filter.To),
		filter.Page, filter.PageSize)
}

func formatID(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *id)
}

func formatTimeKey(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("20060102150405")
}
