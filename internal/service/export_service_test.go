package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medwatch/emias-tracker-api/internal/models"
	"github.com/medwatch/emias-tracker-api/pkg/export"
	"github.com/medwatch/emias-tracker-api/pkg/storage"
)

type auditSourceStub struct {
	records    []models.AuditRecord
	lastFilter models.AuditFilter
}

func (s *auditSourceStub) ListForExport(ctx context.Context, filter models.AuditFilter, limit int) ([]models.AuditRecord, error) {
	s.lastFilter = filter
	return s.records, nil
}

func exportFixtureRecords() []models.AuditRecord {
	resourceID := int64(555)
	return []models.AuditRecord{
		{
			ID:         "a-1",
			UserID:     42,
			Action:     models.AuditActionBookingSuccess,
			ResourceID: &resourceID,
			Details:    []byte(`{"slot":"2025-07-01 10:00","kind":"create","appointment_id":"7001"}`),
			Source:     models.AuditSourceTracker,
			Status:     models.AuditStatusSuccess,
			CreatedAt:  time.Date(2025, 7, 1, 7, 5, 0, 0, time.UTC),
		},
		{
			ID:        "a-2",
			UserID:    42,
			Action:    models.AuditActionTrackStart,
			Source:    models.AuditSourceAPI,
			Status:    models.AuditStatusSuccess,
			CreatedAt: time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC),
		},
	}
}

func newExportServiceForTest(t *testing.T, audits *auditSourceStub) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour, RowLimit: 1000}
	svc := NewExportService(audits, store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func TestExportServiceGenerateBookingsCSV(t *testing.T) {
	audits := &auditSourceStub{records: exportFixtureRecords()}
	svc, store := newExportServiceForTest(t, audits)
	userID := int64(42)
	job := &models.ReportJob{
		ID:        "job-1",
		Type:      models.ReportTypeBookings,
		Params:    models.ReportJobParams{UserID: &userID, Format: models.ReportFormatCSV},
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NotEmpty(t, result.RelativePath)
	require.Contains(t, result.URL, "/export/")

	payload, err := os.ReadFile(store.Path(result.RelativePath))
	require.NoError(t, err)
	content := string(payload)
	// Only booking actions survive the filter.
	require.Contains(t, content, "2025-07-01 10:00")
	require.Contains(t, content, "7001")
	require.NotContains(t, content, models.AuditActionTrackStart)
}

func TestExportServiceGenerateActionsPDF(t *testing.T) {
	audits := &auditSourceStub{records: exportFixtureRecords()}
	svc, store := newExportServiceForTest(t, audits)
	job := &models.ReportJob{
		ID:        "job-2",
		Type:      models.ReportTypeActions,
		Params:    models.ReportJobParams{Format: models.ReportFormatPDF},
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, models.ReportFormatPDF, result.Format)

	path := filepath.Clean(store.Path(result.RelativePath))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportServiceDateRangeIsInclusive(t *testing.T) {
	audits := &auditSourceStub{}
	svc, _ := newExportServiceForTest(t, audits)
	from := "2025-07-01"
	to := "2025-07-31"
	job := &models.ReportJob{
		ID:     "job-3",
		Type:   models.ReportTypeActions,
		Params: models.ReportJobParams{DateFrom: &from, DateTo: &to, Format: models.ReportFormatCSV},
	}
	_, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NotNil(t, audits.lastFilter.From)
	require.NotNil(t, audits.lastFilter.To)
	require.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), audits.lastFilter.From.UTC())
	// The whole closing day is part of the range.
	require.Equal(t, 31, audits.lastFilter.To.UTC().Day())
	require.Equal(t, 23, audits.lastFilter.To.UTC().Hour())
}
