package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/medwatch/emias-tracker-api/internal/models"
	"github.com/medwatch/emias-tracker-api/pkg/export"
	"github.com/medwatch/emias-tracker-api/pkg/storage"
)

type auditExportSource interface {
	ListForExport(ctx context.Context, filter models.AuditFilter, limit int) ([]models.AuditRecord, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	RowLimit  int
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets from the audit trail and persists
// rendered files.
type ExportService struct {
	audits  auditExportSource
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(audits auditExportSource, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		audits:  audits,
		storage: storage,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate builds the dataset according to the job definition and stores
// the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL
// when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "all"
	if job.Params.UserID != nil {
		scope = fmt.Sprintf("user%d", *job.Params.UserID)
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	records, err := s.loadRecords(ctx, job.Params)
	if err != nil {
		return export.Dataset{}, "", err
	}
	switch job.Type {
	case models.ReportTypeBookings:
		return buildBookingDataset(records), "Booking History", nil
	case models.ReportTypeActions:
		return buildActionDataset(records), "Action Trail", nil
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) loadRecords(ctx context.Context, params models.ReportJobParams) ([]models.AuditRecord, error) {
	filter := models.AuditFilter{
		UserID:     params.UserID,
		ResourceID: params.ResourceID,
	}
	if from, ok := parseReportDate(params.DateFrom); ok {
		filter.From = &from
	}
	if to, ok := parseReportDate(params.DateTo); ok {
		// Inclusive upper bound: the whole named day.
		end := to.Add(24*time.Hour - time.Nanosecond)
		filter.To = &end
	}
	return s.audits.ListForExport(ctx, filter, s.cfg.RowLimit)
}

func parseReportDate(raw *string) (time.Time, bool) {
	if raw == nil || *raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", *raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// bookingActions are the audit actions included in a bookings report.
var bookingActions = map[string]bool{
	models.AuditActionBookingAttempt: true,
	models.AuditActionBookingSuccess: true,
	models.AuditActionBookingFailure: true,
}

func buildBookingDataset(records []models.AuditRecord) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, record := range records {
		if !bookingActions[record.Action] {
			continue
		}
		details := decodeAuditDetails(record.Details)
		rows = append(rows, map[string]string{
			"Time":           record.CreatedAt.UTC().Format(time.RFC3339),
			"User ID":        fmt.Sprintf("%d", record.UserID),
			"Resource ID":    formatResourceID(record.ResourceID),
			"Slot":           details["slot"],
			"Kind":           details["kind"],
			"Appointment ID": details["appointment_id"],
			"Source":         record.Source,
			"Status":         record.Status,
			"Error":          details["error"],
		})
	}
	return export.Dataset{
		Headers: []string{"Time", "User ID", "Resource ID", "Slot", "Kind", "Appointment ID", "Source", "Status", "Error"},
		Rows:    rows,
	}
}

func buildActionDataset(records []models.AuditRecord) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, map[string]string{
			"Time":        record.CreatedAt.UTC().Format(time.RFC3339),
			"User ID":     fmt.Sprintf("%d", record.UserID),
			"Action":      record.Action,
			"Resource ID": formatResourceID(record.ResourceID),
			"Source":      record.Source,
			"Status":      record.Status,
			"Details":     compactDetails(record.Details),
		})
	}
	return export.Dataset{
		Headers: []string{"Time", "User ID", "Action", "Resource ID", "Source", "Status", "Details"},
		Rows:    rows,
	}
}

func formatResourceID(id *int64) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("%d", *id)
}

// decodeAuditDetails flattens the details payload to strings; non-scalar
// values are re-encoded as JSON.
func decodeAuditDetails(raw []byte) map[string]string {
	result := map[string]string{}
	if len(raw) == 0 {
		return result
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return result
	}
	for key, value := range decoded {
		switch v := value.(type) {
		case string:
			result[key] = v
		case float64:
			result[key] = strings.TrimSuffix(fmt.Sprintf("%v", v), ".0")
		case bool:
			result[key] = fmt.Sprintf("%t", v)
		case nil:
		default:
			if data, err := json.Marshal(v); err == nil {
				result[key] = string(data)
			}
		}
	}
	return result
}

func compactDetails(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
