package dto

import "github.com/medwatch/emias-tracker-api/internal/models"

// AuditListResponse wraps a page of audit records.
type AuditListResponse struct {
	Items    []models.AuditRecord `json:"items"`
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}
