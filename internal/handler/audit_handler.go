package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medwatch/emias-tracker-api/internal/middleware"
	"github.com/medwatch/emias-tracker-api/internal/models"
	"github.com/medwatch/emias-tracker-api/internal/service"
	appErrors "github.com/medwatch/emias-tracker-api/pkg/errors"
	"github.com/medwatch/emias-tracker-api/pkg/response"
)

// AuditHandler exposes the action trail.
type AuditHandler struct {
	service *service.AuditService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary List audit records
// @Tags Audit
// @Produce json
// @Param userId query int false "User ID"
// @Param resourceId query int false "Resource ID"
// @Param action query string false "Action filter"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /audits [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter, err := parseAuditFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, cacheHit, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)

	pagination := &models.Pagination{
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalCount: result.Total,
	}
	response.JSON(c, http.StatusOK, result.Items, pagination)
}

func parseAuditFilter(c *gin.Context) (models.AuditFilter, error) {
	var filter models.AuditFilter

	if raw := c.Query("userId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "userId must be an integer")
		}
		filter.UserID = &id
	}
	if raw := c.Query("resourceId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "resourceId must be an integer")
		}
		filter.ResourceID = &id
	}
	filter.Action = c.Query("action")

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD")
		}
		filter.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD")
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		filter.To = &end
	}

	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "50"))
	return filter, nil
}
