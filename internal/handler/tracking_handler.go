package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medwatch/emias-tracker-api/internal/dto"
	"github.com/medwatch/emias-tracker-api/internal/models"
	"github.com/medwatch/emias-tracker-api/internal/service"
	appErrors "github.com/medwatch/emias-tracker-api/pkg/errors"
	"github.com/medwatch/emias-tracker-api/pkg/response"
)

type trackingOperations interface {
	ListTracked(ctx context.Context, userID int64) ([]models.TrackingRecord, error)
	StartTracking(ctx context.Context, userID, resourceID int64, rulesText string, autoBooking bool) (*models.TrackingRecord, error)
	StopTracking(ctx context.Context, userID, resourceID int64) error
	SetActive(ctx context.Context, userID, resourceID int64, active bool) (*models.TrackingRecord, error)
	SetAutoBooking(ctx context.Context, userID, resourceID int64, enabled bool) (*models.TrackingRecord, error)
	ReplaceRules(ctx context.Context, userID, resourceID int64, rulesText string) (*models.TrackingRecord, error)
	AppendRules(ctx context.Context, userID, resourceID int64, rulesText string) (*models.TrackingRecord, error)
	FindSlots(ctx context.Context, userID, resourceID int64) (*service.FindSlotsResult, error)
}

type passRunner interface {
	RunCycleOnce(ctx context.Context) error
}

// TrackingHandler exposes the tracking-record lifecycle endpoints.
type TrackingHandler struct {
	service trackingOperations
	cycle   passRunner
}

// NewTrackingHandler constructs the handler.
func NewTrackingHandler(svc trackingOperations, cycle passRunner) *TrackingHandler {
	return &TrackingHandler{service: svc, cycle: cycle}
}

// List godoc
// @Summary List tracking records for a user
// @Tags Tracking
// @Produce json
// @Param userId query int true "User ID"
// @Success 200 {object} response.Envelope
// @Router /tracking [get]
func (h *TrackingHandler) List(c *gin.Context) {
	userID, ok := queryInt64(c, "userId")
	if !ok {
		return
	}
	records, err := h.service.ListTracked(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Start godoc
// @Summary Start tracking a resource
// @Tags Tracking
// @Accept json
// @Produce json
// @Param payload body dto.StartTrackingRequest true "Tracking payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tracking [post]
func (h *TrackingHandler) Start(c *gin.Context) {
	var req dto.StartTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid tracking payload"))
		return
	}
	record, err := h.service.StartTracking(c.Request.Context(), req.UserID, req.ResourceID, req.Rules, req.AutoBooking)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Stop godoc
// @Summary Stop tracking a resource
// @Tags Tracking
// @Produce json
// @Param resourceId path int true "Resource ID"
// @Param userId query int true "User ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tracking/{resourceId} [delete]
func (h *TrackingHandler) Stop(c *gin.Context) {
	userID, resourceID, ok := userAndResource(c)
	if !ok {
		return
	}
	if err := h.service.StopTracking(c.Request.Context(), userID, resourceID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetActive godoc
// @Summary Pause or resume a tracking record
// @Tags Tracking
// @Accept json
// @Produce json
// @Param resourceId path int true "Resource ID"
// @Param payload body dto.SetActiveRequest true "Active flag"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tracking/{resourceId}/active [patch]
func (h *TrackingHandler) SetActive(c *gin.Context) {
	resourceID, ok := paramInt64(c, "resourceId")
	if !ok {
		return
	}
	var req dto.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "userId and active are required"))
		return
	}
	record, err := h.service.SetActive(c.Request.Context(), req.UserID, resourceID, *req.Active)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// SetAutoBooking godoc
// @Summary Toggle one-shot auto-booking
// @Tags Tracking
// @Accept json
// @Produce json
// @Param resourceId path int true "Resource ID"
// @Param payload body dto.SetAutoBookingRequest true "Auto-booking flag"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tracking/{resourceId}/auto-booking [patch]
func (h *TrackingHandler) SetAutoBooking(c *gin.Context) {
	resourceID, ok := paramInt64(c, "resourceId")
	if !ok {
		return
	}
	var req dto.SetAutoBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "userId and enabled are required"))
		return
	}
	record, err := h.service.SetAutoBooking(c.Request.Context(), req.UserID, resourceID, *req.Enabled)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// UpdateRules godoc
// @Summary Replace or extend matching rules
// @Tags Tracking
// @Accept json
// @Produce json
// @Param resourceId path int true "Resource ID"
// @Param payload body dto.UpdateRulesRequest true "Rules payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tracking/{resourceId}/rules [put]
func (h *TrackingHandler) UpdateRules(c *gin.Context) {
	resourceID, ok := paramInt64(c, "resourceId")
	if !ok {
		return
	}
	var req dto.UpdateRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rules payload"))
		return
	}
	var (
		record interface{}
		err    error
	)
	if req.Mode == "append" {
		record, err = h.service.AppendRules(c.Request.Context(), req.UserID, resourceID, req.Rules)
	} else {
		record, err = h.service.ReplaceRules(c.Request.Context(), req.UserID, resourceID, req.Rules)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// FindSlots godoc
// @Summary List currently matching slots
// @Description Runs a manual schedule check; an empty slot list is a
// @Description legitimate result, not an error.
// @Tags Tracking
// @Produce json
// @Param resourceId path int true "Resource ID"
// @Param userId query int true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /tracking/{resourceId}/slots [get]
func (h *TrackingHandler) FindSlots(c *gin.Context) {
	userID, resourceID, ok := userAndResource(c)
	if !ok {
		return
	}
	result, err := h.service.FindSlots(c.Request.Context(), userID, resourceID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RunCycle godoc
// @Summary Run one tracking pass immediately
// @Tags Tracking
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /tracking/run-cycle [post]
func (h *TrackingHandler) RunCycle(c *gin.Context) {
	if err := h.cycle.RunCycleOnce(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"status": "completed"}, nil)
}

func paramInt64(c *gin.Context, name string) (int64, bool) {
	value, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, name+" must be an integer"))
		return 0, false
	}
	return value, true
}

func queryInt64(c *gin.Context, name string) (int64, bool) {
	value, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, name+" query parameter is required"))
		return 0, false
	}
	return value, true
}

func userAndResource(c *gin.Context) (int64, int64, bool) {
	userID, ok := queryInt64(c, "userId")
	if !ok {
		return 0, 0, false
	}
	resourceID, ok := paramInt64(c, "resourceId")
	if !ok {
		return 0, 0, false
	}
	return userID, resourceID, true
}
