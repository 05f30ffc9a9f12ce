package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medwatch/emias-tracker-api/internal/dto"
	"github.com/medwatch/emias-tracker-api/internal/models"
	appErrors "github.com/medwatch/emias-tracker-api/pkg/errors"
	"github.com/medwatch/emias-tracker-api/pkg/response"
)

type slotBooker interface {
	Book(ctx context.Context, userID, resourceID int64, slotKey string) (*models.BookingResult, error)
}

// BookingHandler exposes the manual booking endpoint.
type BookingHandler struct {
	service slotBooker
}

// NewBookingHandler constructs the handler.
func NewBookingHandler(svc slotBooker) *BookingHandler {
	return &BookingHandler{service: svc}
}

// Book godoc
// @Summary Book a slot
// @Description Books the slot for the user, shifting an existing
// @Description appointment of the same speciality group when one exists.
// @Tags Booking
// @Accept json
// @Produce json
// @Param payload body dto.BookingRequest true "Booking payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Book(c *gin.Context) {
	var req dto.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	result, err := h.service.Book(c.Request.Context(), req.UserID, req.ResourceID, req.Slot)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
