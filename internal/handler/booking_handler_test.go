package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medwatch/emias-tracker-api/internal/dto"
	"github.com/medwatch/emias-tracker-api/internal/models"
	appErrors "github.com/medwatch/emias-tracker-api/pkg/errors"
)

type bookerMock struct {
	result   *models.BookingResult
	err      error
	lastSlot string
}

func (m *bookerMock) Book(ctx context.Context, userID, resourceID int64, slotKey string) (*models.BookingResult, error) {
	m.lastSlot = slotKey
	return m.result, m.err
}

func TestBookingHandlerBook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &bookerMock{result: &models.BookingResult{
		Kind:          models.BookingKindCreate,
		AppointmentID: "7001",
		SlotKey:       "2025-07-01 10:00",
	}}
	handler := NewBookingHandler(mockSvc)

	payload, _ := json.Marshal(dto.BookingRequest{UserID: 42, ResourceID: 555, Slot: "2025-07-01 10:00"})
	c, w := newGinContext(http.MethodPost, "/bookings", payload)

	handler.Book(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-07-01 10:00", mockSvc.lastSlot)
	assert.Contains(t, w.Body.String(), `"appointment_id":"7001"`)
}

func TestBookingHandlerReferralRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &bookerMock{err: appErrors.ErrReferralRequired}
	handler := NewBookingHandler(mockSvc)

	payload, _ := json.Marshal(dto.BookingRequest{UserID: 42, ResourceID: 555, Slot: "2025-07-01 10:00"})
	c, w := newGinContext(http.MethodPost, "/bookings", payload)

	handler.Book(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "REFERRAL_REQUIRED")
}

func TestBookingHandlerInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewBookingHandler(&bookerMock{})

	c, w := newGinContext(http.MethodPost, "/bookings", []byte("{not json"))

	handler.Book(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
