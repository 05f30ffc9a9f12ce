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
	"github.com/medwatch/emias-tracker-api/internal/service"
	appErrors "github.com/medwatch/emias-tracker-api/pkg/errors"
)

type trackingServiceMock struct {
	record    *models.TrackingRecord
	records   []models.TrackingRecord
	slots     *service.FindSlotsResult
	err       error
	lastRules string
	lastMode  string
}

func (m *trackingServiceMock) ListTracked(ctx context.Context, userID int64) ([]models.TrackingRecord, error) {
	return m.records, m.err
}

func (m *trackingServiceMock) StartTracking(ctx context.Context, userID, resourceID int64, rulesText string, autoBooking bool) (*models.TrackingRecord, error) {
	m.lastRules = rulesText
	return m.record, m.err
}

func (m *trackingServiceMock) StopTracking(ctx context.Context, userID, resourceID int64) error {
	return m.err
}

func (m *trackingServiceMock) SetActive(ctx context.Context, userID, resourceID int64, active bool) (*models.TrackingRecord, error) {
	return m.record, m.err
}

func (m *trackingServiceMock) SetAutoBooking(ctx context.Context, userID, resourceID int64, enabled bool) (*models.TrackingRecord, error) {
	return m.record, m.err
}

func (m *trackingServiceMock) ReplaceRules(ctx context.Context, userID, resourceID int64, rulesText string) (*models.TrackingRecord, error) {
	m.lastRules = rulesText
	m.lastMode = "replace"
	return m.record, m.err
}

func (m *trackingServiceMock) AppendRules(ctx context.Context, userID, resourceID int64, rulesText string) (*models.TrackingRecord, error) {
	m.lastRules = rulesText
	m.lastMode = "append"
	return m.record, m.err
}

func (m *trackingServiceMock) FindSlots(ctx context.Context, userID, resourceID int64) (*service.FindSlotsResult, error) {
	return m.slots, m.err
}

type passRunnerMock struct {
	runs int
	err  error
}

func (m *passRunnerMock) RunCycleOnce(ctx context.Context) error {
	m.runs++
	return m.err
}

func TestTrackingHandlerStart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &trackingServiceMock{record: &models.TrackingRecord{ID: "rec-1", UserID: 42, ResourceID: 555, Active: true}}
	handler := NewTrackingHandler(mockSvc, &passRunnerMock{})

	payload, _ := json.Marshal(dto.StartTrackingRequest{UserID: 42, ResourceID: 555, Rules: "понедельник: 08:00-12:00"})
	c, w := newGinContext(http.MethodPost, "/tracking", payload)

	handler.Start(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "понедельник: 08:00-12:00", mockSvc.lastRules)
}

func TestTrackingHandlerStartInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTrackingHandler(&trackingServiceMock{}, &passRunnerMock{})

	c, w := newGinContext(http.MethodPost, "/tracking", []byte("{not json"))

	handler.Start(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrackingHandlerStopRequiresUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTrackingHandler(&trackingServiceMock{}, &passRunnerMock{})

	c, w := newGinContext(http.MethodDelete, "/tracking/555", nil)
	c.Params = gin.Params{{Key: "resourceId", Value: "555"}}

	handler.Stop(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrackingHandlerStop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTrackingHandler(&trackingServiceMock{}, &passRunnerMock{})

	c, w := newGinContext(http.MethodDelete, "/tracking/555?userId=42", nil)
	c.Params = gin.Params{{Key: "resourceId", Value: "555"}}

	handler.Stop(c)
	// gin only flushes the status header on a body write; a 204 has no
	// body, so flush explicitly before inspecting the recorder.
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestTrackingHandlerUpdateRulesAppendMode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &trackingServiceMock{record: &models.TrackingRecord{ID: "rec-1"}}
	handler := NewTrackingHandler(mockSvc, &passRunnerMock{})

	payload, _ := json.Marshal(dto.UpdateRulesRequest{UserID: 42, Rules: "вторник", Mode: "append"})
	c, w := newGinContext(http.MethodPut, "/tracking/555/rules", payload)
	c.Params = gin.Params{{Key: "resourceId", Value: "555"}}

	handler.UpdateRules(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "append", mockSvc.lastMode)
}

func TestTrackingHandlerFindSlotsNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &trackingServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "tracking record not found")}
	handler := NewTrackingHandler(mockSvc, &passRunnerMock{})

	c, w := newGinContext(http.MethodGet, "/tracking/555/slots?userId=42", nil)
	c.Params = gin.Params{{Key: "resourceId", Value: "555"}}

	handler.FindSlots(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrackingHandlerFindSlotsEmptyIsOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &trackingServiceMock{slots: &service.FindSlotsResult{Checked: true, Slots: []models.SlotCandidate{}}}
	handler := NewTrackingHandler(mockSvc, &passRunnerMock{})

	c, w := newGinContext(http.MethodGet, "/tracking/555/slots?userId=42", nil)
	c.Params = gin.Params{{Key: "resourceId", Value: "555"}}

	handler.FindSlots(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"checked":true`)
}

func TestTrackingHandlerRunCycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	runner := &passRunnerMock{}
	handler := NewTrackingHandler(&trackingServiceMock{}, runner)

	c, w := newGinContext(http.MethodPost, "/tracking/run-cycle", nil)

	handler.RunCycle(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, runner.runs)
}
