package emias

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/medwatch/emias-tracker-api/internal/models"
)

const (
	schedulePath   = "/api-eip/v3/saOrchestrator/getAvailableResourceScheduleInfo"
	receptionsPath = "/api-eip/v8/saOrchestrator/getAppointmentReceptionsByPatient"
	createPath     = "/api-eip/v3/saOrchestrator/createAppointment"
	shiftPath      = "/api-eip/v3/saOrchestrator/shiftAppointment"
)

// Config configures the portal client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client talks to the EMIAS appointment portal. Requests authenticate with
// the per-user token carried on the patient profile (ei-token header).
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	logger    *zap.Logger
}

// NewClient constructs a portal client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://emias.info"
	}
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// FetchSchedule loads the available slot schedule for a resource. When an
// appointment id is supplied and the portal answers with an error or an
// empty schedule, the call is retried once without the id: the stored
// appointment has usually been cancelled out-of-band, and the caller must
// know so it can clear the stale link.
func (c *Client) FetchSchedule(ctx context.Context, profile models.PatientProfile, resource models.Resource, appointmentID *string, speciality *models.Speciality) (*ScheduleResult, error) {
	req := scheduleRequest{
		OMSNumber:           profile.OMSNumber,
		BirthDate:           profile.BirthDate,
		AvailableResourceID: resource.ID,
		ComplexResourceID:   resource.ComplexResourceID,
	}
	if appointmentID != nil {
		id, err := strconv.ParseInt(*appointmentID, 10, 64)
		if err == nil {
			req.AppointmentID = &id
		}
	}
	if req.AppointmentID == nil && speciality != nil {
		code := speciality.InquiryPurposeCode
		purposeID := speciality.InquiryPurposeID
		req.InquiryPurposeCode = &code
		req.InquiryPurposeID = &purposeID
	}

	days, err := c.fetchScheduleOnce(ctx, profile.Token, req)
	if err == nil && (req.AppointmentID == nil || len(days) > 0) {
		return &ScheduleResult{Days: days}, nil
	}
	if req.AppointmentID == nil {
		return nil, err
	}

	// Retry without the appointment id.
	c.logger.Warn("schedule fetch with appointment id failed, retrying without it",
		zap.Int64("resource_id", resource.ID),
		zap.Error(err))
	req.AppointmentID = nil
	if speciality != nil {
		code := speciality.InquiryPurposeCode
		purposeID := speciality.InquiryPurposeID
		req.InquiryPurposeCode = &code
		req.InquiryPurposeID = &purposeID
	}
	days, retryErr := c.fetchScheduleOnce(ctx, profile.Token, req)
	if retryErr != nil {
		return nil, retryErr
	}
	return &ScheduleResult{Days: days, StaleAppointment: true}, nil
}

func (c *Client) fetchScheduleOnce(ctx context.Context, token string, req scheduleRequest) ([]models.ScheduleDay, error) {
	env, err := c.post(ctx, token, schedulePath, req)
	if err != nil {
		return nil, err
	}
	if len(env.Payload) == 0 {
		return nil, &PortalError{Description: env.errorDescription()}
	}
	var payload schedulePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode schedule payload: %w", err)
	}
	return payload.ScheduleOfDay, nil
}

// FetchAppointments returns the patient's existing receptions.
func (c *Client) FetchAppointments(ctx context.Context, profile models.PatientProfile) ([]Reception, error) {
	env, err := c.post(ctx, profile.Token, receptionsPath, receptionsRequest{
		OMSNumber: profile.OMSNumber,
		BirthDate: profile.BirthDate,
	})
	if err != nil {
		return nil, err
	}
	if len(env.Payload) == 0 {
		return nil, &PortalError{Description: env.errorDescription()}
	}
	var payload receptionsPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode receptions payload: %w", err)
	}
	return payload.list(), nil
}

// CreateAppointment books a new reception and returns the appointment id
// when the portal reports one.
func (c *Client) CreateAppointment(ctx context.Context, profile models.PatientProfile, resource models.Resource, startISO, endISO string, receptionTypeID, purposeCode, purposeID int) (string, error) {
	env, err := c.post(ctx, profile.Token, createPath, createRequest{
		OMSNumber:           profile.OMSNumber,
		BirthDate:           profile.BirthDate,
		AvailableResourceID: resource.ID,
		ComplexResourceID:   resource.ComplexResourceID,
		StartTime:           startISO,
		EndTime:             endISO,
		ReceptionTypeID:     receptionTypeID,
		InquiryPurposeCode:  purposeCode,
		InquiryPurposeID:    purposeID,
	})
	if err != nil {
		return "", err
	}
	return extractAppointmentID(env)
}

// ShiftAppointment moves an existing reception to the new slot.
func (c *Client) ShiftAppointment(ctx context.Context, profile models.PatientProfile, resource models.Resource, startISO, endISO, appointmentID string, receptionTypeID int) (string, error) {
	id, err := strconv.ParseInt(appointmentID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid appointment id %q: %w", appointmentID, err)
	}
	env, err := c.post(ctx, profile.Token, shiftPath, shiftRequest{
		OMSNumber:           profile.OMSNumber,
		BirthDate:           profile.BirthDate,
		AvailableResourceID: resource.ID,
		ComplexResourceID:   resource.ComplexResourceID,
		StartTime:           startISO,
		EndTime:             endISO,
		AppointmentID:       id,
		ReceptionTypeID:     receptionTypeID,
	})
	if err != nil {
		return "", err
	}
	return extractAppointmentID(env)
}

// extractAppointmentID treats a response as successful when it carries a
// payload or an appointment id; the id may sit at the top level or inside
// the payload.
func extractAppointmentID(env *envelope) (string, error) {
	if id := env.AppointmentID.String(); id != "" && id != "0" {
		return id, nil
	}
	if len(env.Payload) > 0 {
		var inner struct {
			AppointmentID json.Number `json:"appointmentId"`
		}
		if err := json.Unmarshal(env.Payload, &inner); err == nil {
			if id := inner.AppointmentID.String(); id != "" && id != "0" {
				return id, nil
			}
		}
		// Payload present without an id still counts as success.
		return "", nil
	}
	return "", &PortalError{Description: env.errorDescription()}
}

func (c *Client) post(ctx context.Context, token, path string, body interface{}) (*envelope, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ei-token", token)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}

	var env envelope
	if len(data) > 0 {
		if err := json.Unmarshal(data, &env); err != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("decode response %s: %w", path, err)
		}
	}

	if resp.StatusCode >= 300 {
		return nil, &PortalError{StatusCode: resp.StatusCode, Description: env.errorDescription()}
	}
	if env.Error != nil {
		return nil, &PortalError{StatusCode: resp.StatusCode, Description: env.errorDescription()}
	}
	return &env, nil
}
