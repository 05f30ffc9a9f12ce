package emias

import (
	"encoding/json"
	"fmt"

	"github.com/medwatch/emias-tracker-api/internal/models"
)

// PortalError is a failure reported by the appointment portal. Description
// carries the human-readable text returned by the upstream, verbatim.
type PortalError struct {
	StatusCode  int
	Description string
}

func (e *PortalError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("portal error (status %d): %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("portal error (status %d)", e.StatusCode)
}

// envelope is the common response wrapper of the saOrchestrator endpoints.
type envelope struct {
	Payload       json.RawMessage `json:"payload"`
	AppointmentID json.Number     `json:"appointmentId"`
	Error         *apiError       `json:"error"`
	// Some error responses carry the description at the top level.
	Description string `json:"Описание"`
}

type apiError struct {
	Description string `json:"description"`
	Message     string `json:"message"`
}

func (e *envelope) errorDescription() string {
	if e == nil {
		return ""
	}
	if e.Error != nil {
		if e.Error.Description != "" {
			return e.Error.Description
		}
		if e.Error.Message != "" {
			return e.Error.Message
		}
	}
	return e.Description
}

// schedulePayload is the body of getAvailableResourceScheduleInfo.
type schedulePayload struct {
	ScheduleOfDay []models.ScheduleDay `json:"scheduleOfDay"`
}

// receptionsPayload is the body of getAppointmentReceptionsByPatient. Older
// portal revisions used the singular key.
type receptionsPayload struct {
	Appointments []Reception `json:"appointments"`
	Appointment  []Reception `json:"appointment"`
}

func (p receptionsPayload) list() []Reception {
	if len(p.Appointments) > 0 {
		return p.Appointments
	}
	return p.Appointment
}

// Reception is an existing appointment of the patient.
type Reception struct {
	ID                  json.Number `json:"id"`
	AppointmentID       json.Number `json:"appointmentId"`
	Type                string      `json:"type"`
	AvailableResourceID json.Number `json:"availableResourceId"`
	EnableShift         bool        `json:"enableShift"`
	StartTime           string      `json:"startTime"`
	SpecialityID        json.Number `json:"specialityId"`
	ToDoctor            struct {
		SpecialityID   json.Number `json:"specialityId"`
		SpecialityName string      `json:"specialityName"`
		DoctorFio      string      `json:"doctorFio"`
	} `json:"toDoctor"`
	ToLdp struct {
		LdpTypeID   json.Number `json:"ldpTypeId"`
		LdpTypeName string      `json:"ldpTypeName"`
	} `json:"toLdp"`
}

// ReceptionID returns the appointment identifier, whichever key is set.
func (r Reception) ReceptionID() string {
	if s := r.AppointmentID.String(); s != "" && s != "0" {
		return s
	}
	if s := r.ID.String(); s != "" && s != "0" {
		return s
	}
	return ""
}

// SpecialityCode extracts the speciality code: regular receptions carry it
// under toDoctor, diagnostics (LDP) under toLdp.
func (r Reception) SpecialityCode() string {
	if s := r.ToDoctor.SpecialityID.String(); s != "" && s != "0" {
		return s
	}
	if s := r.ToLdp.LdpTypeID.String(); s != "" && s != "0" {
		return s
	}
	if s := r.SpecialityID.String(); s != "" && s != "0" {
		return s
	}
	return ""
}

// ScheduleResult is a fetched schedule plus fallback diagnostics.
type ScheduleResult struct {
	Days []models.ScheduleDay
	// StaleAppointment is set when the request succeeded only after
	// dropping the appointment id, meaning the stored id no longer exists
	// upstream.
	StaleAppointment bool
}

type scheduleRequest struct {
	OMSNumber           string `json:"omsNumber"`
	BirthDate           string `json:"birthDate"`
	AvailableResourceID int64  `json:"availableResourceId"`
	ComplexResourceID   int64  `json:"complexResourceId"`
	AppointmentID       *int64 `json:"appointmentId,omitempty"`
	InquiryPurposeCode  *int   `json:"inquiryPurposeCode,omitempty"`
	InquiryPurposeID    *int   `json:"inquiryPurposeId,omitempty"`
}

type receptionsRequest struct {
	OMSNumber string `json:"omsNumber"`
	BirthDate string `json:"birthDate"`
}

type createRequest struct {
	OMSNumber           string `json:"omsNumber"`
	BirthDate           string `json:"birthDate"`
	AvailableResourceID int64  `json:"availableResourceId"`
	ComplexResourceID   int64  `json:"complexResourceId"`
	StartTime           string `json:"startTime"`
	EndTime             string `json:"endTime"`
	ReceptionTypeID     int    `json:"receptionTypeId"`
	InquiryPurposeCode  int    `json:"inquiryPurposeCode"`
	InquiryPurposeID    int    `json:"inquiryPurposeId"`
}

type shiftRequest struct {
	OMSNumber           string `json:"omsNumber"`
	BirthDate           string `json:"birthDate"`
	AvailableResourceID int64  `json:"availableResourceId"`
	ComplexResourceID   int64  `json:"complexResourceId"`
	StartTime           string `json:"startTime"`
	EndTime             string `json:"endTime"`
	AppointmentID       int64  `json:"appointmentId"`
	ReceptionTypeID     int    `json:"receptionTypeId"`
}
