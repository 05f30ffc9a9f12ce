package emias

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medwatch/emias-tracker-api/internal/models"
)

func testProfile() models.PatientProfile {
	return models.PatientProfile{UserID: 42, OMSNumber: "1234567890", BirthDate: "1990-01-01", Token: "tok"}
}

func testResource() models.Resource {
	return models.Resource{ID: 555, ComplexResourceID: 777, SpecialityCode: "69"}
}

func TestFetchScheduleSendsTokenAndDecodesDays(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get("ei-token"))
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "1234567890", req["omsNumber"])
		assert.EqualValues(t, 555, req["availableResourceId"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"payload":{"scheduleOfDay":[{"date":"2025-07-01","scheduleBySlot":[{"slot":[{"startTime":"2025-07-01T10:00:00+03:00","endTime":"2025-07-01T10:15:00+03:00"}]}]}]}}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil)
	result, err := client.FetchSchedule(context.Background(), testProfile(), testResource(), nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Days, 1)
	assert.False(t, result.StaleAppointment)
	assert.Equal(t, "2025-07-01", result.Days[0].Date)
}

func TestFetchScheduleRetriesWithoutStaleAppointmentID(t *testing.T) {
	var calls []bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, withAppointment := req["appointmentId"]
		calls = append(calls, withAppointment)

		w.Header().Set("Content-Type", "application/json")
		if withAppointment {
			_, _ = w.Write([]byte(`{"error":{"description":"Запись не найдена"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"payload":{"scheduleOfDay":[{"date":"2025-07-02","scheduleBySlot":[]}]}}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil)
	apptID := "9001"
	result, err := client.FetchSchedule(context.Background(), testProfile(), testResource(), &apptID, nil)
	require.NoError(t, err)
	require.Equal(t, []bool{true, false}, calls)
	assert.True(t, result.StaleAppointment)
	require.Len(t, result.Days, 1)
}

func TestFetchScheduleTimeoutIsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond}, nil)
	_, err := client.FetchSchedule(context.Background(), testProfile(), testResource(), nil, nil)
	require.Error(t, err)
}

func TestCreateAppointmentSurfacesPortalDescription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"description":"Нет свободных слотов"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil)
	_, err := client.CreateAppointment(context.Background(), testProfile(), testResource(), "2025-07-01T10:00:00", "2025-07-01T10:15:00", 0, 264, 76)
	require.Error(t, err)

	var portalErr *PortalError
	require.ErrorAs(t, err, &portalErr)
	assert.Equal(t, "Нет свободных слотов", portalErr.Description)
}

func TestShiftAppointmentReturnsNewID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 9001, req["appointmentId"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"payload":{"appointmentId":9002}}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil)
	newID, err := client.ShiftAppointment(context.Background(), testProfile(), testResource(), "2025-07-01T10:00:00", "2025-07-01T10:15:00", "9001", 0)
	require.NoError(t, err)
	assert.Equal(t, "9002", newID)
}

func TestFetchAppointmentsHandlesSingularKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"payload":{"appointment":[{"id":11,"type":"RECEPTION","availableResourceId":555,"toDoctor":{"specialityId":69,"specialityName":"Терапевт"}}]}}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil)
	receptions, err := client.FetchAppointments(context.Background(), testProfile())
	require.NoError(t, err)
	require.Len(t, receptions, 1)
	assert.Equal(t, "11", receptions[0].ReceptionID())
	assert.Equal(t, "69", receptions[0].SpecialityCode())
}
