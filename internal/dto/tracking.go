package dto

// StartTrackingRequest captures POST /tracking payload.
type StartTrackingRequest struct {
	UserID      int64  `json:"userId" validate:"required"`
	ResourceID  int64  `json:"resourceId" validate:"required"`
	Rules       string `json:"rules"`
	AutoBooking bool   `json:"autoBooking"`
}

// UpdateRulesRequest replaces or extends the matching rules of a record.
type UpdateRulesRequest struct {
	UserID int64  `json:"userId" validate:"required"`
	Rules  string `json:"rules" validate:"required"`
	Mode   string `json:"mode" validate:"omitempty,oneof=replace append"`
}

// SetActiveRequest pauses or resumes a tracking record.
type SetActiveRequest struct {
	UserID int64 `json:"userId" validate:"required"`
	Active *bool `json:"active" validate:"required"`
}

// SetAutoBookingRequest toggles one-shot auto-booking.
type SetAutoBookingRequest struct {
	UserID  int64 `json:"userId" validate:"required"`
	Enabled *bool `json:"enabled" validate:"required"`
}
