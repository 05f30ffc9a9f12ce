package models

import "time"

// Audit action constants for tracked user-visible operations.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionTrackStart     = "TRACK_START"
	AuditActionTrackStop      = "TRACK_STOP"
	AuditActionTrackPause     = "TRACK_PAUSE"
	AuditActionTrackResume    = "TRACK_RESUME"
	AuditActionRulesUpdate    = "RULES_UPDATE"
	AuditActionAutoBookToggle = "AUTO_BOOK_TOGGLE"
	AuditActionNotification   = "NOTIFICATION"
	AuditActionBookingAttempt = "BOOKING_ATTEMPT"
	AuditActionBookingSuccess = "BOOKING_SUCCESS"
	AuditActionBookingFailure = "BOOKING_FAILURE"
)

// Audit outcome statuses.
const (
	AuditStatusSuccess = "SUCCESS"
	AuditStatusFailure = "FAILURE"
)

// Audit sources identify which surface produced the record.
const (
	AuditSourceAPI     = "api"
	AuditSourceTracker = "tracker"
)

// AuditRecord is one entry of the user action trail.
type AuditRecord struct {
	ID         string    `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	Action     string    `db:"action" json:"action"`
	ResourceID *int64    `db:"resource_id" json:"resource_id,omitempty"`
	Details    []byte    `db:"details" json:"details,omitempty"`
	Source     string    `db:"source" json:"source"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter narrows audit listings.
type AuditFilter struct {
	UserID     *int64
	ResourceID *int64
	Action     string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}
