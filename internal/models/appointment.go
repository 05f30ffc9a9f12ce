package models

import "time"

// AppointmentLink remembers the active appointment and referral a user
// holds for a speciality group. Keyed by the canonical alias-group id, so
// aliased speciality codes share one link.
type AppointmentLink struct {
	ID              string    `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	SpecialityGroup string    `db:"speciality_group" json:"speciality_group"`
	AppointmentID   *string   `db:"appointment_id" json:"appointment_id,omitempty"`
	ReferralID      *string   `db:"referral_id" json:"referral_id,omitempty"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Appointment is an existing reception returned by the portal.
type Appointment struct {
	ID             string `json:"id"`
	SpecialityCode string `json:"speciality_code"`
	StartTime      string `json:"start_time"`
	ResourceID     int64  `json:"resource_id"`
}

// BookingKind distinguishes how a slot was obtained.
type BookingKind string

const (
	BookingKindCreate BookingKind = "create"
	BookingKindShift  BookingKind = "shift"
)

// BookingResult describes a successful booking.
type BookingResult struct {
	Kind          BookingKind `json:"kind"`
	AppointmentID string      `json:"appointment_id"`
	SlotKey       string      `json:"slot"`
	StartISO      string      `json:"start_iso"`
	EndISO        string      `json:"end_iso"`
}
