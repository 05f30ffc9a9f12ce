package models

import "time"

// TrackingRecord ties a user to a doctor resource with matching rules.
// One record exists per (user, resource) pair.
type TrackingRecord struct {
	ID          string    `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	ResourceID  int64     `db:"resource_id" json:"resource_id"`
	Active      bool      `db:"active" json:"active"`
	AutoBooking bool      `db:"auto_booking" json:"auto_booking"`
	Rules       RuleList  `db:"rules" json:"rules"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduleSnapshot is the persisted slot baseline for a resource.
type ScheduleSnapshot struct {
	ResourceID int64     `db:"resource_id" json:"resource_id"`
	Slots      SlotKeys  `db:"slots" json:"slots"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
