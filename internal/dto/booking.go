package dto

// BookingRequest captures POST /bookings payload. Slot uses the
// "YYYY-MM-DD HH:MM" identity format.
type BookingRequest struct {
	UserID     int64  `json:"userId" validate:"required"`
	ResourceID int64  `json:"resourceId" validate:"required"`
	Slot       string `json:"slot" validate:"required"`
}
