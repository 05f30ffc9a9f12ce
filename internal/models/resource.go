package models

import "time"

// Resource is a bookable doctor/equipment resource known from the portal.
type Resource struct {
	ID                int64     `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	ComplexResourceID int64     `db:"complex_resource_id" json:"complex_resource_id"`
	SpecialityCode    string    `db:"speciality_code" json:"speciality_code"`
	SpecialityName    string    `db:"speciality_name" json:"speciality_name"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// ReferralPolicy governs whether a speciality may be booked without a
// referral.
type ReferralPolicy string

const (
	// ReferralStrict refuses creation without a referral.
	ReferralStrict ReferralPolicy = "strict"
	// ReferralFallback attempts creation without a referral when none is
	// known, letting the portal decide.
	ReferralFallback ReferralPolicy = "fallback"
	// ReferralAlwaysAllow never requires a referral (dispensary services).
	ReferralAlwaysAllow ReferralPolicy = "always_allow"
)

// Speciality carries per-speciality booking parameters.
type Speciality struct {
	Code               string         `db:"code" json:"code"`
	Name               string         `db:"name" json:"name"`
	InquiryPurposeCode int            `db:"inquiry_purpose_code" json:"inquiry_purpose_code"`
	InquiryPurposeID   int            `db:"inquiry_purpose_id" json:"inquiry_purpose_id"`
	ReceptionTypeID    int            `db:"reception_type_id" json:"reception_type_id"`
	ReferralPolicy     ReferralPolicy `db:"referral_policy" json:"referral_policy"`
}

// PatientProfile holds the portal identity needed for schedule and booking
// calls on behalf of a user.
type PatientProfile struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	OMSNumber string    `db:"oms_number" json:"oms_number"`
	BirthDate string    `db:"birth_date" json:"birth_date"`
	Token     string    `db:"token" json:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
