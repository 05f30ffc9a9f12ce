package dto

// UpsertProfileRequest registers the portal identity of a user.
type UpsertProfileRequest struct {
	UserID    int64  `json:"userId" validate:"required"`
	OMSNumber string `json:"omsNumber" validate:"required"`
	BirthDate string `json:"birthDate" validate:"required"`
	Token     string `json:"token" validate:"required"`
}

// UpsertResourceRequest registers a bookable resource known from the
// portal.
type UpsertResourceRequest struct {
	ID                int64  `json:"id" validate:"required"`
	Name              string `json:"name" validate:"required"`
	ComplexResourceID int64  `json:"complexResourceId"`
	SpecialityCode    string `json:"specialityCode"`
	SpecialityName    string `json:"specialityName"`
}

// UpsertSpecialityRequest stores per-speciality booking parameters.
type UpsertSpecialityRequest struct {
	Code               string `json:"code" validate:"required"`
	Name               string `json:"name"`
	InquiryPurposeCode int    `json:"inquiryPurposeCode"`
	InquiryPurposeID   int    `json:"inquiryPurposeId"`
	ReceptionTypeID    int    `json:"receptionTypeId"`
	ReferralPolicy     string `json:"referralPolicy" validate:"omitempty,oneof=strict fallback always_allow"`
}
