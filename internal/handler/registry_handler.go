package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medwatch/emias-tracker-api/internal/dto"
	"github.com/medwatch/emias-tracker-api/internal/service"
	appErrors "github.com/medwatch/emias-tracker-api/pkg/errors"
	"github.com/medwatch/emias-tracker-api/pkg/response"
)

// RegistryHandler manages patient profiles, resources and speciality
// parameters.
type RegistryHandler struct {
	service *service.RegistryService
}

// NewRegistryHandler constructs the handler.
func NewRegistryHandler(svc *service.RegistryService) *RegistryHandler {
	return &RegistryHandler{service: svc}
}

// UpsertProfile godoc
// @Summary Register a patient profile
// @Tags Registry
// @Accept json
// @Produce json
// @Param payload body dto.UpsertProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /profiles [put]
func (h *RegistryHandler) UpsertProfile(c *gin.Context) {
	var req dto.UpsertProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}
	profile, err := h.service.UpsertProfile(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// GetProfile godoc
// @Summary Get a patient profile
// @Tags Registry
// @Produce json
// @Param userId path int true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /profiles/{userId} [get]
func (h *RegistryHandler) GetProfile(c *gin.Context) {
	userID, ok := paramInt64(c, "userId")
	if !ok {
		return
	}
	profile, err := h.service.GetProfile(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// UpsertResource godoc
// @Summary Register a bookable resource
// @Tags Registry
// @Accept json
// @Produce json
// @Param payload body dto.UpsertResourceRequest true "Resource payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /resources [put]
func (h *RegistryHandler) UpsertResource(c *gin.Context) {
	var req dto.UpsertResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resource payload"))
		return
	}
	resource, err := h.service.UpsertResource(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resource, nil)
}

// GetResource godoc
// @Summary Get a resource
// @Tags Registry
// @Produce json
// @Param id path int true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id} [get]
func (h *RegistryHandler) GetResource(c *gin.Context) {
	id, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	resource, err := h.service.GetResource(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resource, nil)
}

// UpsertSpeciality godoc
// @Summary Store speciality booking parameters
// @Tags Registry
// @Accept json
// @Produce json
// @Param payload body dto.UpsertSpecialityRequest true "Speciality payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /specialities [put]
func (h *RegistryHandler) UpsertSpeciality(c *gin.Context) {
	var req dto.UpsertSpecialityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid speciality payload"))
		return
	}
	speciality, err := h.service.UpsertSpeciality(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, speciality, nil)
}
