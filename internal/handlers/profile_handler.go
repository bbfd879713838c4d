package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "bullbear/internal/errors"
	"bullbear/internal/models"
	"bullbear/internal/services"
)

// ProfileHandler handles the user's investment profile.
type ProfileHandler struct {
	profileService services.ProfileServicer
	auditService   services.AuditServicer
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profileService services.ProfileServicer, auditService services.AuditServicer) *ProfileHandler {
	return &ProfileHandler{profileService: profileService, auditService: auditService}
}

// UpdateProfileRequest represents the request payload for replacing a profile.
type UpdateProfileRequest struct {
	RiskTolerance    string   `json:"risk_tolerance" binding:"omitempty,risk_tolerance" example:"moderate"`
	InvestmentGoal   string   `json:"investment_goal" binding:"max=200" example:"growth"`
	TimeHorizon      string   `json:"time_horizon" binding:"omitempty,time_horizon" example:"long"`
	PreferredSectors []string `json:"preferred_sectors" binding:"omitempty,max=50,dive,max=100"`
	Blacklist        []string `json:"blacklist" binding:"omitempty,max=200,dive,instrument_code"`
}

// GetProfile handles reading the profile.
// @Summary     Get profile
// @Tags        profile
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]models.UserProfile "Profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Profile not found"
// @Router      /profile [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	profile, err := h.profileService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// UpdateProfile handles creating or replacing the profile.
// @Summary     Update profile
// @Description Create or replace the profile. Omitted tolerance and horizon default to moderate and medium
// @Tags        profile
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body     UpdateProfileRequest          true "Profile"
// @Success     200     {object} map[string]models.UserProfile "Profile"
// @Failure     400     {object} ErrorResponse                 "Invalid input"
// @Failure     401     {object} ErrorResponse                 "Unauthorized"
// @Router      /profile [put]
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	profile, err := h.profileService.UpsertProfile(c.Request.Context(), userID, services.ProfileInput{
		RiskTolerance:    models.RiskTolerance(req.RiskTolerance),
		InvestmentGoal:   req.InvestmentGoal,
		TimeHorizon:      models.TimeHorizon(req.TimeHorizon),
		PreferredSectors: req.PreferredSectors,
		Blacklist:        req.Blacklist,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_PROFILE", "profile", profile.ID, c.ClientIP(),
		map[string]interface{}{
			"risk_tolerance": string(profile.RiskTolerance),
			"time_horizon":   string(profile.TimeHorizon),
		})

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}
