package handler

import (
	"github.com/gin-gonic/gin"
	identityapp "github.com/praxis/backend/internal/application/identity"
	"github.com/praxis/backend/internal/domain/identity"
)

// PracticeHandler handles practice management HTTP requests
type PracticeHandler struct {
	BaseHandler
	practiceService *identityapp.PracticeService
}

// NewPracticeHandler creates a new practice handler
func NewPracticeHandler(practiceService *identityapp.PracticeService) *PracticeHandler {
	return &PracticeHandler{practiceService: practiceService}
}

// Register signs up a new practice with its owner account. This is the
// only unauthenticated practice endpoint.
func (h *PracticeHandler) Register(c *gin.Context) {
	var input identityapp.RegisterPracticeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.practiceService.RegisterPractice(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// Get returns the authenticated user's practice
func (h *PracticeHandler) Get(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	practice, err := h.practiceService.GetPractice(c.Request.Context(), practiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, practice)
}

// Update edits the practice profile
func (h *PracticeHandler) Update(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var input identityapp.UpdatePracticeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	practice, err := h.practiceService.UpdatePractice(c.Request.Context(), practiceID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, practice)
}

// UpdateSettings replaces the practice settings
func (h *PracticeHandler) UpdateSettings(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var settings identity.PracticeSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	practice, err := h.practiceService.UpdateSettings(c.Request.Context(), practiceID, settings)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, practice)
}

// connectStripeRequest carries a Stripe Connect account link request
type connectStripeRequest struct {
	AccountID string `json:"account_id" binding:"required"`
}

// ConnectStripeAccount links the practice's Stripe Connect account
func (h *PracticeHandler) ConnectStripeAccount(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req connectStripeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	practice, err := h.practiceService.ConnectStripeAccount(c.Request.Context(), practiceID, req.AccountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, practice)
}

// Deactivate closes the practice
func (h *PracticeHandler) Deactivate(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	if err := h.practiceService.DeactivatePractice(c.Request.Context(), practiceID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
