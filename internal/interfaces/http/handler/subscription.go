package handler

import (
	"github.com/gin-gonic/gin"
	billingapp "github.com/praxis/backend/internal/application/billing"
)

// SubscriptionHandler handles the practice's SaaS subscription requests
type SubscriptionHandler struct {
	BaseHandler
	subscriptionService *billingapp.SubscriptionService
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(subscriptionService *billingapp.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionService: subscriptionService}
}

// Get returns the practice's current subscription
func (h *SubscriptionHandler) Get(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	sub, err := h.subscriptionService.GetForPractice(c.Request.Context(), practiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, sub)
}

// Subscribe starts a paid Stripe subscription for the practice
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var input billingapp.SubscribeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	sub, err := h.subscriptionService.Subscribe(c.Request.Context(), practiceID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, sub)
}

// ChangePlan moves the practice to a different plan
func (h *SubscriptionHandler) ChangePlan(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var input billingapp.ChangePlanInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	sub, err := h.subscriptionService.ChangePlan(c.Request.Context(), practiceID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, sub)
}

// Cancel cancels the subscription, immediately or at period end
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var input billingapp.CancelInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	sub, err := h.subscriptionService.Cancel(c.Request.Context(), practiceID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, sub)
}

// Resume undoes a pending cancellation
func (h *SubscriptionHandler) Resume(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	sub, err := h.subscriptionService.Resume(c.Request.Context(), practiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, sub)
}

// Refresh re-reads the subscription from Stripe and reconciles local state
func (h *SubscriptionHandler) Refresh(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	sub, err := h.subscriptionService.RefreshFromStripe(c.Request.Context(), practiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, sub)
}
