package handler

import (
	"github.com/gin-gonic/gin"
	identityapp "github.com/praxis/backend/internal/application/identity"
)

// ClientHandler handles client roster HTTP requests
type ClientHandler struct {
	BaseHandler
	clientService *identityapp.ClientService
}

// NewClientHandler creates a new client handler
func NewClientHandler(clientService *identityapp.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

// Create adds a client to the practice roster
func (h *ClientHandler) Create(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var input identityapp.ClientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	client, err := h.clientService.CreateClient(c.Request.Context(), practiceID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, client)
}

// Get returns a single client
func (h *ClientHandler) Get(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	clientID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid client ID")
		return
	}

	client, err := h.clientService.GetClient(c.Request.Context(), practiceID, clientID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, client)
}

// List returns the practice's clients
func (h *ClientHandler) List(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	req := bindListRequest(c)
	clients, total, err := h.clientService.ListClients(c.Request.Context(), practiceID, toFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, clients, total, req.Page, req.PageSize)
}

// Update edits a client's contact details
func (h *ClientHandler) Update(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	clientID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid client ID")
		return
	}

	var input identityapp.ClientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	client, err := h.clientService.UpdateClient(c.Request.Context(), practiceID, clientID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, client)
}

// Archive hides a client from active use
func (h *ClientHandler) Archive(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	clientID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid client ID")
		return
	}

	if err := h.clientService.ArchiveClient(c.Request.Context(), practiceID, clientID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Unarchive restores an archived client
func (h *ClientHandler) Unarchive(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	clientID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid client ID")
		return
	}

	if err := h.clientService.UnarchiveClient(c.Request.Context(), practiceID, clientID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// EnsureStripeCustomer creates or returns the client's Stripe customer
func (h *ClientHandler) EnsureStripeCustomer(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	clientID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid client ID")
		return
	}

	customerID, err := h.clientService.EnsureStripeCustomer(c.Request.Context(), practiceID, clientID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"stripe_customer_id": customerID})
}
