package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	matterapp "github.com/praxis/backend/internal/application/matter"
)

// MatterHandler handles mediation matter HTTP requests
type MatterHandler struct {
	BaseHandler
	matterService *matterapp.MatterService
}

// NewMatterHandler creates a new matter handler
func NewMatterHandler(matterService *matterapp.MatterService) *MatterHandler {
	return &MatterHandler{matterService: matterService}
}

// Create opens a new matter in intake
func (h *MatterHandler) Create(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var input matterapp.CreateMatterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	m, err := h.matterService.CreateMatter(c.Request.Context(), practiceID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, m)
}

// Get returns a single matter
func (h *MatterHandler) Get(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	matterID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid matter ID")
		return
	}

	m, err := h.matterService.GetMatter(c.Request.Context(), practiceID, matterID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, m)
}

// List returns the practice's matters filtered by query parameters
func (h *MatterHandler) List(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var filter matterapp.MatterListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	matters, total, err := h.matterService.ListMatters(c.Request.Context(), practiceID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, matters, total, filter.Page, filter.PageSize)
}

// assignMediatorRequest carries a mediator assignment
type assignMediatorRequest struct {
	MediatorID uuid.UUID `json:"mediator_id" binding:"required"`
}

// AssignMediator assigns or replaces the matter's mediator
func (h *MatterHandler) AssignMediator(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	matterID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid matter ID")
		return
	}

	var req assignMediatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	m, err := h.matterService.AssignMediator(c.Request.Context(), practiceID, matterID, req.MediatorID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, m)
}

// Open moves a matter from intake to open
func (h *MatterHandler) Open(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	matterID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid matter ID")
		return
	}

	m, err := h.matterService.OpenMatter(c.Request.Context(), practiceID, matterID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, m)
}

// ScheduleSession books a mediation session on an open matter
func (h *MatterHandler) ScheduleSession(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	matterID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid matter ID")
		return
	}

	var input matterapp.ScheduleSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	session, err := h.matterService.ScheduleSession(c.Request.Context(), practiceID, matterID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, session)
}

// sessionHeldRequest carries the summary of a held session
type sessionHeldRequest struct {
	Summary string `json:"summary"`
}

// RecordSessionHeld marks a scheduled session as held
func (h *MatterHandler) RecordSessionHeld(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	matterID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid matter ID")
		return
	}
	sessionID, ok := parseIDParam(c, "sessionId")
	if !ok {
		h.BadRequest(c, "Invalid session ID")
		return
	}

	var req sessionHeldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	m, err := h.matterService.RecordSessionHeld(c.Request.Context(), practiceID, matterID, sessionID, req.Summary)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, m)
}

// Settle records a settlement outcome
func (h *MatterHandler) Settle(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	matterID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid matter ID")
		return
	}

	var input matterapp.ResolveMatterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	m, err := h.matterService.SettleMatter(c.Request.Context(), practiceID, matterID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, m)
}

// DeclareImpasse records that mediation failed to reach agreement
func (h *MatterHandler) DeclareImpasse(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	matterID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid matter ID")
		return
	}

	var input matterapp.ResolveMatterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	m, err := h.matterService.DeclareImpasse(c.Request.Context(), practiceID, matterID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, m)
}

// Close closes a resolved matter
func (h *MatterHandler) Close(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	matterID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid matter ID")
		return
	}

	var input matterapp.CloseMatterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	m, err := h.matterService.CloseMatter(c.Request.Context(), practiceID, matterID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, m)
}
