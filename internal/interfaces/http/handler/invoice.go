package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	billingapp "github.com/praxis/backend/internal/application/billing"
)

// InvoiceHandler handles invoice HTTP requests
type InvoiceHandler struct {
	BaseHandler
	invoiceService *billingapp.InvoiceService
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(invoiceService *billingapp.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// Create drafts a new invoice
func (h *InvoiceHandler) Create(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var input billingapp.CreateInvoiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), practiceID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, invoice)
}

// Get returns a single invoice with its line items and payments
func (h *InvoiceHandler) Get(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	invoice, err := h.invoiceService.GetInvoiceByID(c.Request.Context(), practiceID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}

// List returns the practice's invoices filtered by query parameters
func (h *InvoiceHandler) List(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var filter billingapp.InvoiceListFilter
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

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), practiceID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, invoices, total, filter.Page, filter.PageSize)
}

// Summary returns outstanding totals and per-status counts
func (h *InvoiceHandler) Summary(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	summary, err := h.invoiceService.GetInvoiceSummary(c.Request.Context(), practiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// AddLineItem appends a line item to a draft invoice
func (h *InvoiceHandler) AddLineItem(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	var input billingapp.LineItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	invoice, err := h.invoiceService.AddLineItem(c.Request.Context(), practiceID, invoiceID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}

// RemoveLineItem removes a line item from a draft invoice
func (h *InvoiceHandler) RemoveLineItem(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}
	itemID, ok := parseIDParam(c, "itemId")
	if !ok {
		h.BadRequest(c, "Invalid line item ID")
		return
	}

	invoice, err := h.invoiceService.RemoveLineItem(c.Request.Context(), practiceID, invoiceID, itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}

// Finalize issues a draft invoice and creates its Stripe counterpart
func (h *InvoiceHandler) Finalize(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	var input billingapp.FinalizeInvoiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.invoiceService.FinalizeInvoice(c.Request.Context(), practiceID, invoiceID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// RecordPayment records a manual (check, wire) payment against an invoice
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	var input billingapp.RecordPaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	invoice, err := h.invoiceService.RecordManualPayment(c.Request.Context(), practiceID, invoiceID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}

// reasonRequest carries the reason for voiding or writing off an invoice
type reasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Void cancels an issued invoice
func (h *InvoiceHandler) Void(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	invoice, err := h.invoiceService.VoidInvoice(c.Request.Context(), practiceID, invoiceID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}

// WriteOff marks an invoice as uncollectible
func (h *InvoiceHandler) WriteOff(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	invoice, err := h.invoiceService.WriteOffInvoice(c.Request.Context(), practiceID, invoiceID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}

// dueDateRequest carries a due date change
type dueDateRequest struct {
	DueDate *time.Time `json:"due_date"`
}

// UpdateDueDate moves an open invoice's due date
func (h *InvoiceHandler) UpdateDueDate(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	var req dueDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	invoice, err := h.invoiceService.UpdateDueDate(c.Request.Context(), practiceID, invoiceID, req.DueDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}
