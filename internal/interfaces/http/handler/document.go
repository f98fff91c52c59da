package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	documentapp "github.com/praxis/backend/internal/application/document"
)

// DocumentHandler handles document and folder HTTP requests
type DocumentHandler struct {
	BaseHandler
	documentService *documentapp.DocumentService
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documentService *documentapp.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// RequestUpload issues a presigned upload ticket for a new document
func (h *DocumentHandler) RequestUpload(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var input documentapp.RequestUploadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	ticket, err := h.documentService.RequestUpload(c.Request.Context(), practiceID, userID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, ticket)
}

// ConfirmUpload marks an uploaded document as available
func (h *DocumentHandler) ConfirmUpload(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	documentID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid document ID")
		return
	}

	doc, err := h.documentService.ConfirmUpload(c.Request.Context(), practiceID, documentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, doc)
}

// GetDownloadURL issues a presigned download ticket
func (h *DocumentHandler) GetDownloadURL(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	documentID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid document ID")
		return
	}

	ticket, err := h.documentService.GetDownloadURL(c.Request.Context(), practiceID, documentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ticket)
}

// Get returns a single document's metadata
func (h *DocumentHandler) Get(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	documentID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid document ID")
		return
	}

	doc, err := h.documentService.GetDocument(c.Request.Context(), practiceID, documentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, doc)
}

// List returns the practice's documents filtered by query parameters
func (h *DocumentHandler) List(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var filter documentapp.DocumentListFilter
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

	docs, total, err := h.documentService.ListDocuments(c.Request.Context(), practiceID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, docs, total, filter.Page, filter.PageSize)
}

// moveDocumentRequest carries the destination folder, nil for the root
type moveDocumentRequest struct {
	FolderID *uuid.UUID `json:"folder_id"`
}

// Move relocates a document to another folder
func (h *DocumentHandler) Move(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	documentID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid document ID")
		return
	}

	var req moveDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	doc, err := h.documentService.MoveDocument(c.Request.Context(), practiceID, documentID, req.FolderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, doc)
}

// Delete soft deletes a document
func (h *DocumentHandler) Delete(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	documentID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid document ID")
		return
	}

	if err := h.documentService.DeleteDocument(c.Request.Context(), practiceID, documentID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// copyDocumentsRequest carries a bulk copy between matters
type copyDocumentsRequest struct {
	SourceMatterID uuid.UUID `json:"source_matter_id" binding:"required"`
	DestMatterID   uuid.UUID `json:"dest_matter_id" binding:"required"`
}

// CopyMatterDocuments copies all available documents from one matter to another
func (h *DocumentHandler) CopyMatterDocuments(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req copyDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	docs, err := h.documentService.CopyMatterDocuments(c.Request.Context(), practiceID, req.SourceMatterID, req.DestMatterID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, docs)
}

// folderRequest carries folder creation and rename fields
type folderRequest struct {
	Name     string     `json:"name" binding:"required"`
	ParentID *uuid.UUID `json:"parent_id"`
}

// CreateFolder creates a folder, optionally under a parent
func (h *DocumentHandler) CreateFolder(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req folderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	folder, err := h.documentService.CreateFolder(c.Request.Context(), practiceID, req.Name, req.ParentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, folder)
}

// RenameFolder renames a folder
func (h *DocumentHandler) RenameFolder(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	folderID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid folder ID")
		return
	}

	var req folderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	folder, err := h.documentService.RenameFolder(c.Request.Context(), practiceID, folderID, req.Name)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, folder)
}

// ListFolders lists folders under a parent, or the root when unset
func (h *DocumentHandler) ListFolders(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var parentID *uuid.UUID
	if raw := c.Query("parent_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid parent folder ID")
			return
		}
		parentID = &id
	}

	folders, err := h.documentService.ListFolders(c.Request.Context(), practiceID, parentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, folders)
}

// DeleteFolder removes an empty folder
func (h *DocumentHandler) DeleteFolder(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	folderID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid folder ID")
		return
	}

	if err := h.documentService.DeleteFolder(c.Request.Context(), practiceID, folderID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
