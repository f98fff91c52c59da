package handler

import (
	"github.com/gin-gonic/gin"
	chatapp "github.com/praxis/backend/internal/application/chat"
	"github.com/praxis/backend/internal/domain/chat"
)

// ChatHandler handles conversation and message HTTP requests
type ChatHandler struct {
	BaseHandler
	chatService *chatapp.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *chatapp.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// CreateConversation starts a thread, optionally attached to a matter
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var input chatapp.CreateConversationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	conv, err := h.chatService.CreateConversation(c.Request.Context(), practiceID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, conv)
}

// GetConversation returns a single conversation
func (h *ChatHandler) GetConversation(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid conversation ID")
		return
	}

	conv, err := h.chatService.GetConversation(c.Request.Context(), practiceID, conversationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, conv)
}

// ListConversations returns the practice's conversations
func (h *ChatHandler) ListConversations(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	req := bindListRequest(c)
	conversations, err := h.chatService.ListConversations(c.Request.Context(), practiceID, toFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, conversations)
}

// ListMatterConversations returns conversations attached to a matter
func (h *ChatHandler) ListMatterConversations(c *gin.Context) {
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

	conversations, err := h.chatService.ListMatterConversations(c.Request.Context(), practiceID, matterID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, conversations)
}

// PostMessage appends a message from the authenticated user
func (h *ChatHandler) PostMessage(c *gin.Context) {
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
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid conversation ID")
		return
	}

	var input chatapp.PostMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}
	input.SenderID = userID
	input.SenderKind = chat.ParticipantKindUser

	msg, err := h.chatService.PostMessage(c.Request.Context(), practiceID, conversationID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, msg)
}

// ListMessages returns a conversation's messages
func (h *ChatHandler) ListMessages(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid conversation ID")
		return
	}

	req := bindListRequest(c)
	messages, err := h.chatService.ListMessages(c.Request.Context(), practiceID, conversationID, toFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, messages)
}

// MarkMessageRead records the first read of a message
func (h *ChatHandler) MarkMessageRead(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	messageID, ok := parseIDParam(c, "messageId")
	if !ok {
		h.BadRequest(c, "Invalid message ID")
		return
	}

	if err := h.chatService.MarkMessageRead(c.Request.Context(), practiceID, messageID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// CountUnread counts the authenticated user's unread messages in a conversation
func (h *ChatHandler) CountUnread(c *gin.Context) {
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
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid conversation ID")
		return
	}

	count, err := h.chatService.CountUnread(c.Request.Context(), practiceID, conversationID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"unread": count})
}

// CloseConversation stops the thread from accepting new messages
func (h *ChatHandler) CloseConversation(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid conversation ID")
		return
	}

	conv, err := h.chatService.CloseConversation(c.Request.Context(), practiceID, conversationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, conv)
}

// ReopenConversation allows messages again
func (h *ChatHandler) ReopenConversation(c *gin.Context) {
	practiceID, err := getPracticeID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid conversation ID")
		return
	}

	conv, err := h.chatService.ReopenConversation(c.Request.Context(), practiceID, conversationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, conv)
}
