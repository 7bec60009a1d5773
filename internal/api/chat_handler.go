package api

import (
	"net/http"

	"polysynergy/file-manager/internal/domain"
	"polysynergy/file-manager/internal/service"

	"github.com/gin-gonic/gin"
)

// ChatHandler exposes chat history.
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// AppendMessageRequest is a message to store.
type AppendMessageRequest struct {
	Role string `json:"role" binding:"required"`
	Text string `json:"text"`
}

// History handles GET /chat/sessions/:sessionId/messages.
func (h *ChatHandler) History(c *gin.Context) {
	limit, err := optionalInt(c.Query("limit"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "limit must be an integer")
		return
	}
	messages, err := h.chat.History(c.Request.Context(), pathScope(c), c.Param("sessionId"), int64(limit))
	if err != nil {
		respondError(c, err)
		return
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	c.JSON(http.StatusOK, messages)
}

// Append handles POST /chat/sessions/:sessionId/messages.
func (h *ChatHandler) Append(c *gin.Context) {
	var req AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	msg, err := h.chat.Append(c.Request.Context(), pathScope(c), c.Param("sessionId"), domain.ChatRole(req.Role), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
