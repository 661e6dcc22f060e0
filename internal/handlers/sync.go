package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/models"
	"chat-sync/internal/sync"
	"chat-sync/internal/transport"
)

// Syncer is the slice of the sync core the HTTP surface drives.
type Syncer interface {
	LoadConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	LoadMessages(ctx context.Context, conversationID string, page, limit int) error
	LoadLatestMessages(ctx context.Context, conversationID string, limit int) error
	LoadMoreMessages(ctx context.Context, conversationID, oldestMessageID string, limit int) error
	RefreshMessages(ctx context.Context, conversationID string) error
	SendMessage(ctx context.Context, conversationID string, cmd sync.SendCommand) (models.Message, error)
	RetryMessage(ctx context.Context, conversationID, messageID string) (models.Message, error)
	MarkMessageRead(ctx context.Context, messageID string) error
	MarkConversationRead(ctx context.Context, conversationID string, messageIDs []string) error
	DeleteMessage(ctx context.Context, messageID string) error
	EditMessage(ctx context.Context, messageID, newContent string) error
	UpdateTypingStatus(conversationID, userID, displayName string, isTyping bool) error
	View(conversationID string) (models.ConversationView, bool)
	CloseConversation(conversationID string)
}

// SyncHandler exposes the sync core's command surface over HTTP.
type SyncHandler struct {
	core Syncer
}

// NewSyncHandler builds a SyncHandler.
func NewSyncHandler(core Syncer) *SyncHandler {
	return &SyncHandler{core: core}
}

// ListConversations returns the conversation list for the caller.
func (h *SyncHandler) ListConversations(c *gin.Context) {
	userID := c.GetString("userID")
	summaries, err := h.core.LoadConversations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "failed to load conversations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// GetMessages is the cold load of one history page.
func (h *SyncHandler) GetMessages(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 0)

	if err := h.core.LoadMessages(c.Request.Context(), conversationID, page, limit); err != nil {
		respondError(c, err, "failed to load messages")
		return
	}
	view, _ := h.core.View(conversationID)
	c.JSON(http.StatusOK, gin.H{"view": view})
}

// GetLatestMessages is the cache-then-network load.
func (h *SyncHandler) GetLatestMessages(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	limit := intQuery(c, "limit", 0)

	if err := h.core.LoadLatestMessages(c.Request.Context(), conversationID, limit); err != nil {
		respondError(c, err, "failed to load latest messages")
		return
	}
	view, _ := h.core.View(conversationID)
	c.JSON(http.StatusOK, gin.H{"view": view})
}

// GetMoreMessages is the backward load from a cursor.
func (h *SyncHandler) GetMoreMessages(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	oldestID := c.Query("oldest_message_id")
	if oldestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "oldest_message_id is required"})
		return
	}
	limit := intQuery(c, "limit", 0)

	if err := h.core.LoadMoreMessages(c.Request.Context(), conversationID, oldestID, limit); err != nil {
		respondError(c, err, "failed to load more messages")
		return
	}
	view, _ := h.core.View(conversationID)
	c.JSON(http.StatusOK, gin.H{"view": view})
}

// Refresh re-fetches page one from the network only.
func (h *SyncHandler) Refresh(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	if err := h.core.RefreshMessages(c.Request.Context(), conversationID); err != nil {
		respondError(c, err, "failed to refresh messages")
		return
	}
	view, _ := h.core.View(conversationID)
	c.JSON(http.StatusOK, gin.H{"view": view})
}

// PostMessage runs the optimistic send pipeline.
func (h *SyncHandler) PostMessage(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	var req struct {
		Type      string         `json:"type"`
		Content   string         `json:"content"`
		MediaIDs  []string       `json:"media_ids"`
		Metadata  map[string]any `json:"metadata"`
		ReplyToID string         `json:"reply_to_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.core.SendMessage(c.Request.Context(), conversationID, sync.SendCommand{
		Type:      models.MessageType(req.Type),
		Content:   req.Content,
		MediaIDs:  req.MediaIDs,
		Metadata:  req.Metadata,
		ReplyToID: req.ReplyToID,
	})
	if err != nil {
		// A transport failure leaves the message visible in failed state;
		// return it so the caller can offer the retry affordance.
		var terr *transport.Error
		if errors.As(err, &terr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "send failed", "message": msg})
			return
		}
		respondError(c, err, "send failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// RetryMessage re-dispatches a failed send.
func (h *SyncHandler) RetryMessage(c *gin.Context) {
	var req struct {
		ConversationID string `json:"conversation_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.core.RetryMessage(c.Request.Context(), req.ConversationID, c.Param("message_id"))
	if err != nil {
		var terr *transport.Error
		if errors.As(err, &terr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "retry failed", "message": msg})
			return
		}
		respondError(c, err, "retry failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// MarkMessageRead marks one message read.
func (h *SyncHandler) MarkMessageRead(c *gin.Context) {
	if err := h.core.MarkMessageRead(c.Request.Context(), c.Param("message_id")); err != nil {
		respondError(c, err, "failed to mark message read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MarkConversationRead marks a batch of messages read.
func (h *SyncHandler) MarkConversationRead(c *gin.Context) {
	var req struct {
		MessageIDs []string `json:"message_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.core.MarkConversationRead(c.Request.Context(), c.Param("conversation_id"), req.MessageIDs); err != nil {
		respondError(c, err, "failed to mark conversation read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DeleteMessage removes a message everywhere.
func (h *SyncHandler) DeleteMessage(c *gin.Context) {
	if err := h.core.DeleteMessage(c.Request.Context(), c.Param("message_id")); err != nil {
		respondError(c, err, "failed to delete message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// EditMessage replaces a message's content.
func (h *SyncHandler) EditMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.core.EditMessage(c.Request.Context(), c.Param("message_id"), req.Content); err != nil {
		respondError(c, err, "failed to edit message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// UpdateTyping mutates the transient typing map.
func (h *SyncHandler) UpdateTyping(c *gin.Context) {
	var req struct {
		IsTyping    bool   `json:"is_typing"`
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if err := h.core.UpdateTypingStatus(c.Param("conversation_id"), userID, req.DisplayName, req.IsTyping); err != nil {
		respondError(c, err, "failed to update typing status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CloseConversation tears down the conversation view.
func (h *SyncHandler) CloseConversation(c *gin.Context) {
	h.core.CloseConversation(c.Param("conversation_id"))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return fallback
	}
	return val
}

func respondError(c *gin.Context, err error, msg string) {
	status := http.StatusInternalServerError
	var terr *transport.Error
	switch {
	case errors.Is(err, sync.ErrEmptyContent):
		status = http.StatusBadRequest
	case errors.Is(err, sync.ErrUnknownMessage), errors.Is(err, transport.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sync.ErrFetchInFlight), errors.Is(err, sync.ErrNotFailed):
		status = http.StatusConflict
	case errors.Is(err, transport.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.As(err, &terr):
		status = http.StatusBadGateway
	case errors.Is(err, sync.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": msg})
}
