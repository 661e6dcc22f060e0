package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/mocks"
	"chat-sync/internal/models"
	syncer "chat-sync/internal/sync"
	"chat-sync/internal/transport"
)

func setupSyncRouter(handler *SyncHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "u1")
		c.Next()
	})
	r.GET("/conversations", handler.ListConversations)
	r.GET("/conversations/:conversation_id/messages", handler.GetMessages)
	r.GET("/conversations/:conversation_id/messages/latest", handler.GetLatestMessages)
	r.GET("/conversations/:conversation_id/messages/more", handler.GetMoreMessages)
	r.POST("/conversations/:conversation_id/refresh", handler.Refresh)
	r.POST("/conversations/:conversation_id/messages", handler.PostMessage)
	r.POST("/conversations/:conversation_id/read", handler.MarkConversationRead)
	r.POST("/conversations/:conversation_id/typing", handler.UpdateTyping)
	r.POST("/conversations/:conversation_id/close", handler.CloseConversation)
	r.POST("/messages/:message_id/retry", handler.RetryMessage)
	r.POST("/messages/:message_id/read", handler.MarkMessageRead)
	r.DELETE("/messages/:message_id", handler.DeleteMessage)
	r.PATCH("/messages/:message_id", handler.EditMessage)
	return r
}

func TestListConversationsSuccess(t *testing.T) {
	core := new(mocks.SyncerMock)
	router := setupSyncRouter(NewSyncHandler(core))

	core.On("LoadConversations", mock.Anything, "u1").
		Return([]models.ConversationSummary{{ConversationID: "conv1"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp["conversations"], 1)
	core.AssertExpectations(t)
}

func TestListConversationsFailure(t *testing.T) {
	core := new(mocks.SyncerMock)
	router := setupSyncRouter(NewSyncHandler(core))

	core.On("LoadConversations", mock.Anything, "u1").
		Return(([]models.ConversationSummary)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetMessagesReturnsView(t *testing.T) {
	core := new(mocks.SyncerMock)
	router := setupSyncRouter(NewSyncHandler(core))

	core.On("LoadMessages", mock.Anything, "conv1", 1, 50).Return(nil).Once()
	core.On("View", "conv1").Return(models.ConversationView{
		ConversationID: "conv1",
		Messages:       []models.Message{{ID: "m1"}},
	}, true).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/conv1/messages?limit=50", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	core.AssertExpectations(t)
}

func TestGetMessagesFetchConflict(t *testing.T) {
	core := new(mocks.SyncerMock)
	router := setupSyncRouter(NewSyncHandler(core))

	core.On("LoadMessages", mock.Anything, "conv1", 1, 0).Return(syncer.ErrFetchInFlight).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/conv1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetMoreMessagesRequiresCursor(t *testing.T) {
	core := new(mocks.SyncerMock)
	router := setupSyncRouter(NewSyncHandler(core))

	req := httptest.NewRequest(http.MethodGet, "/conversations/conv1/messages/more", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	core.AssertNotCalled(t, "LoadMoreMessages", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetMoreMessagesSuccess(t *testing.T) {
	core := new(mocks.SyncerMock)
	router := setupSyncRouter(NewSyncHandler(core))

	core.On("LoadMoreMessages", mock.Anything, "conv1", "m5", 0).Return(nil).Once()
	core.On("View", "conv1").Return(models.ConversationView{ConversationID: "conv1"}, true).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/conv1/messages/more?oldest_message_id=m5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	core.AssertExpectations(t)
}

func TestPostMessageSuccess(t *testing.T) {
	core := new(mocks.SyncerMock)
	router := setupSyncRouter(NewSyncHandler(core))

	sent := models.Message{ID: "srv_1", ConversationID: "conv1", Content: "hi", Status: models.StatusSent}
	core.On("SendMessage", mock.Anything, "conv1", mock.MatchedBy(func(cmd syncer.SendCommand) bool {
		return cmd.Content == "hi"
	})).Return(sent, nil).Once()

	body, _ := json.Marshal(map[string]any{"content": "hi"})
	req := httptest.NewRequest(http.MethodPost, "/conversations/conv1/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Message models.Message `json:"message"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "srv_1", resp.Message.ID)
	core.AssertExpectations(t)
}

func TestPostMessageEmptyContent(t *testing.T) {
	core := new(mocks.SyncerMock)
	router := setupSyncRouter(NewSyncHandler(core))

	core.On("SendMessage", mock.Anything, "conv1", mock.Anything).
		Return(models.Message{}, syncer.ErrEmptyContent).Once()

	body, _ := json.Marshal(map[string]any{"content": ""})
	req := httptest.NewRequest(http.MethodPost, "/conversations/conv1/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMessageTransportFailureReturnsFailedMessage(t *testing.T) {
	core := new(mocks.SyncerMock)
	router := setupSyncRouter(NewSyncHandler(core))

	failed := models.Message{ID: "tmp_1", ConversationID: "conv1", Content: "hi", Status: models.StatusFailed}
	core.On("SendMessage", mock.Anything, "conv1", mock.Anything).
		Return(failed, &transport.Error{Op: "send_message", Err: assert.AnError}).Once()

	body, _ := json.Marshal(map[string]any{"content": "hi"})
	req := httptest.NewRequest(http.MethodPost, "/conversations/conv1/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var resp struct {
		Message models.Message `json:"message"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, models.StatusFailed, resp.Message.Status)
}

func TestRetryMessageNotFailed(t *testing.T) {
	core := new(mocks.SyncerMock)
	router := setupSyncRouter(NewSyncHandler(core))

	core.On("RetryMessage", mock.Anything, "conv1", "srv_1").
		Return(models.Message{}, syncer.ErrNotFailed).Once()

	body, _ := json.Marshal(map[string]any{"conversation_id": "conv1"})
	req := httptest.NewRequest(http.MethodPost, "/messages/srv_1/retry", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestMarkMessageReadUnknown(t *testing.T) {
	core := new(mocks.SyncerMock)
	router := setupSyncRouter(NewSyncHandler(core))

	core.On("MarkMessageRead", mock.Anything, "nope").Return(syncer.ErrUnknownMessage).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/nope/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkConversationReadRequiresIDs(t *testing.T) {
	core := new(mocks.SyncerMock)
	router := setupSyncRouter(NewSyncHandler(core))

	req := httptest.NewRequest(http.MethodPost, "/conversations/conv1/read", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	core.AssertNotCalled(t, "MarkConversationRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestEditMessageNotFound(t *testing.T) {
	core := new(mocks.SyncerMock)
	router := setupSyncRouter(NewSyncHandler(core))

	core.On("EditMessage", mock.Anything, "nope", "hello").Return(syncer.ErrUnknownMessage).Once()

	body, _ := json.Marshal(map[string]any{"content": "hello"})
	req := httptest.NewRequest(http.MethodPatch, "/messages/nope", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateTypingUsesAuthenticatedUser(t *testing.T) {
	core := new(mocks.SyncerMock)
	router := setupSyncRouter(NewSyncHandler(core))

	core.On("UpdateTypingStatus", "conv1", "u1", "Bob", true).Return(nil).Once()

	body, _ := json.Marshal(map[string]any{"is_typing": true, "display_name": "Bob"})
	req := httptest.NewRequest(http.MethodPost, "/conversations/conv1/typing", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	core.AssertExpectations(t)
}

func TestCloseConversation(t *testing.T) {
	core := new(mocks.SyncerMock)
	router := setupSyncRouter(NewSyncHandler(core))

	core.On("CloseConversation", "conv1").Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/conv1/close", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	core.AssertExpectations(t)
}

func TestDeleteMessageBadGateway(t *testing.T) {
	core := new(mocks.SyncerMock)
	router := setupSyncRouter(NewSyncHandler(core))

	core.On("DeleteMessage", mock.Anything, "m1").
		Return(&transport.Error{Op: "delete_message", Err: assert.AnError}).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages/m1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
}
