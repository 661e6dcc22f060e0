package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"chat-sync/internal/models"
)

// HTTPClient talks to the chat backend's REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient constructs an HTTPClient for the backend at baseURL.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%s: %w", op, ErrBadRequest)
	case resp.StatusCode >= 300:
		return &Error{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, Err: err}
	}
	return nil
}

// SendMessage dispatches a compose request.
func (c *HTTPClient) SendMessage(ctx context.Context, req SendRequest) (models.Message, error) {
	var resp struct {
		Message models.Message `json:"message"`
	}
	path := fmt.Sprintf("/conversations/%s/messages", url.PathEscape(req.ConversationID))
	if err := c.do(ctx, "send", http.MethodPost, path, req, &resp); err != nil {
		return models.Message{}, err
	}
	return resp.Message, nil
}

// FetchPage loads one page of history, newest-first.
func (c *HTTPClient) FetchPage(ctx context.Context, conversationID string, page, limit int) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	path := fmt.Sprintf("/conversations/%s/messages?page=%d&limit=%d", url.PathEscape(conversationID), page, limit)
	if err := c.do(ctx, "fetch_page", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// FetchBefore loads messages older than the cursor message.
func (c *HTTPClient) FetchBefore(ctx context.Context, conversationID, beforeID string, limit int) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	path := fmt.Sprintf("/conversations/%s/messages?before=%s&limit=%d",
		url.PathEscape(conversationID), url.QueryEscape(beforeID), limit)
	if err := c.do(ctx, "fetch_before", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// FetchConversations lists the user's conversations.
func (c *HTTPClient) FetchConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	var resp struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	path := "/conversations?user_id=" + url.QueryEscape(userID)
	if err := c.do(ctx, "fetch_conversations", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// MarkRead reports read receipts for the given messages.
func (c *HTTPClient) MarkRead(ctx context.Context, conversationID string, messageIDs []string) error {
	body := map[string]any{"message_ids": messageIDs}
	path := fmt.Sprintf("/conversations/%s/read", url.PathEscape(conversationID))
	return c.do(ctx, "mark_read", http.MethodPost, path, body, nil)
}

// DeleteMessage removes a message on the backend.
func (c *HTTPClient) DeleteMessage(ctx context.Context, messageID string) error {
	return c.do(ctx, "delete", http.MethodDelete, "/messages/"+url.PathEscape(messageID), nil, nil)
}

// EditMessage replaces a message's content on the backend.
func (c *HTTPClient) EditMessage(ctx context.Context, messageID, newContent string) (models.Message, error) {
	var resp struct {
		Message models.Message `json:"message"`
	}
	body := map[string]any{"content": newContent}
	if err := c.do(ctx, "edit", http.MethodPatch, "/messages/"+url.PathEscape(messageID), body, &resp); err != nil {
		return models.Message{}, err
	}
	return resp.Message, nil
}
