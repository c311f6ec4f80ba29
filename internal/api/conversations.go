package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	apierrors "github.com/nurlabs/nurchat/internal/errors"
	"github.com/nurlabs/nurchat/internal/models"
)

// ListConversations returns every conversation owned by the current user,
// in the order the backend stores them.
func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	if err := c.doJSON(ctx, http.MethodGet, models.EndpointHistory, nil, nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// GetConversation returns a single conversation. The backend has no
// single-conversation endpoint, so this lists and filters.
func (c *Client) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	convs, err := c.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		if convs[i].ID == id {
			return &convs[i], nil
		}
	}
	return nil, fmt.Errorf("conversation %s: %w", id, apierrors.ErrNotFound)
}

type createRequest struct {
	Title string `json:"title,omitempty"`
}

// CreateConversation creates an empty conversation. An empty title lets the
// backend pick one; it renames the chat after the first question anyway.
func (c *Client) CreateConversation(ctx context.Context, title string) (*models.Conversation, error) {
	var conv models.Conversation
	err := c.doJSON(ctx, http.MethodPost, models.EndpointCreate, nil, createRequest{Title: strings.TrimSpace(title)}, &conv)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

type messageRequest struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// AppendMessage stores a message and returns the updated conversation
func (c *Client) AppendMessage(ctx context.Context, id string, role models.Role, content string) (*models.Conversation, error) {
	if id == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	var conv models.Conversation
	err := c.doJSON(ctx, http.MethodPost, models.EndpointMessage(id), nil, messageRequest{Role: role, Content: content}, &conv)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

type renameRequest struct {
	Title string `json:"title"`
}

// RenameConversation changes a conversation's title
func (c *Client) RenameConversation(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	return c.doJSON(ctx, http.MethodPatch, models.EndpointChat(id), nil, renameRequest{Title: title}, nil)
}

// DeleteConversation removes a conversation
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, models.EndpointChat(id), nil, nil, nil)
}
