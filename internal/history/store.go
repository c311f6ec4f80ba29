// Package history lists, resolves, searches and exports the conversations
// kept by the backend.
package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nurlabs/nurchat/internal/api"
	"github.com/nurlabs/nurchat/internal/models"
)

// Store gives the commands an ordered view over the backend's conversations
type Store struct {
	backend api.ConversationStore
}

// NewStore creates a store backed by the given conversation API
func NewStore(backend api.ConversationStore) *Store {
	return &Store{backend: backend}
}

// ListConversations returns all conversations, most recently active first
func (s *Store) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	convs, err := s.backend.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	SortByActivity(convs)
	return convs, nil
}

// GetConversation retrieves a conversation by ID
func (s *Store) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	return s.backend.GetConversation(ctx, id)
}

// UpdateTitle renames a conversation
func (s *Store) UpdateTitle(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	return s.backend.RenameConversation(ctx, id, title)
}

// DeleteConversation removes a conversation
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	return s.backend.DeleteConversation(ctx, id)
}

// LastActivity is the newest message timestamp, or the creation time when
// no message carries one.
func LastActivity(conv models.Conversation) time.Time {
	latest := conv.CreatedAt.Time
	for _, msg := range conv.Messages {
		if msg.Timestamp.After(latest) {
			latest = msg.Timestamp.Time
		}
	}
	return latest
}

// SortByActivity orders convs in place, most recently active first. Ties
// keep the backend's order.
func SortByActivity(convs []models.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return LastActivity(convs[i]).After(LastActivity(convs[j]))
	})
}
