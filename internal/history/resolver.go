package history

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nurlabs/nurchat/internal/models"
)

// Resolver resolves user-friendly references to conversations
type Resolver struct {
	store *Store
}

// NewResolver creates a new alias resolver
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve converts a user-friendly reference to a conversation ID
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	conv, err := r.ResolveWithInfo(ctx, ref)
	if err != nil {
		return "", err
	}
	return conv.ID, nil
}

// ResolveWithInfo resolves a reference and returns the whole conversation
func (r *Resolver) ResolveWithInfo(ctx context.Context, ref string) (*models.Conversation, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("empty reference")
	}

	conversations, err := r.store.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return ResolveIn(conversations, ref)
}

// ResolveIn picks the conversation ref names from a list ordered most
// recently active first.
//
// Supported references:
//   - "@last" - most recently active conversation
//   - "@first" - oldest conversation
//   - "1", "2", "3" - by index (1-based)
//   - an exact conversation ID
//   - "substring" - case-insensitive title match (error if ambiguous)
func ResolveIn(conversations []models.Conversation, ref string) (*models.Conversation, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("empty reference")
	}
	if len(conversations) == 0 {
		return nil, fmt.Errorf("no conversations found")
	}

	switch strings.ToLower(ref) {
	case "@last":
		return &conversations[0], nil
	case "@first":
		return &conversations[len(conversations)-1], nil
	}

	if index, err := strconv.Atoi(ref); err == nil {
		if index < 1 || index > len(conversations) {
			return nil, fmt.Errorf("index %d out of range (1-%d)", index, len(conversations))
		}
		return &conversations[index-1], nil
	}

	for i := range conversations {
		if conversations[i].ID == ref {
			return &conversations[i], nil
		}
	}

	refLower := strings.ToLower(ref)
	var matches []int
	for i, conv := range conversations {
		if strings.Contains(strings.ToLower(conv.Title), refLower) {
			matches = append(matches, i)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no conversation matching '%s'", ref)
	case 1:
		return &conversations[matches[0]], nil
	default:
		var titles []string
		for _, i := range matches {
			titles = append(titles, fmt.Sprintf("'%s'", conversations[i].Title))
		}
		return nil, fmt.Errorf("multiple conversations match '%s': %s. Use ID or be more specific",
			ref, strings.Join(titles, ", "))
	}
}

// ListAliases returns information about supported aliases
func ListAliases() string {
	return `Supported references:
  @last          Most recently active conversation
  @first         Oldest conversation
  1, 2, 3        By index (1-based, from most recent)
  "text"         Search by title substring
  <id>           Exact conversation ID`
}
