package api

import (
	"context"
	"io"

	"github.com/nurlabs/nurchat/internal/models"
)

// ConversationStore persists conversations and their messages
type ConversationStore interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	CreateConversation(ctx context.Context, title string) (*models.Conversation, error)
	AppendMessage(ctx context.Context, id string, role models.Role, content string) (*models.Conversation, error)
	RenameConversation(ctx context.Context, id, title string) error
	DeleteConversation(ctx context.Context, id string) error
}

// AssistantService opens streamed assistant replies
type AssistantService interface {
	OpenStream(ctx context.Context, chatID, question string) (io.ReadCloser, error)
}

// VerseLookup resolves verse references
type VerseLookup interface {
	FindVerse(ctx context.Context, ref string) (*models.Verse, error)
}

// ClientInterface is everything the commands and TUI need from the backend
type ClientInterface interface {
	ConversationStore
	AssistantService
	VerseLookup
	BaseURL() string
	Close()
	IsClosed() bool
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)
