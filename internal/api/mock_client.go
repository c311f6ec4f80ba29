package api

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	apierrors "github.com/nurlabs/nurchat/internal/errors"
	"github.com/nurlabs/nurchat/internal/models"
)

// MockClient is an in-memory ClientInterface for tests. It behaves like the
// backend: messages appended are visible to later reads, and a configured
// AssistantReply is stored when a stream is opened.
type MockClient struct {
	mu sync.Mutex

	// State
	Conversations []models.Conversation
	Verse         *models.Verse

	// Mock return values
	ListErr   error
	CreateErr error
	AppendErr error
	RenameErr error
	DeleteErr error
	VerseErr  error
	OpenErr   error

	// StreamBody is served by OpenStream when StreamFunc is nil
	StreamBody string
	StreamFunc func(ctx context.Context, chatID, question string) (io.ReadCloser, error)

	// AssistantReply and ReplyTitle are applied to the conversation when a
	// stream opens successfully
	AssistantReply string
	ReplyTitle     string

	// Call recorders
	LastQuestion string
	calls        map[string]int
	closed       bool
	nextID       int
}

// Ensure MockClient implements ClientInterface
var _ ClientInterface = (*MockClient)(nil)

func (m *MockClient) record(name string) {
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

// Calls returns how many times the named method was called
func (m *MockClient) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *MockClient) find(id string) *models.Conversation {
	for i := range m.Conversations {
		if m.Conversations[i].ID == id {
			return &m.Conversations[i]
		}
	}
	return nil
}

func (m *MockClient) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListConversations")

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]models.Conversation, len(m.Conversations))
	for i, c := range m.Conversations {
		out[i] = c.Clone()
	}
	return out, nil
}

func (m *MockClient) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetConversation")

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	conv := m.find(id)
	if conv == nil {
		return nil, fmt.Errorf("conversation %s: %w", id, apierrors.ErrNotFound)
	}
	out := conv.Clone()
	return &out, nil
}

func (m *MockClient) CreateConversation(ctx context.Context, title string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateConversation")

	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if title == "" {
		title = "New Chat"
	}
	m.nextID++
	conv := models.Conversation{ID: fmt.Sprintf("mock-%d", m.nextID), Title: title}
	m.Conversations = append(m.Conversations, conv)
	return &conv, nil
}

func (m *MockClient) AppendMessage(ctx context.Context, id string, role models.Role, content string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("AppendMessage")

	if m.AppendErr != nil {
		return nil, m.AppendErr
	}
	conv := m.find(id)
	if conv == nil {
		return nil, apierrors.NewAPIError(404, models.EndpointMessage(id), "Chat not found")
	}
	conv.Messages = append(conv.Messages, models.Message{Role: role, Content: content})
	out := conv.Clone()
	return &out, nil
}

func (m *MockClient) RenameConversation(ctx context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("RenameConversation")

	if m.RenameErr != nil {
		return m.RenameErr
	}
	if conv := m.find(id); conv != nil {
		conv.Title = title
	}
	return nil
}

func (m *MockClient) DeleteConversation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DeleteConversation")

	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	for i := range m.Conversations {
		if m.Conversations[i].ID == id {
			m.Conversations = append(m.Conversations[:i], m.Conversations[i+1:]...)
			return nil
		}
	}
	return apierrors.NewAPIError(404, models.EndpointChat(id), "Chat not found")
}

func (m *MockClient) FindVerse(ctx context.Context, ref string) (*models.Verse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("FindVerse")

	if m.VerseErr != nil {
		return nil, m.VerseErr
	}
	if m.Verse == nil {
		return nil, apierrors.NewAPIError(404, models.EndpointFindVerse, "Verse not found")
	}
	v := *m.Verse
	return &v, nil
}

func (m *MockClient) OpenStream(ctx context.Context, chatID, question string) (io.ReadCloser, error) {
	m.mu.Lock()
	m.record("OpenStream")
	m.LastQuestion = question
	fn := m.StreamFunc
	openErr := m.OpenErr
	body := m.StreamBody
	m.mu.Unlock()

	if openErr != nil {
		return nil, openErr
	}

	var rc io.ReadCloser
	if fn != nil {
		var err error
		if rc, err = fn(ctx, chatID, question); err != nil {
			return nil, err
		}
	} else {
		rc = io.NopCloser(strings.NewReader(body))
	}

	m.mu.Lock()
	if conv := m.find(chatID); conv != nil {
		if m.AssistantReply != "" {
			conv.Messages = append(conv.Messages, models.Message{Role: models.RoleAssistant, Content: m.AssistantReply})
		}
		if m.ReplyTitle != "" {
			conv.Title = m.ReplyTitle
		}
	}
	m.mu.Unlock()

	return rc, nil
}

func (m *MockClient) BaseURL() string {
	return "http://mock"
}

func (m *MockClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *MockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Frames builds an event stream body from frame payloads
func Frames(payloads ...string) string {
	var sb strings.Builder
	for _, p := range payloads {
		sb.WriteString("data: ")
		sb.WriteString(p)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// BlockingBody serves prefix and then blocks until ctx is done or the body is
// closed, like a stream that stalls mid-reply.
type BlockingBody struct {
	ctx     context.Context
	prefix  *strings.Reader
	closeCh chan struct{}
	once    sync.Once
}

// NewBlockingBody returns a body that stalls after prefix
func NewBlockingBody(ctx context.Context, prefix string) *BlockingBody {
	return &BlockingBody{
		ctx:     ctx,
		prefix:  strings.NewReader(prefix),
		closeCh: make(chan struct{}),
	}
}

func (b *BlockingBody) Read(p []byte) (int, error) {
	if b.prefix.Len() > 0 {
		return b.prefix.Read(p)
	}
	select {
	case <-b.ctx.Done():
		return 0, b.ctx.Err()
	case <-b.closeCh:
		return 0, io.ErrClosedPipe
	}
}

func (b *BlockingBody) Close() error {
	b.once.Do(func() { close(b.closeCh) })
	return nil
}
