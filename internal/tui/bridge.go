package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nurlabs/nurchat/internal/models"
	"github.com/nurlabs/nurchat/internal/session"
)

// Messages delivered from the session controller
type (
	stateMsg        struct{ state session.State }
	conversationMsg struct{ conv models.Conversation }
	streamMsg       struct{ text string }
	notifyMsg       struct{ n session.Notification }
)

// programBridge forwards controller callbacks into the bubbletea event loop.
// Callbacks that arrive before a program is attached are dropped.
type programBridge struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

var _ session.Observer = (*programBridge)(nil)

func (b *programBridge) attach(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

func (b *programBridge) deliver(msg tea.Msg) {
	b.mu.RLock()
	send := b.send
	b.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

func (b *programBridge) StateChanged(state session.State) {
	b.deliver(stateMsg{state: state})
}

func (b *programBridge) ConversationChanged(conv models.Conversation) {
	b.deliver(conversationMsg{conv: conv})
}

func (b *programBridge) StreamUpdated(text string) {
	b.deliver(streamMsg{text: text})
}

func (b *programBridge) Notify(n session.Notification) {
	b.deliver(notifyMsg{n: n})
}
