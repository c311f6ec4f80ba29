package session

import "github.com/nurlabs/nurchat/internal/models"

// Level is the severity of a notification
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a user-facing message raised by the controller
type Notification struct {
	Level Level
	Text  string
	// Retryable means the user can resubmit the same input
	Retryable bool
	// Input is the text the failed send carried
	Input string
	Err   error
}

// Observer receives the controller's updates. Callbacks run on the goroutine
// that called Send (or from the render buffer's timer) and must not call
// Close or Switch.
type Observer interface {
	StateChanged(state State)
	ConversationChanged(conv models.Conversation)
	StreamUpdated(text string)
	Notify(n Notification)
}

// ObserverFuncs adapts optional callbacks to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnState        func(State)
	OnConversation func(models.Conversation)
	OnStream       func(string)
	OnNotify       func(Notification)
}

func (f ObserverFuncs) StateChanged(state State) {
	if f.OnState != nil {
		f.OnState(state)
	}
}

func (f ObserverFuncs) ConversationChanged(conv models.Conversation) {
	if f.OnConversation != nil {
		f.OnConversation(conv)
	}
}

func (f ObserverFuncs) StreamUpdated(text string) {
	if f.OnStream != nil {
		f.OnStream(text)
	}
}

func (f ObserverFuncs) Notify(n Notification) {
	if f.OnNotify != nil {
		f.OnNotify(n)
	}
}
