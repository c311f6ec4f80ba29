package stream

import (
	"github.com/tidwall/gjson"

	apierrors "github.com/nurlabs/nurchat/internal/errors"
)

// Kind classifies an interpreted frame
type Kind int

const (
	KindUnknown Kind = iota
	KindToken
	KindDone
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindToken:
		return "token"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one interpreted frame: Token, Done, Error or Unknown.
type Event interface {
	Kind() Kind
}

// Token carries a fragment of assistant text
type Token struct {
	Content string
}

// Done marks the end of a successful reply
type Done struct{}

// Error carries the message of a server-side failure
type Error struct {
	Message string
}

// Unknown is any frame type this client does not handle
type Unknown struct {
	Type string
}

func (Token) Kind() Kind   { return KindToken }
func (Done) Kind() Kind    { return KindDone }
func (Error) Kind() Kind   { return KindError }
func (Unknown) Kind() Kind { return KindUnknown }

// IsTerminal reports whether ev ends the stream
func IsTerminal(ev Event) bool {
	k := ev.Kind()
	return k == KindDone || k == KindError
}

// fallbackErrorMessage is used for error frames that carry no text
const fallbackErrorMessage = "the assistant could not complete the reply"

// Interpret maps a frame payload onto an Event. Invalid JSON returns a
// *errors.ParseError; an unrecognised type returns Unknown.
func Interpret(payload string) (Event, error) {
	if !gjson.Valid(payload) {
		return nil, apierrors.NewParseError("invalid JSON payload", payload)
	}

	doc := gjson.Parse(payload)
	if !doc.IsObject() {
		return nil, apierrors.NewParseError("payload is not an object", payload)
	}

	typ := doc.Get("type").String()
	switch typ {
	case "token":
		return Token{Content: doc.Get("content").String()}, nil
	case "done":
		return Done{}, nil
	case "error":
		msg := doc.Get("error").String()
		if msg == "" {
			msg = fallbackErrorMessage
		}
		return Error{Message: msg}, nil
	default:
		return Unknown{Type: typ}, nil
	}
}
