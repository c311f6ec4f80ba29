package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apierrors "github.com/nurlabs/nurchat/internal/errors"
	"github.com/nurlabs/nurchat/internal/models"
	"github.com/nurlabs/nurchat/internal/notify"
	"github.com/nurlabs/nurchat/internal/stream"
)

// ErrClosed is returned by Send after Close
var ErrClosed = errors.New("session is closed")

// Backend is the part of the platform API a session needs
type Backend interface {
	AppendMessage(ctx context.Context, id string, role models.Role, content string) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	OpenStream(ctx context.Context, chatID, question string) (io.ReadCloser, error)
}

// Option configures a Controller
type Option func(*Controller)

// WithObserver sets the observer receiving updates
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithPlayer sets the cue player
func WithPlayer(p notify.Player) Option {
	return func(c *Controller) {
		if p != nil {
			c.player = p
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDebounce sets the render buffer's quiet period
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		c.debounce = d
	}
}

// Controller runs the send cycle for one open conversation. At most one send
// is in flight at a time; a second Send while one is active fails with
// ErrSessionBusy.
type Controller struct {
	backend  Backend
	observer Observer
	player   notify.Player
	logger   *zap.Logger
	debounce time.Duration
	buffer   *stream.RenderBuffer

	mu     sync.Mutex
	state  State
	conv   models.Conversation
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// New creates a controller for conv
func New(backend Backend, conv models.Conversation, opts ...Option) *Controller {
	c := &Controller{
		backend:  backend,
		observer: ObserverFuncs{},
		player:   notify.NopPlayer{},
		logger:   zap.NewNop(),
		debounce: stream.DefaultDebounce,
		conv:     conv.Clone(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.buffer = stream.NewRenderBuffer(c.debounce, func(text string) {
		c.observer.StreamUpdated(text)
	})
	return c
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Conversation returns a copy of the local view of the conversation
func (c *Controller) Conversation() models.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.Clone()
}

// Partial returns the reply text received so far for the in-flight send
func (c *Controller) Partial() string {
	return c.buffer.Content()
}

// Send submits input as a user message and streams the assistant's reply.
// It blocks until the reply is reconciled, fails or is cancelled, and the
// controller is back to Idle when it returns. Whitespace-only input is a
// no-op.
//
// The question is shown in the view before it is saved. If saving fails it
// is removed again, and the failure notification carries it as Input so the
// caller can offer it for resending.
func (c *Controller) Send(ctx context.Context, input string) error {
	question := strings.TrimSpace(input)
	if question == "" {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != Idle {
		c.mu.Unlock()
		return apierrors.ErrSessionBusy
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.state = Sending
	convID := c.conv.ID
	c.conv.Messages = append(c.conv.Messages, models.Message{Role: models.RoleUser, Content: question})
	view := c.conv.Clone()
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		if c.done == done {
			c.cancel = nil
			c.done = nil
		}
		c.mu.Unlock()
		close(done)
	}()

	c.buffer.Reset()
	c.observer.StateChanged(Sending)
	c.player.Play(notify.CueSend)
	c.observer.ConversationChanged(view)

	log := c.logger.With(zap.String("chat_id", convID))
	return c.run(runCtx, log, convID, question)
}

func (c *Controller) run(ctx context.Context, log *zap.Logger, convID, question string) error {
	start := time.Now()

	if _, err := c.backend.AppendMessage(ctx, convID, models.RoleUser, question); err != nil {
		if ctx.Err() != nil {
			return c.cancelled(ctx, log)
		}
		c.dropOptimistic(question)
		return c.fail(log, apierrors.NewPersistError(convID, err), question)
	}

	body, err := c.backend.OpenStream(ctx, convID, question)
	if err != nil {
		if ctx.Err() != nil {
			return c.cancelled(ctx, log)
		}
		return c.fail(log, err, question)
	}
	defer body.Close()

	// unblock a Read stalled on the network as soon as the send is cancelled
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	c.setState(Streaming)
	dec := stream.NewDecoder(body, stream.WithDecoderLogger(log))
	tokens := 0

	for {
		ev, err := dec.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.buffer.Reset()
				return c.cancelled(ctx, log)
			}
			if errors.Is(err, io.EOF) {
				return c.incomplete(ctx, log, convID)
			}
			c.buffer.Reset()
			return c.fail(log, apierrors.NewNetworkErrorWithEndpoint("read stream", models.EndpointStream, err), question)
		}

		switch e := ev.(type) {
		case stream.Token:
			tokens++
			c.buffer.Append(e.Content)
		case stream.Done:
			malformed, unknown := dec.Skipped()
			log.Info("reply received",
				zap.Int("tokens", tokens),
				zap.Int("skipped_malformed", malformed),
				zap.Int("skipped_unknown", unknown),
				zap.Duration("elapsed", time.Since(start)))
			return c.reconcile(ctx, log, convID)
		case stream.Error:
			partial := c.buffer.Content()
			c.buffer.Reset()
			return c.fail(log, apierrors.NewStreamError(e.Message, partial), question)
		}
	}
}

// reconcile replaces the local view with the stored conversation. It is
// called exactly once per completed reply.
func (c *Controller) reconcile(ctx context.Context, log *zap.Logger, convID string) error {
	c.setState(Reconciling)
	reply := strings.TrimSpace(c.buffer.Content())
	c.buffer.Reset()
	c.player.Play(notify.CueReceive)

	if err := c.refresh(ctx, convID, reply); err != nil {
		if ctx.Err() != nil {
			return c.cancelled(ctx, log)
		}
		log.Warn("failed to refresh conversation after reply", zap.Error(err))
		c.observer.Notify(Notification{
			Level: LevelWarn,
			Text:  apierrors.UserMessage(err),
			Err:   err,
		})
		c.setState(Idle)
		return fmt.Errorf("refresh conversation: %w", err)
	}

	c.setState(Idle)
	return nil
}

// incomplete handles a stream that closed without a done or error frame:
// show what arrived, then defer to whatever the server saved.
func (c *Controller) incomplete(ctx context.Context, log *zap.Logger, convID string) error {
	c.buffer.Flush()
	c.setState(Reconciling)
	reply := strings.TrimSpace(c.buffer.Content())
	c.buffer.Reset()

	log.Warn("stream ended without a terminal frame", zap.Int("partial_len", len(reply)))

	if err := c.refresh(ctx, convID, reply); err != nil {
		if ctx.Err() != nil {
			return c.cancelled(ctx, log)
		}
		log.Warn("failed to refresh conversation after incomplete reply", zap.Error(err))
	}

	c.observer.Notify(Notification{
		Level: LevelWarn,
		Text:  apierrors.UserMessage(apierrors.ErrIncompleteStream),
		Err:   apierrors.ErrIncompleteStream,
	})
	c.setState(Idle)
	return apierrors.ErrIncompleteStream
}

// refresh fetches the stored conversation into the local view. When the
// fetch fails and a reply was received, the reply is kept locally so the
// user still sees it.
func (c *Controller) refresh(ctx context.Context, convID, reply string) error {
	fresh, err := c.backend.GetConversation(ctx, convID)
	if err != nil {
		if reply != "" {
			c.mu.Lock()
			c.conv.Messages = append(c.conv.Messages, models.Message{Role: models.RoleAssistant, Content: reply})
			view := c.conv.Clone()
			c.mu.Unlock()
			c.observer.ConversationChanged(view)
		}
		return err
	}

	c.mu.Lock()
	if fresh.ID == "" {
		fresh.ID = convID
	}
	c.conv = fresh.Clone()
	view := c.conv.Clone()
	c.mu.Unlock()

	c.observer.ConversationChanged(view)
	return nil
}

func (c *Controller) fail(log *zap.Logger, err error, input string) error {
	log.Warn("send failed", zap.Error(err))
	c.setState(Failed)
	c.observer.Notify(Notification{
		Level:     LevelError,
		Text:      apierrors.UserMessage(err),
		Retryable: true,
		Input:     input,
		Err:       err,
	})
	c.setState(Idle)
	return err
}

func (c *Controller) cancelled(ctx context.Context, log *zap.Logger) error {
	log.Debug("send cancelled")
	c.setState(Idle)
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.Canceled
}

// dropOptimistic removes the unsaved user message added by Send
func (c *Controller) dropOptimistic(question string) {
	c.mu.Lock()
	n := len(c.conv.Messages)
	if n == 0 || c.conv.Messages[n-1].Role != models.RoleUser || c.conv.Messages[n-1].Content != question {
		c.mu.Unlock()
		return
	}
	c.conv.Messages = c.conv.Messages[:n-1]
	view := c.conv.Clone()
	c.mu.Unlock()

	c.observer.ConversationChanged(view)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.observer.StateChanged(s)
}

// Cancel aborts the in-flight send, if any. It does not wait.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// waitLocked cancels any in-flight send and blocks until it has returned.
// Called and returns with c.mu held.
func (c *Controller) waitLocked() {
	for c.done != nil {
		done := c.done
		if c.cancel != nil {
			c.cancel()
		}
		c.mu.Unlock()
		<-done
		c.mu.Lock()
	}
}

// Switch cancels any in-flight send, waits for it to return and loads conv
// into the view. It blocks, so UI code should call it off the event loop.
func (c *Controller) Switch(conv models.Conversation) {
	c.mu.Lock()
	c.waitLocked()
	c.conv = conv.Clone()
	c.state = Idle
	view := c.conv.Clone()
	c.mu.Unlock()

	c.buffer.Reset()
	c.observer.ConversationChanged(view)
}

// Close cancels any in-flight send and waits for it to finish. Later calls
// to Send return ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.waitLocked()
	c.mu.Unlock()
	c.buffer.Reset()
}
