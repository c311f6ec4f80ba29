package tui

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nurlabs/nurchat/internal/api"
	"github.com/nurlabs/nurchat/internal/models"
	"github.com/nurlabs/nurchat/internal/render"
	"github.com/nurlabs/nurchat/internal/session"
)

type fakeClipboard struct {
	text string
	err  error
}

func (f *fakeClipboard) write(s string) error {
	f.text = s
	return f.err
}

func newTestModel(t *testing.T, mock *api.MockClient, conv models.Conversation) (Model, *fakeClipboard) {
	t.Helper()
	mock.Conversations = append(mock.Conversations, conv)

	ctrl := session.New(mock, conv, session.WithDebounce(time.Millisecond))
	t.Cleanup(ctrl.Close)

	clip := &fakeClipboard{}
	m := NewChatModel(context.Background(), mock, ctrl, Options{
		Render:    render.DefaultOptions().WithStyle(render.StyleNoTTY),
		Clipboard: clip.write,
		Phrase:    func(int) int { return 0 },
	})

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(Model), clip
}

// findMsg runs cmd, descending into batches, and returns the first message
// of type T. Commands after the match are not run.
func findMsg[T tea.Msg](cmd tea.Cmd) (T, bool) {
	var zero T
	if cmd == nil {
		return zero, false
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if v, ok := findMsg[T](c); ok {
				return v, true
			}
		}
		return zero, false
	}
	v, ok := msg.(T)
	return v, ok
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return model, cmd
}

func press(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

var sabr = models.Conversation{ID: "c1", Title: "On patience"}

func TestNewChatModel(t *testing.T) {
	m, _ := newTestModel(t, &api.MockClient{}, sabr)

	if !m.ready {
		t.Fatal("model should be ready after a window size message")
	}
	if m.conv.ID != "c1" {
		t.Errorf("conv.ID = %s", m.conv.ID)
	}
	if m.state != session.Idle {
		t.Errorf("state = %v, want idle", m.state)
	}

	view := m.View()
	if !strings.Contains(view, "On patience") {
		t.Error("header should show the conversation title")
	}
	if !strings.Contains(view, "Ask a question to start") {
		t.Error("empty conversation should show the welcome screen")
	}
}

func TestModel_ViewBeforeReady(t *testing.T) {
	mock := &api.MockClient{}
	ctrl := session.New(mock, sabr)
	defer ctrl.Close()

	m := NewChatModel(context.Background(), mock, ctrl, Options{})
	if !strings.Contains(m.View(), "Initializing") {
		t.Error("expected initializing view")
	}
}

func TestModel_EnterSendsMessage(t *testing.T) {
	mock := &api.MockClient{
		StreamBody:     api.Frames(`{"type":"token","content":"Patience"}`, `{"type":"token","content":"endures."}`, `{"type":"done"}`),
		AssistantReply: "Patience endures.",
	}
	m, _ := newTestModel(t, mock, sabr)
	m.textarea.SetValue("  What is sabr?  ")

	m, cmd := update(t, m, press(tea.KeyEnter))
	if !m.busy {
		t.Fatal("model should be busy after enter")
	}
	if m.textarea.Value() != "" {
		t.Errorf("input should be cleared, got %q", m.textarea.Value())
	}
	if m.thinking != thinkingPhrases[0] {
		t.Errorf("thinking = %q", m.thinking)
	}
	if !strings.Contains(m.View(), thinkingPhrases[0]) {
		t.Error("thinking phrase should be shown before the first token")
	}

	done, ok := findMsg[sendDoneMsg](cmd)
	if !ok {
		t.Fatal("enter should produce a send command")
	}
	if done.err != nil {
		t.Fatalf("send failed: %v", done.err)
	}
	if mock.LastQuestion != "What is sabr?" {
		t.Errorf("LastQuestion = %q", mock.LastQuestion)
	}
	if mock.Calls("GetConversation") != 1 {
		t.Errorf("GetConversation calls = %d, want 1", mock.Calls("GetConversation"))
	}

	m, _ = update(t, m, done)
	if m.busy {
		t.Error("model should be idle after the send returns")
	}
}

func TestModel_EnterIgnoredWhenBlankOrBusy(t *testing.T) {
	mock := &api.MockClient{}
	m, _ := newTestModel(t, mock, sabr)

	m.textarea.SetValue("   ")
	m, cmd := update(t, m, press(tea.KeyEnter))
	if cmd != nil || m.busy {
		t.Error("blank input should not send")
	}

	m.busy = true
	m.textarea.SetValue("second question")
	_, cmd = update(t, m, press(tea.KeyEnter))
	if cmd != nil {
		t.Error("enter while busy should be ignored")
	}
	if mock.Calls("AppendMessage") != 0 {
		t.Error("nothing should have been sent")
	}
}

func TestModel_ExitCommands(t *testing.T) {
	for _, input := range []string{"exit", "quit", "/exit", "/quit"} {
		t.Run(input, func(t *testing.T) {
			m, _ := newTestModel(t, &api.MockClient{}, sabr)
			m.textarea.SetValue(input)
			_, cmd := update(t, m, press(tea.KeyEnter))
			if _, ok := findMsg[tea.QuitMsg](cmd); !ok {
				t.Error("expected quit")
			}
		})
	}
}

func TestModel_EscQuitsWhenIdle(t *testing.T) {
	m, _ := newTestModel(t, &api.MockClient{}, sabr)
	_, cmd := update(t, m, press(tea.KeyEsc))
	if _, ok := findMsg[tea.QuitMsg](cmd); !ok {
		t.Error("esc while idle should quit")
	}
}

func TestModel_EscCancelsStream(t *testing.T) {
	mock := &api.MockClient{
		StreamFunc: func(ctx context.Context, chatID, question string) (io.ReadCloser, error) {
			return api.NewBlockingBody(ctx, api.Frames(`{"type":"token","content":"Partial"}`)), nil
		},
	}
	m, _ := newTestModel(t, mock, sabr)
	m.textarea.SetValue("Tell me a long story")

	m, cmd := update(t, m, press(tea.KeyEnter))

	result := make(chan sendDoneMsg, 1)
	go func() {
		done, _ := findMsg[sendDoneMsg](cmd)
		result <- done
	}()

	deadline := time.Now().Add(2 * time.Second)
	for m.ctrl.State() != session.Streaming {
		if time.Now().After(deadline) {
			t.Fatal("send never reached streaming")
		}
		time.Sleep(time.Millisecond)
	}

	m, _ = update(t, m, press(tea.KeyEsc))
	if m.toast.text != "Cancelling..." {
		t.Errorf("toast = %q", m.toast.text)
	}

	var done sendDoneMsg
	select {
	case done = <-result:
	case <-time.After(2 * time.Second):
		t.Fatal("send did not return after cancel")
	}
	if !errors.Is(done.err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", done.err)
	}

	m, _ = update(t, m, done)
	if m.busy {
		t.Error("model should be idle after cancel")
	}
	if m.toast.text != "Reply cancelled." {
		t.Errorf("toast = %q", m.toast.text)
	}
}

func TestModel_StreamAndReconcile(t *testing.T) {
	m, _ := newTestModel(t, &api.MockClient{}, sabr)
	m.busy = true

	m, _ = update(t, m, stateMsg{state: session.Streaming})
	m, _ = update(t, m, streamMsg{text: "Patience is half "})
	if !strings.Contains(m.viewport.View(), "Patience is half") {
		t.Error("streamed text should be shown")
	}
	if strings.Contains(m.View(), thinkingPhrases[0]) {
		t.Error("thinking indicator should be hidden once text arrives")
	}

	m, _ = update(t, m, stateMsg{state: session.Reconciling})
	stored := sabr.Clone()
	stored.Title = "Sabr in the Quran"
	stored.Messages = []models.Message{
		{Role: models.RoleUser, Content: "What is sabr?"},
		{Role: models.RoleAssistant, Content: "Patience is half of faith."},
	}
	m, _ = update(t, m, conversationMsg{conv: stored})

	if m.partial != "" {
		t.Errorf("partial should be cleared on reconcile, got %q", m.partial)
	}
	view := m.View()
	if !strings.Contains(view, "Sabr in the Quran") {
		t.Error("header should pick up the server title")
	}
	if !strings.Contains(view, "half of faith") {
		t.Error("stored reply should be shown")
	}
}

func TestModel_FailedStateClearsPartial(t *testing.T) {
	m, _ := newTestModel(t, &api.MockClient{}, sabr)
	m, _ = update(t, m, streamMsg{text: "half a reply "})
	m, _ = update(t, m, stateMsg{state: session.Failed})
	if m.partial != "" {
		t.Errorf("partial = %q, want empty", m.partial)
	}
}

func TestModel_NotifyRestoresRetryableInput(t *testing.T) {
	m, _ := newTestModel(t, &api.MockClient{}, sabr)

	m, _ = update(t, m, notifyMsg{n: session.Notification{
		Level:     session.LevelError,
		Text:      "Failed to send message. Please check your connection.",
		Retryable: true,
		Input:     "What is sabr?",
	}})

	if m.textarea.Value() != "What is sabr?" {
		t.Errorf("input = %q, want restored question", m.textarea.Value())
	}
	if !strings.Contains(m.View(), "Failed to send message") {
		t.Error("toast should be rendered")
	}

	// existing draft is not overwritten
	m.textarea.SetValue("new draft")
	m, _ = update(t, m, notifyMsg{n: session.Notification{Level: session.LevelError, Text: "x", Retryable: true, Input: "old"}})
	if m.textarea.Value() != "new draft" {
		t.Errorf("draft overwritten: %q", m.textarea.Value())
	}
}

func TestModel_ToastExpires(t *testing.T) {
	m, _ := newTestModel(t, &api.MockClient{}, sabr)

	m, _ = update(t, m, notifyMsg{n: session.Notification{Level: session.LevelWarn, Text: "first"}})
	first := m.toast.id
	m, _ = update(t, m, notifyMsg{n: session.Notification{Level: session.LevelInfo, Text: "second"}})

	// a stale expiry leaves the newer toast alone
	m, _ = update(t, m, toastExpiredMsg{id: first})
	if m.toast.text != "second" {
		t.Errorf("toast = %q, want second", m.toast.text)
	}
	m, _ = update(t, m, toastExpiredMsg{id: m.toast.id})
	if m.toast.text != "" {
		t.Errorf("toast should be cleared, got %q", m.toast.text)
	}
}

func TestModel_CopyLastReply(t *testing.T) {
	conv := sabr.Clone()
	conv.Messages = []models.Message{
		{Role: models.RoleUser, Content: "q"},
		{Role: models.RoleAssistant, Content: "The reply.", Footnotes: []models.Footnote{{Reference: "2:153", English: "Seek help through patience"}}},
	}
	m, clip := newTestModel(t, &api.MockClient{}, conv)

	m, cmd := update(t, m, press(tea.KeyCtrlY))
	copied, ok := findMsg[copiedMsg](cmd)
	if !ok {
		t.Fatal("ctrl+y should produce a copy command")
	}
	if !strings.HasPrefix(clip.text, "The reply.") || !strings.Contains(clip.text, "[2:153]") {
		t.Errorf("clipboard = %q", clip.text)
	}

	m, _ = update(t, m, copied)
	if m.toast.text != "Reply copied to clipboard." {
		t.Errorf("toast = %q", m.toast.text)
	}

	m, _ = update(t, m, copiedMsg{err: errors.New("no clipboard utility")})
	if !strings.Contains(m.toast.text, "no clipboard utility") {
		t.Errorf("toast = %q", m.toast.text)
	}
}

func TestModel_CopyWithoutReply(t *testing.T) {
	m, clip := newTestModel(t, &api.MockClient{}, sabr)
	m, _ = update(t, m, press(tea.KeyCtrlY))
	if m.toast.text != "Nothing to copy yet." {
		t.Errorf("toast = %q", m.toast.text)
	}
	if clip.text != "" {
		t.Error("clipboard should not be written")
	}
}

func TestModel_NewConversation(t *testing.T) {
	mock := &api.MockClient{}
	m, _ := newTestModel(t, mock, sabr)

	m, cmd := update(t, m, press(tea.KeyCtrlN))
	switched, ok := findMsg[switchedMsg](cmd)
	if !ok {
		t.Fatal("ctrl+n should produce a switch command")
	}
	if switched.err != nil {
		t.Fatalf("unexpected error: %v", switched.err)
	}

	m, _ = update(t, m, switched)
	if m.conv.ID != "mock-1" || m.conv.Title != "New Chat" {
		t.Errorf("conv = %+v", m.conv)
	}
	if m.ctrl.Conversation().ID != "mock-1" {
		t.Error("controller should be switched to the new conversation")
	}
}

func TestModel_NewConversationError(t *testing.T) {
	mock := &api.MockClient{CreateErr: errors.New("boom")}
	m, _ := newTestModel(t, mock, sabr)

	_, cmd := update(t, m, press(tea.KeyCtrlN))
	switched, _ := findMsg[switchedMsg](cmd)
	m, _ = update(t, m, switched)

	if m.conv.ID != "c1" {
		t.Error("conversation should be unchanged on error")
	}
	if m.toast.level != session.LevelError {
		t.Errorf("toast level = %v", m.toast.level)
	}
}

func TestModel_ShortcutsBlockedWhileBusy(t *testing.T) {
	m, _ := newTestModel(t, &api.MockClient{}, sabr)
	m.busy = true

	for _, k := range []tea.KeyType{tea.KeyCtrlN, tea.KeyCtrlO} {
		next, _ := update(t, m, press(k))
		if next.picking {
			t.Error("picker should not open while busy")
		}
		if next.toast.text != "Please wait for the current reply to finish." {
			t.Errorf("toast = %q", next.toast.text)
		}
	}
}

func TestModel_PickerSwitchesConversation(t *testing.T) {
	other := models.Conversation{ID: "c2", Title: "Charity", Messages: []models.Message{{Role: models.RoleUser, Content: "zakat?"}}}
	mock := &api.MockClient{Conversations: []models.Conversation{other}}
	m, _ := newTestModel(t, mock, sabr)

	m, cmd := update(t, m, press(tea.KeyCtrlO))
	if !m.picking {
		t.Fatal("ctrl+o should open the picker")
	}
	loaded, ok := findMsg[conversationsLoadedMsg](cmd)
	if !ok {
		t.Fatal("picker should load conversations")
	}
	m, _ = update(t, m, loaded)
	if !strings.Contains(m.View(), "Select Conversation") {
		t.Error("picker view should be shown")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("char")})
	m, cmd = update(t, m, press(tea.KeyDown))
	m, cmd = update(t, m, press(tea.KeyEnter))
	picked, ok := findMsg[pickedMsg](cmd)
	if !ok {
		t.Fatal("enter should report the pick")
	}

	m, cmd = update(t, m, picked)
	if m.picking {
		t.Error("picker should close after a pick")
	}
	switched, ok := findMsg[switchedMsg](cmd)
	if !ok {
		t.Fatal("pick should switch conversations")
	}
	m, _ = update(t, m, switched)
	if m.conv.ID != "c2" {
		t.Errorf("conv.ID = %s, want c2", m.conv.ID)
	}
	if !strings.Contains(m.View(), "zakat?") {
		t.Error("switched conversation messages should be shown")
	}
}

func TestModel_PickerCancel(t *testing.T) {
	m, _ := newTestModel(t, &api.MockClient{}, sabr)
	m, cmd := update(t, m, press(tea.KeyCtrlO))
	loaded, _ := findMsg[conversationsLoadedMsg](cmd)
	m, _ = update(t, m, loaded)

	m, cmd = update(t, m, press(tea.KeyEsc))
	picked, _ := findMsg[pickedMsg](cmd)
	m, cmd = update(t, m, picked)
	if m.picking || cmd != nil {
		t.Error("cancelled pick should just close the picker")
	}
	if m.conv.ID != "c1" {
		t.Error("conversation should be unchanged")
	}
}

func TestModel_RendersFootnotes(t *testing.T) {
	conv := sabr.Clone()
	conv.Messages = []models.Message{
		{Role: models.RoleAssistant, Content: "Seek help (2:153).", Footnotes: []models.Footnote{{Reference: "2:153", English: "with patience and prayer"}}},
	}
	m, _ := newTestModel(t, &api.MockClient{}, conv)

	if !strings.Contains(m.viewport.View(), "with patience and prayer") {
		t.Error("footnote text should be rendered under the reply")
	}
}

func TestBridge_DropsUntilAttached(t *testing.T) {
	b := &programBridge{}
	b.StateChanged(session.Sending) // no program yet

	var got []tea.Msg
	b.attach(func(msg tea.Msg) { got = append(got, msg) })
	b.StateChanged(session.Streaming)
	b.StreamUpdated("a ")
	b.ConversationChanged(sabr)
	b.Notify(session.Notification{Text: "n"})

	if len(got) != 4 {
		t.Fatalf("got %d messages, want 4", len(got))
	}
	if s, ok := got[0].(stateMsg); !ok || s.state != session.Streaming {
		t.Errorf("first message = %#v", got[0])
	}
	if s, ok := got[1].(streamMsg); !ok || s.text != "a " {
		t.Errorf("second message = %#v", got[1])
	}
}

func TestPickPhrase(t *testing.T) {
	if got := pickPhrase(func(n int) int { return 2 }); got != "Gathering relevant Context" {
		t.Errorf("pickPhrase = %q", got)
	}
	for i := 0; i < 20; i++ {
		p := pickPhrase(nil)
		found := false
		for _, want := range thinkingPhrases {
			if p == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("unexpected phrase %q", p)
		}
	}
}
