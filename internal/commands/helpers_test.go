package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nurlabs/nurchat/internal/api"
	"github.com/nurlabs/nurchat/internal/config"
	"github.com/nurlabs/nurchat/internal/models"
	"github.com/nurlabs/nurchat/internal/render"
	"github.com/nurlabs/nurchat/internal/tui"
)

// fakeTUI records what the commands asked the TUI to show
type fakeTUI struct {
	chatConv  *models.Conversation
	chatOpts  tui.Options
	chatErr   error
	pickCalls int
	pick      tui.PickerResult
	pickErr   error
}

func (f *fakeTUI) RunChat(ctx context.Context, client api.ClientInterface, conv models.Conversation, opts tui.Options) error {
	f.chatConv = &conv
	f.chatOpts = opts
	return f.chatErr
}

func (f *fakeTUI) RunPicker(lister tui.ConversationLister) (tui.PickerResult, error) {
	f.pickCalls++
	return f.pick, f.pickErr
}

type testEnv struct {
	deps      *Dependencies
	mock      *api.MockClient
	ui        *fakeTUI
	home      string
	clipboard []string
	password  string
}

// newTestEnv isolates config in a temp dir and wires a mock backend
func newTestEnv(t *testing.T, mock *api.MockClient) *testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvAPIURL, "")
	t.Setenv(config.EnvToken, "")
	t.Setenv(render.EnvStyle, "")

	if mock == nil {
		mock = &api.MockClient{}
	}
	env := &testEnv{mock: mock, ui: &fakeTUI{}, home: home}
	env.deps = &Dependencies{
		Client: mock,
		TUI:    env.ui,
		Logger: zap.NewNop(),
		Clipboard: func(s string) error {
			env.clipboard = append(env.clipboard, s)
			return nil
		},
		ReadPassword: func() (string, error) { return env.password, nil },
		IsTerminal:   func() bool { return false },
	}
	return env
}

// run executes the command tree with args and returns stdout and stderr
func (e *testEnv) run(stdin string, args ...string) (string, string, error) {
	cmd := NewRootCmd(e.deps)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func sampleConversations() []models.Conversation {
	return []models.Conversation{
		{
			ID: "c-old", Title: "Fasting questions",
			CreatedAt: models.Timestamp{Time: mustTime("2024-01-01T10:00:00Z")},
			Messages: []models.Message{
				{Role: models.RoleUser, Content: "When does the fast begin?", Timestamp: models.Timestamp{Time: mustTime("2024-01-01T10:00:00Z")}},
				{
					Role:      models.RoleAssistant,
					Content:   "At dawn (Al-Baqarah 2:187).",
					Timestamp: models.Timestamp{Time: mustTime("2024-01-01T10:00:05Z")},
					Footnotes: []models.Footnote{{Reference: "2:187", Arabic: "أُحِلَّ لَكُمْ", English: "It has been made permissible for you"}},
				},
			},
		},
		{
			ID: "c-new", Title: "Charity and giving",
			CreatedAt: models.Timestamp{Time: mustTime("2024-02-01T10:00:00Z")},
		},
	}
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

// streamOf builds an event stream of token frames followed by done
func streamOf(tokens ...string) string {
	payloads := make([]string, 0, len(tokens)+1)
	for _, tok := range tokens {
		data, _ := json.Marshal(map[string]string{"type": "token", "content": tok})
		payloads = append(payloads, string(data))
	}
	payloads = append(payloads, `{"type":"done"}`)
	return api.Frames(payloads...)
}
