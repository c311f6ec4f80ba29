package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nurlabs/nurchat/internal/api"
	"github.com/nurlabs/nurchat/internal/models"
)

func ts(t time.Time) models.Timestamp {
	return models.Timestamp{Time: t}
}

func pickerFixture(t *testing.T) (PickerModel, time.Time) {
	t.Helper()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	mock := &api.MockClient{Conversations: []models.Conversation{
		{ID: "old", Title: "Fasting", CreatedAt: ts(now.Add(-72 * time.Hour))},
		{ID: "new", Title: "Prayer", CreatedAt: ts(now.Add(-48 * time.Hour)), Messages: []models.Message{
			{Role: models.RoleUser, Content: "When is fajr?", Timestamp: ts(now.Add(-10 * time.Minute))},
		}},
		{ID: "mid", Title: "", CreatedAt: ts(now.Add(-5 * time.Hour))},
	}}

	m := NewPickerModel(mock)
	m.now = func() time.Time { return now }
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(PickerModel)

	loaded, ok := findMsg[conversationsLoadedMsg](m.Init())
	if !ok {
		t.Fatal("Init should load conversations")
	}
	next, _ = m.Update(loaded)
	return next.(PickerModel), now
}

func pickerUpdate(m PickerModel, msg tea.Msg) (PickerModel, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(PickerModel), cmd
}

func TestPicker_SortsByLastActivity(t *testing.T) {
	m, _ := pickerFixture(t)

	if m.loading {
		t.Fatal("picker should be done loading")
	}
	var ids []string
	for _, c := range m.conversations {
		ids = append(ids, c.ID)
	}
	if strings.Join(ids, ",") != "new,mid,old" {
		t.Errorf("order = %v, want new,mid,old", ids)
	}
}

func TestPicker_View(t *testing.T) {
	m, _ := pickerFixture(t)
	view := m.View()

	for _, want := range []string{"Select Conversation", "+ New Conversation", "Prayer", "10m ago", "1 messages", "Chat", "5h ago", "Fasting", "3d ago"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestPicker_Navigation(t *testing.T) {
	m, _ := pickerFixture(t)

	m, _ = pickerUpdate(m, tea.KeyMsg{Type: tea.KeyUp})
	if m.cursor != 3 {
		t.Errorf("cursor should wrap to last item, got %d", m.cursor)
	}
	m, _ = pickerUpdate(m, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 0 {
		t.Errorf("cursor should wrap to first item, got %d", m.cursor)
	}
	m, _ = pickerUpdate(m, tea.KeyMsg{Type: tea.KeyEnd})
	if m.cursor != 3 {
		t.Errorf("end: cursor = %d", m.cursor)
	}
	m, _ = pickerUpdate(m, tea.KeyMsg{Type: tea.KeyHome})
	if m.cursor != 0 {
		t.Errorf("home: cursor = %d", m.cursor)
	}
}

func TestPicker_SelectStandalone(t *testing.T) {
	m, _ := pickerFixture(t)

	m, _ = pickerUpdate(m, tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := pickerUpdate(m, tea.KeyMsg{Type: tea.KeyEnter})
	if _, ok := findMsg[tea.QuitMsg](cmd); !ok {
		t.Error("standalone picker should quit on selection")
	}

	res := m.Result()
	if !res.Confirmed || res.IsNew || res.Conversation == nil || res.Conversation.ID != "new" {
		t.Errorf("result = %+v", res)
	}
}

func TestPicker_SelectNew(t *testing.T) {
	m, _ := pickerFixture(t)
	m, _ = pickerUpdate(m, tea.KeyMsg{Type: tea.KeyEnter})

	res := m.Result()
	if !res.Confirmed || !res.IsNew || res.Conversation != nil {
		t.Errorf("result = %+v", res)
	}
}

func TestPicker_Filter(t *testing.T) {
	m, _ := pickerFixture(t)

	// matches message content, not only titles
	m, _ = pickerUpdate(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("fajr")})
	if got := m.filtered(); len(got) != 1 || got[0].ID != "new" {
		t.Errorf("filtered = %+v", got)
	}

	m, _ = pickerUpdate(m, tea.KeyMsg{Type: tea.KeyBackspace})
	if m.filter != "faj" {
		t.Errorf("filter = %q", m.filter)
	}

	m.filter = ""
	m, _ = pickerUpdate(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("chat")})
	if got := m.filtered(); len(got) != 1 || got[0].ID != "mid" {
		t.Errorf("untitled conversation should match its display title, got %+v", got)
	}

	m.filter = ""
	m, _ = pickerUpdate(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("zzz")})
	if !strings.Contains(m.View(), "No conversations match filter") {
		t.Error("expected empty filter hint")
	}
}

func TestPicker_Cancel(t *testing.T) {
	m, _ := pickerFixture(t)
	m, cmd := pickerUpdate(m, tea.KeyMsg{Type: tea.KeyEsc})
	if _, ok := findMsg[tea.QuitMsg](cmd); !ok {
		t.Error("esc should quit the standalone picker")
	}
	if m.Result().Confirmed {
		t.Error("cancel should not confirm")
	}
}

func TestPicker_LoadError(t *testing.T) {
	m := NewPickerModel(&api.MockClient{ListErr: errors.New("offline")})
	m, _ = pickerUpdate(m, tea.WindowSizeMsg{Width: 80, Height: 30})

	loaded, _ := findMsg[conversationsLoadedMsg](m.Init())
	m, _ = pickerUpdate(m, loaded)

	if !strings.Contains(m.View(), "offline") {
		t.Error("load error should be shown")
	}
}

func TestPicker_IgnoresKeysWhileLoading(t *testing.T) {
	m := NewPickerModel(&api.MockClient{})
	m, cmd := pickerUpdate(m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || m.Result().Confirmed {
		t.Error("keys should be ignored while loading")
	}
}

func TestFormatAge(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, ""},
		{now.Add(-30 * time.Second), "just now"},
		{now.Add(-15 * time.Minute), "15m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-50 * time.Hour), "2d ago"},
		{now.Add(-10 * 24 * time.Hour), "Feb 28"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.t, now); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("a rather long title", 10); got != "a rathe..." {
		t.Errorf("truncate = %q", got)
	}
}
