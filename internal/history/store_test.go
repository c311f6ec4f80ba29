package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nurlabs/nurchat/internal/api"
	apierrors "github.com/nurlabs/nurchat/internal/errors"
	"github.com/nurlabs/nurchat/internal/models"
)

var base = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func ts(offset time.Duration) models.Timestamp {
	return models.Timestamp{Time: base.Add(offset)}
}

// fixture returns three conversations in backend order (oldest first). By
// activity the order is beta, gamma, alpha.
func fixture() *api.MockClient {
	return &api.MockClient{Conversations: []models.Conversation{
		{
			ID: "c-alpha", Title: "Alpha prayers", CreatedAt: ts(-72 * time.Hour),
			Messages: []models.Message{
				{Role: models.RoleUser, Content: "When is Fajr?", Timestamp: ts(-72 * time.Hour)},
			},
		},
		{
			ID: "c-beta", Title: "Beta patience", CreatedAt: ts(-48 * time.Hour),
			Messages: []models.Message{
				{Role: models.RoleUser, Content: "Tell me about patience", Timestamp: ts(-48 * time.Hour)},
				{
					Role:      models.RoleAssistant,
					Content:   "Patience is praised often (Al-Baqarah 2:153).",
					Timestamp: ts(-time.Hour),
					Footnotes: []models.Footnote{{Reference: "2:153", Arabic: "يَا أَيُّهَا", English: "O you who believe"}},
				},
			},
		},
		{ID: "c-gamma", Title: "Gamma charity", CreatedAt: ts(-24 * time.Hour)},
	}}
}

func TestStore_ListConversations_SortsByActivity(t *testing.T) {
	store := NewStore(fixture())

	convs, err := store.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}

	want := []string{"c-beta", "c-gamma", "c-alpha"}
	if len(convs) != len(want) {
		t.Fatalf("got %d conversations, want %d", len(convs), len(want))
	}
	for i, id := range want {
		if convs[i].ID != id {
			t.Errorf("convs[%d] = %s, want %s", i, convs[i].ID, id)
		}
	}
}

func TestStore_ListConversations_Error(t *testing.T) {
	mock := fixture()
	mock.ListErr = apierrors.ErrNetworkUnavailable
	store := NewStore(mock)

	if _, err := store.ListConversations(context.Background()); !errors.Is(err, apierrors.ErrNetworkUnavailable) {
		t.Errorf("expected network error, got %v", err)
	}
}

func TestStore_GetConversation_NotFound(t *testing.T) {
	store := NewStore(fixture())

	_, err := store.GetConversation(context.Background(), "nonexistent-id")
	if !apierrors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestStore_UpdateTitle(t *testing.T) {
	mock := fixture()
	store := NewStore(mock)
	ctx := context.Background()

	if err := store.UpdateTitle(ctx, "c-gamma", "  Giving  "); err != nil {
		t.Fatalf("UpdateTitle failed: %v", err)
	}
	conv, _ := store.GetConversation(ctx, "c-gamma")
	if conv.Title != "Giving" {
		t.Errorf("Title = %q, want Giving", conv.Title)
	}

	if err := store.UpdateTitle(ctx, "c-gamma", "   "); err == nil {
		t.Error("expected error for blank title")
	}
	if got := mock.Calls("RenameConversation"); got != 1 {
		t.Errorf("RenameConversation called %d times, want 1", got)
	}
}

func TestStore_DeleteConversation(t *testing.T) {
	store := NewStore(fixture())
	ctx := context.Background()

	if err := store.DeleteConversation(ctx, "c-alpha"); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	convs, _ := store.ListConversations(ctx)
	if len(convs) != 2 {
		t.Errorf("expected 2 conversations after delete, got %d", len(convs))
	}

	if err := store.DeleteConversation(ctx, "c-alpha"); err == nil {
		t.Error("expected error deleting a missing conversation")
	}
}

func TestLastActivity(t *testing.T) {
	tests := []struct {
		name string
		conv models.Conversation
		want time.Time
	}{
		{"empty", models.Conversation{}, time.Time{}},
		{"created only", models.Conversation{CreatedAt: ts(0)}, base},
		{
			"newest message wins",
			models.Conversation{CreatedAt: ts(0), Messages: []models.Message{
				{Timestamp: ts(2 * time.Hour)},
				{Timestamp: ts(time.Hour)},
			}},
			base.Add(2 * time.Hour),
		},
		{
			"untimed messages ignored",
			models.Conversation{CreatedAt: ts(0), Messages: []models.Message{{Content: "hi"}}},
			base,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LastActivity(tt.conv); !got.Equal(tt.want) {
				t.Errorf("LastActivity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSortByActivity_StableOnTies(t *testing.T) {
	convs := []models.Conversation{{ID: "a"}, {ID: "b"}, {ID: "c", CreatedAt: ts(0)}}
	SortByActivity(convs)

	got := []string{convs[0].ID, convs[1].ID, convs[2].ID}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
