package api_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/nurlabs/nurchat/internal/api"
	apierrors "github.com/nurlabs/nurchat/internal/errors"
	"github.com/nurlabs/nurchat/internal/models"
)

func TestMockClient_BehavesLikeBackend(t *testing.T) {
	mock := &api.MockClient{
		StreamBody:     api.Frames(`{"type":"token","content":"hi"}`, `{"type":"done"}`),
		AssistantReply: "hi",
		ReplyTitle:     "Greeting",
	}

	// Verify interface compliance
	var client api.ClientInterface = mock
	ctx := context.Background()

	conv, err := client.CreateConversation(ctx, "")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if conv.Title != "New Chat" {
		t.Errorf("Title = %q", conv.Title)
	}

	if _, err := client.AppendMessage(ctx, conv.ID, models.RoleUser, "hello"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	rc, err := client.OpenStream(ctx, conv.ID, "hello")
	if err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != mock.StreamBody {
		t.Errorf("body = %q", body)
	}

	got, err := client.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if len(got.Messages) != 2 || got.Messages[1].Role != models.RoleAssistant || got.Title != "Greeting" {
		t.Errorf("unexpected conversation: %+v", got)
	}

	if mock.Calls("OpenStream") != 1 || mock.LastQuestion != "hello" {
		t.Errorf("OpenStream calls = %d, question = %q", mock.Calls("OpenStream"), mock.LastQuestion)
	}

	if err := client.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	if _, err := client.GetConversation(ctx, conv.ID); !apierrors.IsNotFound(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}

func TestMockClient_Errors(t *testing.T) {
	boom := errors.New("boom")
	mock := &api.MockClient{AppendErr: boom, OpenErr: apierrors.ErrNoResponse}
	ctx := context.Background()

	if _, err := mock.AppendMessage(ctx, "x", models.RoleUser, "hi"); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if _, err := mock.OpenStream(ctx, "x", "hi"); !errors.Is(err, apierrors.ErrNoResponse) {
		t.Errorf("expected ErrNoResponse, got %v", err)
	}
	if _, err := mock.FindVerse(ctx, "1:1"); !apierrors.IsNotFound(err) {
		t.Errorf("expected not found verse, got %v", err)
	}
}

func TestBlockingBody(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	body := api.NewBlockingBody(ctx, "abc")

	buf := make([]byte, 8)
	n, err := body.Read(buf)
	if err != nil || string(buf[:n]) != "abc" {
		t.Fatalf("Read() = %q, %v", buf[:n], err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := body.Read(buf)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock")
	}

	_ = body.Close()
	_ = body.Close()
}
