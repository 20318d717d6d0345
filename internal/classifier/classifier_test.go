package classifier

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/config"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/llm"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/store"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/threadctx"
)

type fakeLLM struct {
	responses []llm.Response
	errs      []error
	calls     int
}

func (f *fakeLLM) MessagesCreate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return &f.responses[i], nil
}

func toolUseResponse(input string) llm.Response {
	return llm.Response{
		Content: []llm.Block{
			{Type: "tool_use", Name: "classify_email", Input: json.RawMessage(input)},
		},
		Usage: llm.Usage{InputTokens: 10, OutputTokens: 5},
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestClassifySucceedsOnFirstAttempt(t *testing.T) {
	s := newTestStore(t)
	fake := &fakeLLM{responses: []llm.Response{
		toolUseResponse(`{"folder":"Projects/Atlas","priority":"P2 - Important","action_type":"REPLY","confidence":0.9,"reasoning":"mentions Atlas deadline"}`),
	}}
	c := New(fake, s, "claude-test", 3)
	c.RefreshSystemPrompt(config.Default(), "")

	e := &store.Email{ID: "e1", Subject: "Atlas deadline", SenderEmail: "a@example.com", SenderName: "A", ReceivedAt: time.Now()}
	tc := &threadctx.Context{SenderHistory: threadctx.SenderHistory{}}

	result, err := c.Classify(context.Background(), "cycle-1", e, "body text", tc)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Folder != "Projects/Atlas" || result.Priority != "P2 - Important" {
		t.Errorf("unexpected result: %+v", result)
	}
	if fake.calls != 1 {
		t.Errorf("expected 1 llm call, got %d", fake.calls)
	}
}

func TestClassifyRetriesMalformedOutputThenSucceeds(t *testing.T) {
	s := newTestStore(t)
	fake := &fakeLLM{responses: []llm.Response{
		toolUseResponse(`{"folder":"","priority":"bogus","action_type":"REPLY","confidence":0.5,"reasoning":"x"}`),
		toolUseResponse(`{"folder":"Inbox","priority":"P3 - Standard","action_type":"FYI","confidence":0.7,"reasoning":"ok"}`),
	}}
	c := New(fake, s, "claude-test", 3)
	c.RefreshSystemPrompt(config.Default(), "")

	e := &store.Email{ID: "e2", Subject: "s", SenderEmail: "a@example.com", ReceivedAt: time.Now()}
	tc := &threadctx.Context{}

	result, err := c.Classify(context.Background(), "cycle-1", e, "body", tc)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Folder != "Inbox" {
		t.Errorf("expected eventual success, got %+v", result)
	}
	if fake.calls != 2 {
		t.Errorf("expected 2 llm calls, got %d", fake.calls)
	}
}

func TestClassifyTerminalFailureAfterMaxAttempts(t *testing.T) {
	s := newTestStore(t)
	bad := toolUseResponse(`{"folder":"","priority":"bad","action_type":"bad","confidence":2,"reasoning":""}`)
	fake := &fakeLLM{responses: []llm.Response{bad, bad, bad}}
	c := New(fake, s, "claude-test", 3)
	c.RefreshSystemPrompt(config.Default(), "")

	e := &store.Email{ID: "e3", Subject: "s", SenderEmail: "a@example.com", ReceivedAt: time.Now()}
	tc := &threadctx.Context{}

	_, err := c.Classify(context.Background(), "cycle-1", e, "body", tc)
	if err == nil {
		t.Fatal("expected terminal classification error")
	}
	if fake.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", fake.calls)
	}

	logs, qErr := s.CountLLMRequestLogs(context.Background())
	if qErr != nil {
		t.Fatalf("CountLLMRequestLogs: %v", qErr)
	}
	if logs != 3 {
		t.Errorf("expected 3 llm_request_log rows, got %d", logs)
	}
}
