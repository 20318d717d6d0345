package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMessagesCreateReturnsToolUse(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		resp := Response{
			Content: []Block{
				{Type: "tool_use", ID: "tool_1", Name: "classify_email", Input: json.RawMessage(`{"folder":"Projects/Atlas"}`)},
			},
			StopReason: "tool_use",
			Usage:      Usage{InputTokens: 100, OutputTokens: 20},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := New(server.URL, "test-key")
	req := Request{
		Model:  "claude-test",
		System: "classify this email",
		Messages: []Message{
			{Role: "user", Content: []Block{{Type: "text", Text: "hello"}}},
		},
		MaxTokens: 256,
	}

	resp, err := c.MessagesCreate(context.Background(), req)
	if err != nil {
		t.Fatalf("MessagesCreate: %v", err)
	}
	tu := FindToolUse(resp, "classify_email")
	if tu == nil {
		t.Fatal("expected a classify_email tool_use block")
	}
	if calls != 1 {
		t.Fatalf("expected 1 http call, got %d", calls)
	}
}

func TestMessagesCreateServesFromCache(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(Response{Content: []Block{{Type: "text", Text: "ok"}}})
	}))
	defer server.Close()

	c := New(server.URL, "test-key")
	req := Request{Model: "claude-test", System: "s", MaxTokens: 10}

	if _, err := c.MessagesCreate(context.Background(), req); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := c.MessagesCreate(context.Background(), req); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cache hit to avoid second http call, got %d calls", calls)
	}
}

func TestMessagesCreateCacheDisabledAlwaysHits(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(Response{Content: []Block{{Type: "text", Text: "ok"}}})
	}))
	defer server.Close()

	c := New(server.URL, "test-key")
	c.SetCacheEnabled(false)
	req := Request{Model: "claude-test", System: "s", MaxTokens: 10}

	c.MessagesCreate(context.Background(), req)
	c.MessagesCreate(context.Background(), req)
	if calls != 2 {
		t.Fatalf("expected cache disabled to issue 2 http calls, got %d", calls)
	}
}

func TestMessagesCreateNonOKStatusReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	c := New(server.URL, "test-key")
	_, err := c.MessagesCreate(context.Background(), Request{Model: "m", MaxTokens: 1})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	statusErr, ok := err.(*httpStatusError)
	if !ok {
		t.Fatalf("expected *httpStatusError, got %T", err)
	}
	if statusErr.StatusCode() != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", statusErr.StatusCode())
	}
}

func TestFindToolUseReturnsNilWhenAbsent(t *testing.T) {
	resp := &Response{Content: []Block{{Type: "text", Text: "no tool call here"}}}
	if FindToolUse(resp, "classify_email") != nil {
		t.Error("expected nil when no matching tool_use block exists")
	}
}
