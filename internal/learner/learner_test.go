package learner

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/config"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/llm"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/store"
)

type fakeLLM struct {
	response llm.Response
	err      error
	calls    int
}

func (f *fakeLLM) MessagesCreate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &f.response, nil
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

func seedCorrection(t *testing.T, s *store.Store, emailID string) {
	t.Helper()
	ctx := context.Background()
	e := &store.Email{ID: emailID, ConversationID: "c", SenderEmail: "sender@example.com", Subject: "subj", ReceivedAt: time.Now()}
	if err := s.SaveEmail(ctx, e); err != nil {
		t.Fatalf("SaveEmail: %v", err)
	}
	id, err := s.CreateSuggestion(ctx, &store.Suggestion{EmailID: emailID, SuggestedFolder: "Inbox", SuggestedPriority: "P3 - Standard", SuggestedActionType: "FYI", Confidence: 0.5})
	if err != nil {
		t.Fatalf("CreateSuggestion: %v", err)
	}
	folder := "Projects/Atlas"
	if _, err := s.ApproveSuggestion(ctx, id, store.SuggestionPartial, &folder, nil, nil); err != nil {
		t.Fatalf("ApproveSuggestion: %v", err)
	}
}

func cfg(enabled bool, minCorrections int) *config.LearningConfig {
	return &config.LearningConfig{Enabled: enabled, LookbackDays: 30, MinCorrectionsToUpdate: minCorrections, MaxPreferencesWords: 100}
}

func TestRunSkipsWhenDisabled(t *testing.T) {
	s := newTestStore(t)
	l := New(s, &fakeLLM{}, "m")
	res, err := l.Run(context.Background(), cfg(false, 1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Ran {
		t.Error("expected Run to skip when disabled")
	}
}

func TestRunSkipsBelowMinCorrections(t *testing.T) {
	s := newTestStore(t)
	seedCorrection(t, s, "e1")
	l := New(s, &fakeLLM{}, "m")
	res, err := l.Run(context.Background(), cfg(true, 5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Ran {
		t.Error("expected skip below min corrections")
	}
}

func TestRunUpdatesPreferences(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		seedCorrection(t, s, "email-"+string(rune('a'+i)))
	}
	fake := &fakeLLM{response: llm.Response{Content: []llm.Block{
		{Type: "tool_use", Name: "update_preferences", Input: json.RawMessage(`{"preferences":"prefer Projects/Atlas for Atlas-related mail"}`)},
	}}}
	l := New(s, fake, "m")

	res, err := l.Run(context.Background(), cfg(true, 3))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Ran || !res.PreferencesUpdated {
		t.Fatalf("expected preferences to update, got %+v", res)
	}

	stored, found, err := s.GetState(context.Background(), store.StateKeyClassificationPreferences)
	if err != nil || !found {
		t.Fatalf("GetState: found=%v err=%v", found, err)
	}
	if stored != "prefer Projects/Atlas for Atlas-related mail" {
		t.Errorf("unexpected stored preferences: %q", stored)
	}
}

func TestRunRespectsCooldown(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		seedCorrection(t, s, "email-"+string(rune('a'+i)))
	}
	if err := s.SetState(context.Background(), store.StateKeyLastPreferenceUpdate, time.Now().UTC().Format(time.RFC3339)); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	fake := &fakeLLM{}
	l := New(s, fake, "m")

	res, err := l.Run(context.Background(), cfg(true, 1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Ran {
		t.Error("expected cooldown to prevent run")
	}
	if fake.calls != 0 {
		t.Error("expected no llm calls during cooldown")
	}
}

func TestRunPreservesPriorPreferencesOnLLMFailure(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetState(context.Background(), store.StateKeyClassificationPreferences, "old preferences"); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	for i := 0; i < 3; i++ {
		seedCorrection(t, s, "email-"+string(rune('a'+i)))
	}
	fake := &fakeLLM{err: context.DeadlineExceeded}
	l := New(s, fake, "m")

	res, err := l.Run(context.Background(), cfg(true, 3))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.PreferencesUpdated {
		t.Error("expected PreferencesUpdated=false on llm failure")
	}

	stored, _, err := s.GetState(context.Background(), store.StateKeyClassificationPreferences)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if stored != "old preferences" {
		t.Errorf("expected prior preferences preserved, got %q", stored)
	}
}
