package threadctx

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/store"
)

func TestThreadDepth(t *testing.T) {
	tests := []struct {
		name  string
		index []byte
		want  int
	}{
		{"empty", nil, 0},
		{"root only", make([]byte, 22), 0},
		{"one reply", make([]byte, 27), 1},
		{"three replies", make([]byte, 37), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ThreadDepth(tt.index); got != tt.want {
				t.Errorf("ThreadDepth() = %d, want %d", got, tt.want)
			}
		})
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInheritedFolderFromPriorApprovedSuggestion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e1 := &store.Email{ID: "e1", ConversationID: "c1", SenderEmail: "a@example.com", ReceivedAt: time.Now().Add(-time.Hour), ClassificationStatus: store.ClassificationClassified}
	e2 := &store.Email{ID: "e2", ConversationID: "c1", SenderEmail: "a@example.com", ReceivedAt: time.Now(), ClassificationStatus: store.ClassificationPending}
	if err := s.SaveEmail(ctx, e1); err != nil {
		t.Fatalf("SaveEmail e1: %v", err)
	}
	if err := s.SaveEmail(ctx, e2); err != nil {
		t.Fatalf("SaveEmail e2: %v", err)
	}

	sgID, err := s.CreateSuggestion(ctx, &store.Suggestion{
		EmailID: "e1", SuggestedFolder: "Projects/Atlas", SuggestedPriority: "P2 - Important", SuggestedActionType: "FYI", Confidence: 0.8,
	})
	if err != nil {
		t.Fatalf("CreateSuggestion: %v", err)
	}
	folder := "Projects/Atlas"
	if _, err := s.ApproveSuggestion(ctx, sgID, store.SuggestionApproved, &folder, nil, nil); err != nil {
		t.Fatalf("ApproveSuggestion: %v", err)
	}

	b := NewBuilder(s, 500)
	built, err := b.Build(ctx, e2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.InheritedFolder != "Projects/Atlas" {
		t.Errorf("expected inherited folder Projects/Atlas, got %q", built.InheritedFolder)
	}
}

func TestSenderHistoryAutoRuleCandidate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		e := &store.Email{
			ID: "msg-" + string(rune('a'+i)), ConversationID: "c1", SenderEmail: "newsletter@example.com",
			ReceivedAt: time.Now(), ClassificationStatus: store.ClassificationClassified, CurrentFolder: "Newsletters",
		}
		if err := s.SaveEmail(ctx, e); err != nil {
			t.Fatalf("SaveEmail: %v", err)
		}
	}

	b := NewBuilder(s, 500)
	e := &store.Email{ID: "new-msg", ConversationID: "c2", SenderEmail: "newsletter@example.com", ReceivedAt: time.Now()}
	built, err := b.Build(ctx, e)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !built.SenderHistory.AutoRuleCandidate {
		t.Error("expected sender to be flagged as an auto-rule candidate")
	}
	if built.SenderHistory.DominantFolder != "Newsletters" {
		t.Errorf("expected dominant folder Newsletters, got %q", built.SenderHistory.DominantFolder)
	}
}

func TestSenderHistoryBelowThresholdIsNotCandidate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e := &store.Email{
			ID: "msg-" + string(rune('a'+i)), ConversationID: "c1", SenderEmail: "person@example.com",
			ReceivedAt: time.Now(), ClassificationStatus: store.ClassificationClassified, CurrentFolder: "Inbox",
		}
		if err := s.SaveEmail(ctx, e); err != nil {
			t.Fatalf("SaveEmail: %v", err)
		}
	}

	b := NewBuilder(s, 500)
	e := &store.Email{ID: "new-msg", ConversationID: "c2", SenderEmail: "person@example.com", ReceivedAt: time.Now()}
	built, err := b.Build(ctx, e)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.SenderHistory.AutoRuleCandidate {
		t.Error("expected sender below min-email threshold to not be a candidate")
	}
}

func TestSenderHistoryExcludesCommonMailDomain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		e := &store.Email{
			ID: "msg-" + string(rune('a'+i)), ConversationID: "c1", SenderEmail: "friend@gmail.com",
			ReceivedAt: time.Now(), ClassificationStatus: store.ClassificationClassified, CurrentFolder: "Inbox",
		}
		if err := s.SaveEmail(ctx, e); err != nil {
			t.Fatalf("SaveEmail: %v", err)
		}
	}

	b := NewBuilder(s, 500)
	e := &store.Email{ID: "new-msg", ConversationID: "c2", SenderEmail: "friend@gmail.com", ReceivedAt: time.Now()}
	built, err := b.Build(ctx, e)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.SenderHistory.AutoRuleCandidate {
		t.Error("expected a gmail.com sender to never be an auto-rule candidate")
	}
}

func TestSenderHistoryExcludesATSDomain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		e := &store.Email{
			ID: "msg-" + string(rune('a'+i)), ConversationID: "c1", SenderEmail: "noreply@greenhouse.io",
			ReceivedAt: time.Now(), ClassificationStatus: store.ClassificationClassified, CurrentFolder: "Applications",
		}
		if err := s.SaveEmail(ctx, e); err != nil {
			t.Fatalf("SaveEmail: %v", err)
		}
	}

	b := NewBuilder(s, 500)
	e := &store.Email{ID: "new-msg", ConversationID: "c2", SenderEmail: "noreply@greenhouse.io", ReceivedAt: time.Now()}
	built, err := b.Build(ctx, e)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.SenderHistory.AutoRuleCandidate {
		t.Error("expected an ATS domain sender to never be an auto-rule candidate")
	}
}
