package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "triage-store-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := Open(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to open store: %v", err)
	}

	cleanup := func() {
		s.Close()
		os.RemoveAll(tmpDir)
	}
	return s, cleanup
}

func TestOpenCreatesSchema(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	tables := []string{"emails", "suggestions", "waiting_for", "agent_state", "sender_profiles", "llm_request_log", "action_log", "task_sync"}
	for _, table := range tables {
		var name string
		err := s.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("expected table %s to exist: %v", table, err)
		}
	}
}

func TestFilePermissionsRestricted(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "triage-store-perm-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	info, err := os.Stat(dbPath)
	if err != nil {
		t.Fatalf("stat db file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}
}

func TestSaveAndGetEmail(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	e := &Email{
		ID:                   "msg-1",
		ConversationID:       "conv-1",
		Subject:              "Hello",
		SenderEmail:          "sender@example.com",
		ReceivedAt:           time.Now().UTC(),
		Importance:           "normal",
		FlagStatus:           "notFlagged",
		ClassificationStatus: ClassificationPending,
	}
	if err := s.SaveEmail(ctx, e); err != nil {
		t.Fatalf("SaveEmail: %v", err)
	}

	got, err := s.GetEmail(ctx, "msg-1")
	if err != nil {
		t.Fatalf("GetEmail: %v", err)
	}
	if got == nil {
		t.Fatal("expected email, got nil")
	}
	if got.Subject != "Hello" {
		t.Errorf("expected subject Hello, got %s", got.Subject)
	}

	e.ClassificationStatus = ClassificationClassified
	if err := s.SaveEmail(ctx, e); err != nil {
		t.Fatalf("SaveEmail (update): %v", err)
	}
	got, err = s.GetEmail(ctx, "msg-1")
	if err != nil {
		t.Fatalf("GetEmail: %v", err)
	}
	if got.ClassificationStatus != ClassificationClassified {
		t.Errorf("expected classified, got %s", got.ClassificationStatus)
	}
	if got.ProcessedAt == nil {
		t.Error("expected processed_at to be set on classified transition")
	}
}

// TestSuggestionApprovalIsIdempotent is S8's concrete analogue in §8:
// once status != pending, a second approval attempt must not transition.
func TestSuggestionApprovalIsIdempotent(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	seedEmail(t, s, "e1")
	id, err := s.CreateSuggestion(ctx, &Suggestion{
		EmailID:             "e1",
		SuggestedFolder:     "Projects/X",
		SuggestedPriority:   "P2 - Important",
		SuggestedActionType: "Needs Reply",
		Confidence:          0.9,
	})
	if err != nil {
		t.Fatalf("CreateSuggestion: %v", err)
	}

	folder := "Projects/X"
	changed, err := s.ApproveSuggestion(ctx, id, SuggestionApproved, &folder, nil, nil)
	if err != nil {
		t.Fatalf("ApproveSuggestion: %v", err)
	}
	if !changed {
		t.Fatal("expected first approval to transition")
	}

	changed, err = s.ApproveSuggestion(ctx, id, SuggestionApproved, &folder, nil, nil)
	if err != nil {
		t.Fatalf("ApproveSuggestion (second): %v", err)
	}
	if changed {
		t.Error("expected second approval to be a no-op")
	}
}

// TestP1NeverAutoApprovable is S2: a P1 suggestion never appears in the
// auto-approvable set regardless of confidence or age.
func TestP1NeverAutoApprovable(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	seedEmail(t, s, "e1")
	_, err := s.CreateSuggestion(ctx, &Suggestion{
		EmailID:             "e1",
		SuggestedFolder:     "Inbox",
		SuggestedPriority:   "P1 - Urgent Important",
		SuggestedActionType: "Needs Reply",
		Confidence:          0.99,
		CreatedAt:           time.Now().UTC().Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateSuggestion: %v", err)
	}

	candidates, err := s.GetAutoApprovableSuggestions(ctx, AutoApprovableFilter{
		MinConfidence:    0.90,
		MinAgeHours:      2,
		ExcludedPriority: "P1 - Urgent Important",
	})
	if err != nil {
		t.Fatalf("GetAutoApprovableSuggestions: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("expected zero auto-approvable candidates, got %d", len(candidates))
	}
}

// TestResolveWaitingForIsIdempotent is S3/S4's storage-layer invariant.
func TestResolveWaitingForIsIdempotent(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	seedEmail(t, s, "e1")
	id, err := s.CreateWaitingFor(ctx, &WaitingFor{
		EmailID:        "e1",
		ConversationID: "c1",
		WaitingSince:   time.Now().UTC().Add(-24 * time.Hour),
		ExpectedFrom:   "them@example.com",
		NudgeAfterHours: 48,
	})
	if err != nil {
		t.Fatalf("CreateWaitingFor: %v", err)
	}

	changed, err := s.ResolveWaitingFor(ctx, id, WaitingForReceived)
	if err != nil {
		t.Fatalf("ResolveWaitingFor: %v", err)
	}
	if !changed {
		t.Fatal("expected first resolve to transition")
	}

	changed, err = s.ResolveWaitingFor(ctx, id, WaitingForReceived)
	if err != nil {
		t.Fatalf("ResolveWaitingFor (second): %v", err)
	}
	if changed {
		t.Error("expected second resolve to be a no-op")
	}
}

// TestUpdateEmailIDCascades is S6.
func TestUpdateEmailIDCascades(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	seedEmail(t, s, "old-id")
	sgID, err := s.CreateSuggestion(ctx, &Suggestion{EmailID: "old-id", SuggestedFolder: "Inbox", SuggestedPriority: "P3 - Low", SuggestedActionType: "FYI", Confidence: 0.5})
	if err != nil {
		t.Fatalf("CreateSuggestion: %v", err)
	}
	tsID, err := s.CreateTaskSync(ctx, &TaskSync{EmailID: "old-id", ExternalTaskID: "task-1"})
	if err != nil {
		t.Fatalf("CreateTaskSync: %v", err)
	}

	if err := s.UpdateEmailID(ctx, "old-id", "new-id"); err != nil {
		t.Fatalf("UpdateEmailID: %v", err)
	}

	if got, err := s.GetEmail(ctx, "old-id"); err != nil || got != nil {
		t.Errorf("expected old-id to be gone, got %+v err=%v", got, err)
	}
	got, err := s.GetEmail(ctx, "new-id")
	if err != nil || got == nil {
		t.Fatalf("expected new-id to exist, err=%v", err)
	}

	var emailID string
	if err := s.QueryRow(`SELECT email_id FROM suggestions WHERE id = ?`, sgID).Scan(&emailID); err != nil {
		t.Fatalf("scan suggestion: %v", err)
	}
	if emailID != "new-id" {
		t.Errorf("expected suggestion email_id=new-id, got %s", emailID)
	}

	if err := s.QueryRow(`SELECT email_id FROM task_sync WHERE id = ?`, tsID).Scan(&emailID); err != nil {
		t.Fatalf("scan task_sync: %v", err)
	}
	if emailID != "new-id" {
		t.Errorf("expected task_sync email_id=new-id, got %s", emailID)
	}
}

func seedEmail(t *testing.T, s *Store, id string) {
	t.Helper()
	err := s.SaveEmail(context.Background(), &Email{
		ID:                   id,
		ConversationID:       "c1",
		SenderEmail:          "sender@example.com",
		ReceivedAt:           time.Now().UTC(),
		Importance:           "normal",
		FlagStatus:           "notFlagged",
		ClassificationStatus: ClassificationPending,
	})
	if err != nil {
		t.Fatalf("seedEmail: %v", err)
	}
}
