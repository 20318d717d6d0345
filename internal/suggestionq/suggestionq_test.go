package suggestionq

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/config"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/mail"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/store"
)

type fakeMailClient struct {
	mail.Client
	folderIDs   map[string]string
	moveResults []mail.MoveResult
	batchErr    error
	batchCalled int
}

func (f *fakeMailClient) GetFolderID(ctx context.Context, path string) (string, error) {
	return f.folderIDs[path], nil
}

func (f *fakeMailClient) BatchMove(ctx context.Context, moves []mail.MoveRequest) ([]mail.MoveResult, error) {
	f.batchCalled++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	return f.moveResults, nil
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

func seedSuggestion(t *testing.T, s *store.Store, emailID, priority string, confidence float64, createdAt time.Time) int64 {
	t.Helper()
	ctx := context.Background()
	if err := s.SaveEmail(ctx, &store.Email{ID: emailID, ConversationID: "c", SenderEmail: "a@example.com", ReceivedAt: createdAt}); err != nil {
		t.Fatalf("SaveEmail: %v", err)
	}
	id, err := s.CreateSuggestion(ctx, &store.Suggestion{
		EmailID: emailID, SuggestedFolder: "Projects/Atlas", SuggestedPriority: priority,
		SuggestedActionType: "FYI", Confidence: confidence, CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("CreateSuggestion: %v", err)
	}
	return id
}

func suggestionQueueCfg() *config.SuggestionQueueConfig {
	return &config.SuggestionQueueConfig{AutoApproveConfidence: 0.90, AutoApproveDelayHours: 1, ExpireAfterDays: 14}
}

func TestAutoApplyApprovesSuccessfulMoves(t *testing.T) {
	s := newTestStore(t)
	old := time.Now().Add(-2 * time.Hour)
	seedSuggestion(t, s, "e1", "P2 - Important", 0.95, old)

	mc := &fakeMailClient{
		folderIDs:   map[string]string{"Projects/Atlas": "folder-1"},
		moveResults: []mail.MoveResult{{ID: "e1", Success: true}},
	}
	q := New(s, mc, nil)
	result, err := q.AutoApply(context.Background(), suggestionQueueCfg())
	if err != nil {
		t.Fatalf("AutoApply: %v", err)
	}
	if result.Approved != 1 || result.Failed != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestAutoApplyNeverApprovesP1(t *testing.T) {
	s := newTestStore(t)
	old := time.Now().Add(-2 * time.Hour)
	seedSuggestion(t, s, "e1", "P1 - Urgent Important", 0.99, old)

	mc := &fakeMailClient{folderIDs: map[string]string{"Projects/Atlas": "folder-1"}}
	q := New(s, mc, nil)
	result, err := q.AutoApply(context.Background(), suggestionQueueCfg())
	if err != nil {
		t.Fatalf("AutoApply: %v", err)
	}
	if result.Approved != 0 || mc.batchCalled != 0 {
		t.Errorf("expected P1 suggestion to never be auto-approved, got %+v (batchCalled=%d)", result, mc.batchCalled)
	}
}

func TestAutoApplyBatchFailureLeavesAllPending(t *testing.T) {
	s := newTestStore(t)
	old := time.Now().Add(-2 * time.Hour)
	seedSuggestion(t, s, "e1", "P2 - Important", 0.95, old)
	seedSuggestion(t, s, "e2", "P2 - Important", 0.95, old)

	mc := &fakeMailClient{
		folderIDs: map[string]string{"Projects/Atlas": "folder-1"},
		batchErr:  context.DeadlineExceeded,
	}
	q := New(s, mc, nil)
	result, err := q.AutoApply(context.Background(), suggestionQueueCfg())
	if err != nil {
		t.Fatalf("AutoApply: %v", err)
	}
	if result.Failed != 2 || result.Approved != 0 {
		t.Errorf("expected both suggestions to remain pending on batch failure, got %+v", result)
	}

	pending, err := s.GetPendingSuggestionForEmail(context.Background(), "e1")
	if err != nil || pending == nil {
		t.Fatalf("expected e1 suggestion to remain pending, got %v err=%v", pending, err)
	}
}

func TestExpireBulkTransitionsOldPending(t *testing.T) {
	s := newTestStore(t)
	old := time.Now().Add(-20 * 24 * time.Hour)
	seedSuggestion(t, s, "e1", "P3 - Standard", 0.2, old)

	q := New(s, &fakeMailClient{}, nil)
	n, err := q.Expire(context.Background(), suggestionQueueCfg())
	if err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 suggestion expired, got %d", n)
	}
}
