package triage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/config"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/mail"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/sentcache"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/store"
)

type fakeMailClient struct {
	mail.Client
	sentItems []mail.SentItem
}

func (f *fakeMailClient) GetSentItems(ctx context.Context, since time.Time) ([]mail.SentItem, error) {
	return f.sentItems, nil
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

func agingCfg() *config.AgingConfig {
	return &config.AgingConfig{NeedsReplyWarningHours: 24, NeedsReplyCriticalHours: 72, WaitingForNudgeHours: 48, WaitingForEscalateHours: 120}
}

func TestCheckAllResolvesOnReply(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	waitingSince := time.Now().Add(-time.Hour)
	if err := s.SaveEmail(ctx, &store.Email{ID: "e1", ConversationID: "c1", ReceivedAt: waitingSince}); err != nil {
		t.Fatalf("SaveEmail: %v", err)
	}
	id, err := s.CreateWaitingFor(ctx, &store.WaitingFor{EmailID: "e1", ConversationID: "c1", WaitingSince: waitingSince, ExpectedFrom: "a@example.com"})
	if err != nil {
		t.Fatalf("CreateWaitingFor: %v", err)
	}

	mc := &fakeMailClient{sentItems: []mail.SentItem{{ConversationID: "c1", SentAt: time.Now()}}}
	cache := sentcache.New(mc, 24*time.Hour)
	tracker := NewWaitingForTracker(s, cache)

	counts, err := tracker.CheckAll(ctx, agingCfg())
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if counts.Resolved != 1 {
		t.Errorf("expected 1 resolved, got %+v", counts)
	}
	_ = id
}

func TestCheckAllEscalatesOverdue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	waitingSince := time.Now().Add(-200 * time.Hour)
	if err := s.SaveEmail(ctx, &store.Email{ID: "e2", ConversationID: "c2", ReceivedAt: waitingSince}); err != nil {
		t.Fatalf("SaveEmail: %v", err)
	}
	if _, err := s.CreateWaitingFor(ctx, &store.WaitingFor{EmailID: "e2", ConversationID: "c2", WaitingSince: waitingSince, ExpectedFrom: "b@example.com"}); err != nil {
		t.Fatalf("CreateWaitingFor: %v", err)
	}

	mc := &fakeMailClient{}
	cache := sentcache.New(mc, 24*time.Hour)
	tracker := NewWaitingForTracker(s, cache)

	counts, err := tracker.CheckAll(ctx, agingCfg())
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if counts.Escalated != 1 {
		t.Errorf("expected 1 escalated, got %+v", counts)
	}
}

func TestCheckAllLeavesRecentUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.SaveEmail(ctx, &store.Email{ID: "e3", ConversationID: "c3", ReceivedAt: time.Now()}); err != nil {
		t.Fatalf("SaveEmail: %v", err)
	}
	if _, err := s.CreateWaitingFor(ctx, &store.WaitingFor{EmailID: "e3", ConversationID: "c3", WaitingSince: time.Now(), ExpectedFrom: "c@example.com"}); err != nil {
		t.Fatalf("CreateWaitingFor: %v", err)
	}

	mc := &fakeMailClient{}
	cache := sentcache.New(mc, 24*time.Hour)
	tracker := NewWaitingForTracker(s, cache)

	counts, err := tracker.CheckAll(ctx, agingCfg())
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if counts.Unchanged != 1 {
		t.Errorf("expected 1 unchanged, got %+v", counts)
	}
}
