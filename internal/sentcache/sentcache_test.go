package sentcache

import (
	"context"
	"testing"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/mail"
)

type fakeMailClient struct {
	mail.Client
	items []mail.SentItem
}

func (f *fakeMailClient) GetSentItems(ctx context.Context, since time.Time) ([]mail.SentItem, error) {
	return f.items, nil
}

func TestRefreshPopulatesCache(t *testing.T) {
	now := time.Now()
	fake := &fakeMailClient{items: []mail.SentItem{
		{ConversationID: "c1", SentAt: now.Add(-time.Hour)},
		{ConversationID: "c1", SentAt: now},
		{ConversationID: "c2", SentAt: now.Add(-30 * time.Minute)},
	}}
	c := New(fake, 24*time.Hour)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if !c.HasReplied("c1") {
		t.Error("expected c1 to have a reply")
	}
	if c.HasReplied("c3") {
		t.Error("expected c3 to have no reply")
	}
	last, ok := c.GetLastReplyTime("c1")
	if !ok || !last.Equal(now) {
		t.Errorf("expected most recent sent time for c1 to be %v, got %v", now, last)
	}
}

func TestIsStaleBeforeFirstRefresh(t *testing.T) {
	c := New(&fakeMailClient{}, time.Hour)
	if !c.IsStale(time.Minute) {
		t.Error("expected cache to be stale before first refresh")
	}
}

func TestRefreshIfStaleSkipsWhenFresh(t *testing.T) {
	c := New(&fakeMailClient{}, time.Hour)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	refreshed, err := c.RefreshIfStale(context.Background())
	if err != nil {
		t.Fatalf("RefreshIfStale: %v", err)
	}
	if refreshed {
		t.Error("expected no refresh immediately after a fresh refresh")
	}
}
