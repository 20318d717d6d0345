// Package sentcache is a bounded in-memory index of the user's
// recently sent messages, keyed by conversation id, used by the
// waiting-for tracker to detect replies without a per-check mail-API
// round trip (spec §4.9).
package sentcache

import (
	"context"
	"sync"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/mail"
)

// RefreshStaleAfter is how old the cache may get before a caller
// should treat it as stale and force a refresh (spec §4.9).
const RefreshStaleAfter = 1 * time.Minute

// Cache maps conversation id to the most recent sent time observed in
// that conversation.
type Cache struct {
	mailClient mail.Client
	lookback   time.Duration

	mu          sync.RWMutex
	lastSentAt  map[string]time.Time
	refreshedAt time.Time
}

// New returns an empty Cache. Refresh must be called at least once
// before HasReplied/GetLastReplyTime return meaningful results.
func New(mailClient mail.Client, lookback time.Duration) *Cache {
	return &Cache{
		mailClient: mailClient,
		lookback:   lookback,
		lastSentAt: make(map[string]time.Time),
	}
}

// Refresh repopulates the cache from GetSentItems(since=now-lookback),
// replacing the prior contents wholesale.
func (c *Cache) Refresh(ctx context.Context) error {
	since := time.Now().UTC().Add(-c.lookback)
	items, err := c.mailClient.GetSentItems(ctx, since)
	if err != nil {
		return err
	}

	next := make(map[string]time.Time, len(items))
	for _, item := range items {
		if existing, ok := next[item.ConversationID]; !ok || item.SentAt.After(existing) {
			next[item.ConversationID] = item.SentAt
		}
	}

	c.mu.Lock()
	c.lastSentAt = next
	c.refreshedAt = time.Now()
	c.mu.Unlock()
	return nil
}

// RefreshIfStale refreshes only if the cache is older than
// RefreshStaleAfter, returning whether a refresh occurred.
func (c *Cache) RefreshIfStale(ctx context.Context) (bool, error) {
	if !c.IsStale(RefreshStaleAfter) {
		return false, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// IsStale reports whether the cache is older than maxAge. A cache that
// has never been refreshed is always stale.
func (c *Cache) IsStale(maxAge time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.refreshedAt.IsZero() {
		return true
	}
	return time.Since(c.refreshedAt) > maxAge
}

// HasReplied reports whether the user has sent a message in this
// conversation within the cached window.
func (c *Cache) HasReplied(conversationID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.lastSentAt[conversationID]
	return ok
}

// GetLastReplyTime returns the most recent sent time for a
// conversation, if any.
func (c *Cache) GetLastReplyTime(conversationID string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.lastSentAt[conversationID]
	return t, ok
}
