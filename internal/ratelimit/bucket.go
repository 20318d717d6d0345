// Package ratelimit implements a token-bucket rate limiter shared by
// every outbound call to the mail provider and the LLM, with named,
// process-global buckets discovered by name (spec §4.3).
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/triageerr"
)

// hardWaitCeiling is the longest a caller will ever be made to wait; a
// request that would need longer fails immediately instead.
const hardWaitCeiling = 20 * time.Second

// Bucket is a token bucket: tokens refill continuously at rate per
// second, capped at capacity.
type Bucket struct {
	mu         sync.Mutex
	name       string
	rate       float64
	capacity   float64
	tokens     float64
	lastRefill time.Time
}

// NewBucket creates a bucket with capacity tokens available immediately.
func NewBucket(name string, rate, capacity float64) *Bucket {
	return &Bucket{
		name:       name,
		rate:       rate,
		capacity:   capacity,
		tokens:     capacity,
		lastRefill: time.Now(),
	}
}

func (b *Bucket) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = min(b.capacity, b.tokens+elapsed*b.rate)
	b.lastRefill = now
}

// waitFor returns the duration until count tokens are available, and
// an error if that wait would exceed the hard ceiling or count itself
// exceeds capacity. Must be called with b.mu held.
func (b *Bucket) waitFor(count float64) (time.Duration, error) {
	if count > b.capacity {
		return 0, &triageerr.RateLimitExceeded{Bucket: b.name, Wait: "n/a", Tokens: count, Capacity: b.capacity}
	}
	b.refillLocked()
	if b.tokens >= count {
		return 0, nil
	}
	needed := count - b.tokens
	wait := time.Duration(needed/b.rate*float64(time.Second))
	if wait > hardWaitCeiling {
		return 0, &triageerr.RateLimitExceeded{Bucket: b.name, Wait: wait.String(), Tokens: count, Capacity: b.capacity}
	}
	return wait, nil
}

// Consume is the cooperative path: it computes the wait under the
// lock, releases the lock while waiting (so other goroutines can still
// check the bucket), then re-validates and deducts. Honors ctx
// cancellation during the wait.
func (b *Bucket) Consume(ctx context.Context, count float64) error {
	b.mu.Lock()
	wait, err := b.waitFor(count)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	if wait == 0 {
		b.tokens -= count
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	if b.tokens < count {
		return &triageerr.RateLimitExceeded{Bucket: b.name, Wait: "post-wait deficit", Tokens: count, Capacity: b.capacity}
	}
	b.tokens -= count
	return nil
}

// ConsumeBlocking is the synchronous path for callers embedded in a
// plain worker goroutine with no context to honor: it sleeps the
// calling goroutine directly instead of selecting on a context.
func (b *Bucket) ConsumeBlocking(count float64) error {
	b.mu.Lock()
	wait, err := b.waitFor(count)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	if wait == 0 {
		b.tokens -= count
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	time.Sleep(wait)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	if b.tokens < count {
		return &triageerr.RateLimitExceeded{Bucket: b.name, Wait: "post-wait deficit", Tokens: count, Capacity: b.capacity}
	}
	b.tokens -= count
	return nil
}

// Registry is a process-global set of named buckets, discovered
// lazily. Named bucket constants below mirror spec §4.3.
const (
	BucketMSGraph   = "ms_graph"
	BucketClaudeAPI = "claude_api"
)

var (
	registryMu sync.Mutex
	registry   = map[string]*Bucket{}
)

// Get returns the named bucket, creating it with the given rate and
// capacity the first time it is requested. Subsequent calls ignore
// rate/capacity and return the existing bucket.
func Get(name string, rate, capacity float64) *Bucket {
	registryMu.Lock()
	defer registryMu.Unlock()
	if b, ok := registry[name]; ok {
		return b
	}
	b := NewBucket(name, rate, capacity)
	registry[name] = b
	return b
}

// MustGet returns an already-registered bucket or panics; for
// collaborators that run after the bucket was registered through Get.
func MustGet(name string) *Bucket {
	registryMu.Lock()
	defer registryMu.Unlock()
	b, ok := registry[name]
	if !ok {
		panic(fmt.Sprintf("ratelimit: bucket %q requested before registration", name))
	}
	return b
}
