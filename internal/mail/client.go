// Package mail defines the provider-agnostic mail store capability the
// triage engine depends on. The concrete wire protocol of any given
// provider is deliberately kept out of this package; internal/mail/gmail
// supplies one concrete adapter.
package mail

import (
	"context"
	"strings"
	"time"
)

// Address represents an email address with optional display name.
type Address struct {
	Name  string
	Email string
}

// String returns the formatted address, e.g. "Jane Doe <jane@example.com>".
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return a.Name + " <" + a.Email + ">"
}

// Domain extracts the lowercase domain from the address.
func (a Address) Domain() string {
	parts := strings.Split(a.Email, "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(parts[1])
}

// ParseAddress parses "Name <email@example.com>" or a bare address.
func ParseAddress(s string) Address {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "<"); start != -1 {
		if end := strings.Index(s, ">"); end > start {
			return Address{
				Name:  strings.TrimSpace(s[:start]),
				Email: strings.TrimSpace(s[start+1 : end]),
			}
		}
	}
	return Address{Email: s}
}

// Message is a provider-agnostic inbound message as delivered by get_delta.
type Message struct {
	ID               string
	ConversationID   string
	ConversationIndex []byte // opaque; decoded by internal/threadctx
	ThreadID         string
	Subject          string
	From             Address
	To               []Address
	ReceivedAt       time.Time
	Snippet          string
	Body             string
	CurrentFolder    string
	Importance       string // low | normal | high
	IsRead           bool
	FlagStatus       string // notFlagged | flagged | complete
	WebLink          string
}

// MoveRequest is one element of a batch_move call.
type MoveRequest struct {
	MessageID string
	FolderID  string
}

// MoveResult reports the outcome of one MoveRequest.
type MoveResult struct {
	ID      string
	Success bool
	Status  string
	NewID   string // set when the provider mints a new id on move
}

// SentItem is a single entry from get_sent_items, used to populate
// internal/sentcache.
type SentItem struct {
	ConversationID string
	SentAt         time.Time
}

// Category is a provider-side taxonomy entry (folder/label/category).
type Category struct {
	Name  string
	Color string
}

// ErrNotFound is returned by GetMessageImmutableID when the message no
// longer exists on the provider (HTTP 404 equivalent).
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "mail: message not found" }

// Client is the abstract external mail store capability (spec.md §6).
// Its wire transport is out of scope; only this contract is depended on
// by the core triage subsystems.
type Client interface {
	// GetDelta returns new/changed messages since the given cursor,
	// looking back at most lookback if since is empty, plus the next
	// cursor to persist.
	GetDelta(ctx context.Context, since string, lookback time.Duration) (messages []Message, nextToken string, err error)

	// GetFolderID resolves a slash-separated folder path to a provider
	// folder id, creating intermediate folders if necessary.
	GetFolderID(ctx context.Context, path string) (string, error)

	// BatchMove moves a batch of messages to target folders.
	BatchMove(ctx context.Context, moves []MoveRequest) ([]MoveResult, error)

	// GetSentItems returns sent messages since the given time.
	GetSentItems(ctx context.Context, since time.Time) ([]SentItem, error)

	// GetMessageImmutableID returns the provider's stable id for a
	// message that may have been assigned only a mutable id, or
	// ErrNotFound if the message no longer exists.
	GetMessageImmutableID(ctx context.Context, mutableID string) (string, error)

	// ListCategories and CreateCategory support optional taxonomy
	// bootstrap (the `bootstrap` CLI command).
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, name, color string) error
}
