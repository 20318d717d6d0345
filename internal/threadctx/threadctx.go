// Package threadctx assembles the per-email context the classifier
// reasons over: thread depth, folder inheritance from prior messages in
// the same conversation, sender history, and recent thread messages
// (spec §4.6).
package threadctx

import (
	"context"
	"fmt"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/snippet"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/store"
)

// Defaults for sender-history and thread-context sizing (spec §4.6).
const (
	DefaultSenderHistoryLimit    = 50
	DefaultThreadContextMessages = 5
	AutoRuleCandidateMinEmails   = 10
	AutoRuleCandidateConcentration = 0.90
)

// ThreadDepth decodes the reply depth from a conversationIndex blob:
// a 22-byte root header, plus one 5-byte block per reply level.
func ThreadDepth(conversationIndex []byte) int {
	const headerLen = 22
	const blockLen = 5
	if len(conversationIndex) <= headerLen {
		return 0
	}
	return (len(conversationIndex) - headerLen) / blockLen
}

// Message is one thread message trimmed for prompt inclusion.
type Message struct {
	ID         string
	Subject    string
	SenderName string
	ReceivedAt time.Time
	Snippet    string
}

// SenderHistory summarizes a sender's recent classification outcomes.
type SenderHistory struct {
	FolderCounts         map[string]int
	TotalEmails          int
	AutoRuleCandidate    bool
	DominantFolder       string
	DominantConcentration float64
}

// Context is the assembled per-email context handed to the classifier.
type Context struct {
	ThreadDepth      int
	InheritedFolder  string
	RecentMessages   []Message
	SenderHistory    SenderHistory
}

// Builder assembles Context values from the store and mail client.
type Builder struct {
	store           *store.Store
	cleaner         *snippet.Cleaner
	senderHistoryN  int
	threadMessagesK int
}

// NewBuilder returns a Builder using the given stores, cleaning
// snippets to maxLength characters (spec's thread-context max length).
func NewBuilder(s *store.Store, maxSnippetLength int) *Builder {
	return &Builder{
		store:           s,
		cleaner:         snippet.New(maxSnippetLength),
		senderHistoryN:  DefaultSenderHistoryLimit,
		threadMessagesK: DefaultThreadContextMessages,
	}
}

// Build assembles the full Context for a newly received email.
func (b *Builder) Build(ctx context.Context, e *store.Email) (*Context, error) {
	c := &Context{ThreadDepth: ThreadDepth(e.ConversationIndex)}

	inherited, err := b.inheritedFolder(ctx, e)
	if err != nil {
		return nil, err
	}
	c.InheritedFolder = inherited

	messages, err := b.recentThreadMessages(ctx, e)
	if err != nil {
		return nil, err
	}
	c.RecentMessages = messages

	history, err := b.senderHistory(ctx, e.SenderEmail)
	if err != nil {
		return nil, err
	}
	c.SenderHistory = history

	return c, nil
}

// inheritedFolder finds the most recent prior message in the same
// conversation whose suggestion resolved to a non-null approved_folder,
// and returns that folder (spec §4.6 Inheritance).
func (b *Builder) inheritedFolder(ctx context.Context, e *store.Email) (string, error) {
	prior, err := b.store.ListEmailsForConversation(ctx, e.ConversationID)
	if err != nil {
		return "", err
	}
	var best string
	var bestTime time.Time
	for _, p := range prior {
		if p.ID == e.ID {
			continue
		}
		resolved, err := b.latestResolvedSuggestion(ctx, p.ID)
		if err != nil {
			return "", err
		}
		if resolved == nil || resolved.ApprovedFolder == nil {
			continue
		}
		if resolved.ResolvedAt == nil {
			continue
		}
		if resolved.ResolvedAt.After(bestTime) {
			bestTime = *resolved.ResolvedAt
			best = *resolved.ApprovedFolder
		}
	}
	return best, nil
}

func (b *Builder) latestResolvedSuggestion(ctx context.Context, emailID string) (*store.Suggestion, error) {
	suggestions, err := b.store.ListSuggestionsForEmail(ctx, emailID)
	if err != nil {
		return nil, err
	}
	var latest *store.Suggestion
	for i := range suggestions {
		s := &suggestions[i]
		if s.Status == store.SuggestionPending {
			continue
		}
		if s.ApprovedFolder == nil {
			continue
		}
		if latest == nil || (s.ResolvedAt != nil && latest.ResolvedAt != nil && s.ResolvedAt.After(*latest.ResolvedAt)) {
			latest = s
		}
	}
	return latest, nil
}

// recentThreadMessages returns up to threadMessagesK most recent prior
// messages in the conversation, snippet-truncated for prompt inclusion.
func (b *Builder) recentThreadMessages(ctx context.Context, e *store.Email) ([]Message, error) {
	all, err := b.store.ListEmailsForConversation(ctx, e.ConversationID)
	if err != nil {
		return nil, err
	}
	start := 0
	if len(all) > b.threadMessagesK {
		start = len(all) - b.threadMessagesK
	}
	var out []Message
	for _, m := range all[start:] {
		result := b.cleaner.Clean(m.Snippet, false)
		out = append(out, Message{
			ID:         m.ID,
			Subject:    m.Subject,
			SenderName: m.SenderName,
			ReceivedAt: m.ReceivedAt,
			Snippet:    result.Text,
		})
	}
	return out, nil
}

// senderHistory computes the folder distribution over a sender's most
// recent N emails and flags auto-rule-candidate concentration (spec
// §4.6 Sender history).
func (b *Builder) senderHistory(ctx context.Context, senderEmail string) (SenderHistory, error) {
	emails, err := b.store.ListEmailsBySender(ctx, senderEmail, b.senderHistoryN)
	if err != nil {
		return SenderHistory{}, err
	}

	counts := map[string]int{}
	total := 0
	for _, e := range emails {
		if e.CurrentFolder == "" {
			continue
		}
		counts[e.CurrentFolder]++
		total++
	}

	h := SenderHistory{FolderCounts: counts, TotalEmails: total}
	if total == 0 {
		return h, nil
	}

	var dominant string
	var dominantCount int
	for folder, count := range counts {
		if count > dominantCount {
			dominant = folder
			dominantCount = count
		}
	}
	h.DominantFolder = dominant
	h.DominantConcentration = float64(dominantCount) / float64(total)
	h.AutoRuleCandidate = total >= AutoRuleCandidateMinEmails &&
		h.DominantConcentration >= AutoRuleCandidateConcentration &&
		!domainExcludedFromAutoRule(senderEmail)
	return h, nil
}

// SenderStats exposes the same folder-distribution computation Build
// uses internally, for callers (internal/triage) that need to persist
// a SenderProfile row without re-deriving thread context (spec §3
// SenderProfile, §4.6 Sender history).
func (b *Builder) SenderStats(ctx context.Context, senderEmail string) (SenderHistory, error) {
	return b.senderHistory(ctx, senderEmail)
}

// Summary renders a short human-readable description for prompt
// inclusion, avoiding a dependency on any particular LLM SDK's message
// builder.
func (h SenderHistory) Summary() string {
	if h.TotalEmails == 0 {
		return "no prior history"
	}
	return fmt.Sprintf("%d prior emails, dominant folder %q (%.0f%%)", h.TotalEmails, h.DominantFolder, h.DominantConcentration*100)
}
