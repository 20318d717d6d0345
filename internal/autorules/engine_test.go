package autorules

import (
	"testing"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/config"
)

func TestMatchSenderGlob(t *testing.T) {
	e := New()
	rules := []config.AutoRule{
		{
			Name:  "newsletters",
			Match: config.AutoRuleMatch{Senders: []string{"*@newsletter.example.com"}},
			Action: config.AutoRuleAction{Folder: "Newsletters", Priority: "P3 - Low", ActionType: "FYI"},
		},
	}
	m := e.Match("weekly@newsletter.example.com", "Your digest", rules)
	if m == nil {
		t.Fatal("expected a match")
	}
	if m.Rule.Action.Folder != "Newsletters" {
		t.Errorf("expected Newsletters folder, got %s", m.Rule.Action.Folder)
	}
}

func TestMatchSubjectSubstring(t *testing.T) {
	e := New()
	rules := []config.AutoRule{
		{
			Name:  "invoices",
			Match: config.AutoRuleMatch{Subjects: []string{"invoice"}},
			Action: config.AutoRuleAction{Folder: "Finance", Priority: "P2 - Important", ActionType: "FYI"},
		},
	}
	m := e.Match("billing@vendor.com", "Your Invoice #1234 is ready", rules)
	if m == nil {
		t.Fatal("expected a match")
	}
}

func TestMatchRequiresBothWhenBothSpecified(t *testing.T) {
	e := New()
	rules := []config.AutoRule{
		{
			Name: "vendor-invoices",
			Match: config.AutoRuleMatch{
				Senders:  []string{"*@vendor.com"},
				Subjects: []string{"invoice"},
			},
			Action: config.AutoRuleAction{Folder: "Finance"},
		},
	}
	if m := e.Match("billing@vendor.com", "Meeting notes", rules); m != nil {
		t.Error("expected no match when only sender matches and both are required")
	}
	if m := e.Match("someone@other.com", "Invoice attached", rules); m != nil {
		t.Error("expected no match when only subject matches and both are required")
	}
	if m := e.Match("billing@vendor.com", "Invoice attached", rules); m == nil {
		t.Error("expected match when both sender and subject match")
	}
}

func TestMatchSkipsMisconfiguredRule(t *testing.T) {
	e := New()
	rules := []config.AutoRule{
		{Name: "broken", Action: config.AutoRuleAction{Folder: "Inbox"}},
		{Name: "fallback", Match: config.AutoRuleMatch{Subjects: []string{"urgent"}}, Action: config.AutoRuleAction{Folder: "Urgent"}},
	}
	m := e.Match("anyone@example.com", "This is urgent", rules)
	if m == nil || m.Rule.Name != "fallback" {
		t.Error("expected the misconfigured rule to be skipped and fallback to match")
	}
}

func TestMatchFirstRuleWins(t *testing.T) {
	e := New()
	rules := []config.AutoRule{
		{Name: "first", Match: config.AutoRuleMatch{Subjects: []string{"invoice"}}, Action: config.AutoRuleAction{Folder: "A"}},
		{Name: "second", Match: config.AutoRuleMatch{Subjects: []string{"invoice"}}, Action: config.AutoRuleAction{Folder: "B"}},
	}
	m := e.Match("x@example.com", "invoice due", rules)
	if m == nil || m.Rule.Name != "first" {
		t.Error("expected first matching rule to win")
	}
}

func TestMatchNoRulesReturnsNil(t *testing.T) {
	e := New()
	if m := e.Match("x@example.com", "anything", nil); m != nil {
		t.Error("expected nil for empty rule list")
	}
}
