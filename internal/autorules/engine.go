// Package autorules matches emails against deterministic sender/subject
// rules that bypass the classifier entirely (spec §4.5).
package autorules

import (
	"fmt"
	"path"
	"strings"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/config"
)

// Match is the outcome of a successful rule match.
type Match struct {
	Rule       config.AutoRule
	MatchReason string
}

// Engine evaluates an ordered rule list. Rules are checked in order;
// the first match wins.
type Engine struct{}

// New returns an Engine. It carries no state: rules are supplied per call
// so callers can evaluate against a freshly hot-reloaded config snapshot.
func New() *Engine { return &Engine{} }

// Match checks senderEmail and subject against rules in order. A rule
// with neither senders nor subjects configured is skipped as
// misconfigured (spec §4.5).
func (e *Engine) Match(senderEmail, subject string, rules []config.AutoRule) *Match {
	if len(rules) == 0 {
		return nil
	}

	senderLower := strings.ToLower(senderEmail)
	subjectLower := strings.ToLower(subject)

	for _, rule := range rules {
		hasSenders := len(rule.Match.Senders) > 0
		hasSubjects := len(rule.Match.Subjects) > 0
		if !hasSenders && !hasSubjects {
			continue
		}

		senderMatched := matchSenders(senderLower, rule.Match.Senders)
		subjectMatched := matchSubjects(subjectLower, rule.Match.Subjects)

		switch {
		case hasSenders && hasSubjects:
			if senderMatched && subjectMatched {
				return &Match{Rule: rule, MatchReason: fmt.Sprintf("rule %q: sender matched pattern and subject matched keyword", rule.Name)}
			}
		case hasSenders && senderMatched:
			return &Match{Rule: rule, MatchReason: fmt.Sprintf("rule %q: sender matched pattern", rule.Name)}
		case hasSubjects && subjectMatched:
			return &Match{Rule: rule, MatchReason: fmt.Sprintf("rule %q: subject matched keyword", rule.Name)}
		}
	}

	return nil
}

func matchSenders(senderLower string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(strings.ToLower(p), senderLower); ok {
			return true
		}
	}
	return false
}

func matchSubjects(subjectLower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(subjectLower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
