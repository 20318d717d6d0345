// Package snippet normalizes raw email bodies into short, prompt-safe
// text for classification and thread-context display (spec §4.4).
package snippet

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/triageerr"
)

// Default output bounds, overridden by config.SnippetConfig.
const (
	DefaultClassificationMaxLength = 1000
	DefaultThreadContextMaxLength  = 500
)

// regexTimeout bounds every individual regex application.
const regexTimeout = 1 * time.Second

var (
	htmlTagPattern      = regexp.MustCompile(`(?s)<[^>]*>`)
	forwardHeaderPattern = regexp.MustCompile(`(?im)^\s*(From|Sent|To|Subject|Cc):.*$`)
	replyMarkerPattern   = regexp.MustCompile(`(?im)^\s*(On .{1,120} wrote:|-{2,}\s*Original Message\s*-{2,}|>{1,}.*)$`)
	signatureMarkerPattern = regexp.MustCompile(`(?im)^\s*(--\s*$|Sent from my \w+|Best( regards)?,?\s*$|Regards,?\s*$|Thanks,?\s*$|Sincerely,?\s*$)`)
	disclaimerPattern    = regexp.MustCompile(`(?is)(this (e-?mail|message) (is|and any attachments? is|may be) (confidential|intended only)|please consider the environment before printing).*`)
	whitespacePattern    = regexp.MustCompile(`[ \t]+`)
	blankLinesPattern    = regexp.MustCompile(`\n{3,}`)
)

// Cleaner runs the 6-step normalization pipeline.
type Cleaner struct {
	MaxLength int
}

// New returns a Cleaner bounded to maxLength characters.
func New(maxLength int) *Cleaner {
	if maxLength <= 0 {
		maxLength = DefaultClassificationMaxLength
	}
	return &Cleaner{MaxLength: maxLength}
}

// Result is the cleaned text plus any non-fatal step failures
// encountered along the way.
type Result struct {
	Text     string
	Warnings []*triageerr.SnippetCleaningError
}

// Clean runs all six steps in order. Each step is wall-clock bounded;
// a step that times out contributes its input unchanged as the
// "partial result" and is recorded as a warning rather than aborting
// the pipeline.
func (c *Cleaner) Clean(body string, isHTML bool) Result {
	text := body
	var warnings []*triageerr.SnippetCleaningError

	steps := []struct {
		name string
		fn   func(string) string
	}{
		{"html_to_text", func(s string) string {
			if !isHTML {
				return s
			}
			return stripHTML(s)
		}},
		{"strip_forwarded_headers", stripForwardedHeaders},
		{"strip_quoted_text", stripQuotedText},
		{"strip_signature", stripSignature},
		{"strip_disclaimer", stripDisclaimer},
		{"whitespace_normalize", normalizeWhitespace},
	}

	for _, step := range steps {
		out, ok := runBounded(step.fn, text)
		if !ok {
			warnings = append(warnings, &triageerr.SnippetCleaningError{
				Step:    step.name,
				Partial: text,
				Err:     errTimeout,
			})
			continue
		}
		text = out
	}

	text = truncate(text, c.MaxLength)
	return Result{Text: text, Warnings: warnings}
}

var errTimeout = errTimeoutType{}

type errTimeoutType struct{}

func (errTimeoutType) Error() string { return "regex step exceeded 1s wall-clock bound" }

// runBounded races fn against a 1s timer in its own goroutine so a
// pathological input can never stall the pipeline, even though Go's
// RE2-backed regexp package cannot itself backtrack catastrophically.
func runBounded(fn func(string) string, in string) (string, bool) {
	done := make(chan string, 1)
	go func() { done <- fn(in) }()

	select {
	case out := <-done:
		return out, true
	case <-time.After(regexTimeout):
		return in, false
	}
}

func stripHTML(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, " ")
	return html.UnescapeString(s)
}

func stripForwardedHeaders(s string) string {
	return forwardHeaderPattern.ReplaceAllString(s, "")
}

func stripQuotedText(s string) string {
	loc := replyMarkerPattern.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]]
}

func stripSignature(s string) string {
	loc := signatureMarkerPattern.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]]
}

func stripDisclaimer(s string) string {
	return disclaimerPattern.ReplaceAllString(s, "")
}

func normalizeWhitespace(s string) string {
	s = whitespacePattern.ReplaceAllString(s, " ")
	s = blankLinesPattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
