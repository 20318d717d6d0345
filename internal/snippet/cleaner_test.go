package snippet

import (
	"strings"
	"testing"
)

func TestCleanStripsHTML(t *testing.T) {
	c := New(1000)
	result := c.Clean("<p>Hello <b>world</b></p>", true)
	if strings.Contains(result.Text, "<") {
		t.Errorf("expected no HTML tags, got %q", result.Text)
	}
	if !strings.Contains(result.Text, "Hello") || !strings.Contains(result.Text, "world") {
		t.Errorf("expected text content preserved, got %q", result.Text)
	}
}

func TestCleanStripsQuotedText(t *testing.T) {
	c := New(1000)
	body := "Sounds good, see you then.\n\nOn Tue, Jan 1, 2026 at 9:00 AM Jane Doe wrote:\n> original message\n> more quoted text"
	result := c.Clean(body, false)
	if strings.Contains(result.Text, "original message") {
		t.Errorf("expected quoted text stripped, got %q", result.Text)
	}
	if !strings.Contains(result.Text, "Sounds good") {
		t.Errorf("expected reply body preserved, got %q", result.Text)
	}
}

func TestCleanStripsSignature(t *testing.T) {
	c := New(1000)
	body := "Let's sync tomorrow.\n\nBest regards,\nJohn Smith\nSenior Engineer"
	result := c.Clean(body, false)
	if strings.Contains(result.Text, "Senior Engineer") {
		t.Errorf("expected signature stripped, got %q", result.Text)
	}
}

func TestCleanTruncatesToMaxLength(t *testing.T) {
	c := New(20)
	body := strings.Repeat("word ", 50)
	result := c.Clean(body, false)
	if len([]rune(result.Text)) > 20 {
		t.Errorf("expected output bounded to 20 runes, got %d", len([]rune(result.Text)))
	}
}

func TestCleanNeverPanicsOnEmptyInput(t *testing.T) {
	c := New(1000)
	result := c.Clean("", false)
	if result.Text != "" {
		t.Errorf("expected empty output for empty input, got %q", result.Text)
	}
}

func TestCleanNeverPanicsOnPathologicalInput(t *testing.T) {
	c := New(1000)
	body := strings.Repeat("a", 5000) + strings.Repeat(">", 5000) + strings.Repeat("<tag>", 1000)
	result := c.Clean(body, true)
	if len([]rune(result.Text)) > 1000 {
		t.Errorf("expected bounded output even on adversarial input, got %d runes", len([]rune(result.Text)))
	}
}
