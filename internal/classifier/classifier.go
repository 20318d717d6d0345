// Package classifier composes the system/user prompts, drives the
// classify_email tool-use round-trip against an llm.Client, and logs
// each round-trip to llm_request_log (spec §4.7).
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/config"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/llm"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/store"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/threadctx"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/triageerr"
)

// toolSchema is the input_schema for classify_email (spec §4.7 step 3).
const toolSchema = `{
  "type": "object",
  "properties": {
    "folder": {"type": "string"},
    "priority": {"type": "string", "enum": ["P1 - Urgent Important", "P2 - Important", "P3 - Standard", "P4 - Low"]},
    "action_type": {"type": "string", "enum": ["REPLY", "WAITING_FOR", "FYI", "ARCHIVE"]},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "reasoning": {"type": "string"}
  },
  "required": ["folder", "priority", "action_type", "confidence", "reasoning"]
}`

// Result is the classification decision extracted from the tool call.
type Result struct {
	Folder     string  `json:"folder"`
	Priority   string  `json:"priority"`
	ActionType string  `json:"action_type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Classifier composes prompts and drives the classify tool-use
// round-trip, retrying malformed or transient failures.
type Classifier struct {
	llmClient    llm.Client
	store        *store.Store
	systemPrompt string
	model        string
	attemptsMax  int
}

// New returns a Classifier. Call RefreshSystemPrompt once before first
// use and again whenever the taxonomy config changes.
func New(llmClient llm.Client, s *store.Store, model string, attemptsMax int) *Classifier {
	if attemptsMax <= 0 {
		attemptsMax = 3
	}
	return &Classifier{llmClient: llmClient, store: s, model: model, attemptsMax: attemptsMax}
}

// RefreshSystemPrompt recomposes the system prompt from the current
// taxonomy, key contacts, and learned preferences (spec §4.10: the
// triage loop calls this once per cycle so config edits and learned
// preference updates take effect without a restart).
func (c *Classifier) RefreshSystemPrompt(cfg *config.Config, preferences string) {
	c.systemPrompt = buildSystemPrompt(cfg, preferences)
}

func buildSystemPrompt(cfg *config.Config, preferences string) string {
	p := "You triage email into a folder taxonomy, assign a priority and action type.\n\n"
	p += fmt.Sprintf("Current date: %s\n\n", time.Now().UTC().Format("2006-01-02"))

	p += "Projects:\n"
	for _, proj := range cfg.Projects {
		p += fmt.Sprintf("- %s -> folder %q, signals: %v\n", proj.Name, proj.Folder, proj.Keywords)
	}
	p += "\nAreas:\n"
	for _, a := range cfg.Areas {
		p += fmt.Sprintf("- %s -> folder %q\n", a.Name, a.Folder)
	}
	p += "\nKey contacts:\n"
	for _, kc := range cfg.KeyContacts {
		p += fmt.Sprintf("- %s <%s>\n", kc.Name, kc.Email)
	}
	if preferences != "" {
		p += "\nLearned preferences from past corrections:\n" + preferences + "\n"
	}
	p += "\nPriority must be exactly one of: P1 - Urgent Important, P2 - Important, P3 - Standard, P4 - Low.\n"
	p += "Action type must be exactly one of: REPLY, WAITING_FOR, FYI, ARCHIVE.\n"
	p += "Call the classify_email tool exactly once with your decision."
	return p
}

func buildUserMessage(e *store.Email, snippet string, tc *threadctx.Context) string {
	msg := fmt.Sprintf("Subject: %s\nFrom: %s <%s>\n\n%s\n", e.Subject, e.SenderName, e.SenderEmail, snippet)
	if tc.InheritedFolder != "" {
		msg += fmt.Sprintf("\nInherited folder hint from this thread: %s\n", tc.InheritedFolder)
	}
	msg += fmt.Sprintf("\nSender history: %s\n", tc.SenderHistory.Summary())
	if len(tc.RecentMessages) > 0 {
		msg += "\nRecent thread messages:\n"
		for _, m := range tc.RecentMessages {
			msg += fmt.Sprintf("- [%s] %s: %s\n", m.ReceivedAt.Format(time.RFC3339), m.SenderName, m.Snippet)
		}
	}
	return msg
}

// Classify runs the classify_email tool-use round-trip for one email,
// retrying malformed tool output up to attemptsMax with exponential
// backoff (spec §4.7 steps 3-5).
func (c *Classifier) Classify(ctx context.Context, cycleID string, e *store.Email, snippet string, tc *threadctx.Context) (*Result, error) {
	userMsg := buildUserMessage(e, snippet, tc)

	var lastErr error
	for attempt := 1; attempt <= c.attemptsMax; attempt++ {
		result, reqLog, err := c.attempt(ctx, cycleID, e, userMsg)
		if reqLog != nil {
			if logErr := c.store.AppendLLMRequestLog(ctx, reqLog); logErr != nil {
				return nil, logErr
			}
		}
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt < c.attemptsMax {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			jitter := time.Duration(rand.Int63n(int64(250 * time.Millisecond)))
			select {
			case <-time.After(backoff + jitter):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, &triageerr.ClassificationError{EmailID: e.ID, Attempts: c.attemptsMax, Err: lastErr}
}

func (c *Classifier) attempt(ctx context.Context, cycleID string, e *store.Email, userMsg string) (*Result, *store.LLMRequestLog, error) {
	start := time.Now()
	req := llm.Request{
		Model:  c.model,
		System: c.systemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: []llm.Block{{Type: "text", Text: userMsg}}},
		},
		Tools: []llm.Tool{
			{Name: "classify_email", Description: "Record the classification decision for this email.", InputSchema: json.RawMessage(toolSchema)},
		},
		ToolChoice: "classify_email",
		MaxTokens:  1024,
	}

	resp, err := c.llmClient.MessagesCreate(ctx, req)
	duration := time.Since(start)

	logEntry := &store.LLMRequestLog{
		Timestamp: start,
		TaskType:  "classify",
		Model:     c.model,
		EmailID:   e.ID,
		CycleID:   cycleID,
		DurationMS: int(duration.Milliseconds()),
	}
	if reqJSON, mErr := json.Marshal(req); mErr == nil {
		logEntry.PromptJSON = string(reqJSON)
	}

	if err != nil {
		logEntry.Error = err.Error()
		return nil, logEntry, err
	}

	if respJSON, mErr := json.Marshal(resp); mErr == nil {
		logEntry.ResponseJSON = string(respJSON)
	}
	logEntry.InputTokens = resp.Usage.InputTokens
	logEntry.OutputTokens = resp.Usage.OutputTokens

	block := llm.FindToolUse(resp, "classify_email")
	if block == nil {
		logEntry.Error = "no classify_email tool_use block in response"
		return nil, logEntry, fmt.Errorf("%s", logEntry.Error)
	}
	logEntry.ToolCallJSON = string(block.Input)

	var result Result
	if err := json.Unmarshal(block.Input, &result); err != nil {
		logEntry.Error = fmt.Sprintf("malformed tool input: %v", err)
		return nil, logEntry, err
	}
	if err := validateResult(&result); err != nil {
		logEntry.Error = err.Error()
		return nil, logEntry, err
	}

	return &result, logEntry, nil
}

func validateResult(r *Result) error {
	if r.Folder == "" {
		return fmt.Errorf("classify_email: empty folder")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("classify_email: confidence %f out of range", r.Confidence)
	}
	switch r.Priority {
	case "P1 - Urgent Important", "P2 - Important", "P3 - Standard", "P4 - Low":
	default:
		return fmt.Errorf("classify_email: invalid priority %q", r.Priority)
	}
	switch r.ActionType {
	case "REPLY", "WAITING_FOR", "FYI", "ARCHIVE":
	default:
		return fmt.Errorf("classify_email: invalid action_type %q", r.ActionType)
	}
	return nil
}
