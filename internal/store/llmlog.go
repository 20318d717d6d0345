package store

import (
	"context"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/triageerr"
)

// AppendLLMRequestLog writes one append-only audit row for an LLM
// round-trip.
func (s *Store) AppendLLMRequestLog(ctx context.Context, l *LLMRequestLog) error {
	_, err := s.ExecContext(ctx, `
		INSERT INTO llm_request_log (
			task_type, model, email_id, triage_cycle_id, prompt_json,
			response_json, tool_call_json, input_tokens, output_tokens, duration_ms, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.TaskType, l.Model, nullIfEmpty(l.EmailID), nullIfEmpty(l.CycleID), l.PromptJSON,
		l.ResponseJSON, nullIfEmpty(l.ToolCallJSON), l.InputTokens, l.OutputTokens, l.DurationMS, nullIfEmpty(l.Error))
	if err != nil {
		return &triageerr.StoreError{Op: "AppendLLMRequestLog", Err: err}
	}
	return nil
}

// CountLLMRequestLogs returns the total number of audit rows, used by
// tests.
func (s *Store) CountLLMRequestLogs(ctx context.Context) (int, error) {
	var n int
	row := s.QueryRowContext(ctx, `SELECT COUNT(*) FROM llm_request_log`)
	if err := row.Scan(&n); err != nil {
		return 0, &triageerr.StoreError{Op: "CountLLMRequestLogs", Err: err}
	}
	return n, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
