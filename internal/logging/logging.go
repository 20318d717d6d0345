// Package logging builds the structured, correlation-id-tagged logger
// used throughout the triage engine. The teacher repo has no logging
// package of its own (it writes CLI output via fmt); this follows the
// structured-logging idiom used elsewhere in the retrieval pack
// (jhjaggars-package-tracking's background workers), reimplemented on
// log/slog in place of that repo's ad-hoc fmt calls, and mirrors the
// correlation-id-via-context pattern of the original Python
// implementation's structlog processor.
package logging

import (
	"context"
	"log/slog"
	"os"
)

type correlationIDKey struct{}

// New builds the root JSON logger. level controls the minimum emitted
// severity; output defaults to stderr so stdout stays free for digest
// and CLI table output.
func New(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// WithCorrelationID returns a context carrying cycleID, and a logger
// that includes it as a "cycle_id" attribute on every record.
func WithCorrelationID(ctx context.Context, logger *slog.Logger, cycleID string) (context.Context, *slog.Logger) {
	ctx = context.WithValue(ctx, correlationIDKey{}, cycleID)
	return ctx, logger.With("cycle_id", cycleID)
}

// CorrelationID extracts the cycle id stashed by WithCorrelationID, or
// "" if none is set.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// Truncate bounds a string to n runes for PII-safe logging, matching
// the original implementation's subject[:50] / sender[:20] convention
// (original_source/engine/waiting_for.py, classifier/preference_learner.py).
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
