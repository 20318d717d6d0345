package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/triageerr"
)

// UpsertSenderProfile inserts or updates a sender's statistics,
// incrementing email_count and bumping last_seen. The auto-rule
// candidacy flag (email_count >= 10 and top-folder share >= 0.90) is
// computed by the caller (internal/threadctx) and passed in, since it
// requires a folder-distribution scan this package does not perform.
func (s *Store) UpsertSenderProfile(ctx context.Context, p *SenderProfile) error {
	now := time.Now().UTC()
	_, err := s.ExecContext(ctx, `
		INSERT INTO sender_profiles (email, display_name, domain, category, default_folder, email_count, last_seen, auto_rule_candidate, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			display_name = excluded.display_name,
			domain = excluded.domain,
			category = excluded.category,
			default_folder = excluded.default_folder,
			email_count = excluded.email_count,
			last_seen = excluded.last_seen,
			auto_rule_candidate = excluded.auto_rule_candidate,
			updated_at = excluded.updated_at
	`, p.Email, p.DisplayName, p.Domain, string(p.Category), p.DefaultFolder, p.EmailCount, p.LastSeen, p.AutoRuleCandidate, now)
	if err != nil {
		return &triageerr.StoreError{Op: "UpsertSenderProfile", Err: err}
	}
	return nil
}

// GetSenderProfile returns (nil, nil) if the sender has never been seen.
func (s *Store) GetSenderProfile(ctx context.Context, email string) (*SenderProfile, error) {
	row := s.QueryRowContext(ctx, `
		SELECT email, display_name, domain, category, default_folder, email_count, last_seen, auto_rule_candidate, updated_at
		FROM sender_profiles WHERE email = ?
	`, email)
	p, err := scanSenderProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &triageerr.StoreError{Op: "GetSenderProfile", Err: err}
	}
	return p, nil
}

// ListAutoRuleCandidates returns senders flagged as auto-rule candidates,
// for preference-learning and bootstrap flows.
func (s *Store) ListAutoRuleCandidates(ctx context.Context) ([]SenderProfile, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT email, display_name, domain, category, default_folder, email_count, last_seen, auto_rule_candidate, updated_at
		FROM sender_profiles WHERE auto_rule_candidate = 1
	`)
	if err != nil {
		return nil, &triageerr.StoreError{Op: "ListAutoRuleCandidates", Err: err}
	}
	defer rows.Close()

	var out []SenderProfile
	for rows.Next() {
		p, err := scanSenderProfile(rows)
		if err != nil {
			return nil, &triageerr.StoreError{Op: "ListAutoRuleCandidates", Err: err}
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanSenderProfile(row rowScanner) (*SenderProfile, error) {
	p := &SenderProfile{}
	var category string
	err := row.Scan(&p.Email, &p.DisplayName, &p.Domain, &category, &p.DefaultFolder,
		&p.EmailCount, &p.LastSeen, &p.AutoRuleCandidate, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Category = SenderCategory(category)
	return p, nil
}
