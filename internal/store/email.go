package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/triageerr"
)

// SaveEmail upserts by id. Sets processed_at the moment the transition
// into classification_status=classified happens.
func (s *Store) SaveEmail(ctx context.Context, e *Email) error {
	var inheritedFolder, processedAt any
	if e.InheritedFolder != nil {
		inheritedFolder = *e.InheritedFolder
	}
	if e.ProcessedAt != nil {
		processedAt = *e.ProcessedAt
	} else if e.ClassificationStatus == ClassificationClassified {
		now := time.Now().UTC()
		e.ProcessedAt = &now
		processedAt = now
	}

	_, err := s.ExecContext(ctx, `
		INSERT INTO emails (
			id, conversation_id, conversation_index, subject, sender_email, sender_name,
			received_at, snippet, current_folder, web_link, importance, is_read,
			flag_status, has_user_reply, inherited_folder, processed_at,
			classification_status, classification_attempts
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			conversation_index = excluded.conversation_index,
			subject = excluded.subject,
			sender_email = excluded.sender_email,
			sender_name = excluded.sender_name,
			received_at = excluded.received_at,
			snippet = excluded.snippet,
			current_folder = excluded.current_folder,
			web_link = excluded.web_link,
			importance = excluded.importance,
			is_read = excluded.is_read,
			flag_status = excluded.flag_status,
			has_user_reply = excluded.has_user_reply,
			inherited_folder = excluded.inherited_folder,
			processed_at = excluded.processed_at,
			classification_status = excluded.classification_status,
			classification_attempts = excluded.classification_attempts
	`,
		e.ID, e.ConversationID, e.ConversationIndex, e.Subject, e.SenderEmail, e.SenderName,
		e.ReceivedAt, e.Snippet, e.CurrentFolder, e.WebLink, e.Importance, e.IsRead,
		e.FlagStatus, e.HasUserReply, inheritedFolder, processedAt,
		string(e.ClassificationStatus), e.ClassificationAttempts,
	)
	if err != nil {
		return &triageerr.StoreError{Op: "SaveEmail", Err: err}
	}
	return nil
}

// GetEmail retrieves one email by id, or (nil, nil) if absent.
func (s *Store) GetEmail(ctx context.Context, id string) (*Email, error) {
	row := s.QueryRowContext(ctx, `
		SELECT id, conversation_id, conversation_index, subject, sender_email, sender_name,
		       received_at, snippet, current_folder, web_link, importance, is_read,
		       flag_status, has_user_reply, inherited_folder, processed_at,
		       classification_status, classification_attempts
		FROM emails WHERE id = ?
	`, id)
	e, err := scanEmail(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &triageerr.StoreError{Op: "GetEmail", Err: err}
	}
	return e, nil
}

// ListEmailsForConversation returns all emails in a conversation, in
// ascending received_at order (used by thread inheritance and the
// recent-thread-messages context).
func (s *Store) ListEmailsForConversation(ctx context.Context, conversationID string) ([]Email, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, conversation_id, conversation_index, subject, sender_email, sender_name,
		       received_at, snippet, current_folder, web_link, importance, is_read,
		       flag_status, has_user_reply, inherited_folder, processed_at,
		       classification_status, classification_attempts
		FROM emails WHERE conversation_id = ?
		ORDER BY received_at ASC
	`, conversationID)
	if err != nil {
		return nil, &triageerr.StoreError{Op: "ListEmailsForConversation", Err: err}
	}
	defer rows.Close()

	var out []Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, &triageerr.StoreError{Op: "ListEmailsForConversation", Err: err}
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// ListEmailsBySender returns a sender's most recent N emails, newest
// first, for sender-history computation (internal/threadctx).
func (s *Store) ListEmailsBySender(ctx context.Context, senderEmail string, limit int) ([]Email, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, conversation_id, conversation_index, subject, sender_email, sender_name,
		       received_at, snippet, current_folder, web_link, importance, is_read,
		       flag_status, has_user_reply, inherited_folder, processed_at,
		       classification_status, classification_attempts
		FROM emails WHERE sender_email = ?
		ORDER BY received_at DESC LIMIT ?
	`, senderEmail, limit)
	if err != nil {
		return nil, &triageerr.StoreError{Op: "ListEmailsBySender", Err: err}
	}
	defer rows.Close()

	var out []Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, &triageerr.StoreError{Op: "ListEmailsBySender", Err: err}
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// ListEmailIDs returns every email id in the store, for the
// immutable-id migration's one-shot scan.
func (s *Store) ListEmailIDs(ctx context.Context) ([]string, error) {
	rows, err := s.QueryContext(ctx, `SELECT id FROM emails`)
	if err != nil {
		return nil, &triageerr.StoreError{Op: "ListEmailIDs", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &triageerr.StoreError{Op: "ListEmailIDs", Err: err}
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateEmailID updates the primary key and cascades through FKs in
// suggestions, waiting_for, and task_sync in a single transaction
// (spec.md §4.1, §4.14).
func (s *Store) UpdateEmailID(ctx context.Context, oldID, newID string) error {
	return s.Transaction(ctx, func(tx *sql.Tx) error {
		// The FK columns have no ON UPDATE action, so enforcement is
		// deferred to commit while parent and child ids are swapped.
		if _, err := tx.ExecContext(ctx, `PRAGMA defer_foreign_keys = ON`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE emails SET id = ? WHERE id = ?`, newID, oldID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE suggestions SET email_id = ? WHERE email_id = ?`, newID, oldID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE waiting_for SET email_id = ? WHERE email_id = ?`, newID, oldID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE task_sync SET email_id = ? WHERE email_id = ?`, newID, oldID); err != nil {
			return err
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmail(row rowScanner) (*Email, error) {
	e := &Email{}
	var inheritedFolder sql.NullString
	var processedAt sql.NullTime
	var classificationStatus string

	err := row.Scan(
		&e.ID, &e.ConversationID, &e.ConversationIndex, &e.Subject, &e.SenderEmail, &e.SenderName,
		&e.ReceivedAt, &e.Snippet, &e.CurrentFolder, &e.WebLink, &e.Importance, &e.IsRead,
		&e.FlagStatus, &e.HasUserReply, &inheritedFolder, &processedAt,
		&classificationStatus, &e.ClassificationAttempts,
	)
	if err != nil {
		return nil, err
	}
	e.ClassificationStatus = ClassificationStatus(classificationStatus)
	if inheritedFolder.Valid {
		v := inheritedFolder.String
		e.InheritedFolder = &v
	}
	if processedAt.Valid {
		v := processedAt.Time
		e.ProcessedAt = &v
	}
	return e, nil
}
