package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/mail"
)

// convertMessage converts a Gmail message into the provider-agnostic
// mail.Message shape.
func (p *Provider) convertMessage(msg *gmail.Message) mail.Message {
	m := mail.Message{
		ID:            msg.Id,
		ThreadID:      msg.ThreadId,
		ConversationID: msg.ThreadId,
		Snippet:       msg.Snippet,
		WebLink:       fmt.Sprintf("https://mail.google.com/mail/u/0/#all/%s", msg.Id),
	}

	for _, header := range msg.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "subject":
			m.Subject = header.Value
		case "from":
			m.From = mail.ParseAddress(header.Value)
		case "to":
			for _, part := range strings.Split(header.Value, ",") {
				if a := mail.ParseAddress(part); a.Email != "" {
					m.To = append(m.To, a)
				}
			}
		case "date":
			if t, err := parseDate(header.Value); err == nil {
				m.ReceivedAt = t
			}
		}
	}

	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = time.Unix(msg.InternalDate/1000, 0).UTC()
	}

	m.IsRead = !containsLabel(msg.LabelIds, "UNREAD")
	m.CurrentFolder = primaryFolder(msg.LabelIds)
	m.Importance = "normal"
	m.FlagStatus = "notFlagged"
	if containsLabel(msg.LabelIds, "STARRED") {
		m.FlagStatus = "flagged"
	}
	m.Body = extractBody(msg.Payload)
	m.ConversationIndex = p.conversationIndex(msg.ThreadId)

	return m
}

// conversationIndex fabricates an opaque byte blob whose length encodes
// thread depth the way Microsoft Graph's conversationIndex does: a fixed
// 22-byte header followed by one 5-byte block per reply. Gmail carries
// no equivalent field, so the depth is tracked locally per thread as
// messages are observed in listing order.
func (p *Provider) conversationIndex(threadID string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	depth := p.threadCounts[threadID]
	p.threadCounts[threadID] = depth + 1
	return make([]byte, 22+5*depth)
}

func primaryFolder(labelIDs []string) string {
	for _, l := range labelIDs {
		switch l {
		case "INBOX", "SENT", "DRAFT", "SPAM", "TRASH":
			return l
		}
	}
	return "INBOX"
}

// encodeCursor / decodeCursor implement the GetDelta cursor as
// "<unix-nanos>:<message-id>".
func encodeCursor(t time.Time, id string) string {
	return fmt.Sprintf("%d:%s", t.UnixNano(), id)
}

func decodeCursor(cursor string) (time.Time, string, bool) {
	parts := strings.SplitN(cursor, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, "", false
	}
	var nanos int64
	if _, err := fmt.Sscanf(parts[0], "%d", &nanos); err != nil {
		return time.Time{}, "", false
	}
	return time.Unix(0, nanos).UTC(), parts[1], true
}

// parseDate attempts several RFC-ish date formats seen in mail headers.
func parseDate(s string) (time.Time, error) {
	formats := []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		"2 Jan 2006 15:04:05 -0700",
		"Mon, 02 Jan 2006 15:04:05 -0700 (MST)",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

// extractBody prefers plain text, falling back to a stripped-HTML
// rendering of the HTML part.
func extractBody(payload *gmail.MessagePart) string {
	if text := extractPartByMime(payload, "text/plain"); text != "" {
		return text
	}
	if html := extractPartByMime(payload, "text/html"); html != "" {
		return stripHTMLTags(html)
	}
	return ""
}

func extractPartByMime(part *gmail.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.HasPrefix(part.MimeType, mimeType) {
		if part.Body != nil && part.Body.Data != "" {
			if decoded, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
				return string(decoded)
			}
		}
	}
	for _, subpart := range part.Parts {
		if result := extractPartByMime(subpart, mimeType); result != "" {
			return result
		}
	}
	return ""
}

func stripHTMLTags(html string) string {
	var result strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			result.WriteRune(r)
		}
	}
	text := result.String()
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\t", " ")
	for strings.Contains(text, "  ") {
		text = strings.ReplaceAll(text, "  ", " ")
	}
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
