package store

import "time"

// ClassificationStatus is the lifecycle of an Email's classification.
type ClassificationStatus string

const (
	ClassificationPending    ClassificationStatus = "pending"
	ClassificationClassified ClassificationStatus = "classified"
	ClassificationFailed     ClassificationStatus = "failed"
)

// SuggestionStatus is the Suggestion state machine (spec.md §3/§4.1).
type SuggestionStatus string

const (
	SuggestionPending       SuggestionStatus = "pending"
	SuggestionApproved      SuggestionStatus = "approved"
	SuggestionPartial       SuggestionStatus = "partial"
	SuggestionRejected      SuggestionStatus = "rejected"
	SuggestionAutoApproved  SuggestionStatus = "auto_approved"
	SuggestionExpired       SuggestionStatus = "expired"
)

// WaitingForStatus is the WaitingFor obligation lifecycle.
type WaitingForStatus string

const (
	WaitingForWaiting  WaitingForStatus = "waiting"
	WaitingForReceived WaitingForStatus = "received"
	WaitingForExpired  WaitingForStatus = "expired"
)

// SenderCategory classifies a SenderProfile.
type SenderCategory string

const (
	CategoryKeyContact SenderCategory = "key_contact"
	CategoryNewsletter SenderCategory = "newsletter"
	CategoryAutomated  SenderCategory = "automated"
	CategoryInternal   SenderCategory = "internal"
	CategoryClient     SenderCategory = "client"
	CategoryVendor     SenderCategory = "vendor"
	CategoryUnknown    SenderCategory = "unknown"
)

// TaskSyncStatus is the TaskSync lifecycle.
type TaskSyncStatus string

const (
	TaskSyncActive    TaskSyncStatus = "active"
	TaskSyncCompleted TaskSyncStatus = "completed"
	TaskSyncDeleted   TaskSyncStatus = "deleted"
)

// Email is one observed message (spec.md §3).
type Email struct {
	ID                      string
	ConversationID          string
	ConversationIndex       []byte
	Subject                 string
	SenderEmail             string
	SenderName              string
	ReceivedAt              time.Time
	Snippet                 string
	CurrentFolder           string
	WebLink                 string
	Importance              string
	IsRead                  bool
	FlagStatus              string
	HasUserReply            bool
	InheritedFolder         *string
	ProcessedAt             *time.Time
	ClassificationStatus    ClassificationStatus
	ClassificationAttempts  int
}

// Suggestion is a compound classification decision plus the user's
// decision on it.
type Suggestion struct {
	ID                  int64
	EmailID             string
	CreatedAt           time.Time
	SuggestedFolder     string
	SuggestedPriority   string
	SuggestedActionType string
	Confidence          float64
	Reasoning           string
	Status              SuggestionStatus
	ApprovedFolder      *string
	ApprovedPriority    *string
	ApprovedActionType  *string
	ResolvedAt          *time.Time
}

// WaitingFor is an active obligation to receive a reply.
type WaitingFor struct {
	ID              int64
	EmailID         string
	ConversationID  string
	WaitingSince    time.Time
	ExpectedFrom    string
	Description     string
	Status          WaitingForStatus
	NudgeAfterHours int
	ResolvedAt      *time.Time
}

// SenderProfile holds per-sender statistics.
type SenderProfile struct {
	Email             string
	DisplayName       string
	Domain            string
	Category          SenderCategory
	DefaultFolder     string
	EmailCount        int
	LastSeen          time.Time
	AutoRuleCandidate bool
	UpdatedAt         time.Time
}

// LLMRequestLog is one append-only LLM round-trip audit entry.
type LLMRequestLog struct {
	ID            int64
	Timestamp     time.Time
	TaskType      string
	Model         string
	EmailID       string
	CycleID       string
	PromptJSON    string
	ResponseJSON  string
	ToolCallJSON  string
	InputTokens   int
	OutputTokens  int
	DurationMS    int
	Error         string
}

// ActionLog is one append-only audit entry of an agent action.
type ActionLog struct {
	ID          int64
	Timestamp   time.Time
	ActionType  string
	EmailID     string
	DetailsJSON string
	TriggeredBy string
}

// TaskSync maps an Email to an external task item.
type TaskSync struct {
	ID             int64
	EmailID        string
	ExternalTaskID string
	Status         TaskSyncStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AutoApprovableFilter parameters for GetAutoApprovableSuggestions.
type AutoApprovableFilter struct {
	MinConfidence float64
	MinAgeHours   float64
	ExcludedPriority string // never auto-approved, e.g. "P1 - Urgent Important"
}
