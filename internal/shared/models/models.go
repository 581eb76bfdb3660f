package models

import "time"

// RequestSource identifies what triggered a generation attempt.
type RequestSource string

const (
	SourceManual    RequestSource = "manual"
	SourceScheduled RequestSource = "scheduled"
	SourcePayment   RequestSource = "payment"
	SourceChatAgent RequestSource = "chat_agent"
)

// RequestStatus is the lifecycle state of a generation attempt.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusRunning   RequestStatus = "running"
	StatusSucceeded RequestStatus = "succeeded"
	StatusFailed    RequestStatus = "failed"
	StatusCancelled RequestStatus = "cancelled"
)

// FactoidPayload is the validated structured output extracted from a
// model response. Immutable once produced.
type FactoidPayload struct {
	Text    string `json:"text"`
	Subject string `json:"subject"`
	Emoji   string `json:"emoji"`
}

// Factoid is a persisted factoid with vote counts and generation metadata
type Factoid struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Subject   string    `json:"subject"`
	Emoji     string    `json:"emoji"`
	VotesUp   int       `json:"votes_up"`
	VotesDown int       `json:"votes_down"`
	CreatedBy *string   `json:"created_by,omitempty"` // generation request ID
	ModelKey  string    `json:"model_key"`
	CostUSD   *float64  `json:"cost_usd,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GenerationRequest tracks one generation attempt and its lifecycle
type GenerationRequest struct {
	ID                   string
	ClientHash           string
	RequestSource        RequestSource
	ModelKey             string
	Temperature          *float32
	Status               RequestStatus
	ExpectedCostUSD      *float64
	ActualCostUSD        *float64
	TokenUsagePrompt     *int
	TokenUsageCompletion *int
	StartedAt            *time.Time
	CompletedAt          *time.Time
	ErrorMessage         string
	RetryOf              *string // request this attempt is a fallback retry of
	CreatedAt            time.Time
}
