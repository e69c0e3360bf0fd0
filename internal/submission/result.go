package submission

import (
	"encoding/json"

	"github.com/wolfman30/landing-leads/internal/leads"
	"github.com/wolfman30/landing-leads/internal/webhook"
)

// Outcome of a single attempt.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSuccess   Outcome = "success"
	OutcomeRetryable Outcome = "retryable-failure"
	OutcomeFatal     Outcome = "fatal-failure"
)

// ErrorKind classifies a failed submission. Transport kinds are carried over
// from webhook.Kind.
type ErrorKind string

const KindValidation ErrorKind = "validation-failure"

// Attempt records one transport call.
type Attempt struct {
	Number     int          `json:"number"`
	Mode       webhook.Mode `json:"mode"`
	Outcome    Outcome      `json:"outcome"`
	Kind       webhook.Kind `json:"kind,omitempty"`
	StatusCode int          `json:"status_code,omitempty"`
	Error      string       `json:"error,omitempty"`
	DurationMS int64        `json:"duration_ms"`
}

// Result is what the UI layer receives for one submission.
type Result struct {
	SubmissionID string `json:"submission_id"`
	Success      bool   `json:"success"`
	// Confirmed is false when success came from the opaque fallback mode and
	// the server's answer was never read.
	Confirmed bool            `json:"confirmed"`
	Mode      webhook.Mode    `json:"mode,omitempty"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	// Error is the human-readable failure; Detail the raw error for logs.
	Error      string           `json:"error,omitempty"`
	Detail     string           `json:"detail,omitempty"`
	Kind       ErrorKind        `json:"kind,omitempty"`
	Validation *leads.FormResult `json:"validation,omitempty"`
	Attempts   []Attempt        `json:"attempts,omitempty"`
}

// AttemptsIn counts attempts made in mode.
func (r Result) AttemptsIn(mode webhook.Mode) int {
	n := 0
	for _, a := range r.Attempts {
		if a.Mode == mode {
			n++
		}
	}
	return n
}

func (r Result) outcomeLabel() string {
	switch {
	case r.Success:
		return "success"
	case r.Kind == KindValidation:
		return string(KindValidation)
	default:
		return "failure"
	}
}
