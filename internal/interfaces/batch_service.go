package interfaces

import (
	"context"
	"time"
)

// Remote batch processing statuses as reported by the Anthropic API.
const (
	BatchStatusInProgress = "in_progress"
	BatchStatusCanceling  = "canceling"
	BatchStatusEnded      = "ended"
)

// Batch result discriminator values. Every result line carries exactly one.
const (
	BatchResultSucceeded = "succeeded"
	BatchResultErrored   = "errored"
	BatchResultCanceled  = "canceled"
	BatchResultExpired   = "expired"
)

// BatchRequest is one prompt destined for a batch submission. CustomID is
// the caller-chosen correlation key linking the request to its result line.
type BatchRequest struct {
	CustomID  string `json:"custom_id"`
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Prompt    string `json:"prompt"`
}

// BatchRequestCounts mirrors the remote request_counts object.
type BatchRequestCounts struct {
	Processing int64 `json:"processing"`
	Succeeded  int64 `json:"succeeded"`
	Errored    int64 `json:"errored"`
	Canceled   int64 `json:"canceled"`
	Expired    int64 `json:"expired"`
}

// Total returns the number of requests in the batch across all states.
func (c BatchRequestCounts) Total() int64 {
	return c.Processing + c.Succeeded + c.Errored + c.Canceled + c.Expired
}

// BatchStatus is a point-in-time snapshot of a remote batch.
type BatchStatus struct {
	ID         string              `json:"id"`
	Status     string              `json:"processing_status"`
	Counts     BatchRequestCounts  `json:"request_counts"`
	EndedAt    *time.Time          `json:"ended_at,omitempty"`
	ResultsURL string              `json:"results_url,omitempty"`
}

// BatchContentBlock is one content block of a succeeded result message.
type BatchContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// BatchMessage carries the model output of a succeeded request.
type BatchMessage struct {
	ID      string              `json:"id"`
	Model   string              `json:"model"`
	Content []BatchContentBlock `json:"content"`
}

// BatchErrorDetail is the innermost remote error object.
type BatchErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// BatchError wraps the remote error envelope of an errored result.
type BatchError struct {
	Type  string            `json:"type"`
	Error *BatchErrorDetail `json:"error,omitempty"`
}

// BatchOutcome is the per-request result variant. Type discriminates which
// of the optional fields is populated; extraction dispatches on it at a
// single site rather than probing field presence.
type BatchOutcome struct {
	Type    string        `json:"type"`
	Message *BatchMessage `json:"message,omitempty"`
	Error   *BatchError   `json:"error,omitempty"`
}

// BatchResult is one newline-delimited result record, correlated to its
// originating request by CustomID.
type BatchResult struct {
	CustomID string       `json:"custom_id"`
	Result   BatchOutcome `json:"result"`
}

// BatchService drives a remote message-batch API: submit a set of prompts,
// observe the batch until terminal, then retrieve per-request results.
type BatchService interface {
	// Submit sends one batch of requests and returns the remote batch id.
	// The request list must be non-empty with unique custom ids. Submission
	// failures are surfaced immediately as *batch.SubmissionError with no
	// internal retry; retried submissions duplicate paid work.
	Submit(ctx context.Context, requests []BatchRequest) (string, error)

	// GetStatus performs a one-shot status read with no side effects.
	GetStatus(ctx context.Context, batchID string) (*BatchStatus, error)

	// RetrieveResults fetches and parses the batch's result lines. The batch
	// must already be terminal ("ended"); otherwise *batch.NotReadyError is
	// returned. A malformed individual line is skipped, not fatal.
	RetrieveResults(ctx context.Context, batchID string) ([]BatchResult, error)

	// Cancel requests best-effort cancellation. The remote side may pass
	// through an intermediate "canceling" state before ending.
	Cancel(ctx context.Context, batchID string) error
}
