package interfaces

import (
	"context"

	"github.com/ternarybob/minuta/internal/models"
)

// PipelineInput carries the externally supplied context for one
// summarization run: the transcript, calendar metadata, and the ranked
// email snippets from the out-of-process context search.
type PipelineInput struct {
	Transcript *models.Transcript
	Meeting    models.MeetingMetadata
	Emails     []models.EmailSnippet
}

// PipelineService runs the two-pass summarization pipeline for a record.
type PipelineService interface {
	// Run drives the record from its current persisted state to a terminal
	// state. A record with a submitted batch id resumes polling the
	// existing batch rather than resubmitting.
	Run(ctx context.Context, recordID string, input *PipelineInput) error

	// Cancel flags the record's active run for cooperative cancellation.
	// Returns false when no run is active for the record.
	Cancel(recordID string) bool

	// IsActive reports whether a run is currently driving the record.
	IsActive(recordID string) bool
}
