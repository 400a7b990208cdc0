package interfaces

import (
	"context"

	"github.com/ternarybob/minuta/internal/models"
)

// SummaryStorage defines persistence operations for summarization records.
// The pipeline orchestrator is the single writer of a record's pipeline
// fields; the editing surface writes only through SetFinalFields.
type SummaryStorage interface {
	// SaveRecord inserts or updates a record, refreshing UpdatedAt.
	SaveRecord(ctx context.Context, record *models.SummaryRecord) error

	// GetRecord retrieves a record by id.
	GetRecord(ctx context.Context, id string) (*models.SummaryRecord, error)

	// ListRecords returns records ordered by creation time, newest first.
	ListRecords(ctx context.Context, limit int) ([]*models.SummaryRecord, error)

	// UpdateStatus transitions a record's overall status, enforcing the
	// forward-only state machine. errMsg is stored on error/cancelled moves.
	UpdateStatus(ctx context.Context, id string, status models.SummaryStatus, errMsg string) error

	// SetFinalFields writes the user-edited override group. Only Final
	// fields are touched; pipeline state is left alone.
	SetFinalFields(ctx context.Context, id string, fields models.SummaryFields) error

	// DeleteRecord removes a record. Never called by the pipeline itself.
	DeleteRecord(ctx context.Context, id string) error
}

// StorageManager aggregates the storage backends.
type StorageManager interface {
	SummaryStorage() SummaryStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}
