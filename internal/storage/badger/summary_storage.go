package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/minuta/internal/interfaces"
	"github.com/ternarybob/minuta/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SummaryStorage implements the SummaryStorage interface for Badger
type SummaryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSummaryStorage creates a new SummaryStorage instance
func NewSummaryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SummaryStorage {
	return &SummaryStorage{
		db:     db,
		logger: logger,
	}
}

// SaveRecord inserts or updates a summary record
func (s *SummaryStorage) SaveRecord(ctx context.Context, record *models.SummaryRecord) error {
	if record.ID == "" {
		return fmt.Errorf("summary record ID is required")
	}

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to save summary record: %w", err)
	}
	return nil
}

// GetRecord retrieves a summary record by id
func (s *SummaryStorage) GetRecord(ctx context.Context, id string) (*models.SummaryRecord, error) {
	var record models.SummaryRecord
	if err := s.db.Store().Get(id, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("summary record not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get summary record: %w", err)
	}
	return &record, nil
}

// ListRecords returns records ordered by creation time, newest first
func (s *SummaryStorage) ListRecords(ctx context.Context, limit int) ([]*models.SummaryRecord, error) {
	var records []models.SummaryRecord
	if err := s.db.Store().Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to list summary records: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	result := make([]*models.SummaryRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

// UpdateStatus transitions a record's overall status. Transitions that move
// backwards or leave a terminal state are rejected.
func (s *SummaryStorage) UpdateStatus(ctx context.Context, id string, status models.SummaryStatus, errMsg string) error {
	record, err := s.GetRecord(ctx, id)
	if err != nil {
		return err
	}

	if record.OverallStatus == status {
		return nil
	}
	if !record.OverallStatus.CanTransition(status) {
		return fmt.Errorf("invalid status transition for %s: %s -> %s", id, record.OverallStatus, status)
	}

	record.OverallStatus = status
	if status == models.SummaryStatusError && errMsg != "" {
		// Attach the failure to whichever pass was in flight
		if record.Pass2.BatchID != "" && record.Pass2.CompletedAt == nil {
			record.Pass2.Error = errMsg
		} else {
			record.Pass1.Error = errMsg
		}
	}

	s.logger.Debug().
		Str("record_id", id).
		Str("status", string(status)).
		Msg("Summary status updated")

	return s.SaveRecord(ctx, record)
}

// SetFinalFields writes the user-edited override group without touching
// pipeline state.
func (s *SummaryStorage) SetFinalFields(ctx context.Context, id string, fields models.SummaryFields) error {
	record, err := s.GetRecord(ctx, id)
	if err != nil {
		return err
	}

	record.Final = fields
	return s.SaveRecord(ctx, record)
}

// DeleteRecord removes a summary record
func (s *SummaryStorage) DeleteRecord(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.SummaryRecord{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete summary record: %w", err)
	}
	return nil
}
