// -----------------------------------------------------------------------
// Pipeline Orchestrator - Drives a summary record through both passes
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/minuta/internal/interfaces"
	"github.com/ternarybob/minuta/internal/models"
	"github.com/ternarybob/minuta/internal/services/batch"
)

// ErrPassOrder is returned when pass 2 would be submitted before pass 1
// has completed. The gate fails closed.
var ErrPassOrder = errors.New("pass 2 requires a completed pass 1")

// ErrRunActive is returned when Run is called for a record that already
// has an active run in this process.
var ErrRunActive = errors.New("a run is already active for this record")

// runHandle tracks one in-flight run so it can be cancelled cooperatively.
type runHandle struct {
	cancel *batch.CancelFlag
}

// Service implements interfaces.PipelineService. A record is driven by at
// most one run at a time; the orchestrator is the single writer of the
// record's pipeline state while a run is active.
type Service struct {
	batchSvc     interfaces.BatchService
	poller       *batch.Poller
	storage      interfaces.SummaryStorage
	templatesDir string
	logger       arbor.ILogger

	mu     sync.Mutex
	active map[string]*runHandle
}

var _ interfaces.PipelineService = (*Service)(nil)

// NewService creates the pipeline orchestrator.
func NewService(batchSvc interfaces.BatchService, storage interfaces.SummaryStorage, templatesDir string, logger arbor.ILogger) *Service {
	return &Service{
		batchSvc:     batchSvc,
		poller:       batch.NewPoller(batchSvc, logger),
		storage:      storage,
		templatesDir: templatesDir,
		logger:       logger,
		active:       make(map[string]*runHandle),
	}
}

// Run drives the record from its persisted state to a terminal state.
// Re-entry with a submitted batch id resumes polling instead of
// resubmitting.
func (s *Service) Run(ctx context.Context, recordID string, input *interfaces.PipelineInput) error {
	handle, err := s.acquire(recordID)
	if err != nil {
		return err
	}
	defer s.release(recordID)

	record, err := s.storage.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}

	if record.OverallStatus.IsTerminal() {
		return fmt.Errorf("record %s is already terminal (%s)", recordID, record.OverallStatus)
	}
	// Input is only needed when a prompt will still be built; a record
	// waiting on its pass-2 batch resumes without one.
	needsInput := record.OverallStatus != models.SummaryStatusPass2Submitted &&
		record.OverallStatus != models.SummaryStatusPass2Processing
	if needsInput && (input == nil || input.Transcript == nil ||
		(input.Transcript.Text == "" && len(input.Transcript.Segments) == 0)) {
		return fmt.Errorf("record %s requires a non-empty transcript", recordID)
	}

	err = s.drive(ctx, record, input, handle.cancel)
	if err == nil {
		return nil
	}

	if errors.Is(err, batch.ErrPollCancelled) {
		s.logger.Info().Str("record_id", record.ID).Msg("Run cancelled")
		if terr := s.transition(ctx, record, models.SummaryStatusCancelled, ""); terr != nil {
			return terr
		}
		return nil
	}

	s.logger.Error().Err(err).Str("record_id", record.ID).Msg("Run failed")
	if terr := s.transition(ctx, record, models.SummaryStatusError, err.Error()); terr != nil {
		s.logger.Warn().Err(terr).Str("record_id", record.ID).Msg("Failed to persist error state")
	}
	return err
}

// drive executes the remaining passes from the record's current status.
func (s *Service) drive(ctx context.Context, record *models.SummaryRecord, input *interfaces.PipelineInput, cancel *batch.CancelFlag) error {
	switch record.OverallStatus {
	case models.SummaryStatusPending:
		if err := s.runPass(ctx, record, 1, input, cancel); err != nil {
			return err
		}
		return s.runPass(ctx, record, 2, input, cancel)

	case models.SummaryStatusPass1Submitted, models.SummaryStatusPass1Processing:
		if err := s.resumePass(ctx, record, 1, cancel); err != nil {
			return err
		}
		return s.runPass(ctx, record, 2, input, cancel)

	case models.SummaryStatusPass1Complete:
		return s.runPass(ctx, record, 2, input, cancel)

	case models.SummaryStatusPass2Submitted, models.SummaryStatusPass2Processing:
		return s.resumePass(ctx, record, 2, cancel)

	default:
		return fmt.Errorf("record %s in unexpected state %s", record.ID, record.OverallStatus)
	}
}

// Cancel flags the record's active run for cooperative cancellation.
func (s *Service) Cancel(recordID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.active[recordID]
	if !ok {
		return false
	}
	handle.cancel.Set()
	return true
}

// IsActive reports whether a run is currently driving the record.
func (s *Service) IsActive(recordID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[recordID]
	return ok
}

func (s *Service) acquire(recordID string) (*runHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[recordID]; ok {
		return nil, ErrRunActive
	}
	handle := &runHandle{cancel: &batch.CancelFlag{}}
	s.active[recordID] = handle
	return handle, nil
}

func (s *Service) release(recordID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, recordID)
}

// transition moves the record to a new overall status and persists it.
// Backward or out-of-terminal moves are rejected.
func (s *Service) transition(ctx context.Context, record *models.SummaryRecord, status models.SummaryStatus, errMsg string) error {
	if record.OverallStatus == status {
		return nil
	}
	if !record.OverallStatus.CanTransition(status) {
		return fmt.Errorf("invalid status transition for %s: %s -> %s", record.ID, record.OverallStatus, status)
	}
	record.OverallStatus = status
	if status == models.SummaryStatusError && errMsg != "" {
		if record.Pass2.BatchID != "" && record.Pass2.CompletedAt == nil {
			record.Pass2.Error = errMsg
		} else {
			record.Pass1.Error = errMsg
		}
	}
	return s.storage.SaveRecord(ctx, record)
}
