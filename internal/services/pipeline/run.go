package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/minuta/internal/interfaces"
	"github.com/ternarybob/minuta/internal/models"
	"github.com/ternarybob/minuta/internal/services/batch"
	"github.com/ternarybob/minuta/internal/services/jsonrepair"
	"github.com/ternarybob/minuta/internal/services/prompt"
	"github.com/ternarybob/minuta/internal/templates"
)

func submittedStatus(pass int) models.SummaryStatus {
	if pass == 2 {
		return models.SummaryStatusPass2Submitted
	}
	return models.SummaryStatusPass1Submitted
}

func processingStatus(pass int) models.SummaryStatus {
	if pass == 2 {
		return models.SummaryStatusPass2Processing
	}
	return models.SummaryStatusPass1Processing
}

func completeStatus(pass int) models.SummaryStatus {
	if pass == 2 {
		return models.SummaryStatusComplete
	}
	return models.SummaryStatusPass1Complete
}

func templateName(pass int) string {
	if pass == 2 {
		return templates.Pass2
	}
	return templates.Pass1
}

// runPass builds and submits the prompt for one pass, then waits for the
// batch and persists its outcome.
func (s *Service) runPass(ctx context.Context, record *models.SummaryRecord, pass int, input *interfaces.PipelineInput, cancel *batch.CancelFlag) error {
	if pass == 2 && record.Pass1.CompletedAt == nil {
		return ErrPassOrder
	}

	var pass1Fields *models.SummaryFields
	if pass == 2 {
		pass1Fields = &record.Pass1.Fields
	}

	values, err := prompt.BuildContext(input, pass1Fields)
	if err != nil {
		return fmt.Errorf("pass %d context: %w", pass, err)
	}

	tmpl, err := templates.GetTemplate(templateName(pass), s.templatesDir)
	if err != nil {
		return fmt.Errorf("pass %d template: %w", pass, err)
	}
	promptText := prompt.Render(tmpl.Prompt, values, s.logger)

	batchID, err := s.batchSvc.Submit(ctx, []interfaces.BatchRequest{{
		CustomID: record.CustomID(pass),
		Prompt:   promptText,
	}})
	if err != nil {
		return err
	}

	now := time.Now()
	ps := record.Pass(pass)
	ps.BatchID = batchID
	ps.SubmittedAt = &now
	ps.Status = interfaces.BatchStatusInProgress
	if err := s.transition(ctx, record, submittedStatus(pass), ""); err != nil {
		return err
	}

	s.logger.Info().
		Str("record_id", record.ID).
		Int("pass", pass).
		Str("batch_id", batchID).
		Msg("Pass submitted")

	return s.pollAndFinish(ctx, record, pass, cancel)
}

// resumePass re-attaches to an already submitted batch. It never resubmits:
// the persisted batch id is the source of truth for in-flight work.
func (s *Service) resumePass(ctx context.Context, record *models.SummaryRecord, pass int, cancel *batch.CancelFlag) error {
	ps := record.Pass(pass)
	if ps.BatchID == "" {
		return fmt.Errorf("record %s pass %d has status %s but no batch id", record.ID, pass, record.OverallStatus)
	}

	s.logger.Info().
		Str("record_id", record.ID).
		Int("pass", pass).
		Str("batch_id", ps.BatchID).
		Msg("Resuming pass from persisted batch id")

	return s.pollAndFinish(ctx, record, pass, cancel)
}

// pollAndFinish waits for the pass's batch to end, retrieves this record's
// result line, repair-parses it and persists the parsed fields.
func (s *Service) pollAndFinish(ctx context.Context, record *models.SummaryRecord, pass int, cancel *batch.CancelFlag) error {
	ps := record.Pass(pass)

	since := time.Now()
	if ps.SubmittedAt != nil {
		since = *ps.SubmittedAt
	}

	progress := func(p batch.PollProgress) {
		ps.Status = p.Status
		if record.OverallStatus == submittedStatus(pass) {
			if err := s.transition(ctx, record, processingStatus(pass), ""); err != nil {
				s.logger.Warn().Err(err).Str("record_id", record.ID).Msg("Failed to persist processing status")
			}
			return
		}
		if err := s.storage.SaveRecord(ctx, record); err != nil {
			s.logger.Warn().Err(err).Str("record_id", record.ID).Msg("Failed to persist poll progress")
		}
	}

	final, err := s.poller.Wait(ctx, ps.BatchID, since, cancel, progress)
	if err != nil {
		return err
	}
	ps.Status = final.Status

	results, err := s.batchSvc.RetrieveResults(ctx, ps.BatchID)
	if err != nil {
		return err
	}

	customID := record.CustomID(pass)
	var found *interfaces.BatchResult
	for i := range results {
		if results[i].CustomID == customID {
			found = &results[i]
			break
		}
	}
	if found == nil {
		return fmt.Errorf("batch %s returned no result for custom id %s", ps.BatchID, customID)
	}

	text, err := batch.ExtractText(*found)
	if err != nil {
		return fmt.Errorf("batch %s: %w", ps.BatchID, err)
	}

	doc, err := jsonrepair.Parse(text)
	if err != nil {
		// Keep the raw model output so nothing paid for is discarded.
		ps.RawOutput = text
		return fmt.Errorf("batch %s: %w", ps.BatchID, err)
	}

	now := time.Now()
	ps.Fields = jsonrepair.ExtractSummaryFields(doc)
	ps.CompletedAt = &now

	if err := s.transition(ctx, record, completeStatus(pass), ""); err != nil {
		return err
	}

	s.logger.Info().
		Str("record_id", record.ID).
		Int("pass", pass).
		Str("batch_id", ps.BatchID).
		Msg("Pass complete")

	return nil
}
