package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/minuta/internal/common"
	"github.com/ternarybob/minuta/internal/interfaces"
	"github.com/ternarybob/minuta/internal/models"
	"github.com/ternarybob/minuta/internal/services/batch"
	badgerstorage "github.com/ternarybob/minuta/internal/storage/badger"
)

// fakeBatch is an in-memory BatchService. Each custom id maps to a batch
// id on submission; each batch id maps to a raw JSONL results document.
type fakeBatch struct {
	mu          sync.Mutex
	submitCalls int
	submitted   [][]interfaces.BatchRequest
	batchFor    map[string]string // custom_id -> batch id
	resultsFor  map[string]string // batch id -> raw JSONL
	status      string            // status reported before "ended" (empty = ended right away)
	submitErr   error
	onStatus    func()
	cancelled   []string
	logger      arbor.ILogger
}

func newFakeBatch() *fakeBatch {
	return &fakeBatch{
		batchFor:   make(map[string]string),
		resultsFor: make(map[string]string),
		logger:     arbor.NewLogger(),
	}
}

func (f *fakeBatch) Submit(ctx context.Context, requests []interfaces.BatchRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	f.submitted = append(f.submitted, requests)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	batchID, ok := f.batchFor[requests[0].CustomID]
	if !ok {
		return "", &batch.SubmissionError{Err: fmt.Errorf("no scripted batch for custom id %s", requests[0].CustomID)}
	}
	return batchID, nil
}

func (f *fakeBatch) GetStatus(ctx context.Context, batchID string) (*interfaces.BatchStatus, error) {
	if f.onStatus != nil {
		f.onStatus()
	}
	status := f.status
	if status == "" {
		status = interfaces.BatchStatusEnded
	}
	return &interfaces.BatchStatus{
		ID:     batchID,
		Status: status,
		Counts: interfaces.BatchRequestCounts{Succeeded: 1},
	}, nil
}

func (f *fakeBatch) RetrieveResults(ctx context.Context, batchID string) ([]interfaces.BatchResult, error) {
	raw, ok := f.resultsFor[batchID]
	if !ok {
		return nil, fmt.Errorf("no scripted results for batch %s", batchID)
	}
	results, _ := batch.ParseResultLines(strings.NewReader(raw), f.logger)
	return results, nil
}

func (f *fakeBatch) Cancel(ctx context.Context, batchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, batchID)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeBatch, interfaces.SummaryStorage) {
	t.Helper()

	manager, err := badgerstorage.NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	fake := newFakeBatch()
	svc := NewService(fake, manager.SummaryStorage(), "", arbor.NewLogger())
	return svc, fake, manager.SummaryStorage()
}

// succeededLine builds one JSONL result line whose text payload is the
// given model output.
func succeededLine(customID, payload string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`).Replace(payload)
	return fmt.Sprintf(`{"custom_id": %q, "result": {"type": "succeeded", "message": {"content": [{"type": "text", "text": "%s"}]}}}`, customID, escaped)
}

func testInput(id string) *interfaces.PipelineInput {
	return &interfaces.PipelineInput{
		Transcript: &models.Transcript{ID: id, Text: "Alice: hello\nBob: hi"},
		Meeting: models.MeetingMetadata{
			Subject:   "Weekly sync",
			Organizer: "Alice",
			Attendees: []string{"Alice", "Bob"},
			StartTime: time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
		},
	}
}

func TestRunTwoPassComplete(t *testing.T) {
	svc, fake, storage := newTestService(t)
	ctx := context.Background()

	record := models.NewSummaryRecord("tr-1", "meet-1")
	require.NoError(t, storage.SaveRecord(ctx, record))

	fake.batchFor[record.CustomID(1)] = "batch_p1"
	fake.batchFor[record.CustomID(2)] = "batch_p2"
	fake.resultsFor["batch_p1"] = succeededLine(record.CustomID(1),
		`{"summary": "first pass", "speakers": {"Speaker 1": "Alice"}}`)
	// The pass 2 payload carries a trailing comma the repair layer fixes
	fake.resultsFor["batch_p2"] = succeededLine(record.CustomID(2),
		`{"summary": "refined", "key_decisions": ["ship it",],}`)

	require.NoError(t, svc.Run(ctx, record.ID, testInput("tr-1")))

	loaded, err := storage.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SummaryStatusComplete, loaded.OverallStatus)
	assert.Equal(t, "batch_p1", loaded.Pass1.BatchID)
	assert.Equal(t, "batch_p2", loaded.Pass2.BatchID)
	assert.Equal(t, "first pass", loaded.Pass1.Fields.Summary)
	assert.Equal(t, "refined", loaded.Pass2.Fields.Summary)
	assert.Equal(t, []string{"ship it"}, loaded.Pass2.Fields.Decisions)
	assert.NotNil(t, loaded.Pass1.CompletedAt)
	assert.NotNil(t, loaded.Pass2.CompletedAt)
	assert.Equal(t, "refined", loaded.EffectiveSummary())

	require.Equal(t, 2, fake.submitCalls)
	assert.Equal(t, record.CustomID(1), fake.submitted[0][0].CustomID)
	assert.Equal(t, record.CustomID(2), fake.submitted[1][0].CustomID)
	// The pass 2 prompt embeds the pass 1 output
	assert.Contains(t, fake.submitted[1][0].Prompt, "first pass")
}

func TestRunSharedBatchPicksOwnLine(t *testing.T) {
	svc, fake, storage := newTestService(t)
	ctx := context.Background()

	recordA := models.NewSummaryRecord("tr-a", "")
	recordB := models.NewSummaryRecord("tr-b", "")
	require.NoError(t, storage.SaveRecord(ctx, recordA))
	require.NoError(t, storage.SaveRecord(ctx, recordB))

	// Both pass 1 requests land in the same remote batch; pass 2 diverges.
	fake.batchFor[recordA.CustomID(1)] = "batch_shared"
	fake.batchFor[recordB.CustomID(1)] = "batch_shared"
	fake.batchFor[recordA.CustomID(2)] = "batch_a2"
	fake.batchFor[recordB.CustomID(2)] = "batch_b2"

	fake.resultsFor["batch_shared"] = strings.Join([]string{
		succeededLine(recordA.CustomID(1), `{"summary": "summary A"}`),
		succeededLine(recordB.CustomID(1), `{"summary": "summary B",}`),
	}, "\n")
	fake.resultsFor["batch_a2"] = succeededLine(recordA.CustomID(2), `{"summary": "final A"}`)
	fake.resultsFor["batch_b2"] = succeededLine(recordB.CustomID(2), `{"summary": "final B"}`)

	require.NoError(t, svc.Run(ctx, recordA.ID, testInput("tr-a")))
	require.NoError(t, svc.Run(ctx, recordB.ID, testInput("tr-b")))

	loadedA, err := storage.GetRecord(ctx, recordA.ID)
	require.NoError(t, err)
	loadedB, err := storage.GetRecord(ctx, recordB.ID)
	require.NoError(t, err)

	assert.Equal(t, "summary A", loadedA.Pass1.Fields.Summary)
	assert.Equal(t, "summary B", loadedB.Pass1.Fields.Summary)
	assert.Equal(t, "final A", loadedA.Pass2.Fields.Summary)
	assert.Equal(t, "final B", loadedB.Pass2.Fields.Summary)
}

func TestResumeNeverResubmits(t *testing.T) {
	svc, fake, storage := newTestService(t)
	ctx := context.Background()

	record := models.NewSummaryRecord("tr-1", "")
	now := time.Now().Add(-10 * time.Minute)
	record.OverallStatus = models.SummaryStatusPass1Submitted
	record.Pass1.BatchID = "batch_p1"
	record.Pass1.SubmittedAt = &now
	require.NoError(t, storage.SaveRecord(ctx, record))

	fake.batchFor[record.CustomID(2)] = "batch_p2"
	fake.resultsFor["batch_p1"] = succeededLine(record.CustomID(1), `{"summary": "resumed pass 1"}`)
	fake.resultsFor["batch_p2"] = succeededLine(record.CustomID(2), `{"summary": "pass 2"}`)

	require.NoError(t, svc.Run(ctx, record.ID, testInput("tr-1")))

	loaded, err := storage.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SummaryStatusComplete, loaded.OverallStatus)
	assert.Equal(t, "resumed pass 1", loaded.Pass1.Fields.Summary)

	// Only pass 2 was submitted; pass 1 re-attached to the existing batch
	require.Equal(t, 1, fake.submitCalls)
	assert.Equal(t, record.CustomID(2), fake.submitted[0][0].CustomID)
}

func TestResumePass2WithoutInput(t *testing.T) {
	svc, fake, storage := newTestService(t)
	ctx := context.Background()

	record := models.NewSummaryRecord("tr-1", "")
	completed := time.Now().Add(-time.Hour)
	record.OverallStatus = models.SummaryStatusPass2Submitted
	record.Pass1 = models.PassState{
		BatchID:     "batch_p1",
		CompletedAt: &completed,
		Fields:      models.SummaryFields{Summary: "done earlier"},
	}
	record.Pass2.BatchID = "batch_p2"
	record.Pass2.SubmittedAt = &completed
	require.NoError(t, storage.SaveRecord(ctx, record))

	fake.resultsFor["batch_p2"] = succeededLine(record.CustomID(2), `{"summary": "pass 2 done"}`)

	require.NoError(t, svc.Run(ctx, record.ID, nil))

	loaded, err := storage.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SummaryStatusComplete, loaded.OverallStatus)
	assert.Equal(t, "pass 2 done", loaded.Pass2.Fields.Summary)
	assert.Zero(t, fake.submitCalls)
}

func TestPass2FailsClosedWithoutPass1(t *testing.T) {
	svc, _, storage := newTestService(t)
	ctx := context.Background()

	// Status claims pass 1 completion but carries no completed pass state
	record := models.NewSummaryRecord("tr-1", "")
	record.OverallStatus = models.SummaryStatusPass1Complete
	require.NoError(t, storage.SaveRecord(ctx, record))

	err := svc.Run(ctx, record.ID, testInput("tr-1"))
	require.ErrorIs(t, err, ErrPassOrder)

	loaded, gerr := storage.GetRecord(ctx, record.ID)
	require.NoError(t, gerr)
	assert.Equal(t, models.SummaryStatusError, loaded.OverallStatus)
}

func TestCancellationDuringPoll(t *testing.T) {
	svc, fake, storage := newTestService(t)
	ctx := context.Background()

	record := models.NewSummaryRecord("tr-1", "")
	require.NoError(t, storage.SaveRecord(ctx, record))

	fake.batchFor[record.CustomID(1)] = "batch_p1"
	fake.status = interfaces.BatchStatusInProgress
	// Flip the cancel flag while the first status check is in flight; the
	// poll loop must exit before its next sleep.
	fake.onStatus = func() { svc.Cancel(record.ID) }

	require.NoError(t, svc.Run(ctx, record.ID, testInput("tr-1")))

	loaded, err := storage.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SummaryStatusCancelled, loaded.OverallStatus)
	assert.Equal(t, 1, fake.submitCalls)
	assert.False(t, svc.IsActive(record.ID))
}

func TestErroredResultMarksError(t *testing.T) {
	svc, fake, storage := newTestService(t)
	ctx := context.Background()

	record := models.NewSummaryRecord("tr-1", "")
	require.NoError(t, storage.SaveRecord(ctx, record))

	fake.batchFor[record.CustomID(1)] = "batch_p1"
	fake.resultsFor["batch_p1"] = fmt.Sprintf(
		`{"custom_id": %q, "result": {"type": "errored", "error": {"type": "error", "error": {"type": "invalid_request_error", "message": "prompt too long"}}}}`,
		record.CustomID(1))

	err := svc.Run(ctx, record.ID, testInput("tr-1"))
	require.Error(t, err)

	var erroredErr *batch.ErroredResultError
	assert.True(t, errors.As(err, &erroredErr))

	loaded, gerr := storage.GetRecord(ctx, record.ID)
	require.NoError(t, gerr)
	assert.Equal(t, models.SummaryStatusError, loaded.OverallStatus)
	assert.Contains(t, loaded.Pass1.Error, "prompt too long")
	// Failures keep the batch id for operator follow-up
	assert.Equal(t, "batch_p1", loaded.Pass1.BatchID)
}

func TestUnparsableOutputKeepsRaw(t *testing.T) {
	svc, fake, storage := newTestService(t)
	ctx := context.Background()

	record := models.NewSummaryRecord("tr-1", "")
	require.NoError(t, storage.SaveRecord(ctx, record))

	garbage := "I could not produce JSON today, sorry."
	fake.batchFor[record.CustomID(1)] = "batch_p1"
	fake.resultsFor["batch_p1"] = succeededLine(record.CustomID(1), garbage)

	err := svc.Run(ctx, record.ID, testInput("tr-1"))
	require.Error(t, err)

	loaded, gerr := storage.GetRecord(ctx, record.ID)
	require.NoError(t, gerr)
	assert.Equal(t, models.SummaryStatusError, loaded.OverallStatus)
	assert.Equal(t, garbage, loaded.Pass1.RawOutput)
	assert.True(t, loaded.Pass1.Fields.IsEmpty())
}

func TestRunTerminalRecordRejected(t *testing.T) {
	svc, _, storage := newTestService(t)
	ctx := context.Background()

	record := models.NewSummaryRecord("tr-1", "")
	record.OverallStatus = models.SummaryStatusComplete
	require.NoError(t, storage.SaveRecord(ctx, record))

	err := svc.Run(ctx, record.ID, testInput("tr-1"))
	assert.Error(t, err)
}

func TestRunRequiresTranscript(t *testing.T) {
	svc, _, storage := newTestService(t)
	ctx := context.Background()

	record := models.NewSummaryRecord("tr-1", "")
	require.NoError(t, storage.SaveRecord(ctx, record))

	err := svc.Run(ctx, record.ID, &interfaces.PipelineInput{})
	assert.Error(t, err)
}

func TestConcurrentRunRejected(t *testing.T) {
	svc, _, _ := newTestService(t)

	handle, err := svc.acquire("sum_busy")
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.True(t, svc.IsActive("sum_busy"))

	_, err = svc.acquire("sum_busy")
	assert.ErrorIs(t, err, ErrRunActive)

	svc.release("sum_busy")
	assert.False(t, svc.IsActive("sum_busy"))
}
