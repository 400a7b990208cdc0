package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/minuta/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestStorage(t *testing.T) (*SummaryStorage, func()) {
	t.Helper()

	tmpDir := t.TempDir()

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}

	db := &BadgerDB{store: store}
	logger := arbor.NewLogger()
	storage := NewSummaryStorage(db, logger).(*SummaryStorage)

	return storage, func() { store.Close() }
}

func TestSummaryRecordRoundTrip(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()

	record := models.NewSummaryRecord("tr-1", "meet-1")
	now := time.Now()
	record.Pass1 = models.PassState{
		BatchID:     "batch_abc",
		Status:      "ended",
		SubmittedAt: &now,
		Fields: models.SummaryFields{
			Summary:  "pass 1 summary",
			Speakers: map[string]string{"Speaker 1": "Alice"},
			ActionItems: []models.ActionItem{
				{Description: "Send notes", Owner: "Alice"},
			},
			Decisions: []string{"Adopt the plan"},
			Notes:     "details",
		},
	}

	if err := storage.SaveRecord(ctx, record); err != nil {
		t.Fatalf("Failed to save record: %v", err)
	}

	loaded, err := storage.GetRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("Failed to load record: %v", err)
	}
	if loaded.TranscriptID != "tr-1" {
		t.Errorf("TranscriptID = %q, want tr-1", loaded.TranscriptID)
	}
	if loaded.Pass1.BatchID != "batch_abc" {
		t.Errorf("Pass1.BatchID = %q, want batch_abc", loaded.Pass1.BatchID)
	}
	if loaded.Pass1.Fields.Summary != "pass 1 summary" {
		t.Errorf("Pass1 summary = %q", loaded.Pass1.Fields.Summary)
	}
	if loaded.Pass1.Fields.Speakers["Speaker 1"] != "Alice" {
		t.Errorf("Speakers not preserved: %v", loaded.Pass1.Fields.Speakers)
	}
	if len(loaded.Pass1.Fields.ActionItems) != 1 || loaded.Pass1.Fields.ActionItems[0].Description != "Send notes" {
		t.Errorf("ActionItems not preserved: %v", loaded.Pass1.Fields.ActionItems)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	if _, err := storage.GetRecord(context.Background(), "sum_missing"); err == nil {
		t.Fatal("Expected error for missing record")
	}
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	record := models.NewSummaryRecord("tr-1", "")
	if err := storage.SaveRecord(ctx, record); err != nil {
		t.Fatal(err)
	}

	// Forward transition allowed
	if err := storage.UpdateStatus(ctx, record.ID, models.SummaryStatusPass1Submitted, ""); err != nil {
		t.Fatalf("Forward transition rejected: %v", err)
	}

	// Backward transition rejected
	if err := storage.UpdateStatus(ctx, record.ID, models.SummaryStatusPending, ""); err == nil {
		t.Fatal("Backward transition accepted")
	}

	// Escape to cancelled allowed from any non-terminal state
	if err := storage.UpdateStatus(ctx, record.ID, models.SummaryStatusCancelled, ""); err != nil {
		t.Fatalf("Cancel transition rejected: %v", err)
	}

	// Terminal state cannot be left
	if err := storage.UpdateStatus(ctx, record.ID, models.SummaryStatusComplete, ""); err == nil {
		t.Fatal("Transition out of terminal state accepted")
	}
}

func TestUpdateStatusErrorMessageAttachesToActivePass(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	record := models.NewSummaryRecord("tr-1", "")
	record.Pass1.BatchID = "batch_1"
	record.OverallStatus = models.SummaryStatusPass1Processing
	if err := storage.SaveRecord(ctx, record); err != nil {
		t.Fatal(err)
	}

	if err := storage.UpdateStatus(ctx, record.ID, models.SummaryStatusError, "poll gave up"); err != nil {
		t.Fatal(err)
	}

	loaded, err := storage.GetRecord(ctx, record.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Pass1.Error != "poll gave up" {
		t.Errorf("Pass1.Error = %q, want 'poll gave up'", loaded.Pass1.Error)
	}
}

func TestSetFinalFieldsLeavesPipelineStateAlone(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	record := models.NewSummaryRecord("tr-1", "")
	record.OverallStatus = models.SummaryStatusComplete
	record.Pass2.Fields.Summary = "pass 2 summary"
	if err := storage.SaveRecord(ctx, record); err != nil {
		t.Fatal(err)
	}

	edit := models.SummaryFields{Summary: "edited"}
	if err := storage.SetFinalFields(ctx, record.ID, edit); err != nil {
		t.Fatal(err)
	}

	loaded, err := storage.GetRecord(ctx, record.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Final.Summary != "edited" {
		t.Errorf("Final.Summary = %q", loaded.Final.Summary)
	}
	if loaded.Pass2.Fields.Summary != "pass 2 summary" {
		t.Errorf("Pass2 fields were disturbed: %q", loaded.Pass2.Fields.Summary)
	}
	if loaded.OverallStatus != models.SummaryStatusComplete {
		t.Errorf("OverallStatus changed: %s", loaded.OverallStatus)
	}
	if loaded.EffectiveSummary() != "edited" {
		t.Errorf("EffectiveSummary = %q, want edited", loaded.EffectiveSummary())
	}
}

func TestListRecordsNewestFirst(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()

	older := models.NewSummaryRecord("tr-old", "")
	older.CreatedAt = time.Now().Add(-time.Hour)
	if err := storage.SaveRecord(ctx, older); err != nil {
		t.Fatal(err)
	}

	newer := models.NewSummaryRecord("tr-new", "")
	if err := storage.SaveRecord(ctx, newer); err != nil {
		t.Fatal(err)
	}

	records, err := storage.ListRecords(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].TranscriptID != "tr-new" {
		t.Errorf("Expected newest first, got %s", records[0].TranscriptID)
	}

	limited, err := storage.ListRecords(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("Limit not applied, got %d records", len(limited))
	}
}

func TestDeleteRecord(t *testing.T) {
	storage, cleanup := newTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	record := models.NewSummaryRecord("tr-1", "")
	if err := storage.SaveRecord(ctx, record); err != nil {
		t.Fatal(err)
	}
	if err := storage.DeleteRecord(ctx, record.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := storage.GetRecord(ctx, record.ID); err == nil {
		t.Fatal("Record still present after delete")
	}

	// Deleting a missing record is not an error
	if err := storage.DeleteRecord(ctx, "sum_missing"); err != nil {
		t.Fatal(err)
	}
}
