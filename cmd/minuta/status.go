package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/minuta/internal/app"
	"github.com/ternarybob/minuta/internal/models"
)

var (
	statusID     string
	statusRemote bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a record's pipeline state",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusID, "id", "", "summary record id")
	statusCmd.MarkFlagRequired("id")
	statusCmd.Flags().BoolVar(&statusRemote, "remote", false, "also query the remote batch API for the in-flight pass")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var application *app.App
	var err error
	if statusRemote {
		application, err = app.New(config, logger)
	} else {
		application, err = app.NewWithoutBatch(config, logger)
	}
	if err != nil {
		return err
	}
	defer application.Close()

	record, err := application.SummaryStorage().GetRecord(ctx, statusID)
	if err != nil {
		return err
	}

	fmt.Printf("Record:     %s\n", record.ID)
	fmt.Printf("Transcript: %s\n", record.TranscriptID)
	fmt.Printf("Status:     %s\n", record.OverallStatus)
	for _, job := range record.Jobs() {
		printJob(job, record.Pass(job.Pass))
	}

	if statusRemote {
		if batchID := inFlightBatchID(record); batchID != "" {
			status, err := application.BatchService.GetStatus(ctx, batchID)
			if err != nil {
				return err
			}
			fmt.Printf("Remote:     %s %s (processing=%d succeeded=%d errored=%d)\n",
				status.ID, status.Status,
				status.Counts.Processing, status.Counts.Succeeded, status.Counts.Errored)
		}
	}
	return nil
}

func printJob(job models.SummarizationJob, ps *models.PassState) {
	line := fmt.Sprintf("Pass %d:     batch=%s status=%s", job.Pass, job.BatchID, job.LastStatus)
	if !job.SubmittedAt.IsZero() {
		line += " submitted=" + job.SubmittedAt.Format("2006-01-02 15:04:05")
	}
	if job.EndedAt != nil {
		line += " completed=" + job.EndedAt.Format("2006-01-02 15:04:05")
	}
	if ps.Error != "" {
		line += " error=" + ps.Error
	}
	fmt.Println(line)
}

// inFlightBatchID returns the batch id of the pass currently awaited, if any.
func inFlightBatchID(record *models.SummaryRecord) string {
	switch record.OverallStatus {
	case models.SummaryStatusPass1Submitted, models.SummaryStatusPass1Processing:
		return record.Pass1.BatchID
	case models.SummaryStatusPass2Submitted, models.SummaryStatusPass2Processing:
		return record.Pass2.BatchID
	}
	return ""
}
