package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/minuta/internal/app"
	"github.com/ternarybob/minuta/internal/common"
	"github.com/ternarybob/minuta/internal/interfaces"
	"github.com/ternarybob/minuta/internal/models"
)

var runInput inputFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Summarize a transcript through the two-pass batch pipeline",
	Long: `Creates a summary record for the transcript and drives it through both
passes. The process stays attached, polling the remote batch until it
ends; Ctrl+C cancels cooperatively and leaves the record resumable state
intact on the in-flight pass.`,
	RunE: runRun,
}

func init() {
	runInput.register(runCmd)
	runCmd.MarkFlagRequired("transcript")
}

func runRun(cmd *cobra.Command, args []string) error {
	common.PrintBanner(common.GetVersion())

	input, err := runInput.buildInput()
	if err != nil {
		return err
	}

	application, err := app.New(config, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := context.Background()

	record := models.NewSummaryRecord(input.Transcript.ID, runInput.meetingID)
	if err := application.SummaryStorage().SaveRecord(ctx, record); err != nil {
		return err
	}

	logger.Info().
		Str("record_id", record.ID).
		Str("transcript_id", record.TranscriptID).
		Msg("Summary record created")
	fmt.Printf("Record: %s\n", record.ID)

	return driveRecord(ctx, application, record.ID, input)
}

// driveRecord runs the pipeline for a record with SIGINT wired to the
// cooperative cancel flag. Shared by run and resume.
func driveRecord(ctx context.Context, application *app.App, recordID string, input *interfaces.PipelineInput) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan struct{})
	defer close(done)

	common.SafeGo(logger, "signal-cancel", func() {
		select {
		case <-sigChan:
			logger.Info().Str("record_id", recordID).Msg("Interrupt received, cancelling run")
			application.PipelineService.Cancel(recordID)
		case <-done:
		}
	})

	if err := application.PipelineService.Run(ctx, recordID, input); err != nil {
		return err
	}

	record, err := application.SummaryStorage().GetRecord(ctx, recordID)
	if err != nil {
		return err
	}
	fmt.Printf("Status: %s\n", record.OverallStatus)
	if record.OverallStatus == models.SummaryStatusComplete {
		printEffective(record)
	}
	return nil
}
