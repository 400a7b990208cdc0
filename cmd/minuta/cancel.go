package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/minuta/internal/app"
	"github.com/ternarybob/minuta/internal/models"
)

var cancelID string

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a record's in-flight run",
	Long: `Requests best-effort cancellation of the record's in-flight batch and
marks the record cancelled. The remote side may finish requests that are
already processing; cancellation never erases persisted pass results.`,
	RunE: runCancel,
}

func init() {
	cancelCmd.Flags().StringVar(&cancelID, "id", "", "summary record id")
	cancelCmd.MarkFlagRequired("id")
}

func runCancel(cmd *cobra.Command, args []string) error {
	application, err := app.New(config, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := context.Background()

	record, err := application.SummaryStorage().GetRecord(ctx, cancelID)
	if err != nil {
		return err
	}
	if record.OverallStatus.IsTerminal() {
		fmt.Printf("Record %s is already %s\n", record.ID, record.OverallStatus)
		return nil
	}

	if batchID := inFlightBatchID(record); batchID != "" {
		if err := application.BatchService.Cancel(ctx, batchID); err != nil {
			logger.Warn().Err(err).Str("batch_id", batchID).Msg("Remote cancel failed, marking record cancelled anyway")
		}
	}

	if err := application.SummaryStorage().UpdateStatus(ctx, record.ID, models.SummaryStatusCancelled, ""); err != nil {
		return err
	}
	fmt.Printf("Record %s cancelled\n", record.ID)
	return nil
}
