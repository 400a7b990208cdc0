package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/minuta/internal/app"
	"github.com/ternarybob/minuta/internal/common"
)

var (
	resumeInput inputFlags
	resumeID    string
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume an interrupted summarization run",
	Long: `Re-attaches to the record's persisted state. A pass with a submitted
batch id is polled, never resubmitted. The transcript flags are only
needed when the run still has a prompt to build (anything before the
pass 2 submission).`,
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeID, "id", "", "summary record id")
	resumeCmd.MarkFlagRequired("id")
	resumeInput.register(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	common.PrintBanner(common.GetVersion())

	input, err := resumeInput.buildInput()
	if err != nil {
		return err
	}

	application, err := app.New(config, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := context.Background()

	record, err := application.SummaryStorage().GetRecord(ctx, resumeID)
	if err != nil {
		return err
	}
	fmt.Printf("Record: %s (%s)\n", record.ID, record.OverallStatus)

	return driveRecord(ctx, application, record.ID, input)
}
