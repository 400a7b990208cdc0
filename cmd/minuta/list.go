package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/minuta/internal/app"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List summary records, newest first",
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum records to list (0 = all)")
}

func runList(cmd *cobra.Command, args []string) error {
	application, err := app.NewWithoutBatch(config, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	records, err := application.SummaryStorage().ListRecords(context.Background(), listLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No summary records")
		return nil
	}

	for _, record := range records {
		fmt.Printf("%s  %-17s  %s  %s\n",
			record.ID,
			record.OverallStatus,
			record.CreatedAt.Format("2006-01-02 15:04"),
			record.TranscriptID)
	}
	return nil
}
