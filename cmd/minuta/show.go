package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/minuta/internal/app"
	"github.com/ternarybob/minuta/internal/models"
)

var (
	showID   string
	showJSON bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a record's effective summary",
	Long: `Prints the display view of a record: for each field group the final
user edit wins, then the pass 2 output, then pass 1.`,
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVar(&showID, "id", "", "summary record id")
	showCmd.MarkFlagRequired("id")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "dump the full record as JSON")
}

func runShow(cmd *cobra.Command, args []string) error {
	application, err := app.NewWithoutBatch(config, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	record, err := application.SummaryStorage().GetRecord(context.Background(), showID)
	if err != nil {
		return err
	}

	if showJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	}

	fmt.Printf("Record: %s (%s)\n\n", record.ID, record.OverallStatus)
	printEffective(record)
	return nil
}

func printEffective(record *models.SummaryRecord) {
	if summary := record.EffectiveSummary(); summary != "" {
		fmt.Printf("Summary:\n%s\n\n", summary)
	}

	if speakers := record.EffectiveSpeakers(); len(speakers) > 0 {
		fmt.Println("Speakers:")
		for label, name := range speakers {
			fmt.Printf("  %s: %s\n", label, name)
		}
		fmt.Println()
	}

	if items := record.EffectiveActionItems(); len(items) > 0 {
		fmt.Println("Action items:")
		for _, item := range items {
			line := "  - " + item.Description
			if item.Owner != "" {
				line += " (" + item.Owner
				if item.DueDate != "" {
					line += ", due " + item.DueDate
				}
				line += ")"
			} else if item.DueDate != "" {
				line += " (due " + item.DueDate + ")"
			}
			fmt.Println(line)
		}
		fmt.Println()
	}

	if decisions := record.EffectiveDecisions(); len(decisions) > 0 {
		fmt.Println("Key decisions:")
		for _, d := range decisions {
			fmt.Printf("  - %s\n", d)
		}
		fmt.Println()
	}

	if notes := record.EffectiveNotes(); notes != "" {
		fmt.Printf("Detailed notes:\n%s\n", notes)
	}
}
