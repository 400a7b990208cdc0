package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/minuta/internal/app"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage stored API keys and settings",
}

var keysSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Store a key (e.g. anthropic_api_key)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.NewWithoutBatch(config, logger)
		if err != nil {
			return err
		}
		defer application.Close()

		if err := application.StorageManager.KeyValueStorage().Set(context.Background(), args[0], args[1], ""); err != nil {
			return err
		}
		fmt.Printf("Stored %s\n", args[0])
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys (values redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.NewWithoutBatch(config, logger)
		if err != nil {
			return err
		}
		defer application.Close()

		pairs, err := application.StorageManager.KeyValueStorage().List(context.Background())
		if err != nil {
			return err
		}
		for _, pair := range pairs {
			fmt.Printf("%s  (updated %s)\n", pair.Key, pair.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.NewWithoutBatch(config, logger)
		if err != nil {
			return err
		}
		defer application.Close()

		if err := application.StorageManager.KeyValueStorage().Delete(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysSetCmd)
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysDeleteCmd)
}
