package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/minuta/internal/common"
)

var (
	configFiles []string
	logLevel    string

	// Global state initialized by PersistentPreRunE
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "minuta",
	Short: "Two-pass meeting transcript summarization over the Anthropic batch API",
	Long: `Minuta turns meeting transcripts into structured summaries using a
two-pass pipeline over the Anthropic message batch API.

Pass 1 produces an initial summary, speaker identification, action items,
key decisions and detailed notes from the transcript and meeting context.
Pass 2 refines that output with the pass 1 results as additional context.

Batches typically complete within an hour; runs are resumable, so an
interrupted process picks up the in-flight batch instead of paying twice.`,
	Version:       common.GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Auto-discover config file if not specified
		if len(configFiles) == 0 {
			if _, err := os.Stat("minuta.toml"); err == nil {
				configFiles = append(configFiles, "minuta.toml")
			}
		}

		var err error
		config, err = common.LoadFromFiles(configFiles...)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if logLevel != "" {
			config.Logging.Level = logLevel
		}

		logger = common.InitLogger(config)

		// Crash reports go next to the log file when one is configured
		crashDir := ""
		if logPath := common.GetLogFilePath(logger); logPath != "" {
			crashDir = filepath.Dir(logPath)
		}
		common.InstallCrashHandler(crashDir)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(
		&configFiles, "config", "c", nil,
		"configuration file path (repeatable, later files override earlier ones)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level override (debug, info, warn, error)",
	)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(versionCmd)
}
