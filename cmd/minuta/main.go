package main

import (
	"os"

	"github.com/ternarybob/minuta/internal/common"
)

func main() {
	defer common.RecoverWithCrashFile()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
