package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facegate",
	Short: "Face recognition attendance tracking",
	Long: `Facegate tracks employee attendance with face recognition. A camera feed
is matched against a gallery of known faces, a blink-based liveness gate
filters out photos held up to the lens, and check-ins and check-outs are
recorded into per-day CSV ledgers.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
