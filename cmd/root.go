package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-organizer",
	Short: "A CLI tool for organizing photos by the people in them",
	Long: `Face Organizer scans a folder of photos, detects the faces in each one
using a local detection sidecar, groups them by person, asks you to name
each person once, and copies the photos into per-person folders.`,
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
