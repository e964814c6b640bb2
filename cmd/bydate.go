package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-organizer/internal/bydate"
)

var bydateCmd = &cobra.Command{
	Use:   "bydate <source-dir> <dest-dir>",
	Short: "Move photos into a year/month folder tree",
	Long: `Bydate moves photos from the source directory into a YYYY/MM-Month
folder tree under the destination, using the EXIF taken date when
available and the file modification time otherwise.`,
	Args: cobra.ExactArgs(2),
	RunE: runBydate,
}

func init() {
	rootCmd.AddCommand(bydateCmd)
}

func runBydate(cmd *cobra.Command, args []string) error {
	stats, err := bydate.Organize(args[0], args[1])
	if err != nil {
		return fmt.Errorf("bydate failed: %w", err)
	}

	fmt.Printf("Scanned: %d photos\n", stats.Scanned)
	fmt.Printf("Moved:   %d (%d by EXIF date, %d by file date)\n", stats.Moved, stats.ExifUsed, stats.FallbackUsed)
	fmt.Printf("Skipped: %d\n", stats.Skipped)

	if len(stats.Errors) > 0 {
		fmt.Printf("\nErrors: %d\n", len(stats.Errors))
		for _, err := range stats.Errors {
			fmt.Printf("  - %v\n", err)
		}
	}
	return nil
}
