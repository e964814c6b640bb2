package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-organizer/internal/config"
	"github.com/kozaktomas/face-organizer/internal/enccache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the face encoding cache",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show encoding cache statistics",
	RunE:  runCacheInfo,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached face encodings",
	Long: `Clear removes every cached face encoding. The next organize run will
re-detect all photos. Person names are not affected.`,
	RunE: runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func openCache(cfg *config.Config) *enccache.Cache {
	return enccache.Open(cfg.Cache.Path, cfg.Cache.MaxEntries, time.Duration(cfg.Cache.MaxAgeDays)*24*time.Hour)
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	cache := openCache(cfg)

	fmt.Printf("Cache file:  %s\n", cfg.Cache.Path)
	fmt.Printf("Entries:     %d (max %d)\n", cache.Len(), cfg.Cache.MaxEntries)
	fmt.Printf("Max age:     %d days\n", cfg.Cache.MaxAgeDays)

	if info, err := os.Stat(cfg.Cache.Path); err == nil {
		fmt.Printf("File size:   %.1f KiB\n", float64(info.Size())/1024)
	} else {
		fmt.Println("File size:   (not written yet)")
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	cache := openCache(cfg)

	entries := cache.Len()
	if err := cache.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Printf("Removed %d cached encodings\n", entries)
	return nil
}
