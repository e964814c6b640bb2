package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-organizer/internal/cluster"
	"github.com/kozaktomas/face-organizer/internal/config"
	"github.com/kozaktomas/face-organizer/internal/detect"
	"github.com/kozaktomas/face-organizer/internal/enccache"
	"github.com/kozaktomas/face-organizer/internal/naming"
	"github.com/kozaktomas/face-organizer/internal/pipeline"
	"github.com/kozaktomas/face-organizer/internal/web"
)

var organizeCmd = &cobra.Command{
	Use:   "organize <source-dir> <dest-dir>",
	Short: "Group photos by the people in them",
	Long: `Organize scans the source directory, detects faces in every photo,
groups them by person and copies each photo into a folder per named
person. Unknown groups are presented for naming before any file is
copied; photos with no named face go to the unsorted folder.

Press Ctrl+C once to stop gracefully: finished detections are kept in
the cache and the next run resumes where this one left off.`,
	Args: cobra.ExactArgs(2),
	RunE: runOrganize,
}

func init() {
	rootCmd.AddCommand(organizeCmd)

	organizeCmd.Flags().Float64("tolerance", 0, "Max face distance for a same-person match (0 = use FACE_TOLERANCE)")
	organizeCmd.Flags().Int("workers", 0, "Number of parallel detections (0 = use MAX_WORKERS)")
	organizeCmd.Flags().Bool("accelerated", false, "Use the CNN detector model on the sidecar")
	organizeCmd.Flags().Float64("resize-factor", 0, "Downscale factor before detection (0 = use DETECTOR_RESIZE_FACTOR)")
	organizeCmd.Flags().Bool("with-server", false, "Start the control server for progress and naming over HTTP")
}

func runOrganize(cmd *cobra.Command, args []string) error {
	sourceDir := args[0]
	destDir := args[1]

	cfg := config.Load()
	if cmd.Flags().Changed("tolerance") {
		cfg.Pipeline.Tolerance = mustGetFloat64(cmd, "tolerance")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Pipeline.MaxWorkers = mustGetInt(cmd, "workers")
	}
	if cmd.Flags().Changed("resize-factor") {
		cfg.Detector.ResizeFactor = mustGetFloat64(cmd, "resize-factor")
	}
	if mustGetBool(cmd, "accelerated") {
		cfg.Detector.Accelerated = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cache := enccache.Open(cfg.Cache.Path, cfg.Cache.MaxEntries, time.Duration(cfg.Cache.MaxAgeDays)*24*time.Hour)
	store, err := cluster.OpenStore(cfg.Cache.PeoplePath)
	if err != nil {
		return fmt.Errorf("failed to open people store: %w", err)
	}
	index := cluster.NewIdentityIndex()
	detector := detect.NewClient(cfg.Detector.URL, cfg.Detector.Accelerated)

	bar := newDetectionBar()
	progress := func(event pipeline.Event) {
		switch event.Type {
		case pipeline.EventScanned:
			bar.ChangeMax(event.Counts.Scanned)
		case pipeline.EventCachedHit, pipeline.EventDetected, pipeline.EventFailed, pipeline.EventSkipped:
			_ = bar.Add(1)
		}
	}

	var server *web.Server
	if mustGetBool(cmd, "with-server") {
		server = web.NewServer(cfg.Web.Listen, store)
		serverProgress := server.Progress()
		cliProgress := progress
		progress = func(event pipeline.Event) {
			cliProgress(event)
			serverProgress(event)
		}
	}

	p := pipeline.New(cfg, detector, cache, store, index, progress)

	if server != nil {
		server.SetStopFunc(p.Stop)
		p.SetSessionHook(server.SetSession)
		go func() {
			if err := server.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "control server error: %v\n", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		fmt.Printf("Control server listening on http://%s\n", cfg.Web.Listen)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First Ctrl+C stops gracefully, second aborts the run.
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping after in-flight detections finish...")
		p.Stop()
		<-sigChan
		fmt.Println("\nAborting...")
		cancel()
	}()

	fmt.Printf("Organizing %s -> %s\n", sourceDir, destDir)
	fmt.Printf("Tolerance: %g, workers: %d\n\n", cfg.Pipeline.Tolerance, cfg.Pipeline.MaxWorkers)

	result, err := p.Run(ctx, sourceDir, destDir, terminalResolver(os.Stdin))
	if err != nil {
		return fmt.Errorf("organize failed: %w", err)
	}

	printResult(result)
	return nil
}

func newDetectionBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Detecting faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

// terminalResolver prompts on the terminal for each unnamed group. An empty
// answer skips the group for this and future runs.
func terminalResolver(in *os.File) naming.Resolver {
	reader := bufio.NewReader(in)
	return func(req naming.Request) (string, error) {
		fmt.Printf("\nNew person found (%d faces), example photo:\n  %s\n", req.MemberCount, req.Representative.ImagePath)
		fmt.Print("Name (leave empty to skip): ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
}

func printResult(result *pipeline.Result) {
	fmt.Printf("\n\nScanned:    %d photos\n", result.Scanned)
	fmt.Printf("Cache hits: %d\n", result.CachedHits)
	fmt.Printf("Detected:   %d\n", result.Detected)
	fmt.Printf("Skipped:    %d\n", result.Skipped)
	fmt.Printf("Failed:     %d\n", result.Failed)
	fmt.Printf("People:     %d (%d new)\n", result.Clusters, result.NewClusters)
	fmt.Printf("Copied:     %d files (%d already present, %d failed)\n", result.Copied, result.CopySkipped, result.CopyFailed)

	if result.Stopped {
		fmt.Println("\nRun stopped early; finished detections are cached for the next run.")
	}
	if result.Abandoned {
		fmt.Println("Naming was abandoned; unnamed groups were skipped.")
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors: %d\n", len(result.Errors))
		for _, err := range result.Errors {
			fmt.Printf("  - %v\n", err)
		}
	}
}
