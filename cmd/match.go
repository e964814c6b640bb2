package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-organizer/internal/cluster"
	"github.com/kozaktomas/face-organizer/internal/config"
	"github.com/kozaktomas/face-organizer/internal/detect"
)

var matchCmd = &cobra.Command{
	Use:   "match <photo>",
	Short: "Identify known people in a single photo",
	Long: `Match detects the faces in one photo and looks each of them up in the
index of named people. It never creates new groups; run organize for
that.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Float64("tolerance", 0, "Max face distance for a match (0 = use FACE_TOLERANCE)")
	matchCmd.Flags().Int("limit", 3, "Candidates to show per face")
}

func runMatch(cmd *cobra.Command, args []string) error {
	photoPath := args[0]

	cfg := config.Load()
	if cmd.Flags().Changed("tolerance") {
		cfg.Pipeline.Tolerance = mustGetFloat64(cmd, "tolerance")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	limit := mustGetInt(cmd, "limit")

	store, err := cluster.OpenStore(cfg.Cache.PeoplePath)
	if err != nil {
		return fmt.Errorf("failed to open people store: %w", err)
	}

	index := cluster.NewIdentityIndex()
	if err := index.Load(cfg.Cache.IndexPath, store.All()); err != nil {
		return fmt.Errorf("failed to load identity index: %w", err)
	}
	if index.Count() == 0 {
		index.Build(store.All())
	}
	if index.Count() == 0 {
		fmt.Println("No named people yet. Run 'face-organizer organize' first.")
		return nil
	}

	data, err := os.ReadFile(photoPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", photoPath, err)
	}

	detector := detect.NewClient(cfg.Detector.URL, cfg.Detector.Accelerated)
	detections, err := detector.Detect(context.Background(), data)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}
	if len(detections) == 0 {
		fmt.Println("No faces found in the photo.")
		return nil
	}

	fmt.Printf("Found %d faces in %s:\n\n", len(detections), photoPath)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FACE\tPERSON\tDISTANCE\tMATCH")
	for i, d := range detections {
		clusters, distances, err := index.Search(d.Embedding, limit)
		if err != nil {
			return fmt.Errorf("index search failed: %w", err)
		}
		if len(clusters) == 0 {
			fmt.Fprintf(w, "%d\t(nobody known)\t-\t-\n", i+1)
			continue
		}
		for j, c := range clusters {
			match := "no"
			if distances[j] <= cfg.Pipeline.Tolerance {
				match = "yes"
			}
			fmt.Fprintf(w, "%d\t%s\t%.4f\t%s\n", i+1, c.Name, distances[j], match)
		}
	}
	w.Flush()
	return nil
}
