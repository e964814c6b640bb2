package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-organizer/internal/cluster"
	"github.com/kozaktomas/face-organizer/internal/config"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "List the known people",
	Long: `People lists every face group the organizer knows about, with its
assigned name, skip state and face count.`,
	RunE: runPeopleList,
}

var peopleExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the known people as YAML",
	RunE:  runPeopleExport,
}

var peopleResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget all people and their names",
	Long: `Reset removes every stored face group including assigned names. The
next organize run starts from scratch and asks for every name again.
Already organized folders are not touched.`,
	RunE: runPeopleReset,
}

func init() {
	rootCmd.AddCommand(peopleCmd)
	peopleCmd.AddCommand(peopleExportCmd)
	peopleCmd.AddCommand(peopleResetCmd)

	peopleExportCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
}

func openPeopleStore() (*cluster.Store, error) {
	cfg := config.Load()
	store, err := cluster.OpenStore(cfg.Cache.PeoplePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open people store: %w", err)
	}
	return store, nil
}

func runPeopleList(cmd *cobra.Command, args []string) error {
	store, err := openPeopleStore()
	if err != nil {
		return err
	}

	all := store.All()
	if len(all) == 0 {
		fmt.Println("No people known yet. Run 'face-organizer organize' first.")
		return nil
	}

	for _, c := range all {
		label := c.Name
		switch {
		case c.Skipped:
			label = "(skipped)"
		case label == "":
			label = "(unnamed)"
		}
		fmt.Printf("%-30s %4d faces  %s\n", label, len(c.Members), c.ID)
	}
	fmt.Printf("\nTotal: %d people\n", len(all))
	return nil
}

type exportedPerson struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name,omitempty"`
	Skipped   bool      `yaml:"skipped,omitempty"`
	Faces     int       `yaml:"faces"`
	CreatedAt time.Time `yaml:"created_at"`
}

type exportFile struct {
	Version int              `yaml:"version"`
	People  []exportedPerson `yaml:"people"`
}

func runPeopleExport(cmd *cobra.Command, args []string) error {
	store, err := openPeopleStore()
	if err != nil {
		return err
	}

	file := exportFile{Version: 1}
	for _, c := range store.All() {
		file.People = append(file.People, exportedPerson{
			ID:        c.ID,
			Name:      c.Name,
			Skipped:   c.Skipped,
			Faces:     len(c.Members),
			CreatedAt: c.CreatedAt,
		})
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal people: %w", err)
	}

	output := mustGetString(cmd, "output")
	if output == "" {
		fmt.Print(string(data))
		return nil
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Printf("Exported %d people to %s\n", len(file.People), output)
	return nil
}

func runPeopleReset(cmd *cobra.Command, args []string) error {
	store, err := openPeopleStore()
	if err != nil {
		return err
	}

	count := len(store.All())
	if err := store.Reset(); err != nil {
		return fmt.Errorf("failed to reset people store: %w", err)
	}

	// The identity index is derived from the store; drop it too.
	cfg := config.Load()
	if err := os.Remove(cfg.Cache.IndexPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove identity index: %w", err)
	}

	fmt.Printf("Forgot %d people\n", count)
	return nil
}
