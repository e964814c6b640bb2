package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-organizer/internal/cluster"
	"github.com/kozaktomas/face-organizer/internal/config"
	"github.com/kozaktomas/face-organizer/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control server standalone",
	Long: `Serve starts the HTTP control server without an organize run. It
exposes the known people read-only; the stop and naming endpoints
report that no run is in progress. Use 'organize --with-server' to
control a live run.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "Listen address (defaults to WEB_LISTEN)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	listen := mustGetString(cmd, "listen")
	if listen == "" {
		listen = cfg.Web.Listen
	}

	store, err := cluster.OpenStore(cfg.Cache.PeoplePath)
	if err != nil {
		return fmt.Errorf("failed to open people store: %w", err)
	}

	server := web.NewServer(listen, store)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting control server on http://%s\n", listen)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
