package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/podforge/digest-api/api"
	"github.com/podforge/digest-api/api/types"
	"github.com/podforge/digest-api/internal/logging"
	"github.com/podforge/digest-api/pkg/config"
)

var (
	serverHost string
	serverPort int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the Podcast Digest API server with the configured settings.

The server exposes the digest pipeline over HTTP: fetching the recent
episode window, starting and watching processing runs, and reading the
stored transcripts and summaries.

Example:
  digest-api serve
  digest-api serve --port 9090
  digest-api serve --host 0.0.0.0 --port 8080`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server flags
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host (overrides config)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Use config values if flags not provided
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logging.Configure(cfg.Logging)

	app, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Sweep temp files and evict transcribed audio in the background.
	app.Cleanup.Start(ctx)

	reapStaleRun(ctx, app.Runs)

	server := api.NewServer(cfg.Server)
	server.SetDatabase(app.DB)
	server.SetDependencies(&types.Dependencies{
		DB:       app.DB,
		Catalog:  app.Catalog,
		Store:    app.Store,
		Pipeline: app.Pipeline,
		Runs:     app.Runs,
		Cache:    app.Cache,
	})
	if err := server.Initialize(); err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}

	// Channel to listen for interrupt signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("server error: %w", err)
		}
	}()

	log.Printf("[INFO] Serving on %s", server.Addr())

	// Wait for interrupt signal or server error
	select {
	case <-stop:
		log.Printf("[INFO] Shutting down")
	case err := <-serverErr:
		log.Printf("[ERROR] %v", err)
	}

	// Stop the in-flight run and the sweeper before closing the listener;
	// the run finishes its current stage and records itself cancelled.
	app.Pipeline.Cancel()
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Printf("[INFO] Server stopped")
	return nil
}
