package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/podforge/digest-api/pkg/config"
)

// configFile is the --config override; applied before config.Init.
var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "digest-api",
	Short: "Podcast Digest API server",
	Long: `Podcast Digest API - turns recent podcast episodes into short digests

The pipeline fetches the recent window for a curated podcast catalog,
reuses published transcripts where they exist, downloads and transcribes
audio where they don't, and summarizes every transcript with an LLM.
Results are served over a local HTTP API and by one-shot batch runs.

Features:
  • Episode discovery via RSS, the Apple directory and Podcast Index
  • Published-transcript reuse before any audio is touched
  • Multi-strategy audio download with per-podcast routing
  • Speech-to-text with test-mode trimming and a circuit breaker
  • Two summaries per episode: digest paragraph and detailed notes`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// NewRootCmd creates a new root command (exported for testing)
func NewRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	// Set up configuration loading with lazy initialization
	cobra.OnInitialize(loadConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./config.yaml)")
}

// loadConfig loads the configuration when a command needs it.
// This is called lazily only when a command that needs config runs.
func loadConfig() {
	// Version and help run without any configuration at all.
	cmd, _, _ := rootCmd.Find(os.Args[1:])
	if cmd != nil && (cmd.Name() == "version" || cmd.Name() == "help") {
		return
	}

	config.SetConfigPath(configFile)

	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
}
