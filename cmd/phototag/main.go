// Package main implements phototag, a CLI over the tagging engine's
// orchestrator. It loads a vocabulary/model/cache directory triple, scores
// image embeddings supplied as raw little-endian float32 files, and reports
// relevance-pool state. Business logic lives in internal/tagging and
// internal/config; this package only wires flags to those packages.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/photon-tag/tagging/internal/logging"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "phototag",
	Short: "Zero-shot image tagging engine",
	Long: `phototag scores image embeddings against a large, hierarchically
structured vocabulary using a progressively-encoded text label bank.

It does not decode images or compute embeddings itself; it consumes
L2-normalised embeddings produced by an external vision encoder and
produces ranked (name, confidence, path) tuples.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.LogDir != "" {
			if err := logging.Init(cfg.LogDir, verbose || cfg.Debug); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to initialize logging: %v\n", err)
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "phototag.yaml", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(scoreCmd, statusCmd, warmCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
