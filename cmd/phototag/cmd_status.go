package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/photon-tag/tagging/internal/tagging/orchestrator"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report vocabulary and encoding progress",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	o, err := orchestrator.LoadTagging(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("load tagging engine: %w", err)
	}
	defer o.Close()

	fmt.Printf("vocabulary:    %d terms\n", o.Vocabulary().Len())
	fmt.Printf("encoded:       %d terms\n", o.EncodedTermCount())
	fmt.Printf("progressive:   %v\n", cfg.ProgressiveEnabled)

	if err := o.WaitProgressive(); err != nil {
		return fmt.Errorf("background encoding: %w", err)
	}
	fmt.Printf("final encoded: %d terms\n", o.EncodedTermCount())
	return nil
}
