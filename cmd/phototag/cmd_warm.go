package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/photon-tag/tagging/internal/tagging/orchestrator"
)

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Force a relevance sweep and report pool sizes",
	Long: `Runs an immediate Active/Warm/Cold relevance sweep outside the
normal per-image cadence, expands neighbors for any newly promoted terms,
and persists the result. Useful after bulk-loading relevance state or when
operating on a schedule rather than per-image.`,
	RunE: runWarm,
}

func runWarm(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	o, err := orchestrator.LoadTagging(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("load tagging engine: %w", err)
	}
	defer o.Close()

	if err := o.WaitProgressive(); err != nil {
		return fmt.Errorf("background encoding: %w", err)
	}

	before := struct{ active, warm, cold int }{}
	before.active, before.warm, before.cold = o.PoolCounts()

	if err := o.ForceSweep(time.Now().Unix()); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	active, warm, cold := o.PoolCounts()
	fmt.Printf("active: %d -> %d\n", before.active, active)
	fmt.Printf("warm:   %d -> %d\n", before.warm, warm)
	fmt.Printf("cold:   %d -> %d\n", before.cold, cold)
	return nil
}
