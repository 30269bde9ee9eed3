package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/photon-tag/tagging/internal/tagging/orchestrator"
)

var scoreCmd = &cobra.Command{
	Use:   "score [embedding-file]",
	Short: "Score an image embedding against the vocabulary",
	Long: `Reads a raw little-endian float32 embedding (as produced by an
external vision encoder) and prints the ranked tags for it.

The embedding file must contain exactly D = 768 float32 values.`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	embedding, err := readEmbedding(args[0])
	if err != nil {
		return fmt.Errorf("read embedding: %w", err)
	}

	o, err := orchestrator.LoadTagging(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("load tagging engine: %w", err)
	}
	defer o.Close()

	tags, err := o.Score(embedding, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}

	for _, t := range tags {
		if t.Path != "" {
			fmt.Printf("%-30s %.3f  %s\n", t.Name, t.Confidence, t.Path)
		} else {
			fmt.Printf("%-30s %.3f\n", t.Name, t.Confidence)
		}
	}

	if err := o.SaveRelevance(time.Now().Unix()); err != nil {
		return fmt.Errorf("save relevance state: %w", err)
	}
	return nil
}

func readEmbedding(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding file length %d is not a multiple of 4 bytes", len(data))
	}
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}
