// Package orchestrator exposes the tagging engine's public surface: load
// once at startup, score images as they arrive, persist relevance state
// on checkpoints and shutdown.
package orchestrator

import (
	"context"

	"github.com/photon-tag/tagging/internal/config"
	"github.com/photon-tag/tagging/internal/logging"
	"github.com/photon-tag/tagging/internal/tagging"
	"github.com/photon-tag/tagging/internal/tagging/cache"
	"github.com/photon-tag/tagging/internal/tagging/hierarchy"
	"github.com/photon-tag/tagging/internal/tagging/labelbank"
	"github.com/photon-tag/tagging/internal/tagging/neighbors"
	"github.com/photon-tag/tagging/internal/tagging/progressive"
	"github.com/photon-tag/tagging/internal/tagging/relevance"
	"github.com/photon-tag/tagging/internal/tagging/scorer"
	"github.com/photon-tag/tagging/internal/tagging/seed"
	"github.com/photon-tag/tagging/internal/tagging/textencoder"
	"github.com/photon-tag/tagging/internal/tagging/vocabulary"
)

// Orchestrator is the engine's top-level handle. Zero value is not
// usable; construct via LoadTagging.
type Orchestrator struct {
	cfg       *config.TaggingConfig
	vocab     *vocabulary.Vocabulary
	vocabHash string
	slot      *progressive.Slot
	handle    *progressive.Handle
	tracker   *relevance.Tracker
	encoder   *textencoder.TextEncoder
}

func relevanceConfig(cfg *config.TaggingConfig) relevance.Config {
	return relevance.Config{
		WarmCheckInterval:  cfg.WarmCheckInterval,
		PromotionThreshold: cfg.PromotionThreshold,
		ActiveDemotionDays: cfg.ActiveDemotionDays,
		WarmDemotionChecks: cfg.WarmDemotionChecks,
	}
}

// LoadTagging implements the decision tree from spec.md §4.10: a cache
// hit skips encoding entirely; otherwise progressive encoding is
// preferred when enabled, else a blocking fallback encodes everything
// before returning.
func LoadTagging(ctx context.Context, cfg *config.TaggingConfig) (*Orchestrator, error) {
	log := logging.Get(logging.CategoryOrchestrator)

	vocab, err := vocabulary.Load(cfg.VocabDir)
	if err != nil {
		return nil, err
	}
	if vocab.Len() == 0 {
		log.Warn("vocabulary is empty, tagging disabled for this run")
		return &Orchestrator{cfg: cfg, vocab: vocab, slot: progressive.NewSlot()}, nil
	}

	vocabHash := vocab.ContentHashHex()
	o := &Orchestrator{cfg: cfg, vocab: vocab, vocabHash: vocabHash, slot: progressive.NewSlot()}

	switch {
	case cache.Valid(cfg.CacheDir, vocabHash):
		bank, err := cache.Load(cfg.CacheDir, vocab.Len())
		if err != nil {
			return nil, err
		}
		o.slot.Install(scorer.New(vocab, bank, cfg))
		log.Info("installed scorer from cache, %d terms", vocab.Len())

	case cfg.ProgressiveEnabled:
		if !textencoder.ModelExists(cfg.ModelDir) {
			log.Warn("text encoder not present at %s, tagging disabled for this run", cfg.ModelDir)
			return o, nil
		}
		encoder, err := textencoder.Load(cfg.ModelDir)
		if err != nil {
			return nil, err
		}
		o.encoder = encoder

		seedIndices, err := seed.Select(vocab, cfg.SeedFile, cfg.SeedTargetSize)
		if err != nil {
			return nil, err
		}
		handle, err := progressive.Start(ctx, vocab, encoder, cfg, o.slot, seedIndices, cfg.CacheDir, vocabHash, cfg.ChunkSize)
		if err != nil {
			return nil, err
		}
		o.handle = handle

	default:
		if !textencoder.ModelExists(cfg.ModelDir) {
			log.Warn("text encoder not present at %s, tagging disabled for this run", cfg.ModelDir)
			return o, nil
		}
		encoder, err := textencoder.Load(cfg.ModelDir)
		if err != nil {
			return nil, err
		}
		defer encoder.Close()

		bank, err := labelbank.EncodeAll(vocab, encoder, cfg.EncodeBatchSize)
		if err != nil {
			return nil, &tagging.ModelError{Reason: "blocking encode of full vocabulary", Cause: err}
		}
		if err := cache.Save(cfg.CacheDir, bank, vocabHash); err != nil {
			return nil, err
		}
		o.slot.Install(scorer.New(vocab, bank, cfg))
		log.Info("installed scorer via blocking encode, %d terms", vocab.Len())
	}

	encodedMask := make([]bool, vocab.Len())
	if sc := o.slot.Get(); sc != nil {
		for _, t := range sc.Vocabulary().Terms() {
			if idx, ok := vocab.Index(t.RawName); ok {
				encodedMask[idx] = true
			}
		}
	}
	tracker, err := relevance.Load(cfg.RelevancePath, vocab, encodedMask, relevanceConfig(cfg))
	if err != nil {
		return nil, err
	}
	o.tracker = tracker

	return o, nil
}

// Score runs one image's worth of pool-aware scoring, records the
// resulting hits against the relevance tracker, runs a sweep when due
// (promoting warm-pool hits and expanding their neighbors), and
// checkpoints relevance state every CheckpointEvery images. now is
// seconds since epoch, supplied by the caller so the core stays free of
// wall-clock reads.
func (o *Orchestrator) Score(imageEmbedding []float32, now int64) ([]hierarchy.Tag, error) {
	log := logging.Get(logging.CategoryOrchestrator)

	sc := o.slot.Get()
	if sc == nil {
		return nil, &tagging.ModelError{Reason: "no scorer installed for this vocabulary/model configuration"}
	}

	tags, hits, err := sc.ScoreWithPools(imageEmbedding, o.tracker)
	if err != nil {
		return nil, err
	}
	o.tracker.RecordHits(hits, now)

	if o.tracker.ShouldCheckWarm() {
		promoted := o.tracker.Sweep(now)
		if len(promoted) > 0 {
			// promoted indices are in o.tracker's index space, which is
			// o.vocab (the full vocabulary), not the installed scorer's
			// vocabulary: during progressive encoding the scorer covers
			// only a subset with its own 0..M index space.
			neighborIndices := neighbors.ExpandAll(o.vocab, promoted)
			o.tracker.PromoteToWarm(neighborIndices)
		}
	}

	if o.cfg.CheckpointEvery > 0 && o.tracker.ImagesProcessed()%uint64(o.cfg.CheckpointEvery) == 0 {
		if err := o.SaveRelevance(now); err != nil {
			log.Warn("checkpoint save failed: %v", err)
		}
	}

	return tags, nil
}

// PoolCounts reports how many vocabulary terms currently sit in each
// relevance pool. Returns zero counts if no tracker has been loaded.
func (o *Orchestrator) PoolCounts() (active, warm, cold int) {
	if o.tracker == nil {
		return 0, 0, 0
	}
	return o.tracker.PoolCounts()
}

// ForceSweep runs a relevance sweep immediately, regardless of
// ShouldCheckWarm, and expands neighbors for any newly promoted terms. It
// is a no-op if no tracker has been loaded. Intended for operator-triggered
// maintenance outside the normal per-image Score path.
func (o *Orchestrator) ForceSweep(now int64) error {
	if o.tracker == nil {
		return nil
	}
	promoted := o.tracker.Sweep(now)
	if len(promoted) > 0 {
		// See the same note in Score: promoted indices live in o.vocab's
		// index space, not the installed scorer's subset vocabulary.
		neighborIndices := neighbors.ExpandAll(o.vocab, promoted)
		o.tracker.PromoteToWarm(neighborIndices)
	}
	return o.SaveRelevance(now)
}

// SaveRelevance persists the relevance tracker to cfg.RelevancePath.
// Called on shutdown and on the periodic checkpoint inside Score.
func (o *Orchestrator) SaveRelevance(now int64) error {
	if o.tracker == nil {
		return nil
	}
	return o.tracker.Save(o.cfg.RelevancePath, o.vocab, now)
}

// Vocabulary returns the loaded vocabulary, even if no scorer has been
// installed yet (e.g. the progressive background tail is still running).
func (o *Orchestrator) Vocabulary() *vocabulary.Vocabulary { return o.vocab }

// EncodedTermCount reports how many terms the currently installed scorer
// covers, or 0 if none is installed.
func (o *Orchestrator) EncodedTermCount() int {
	if sc := o.slot.Get(); sc != nil {
		return sc.Vocabulary().Len()
	}
	return 0
}

// WaitProgressive blocks until the background progressive tail (if any)
// has finished. A no-op when there is no background tail in flight.
func (o *Orchestrator) WaitProgressive() error {
	return o.handle.Wait()
}

// Close releases the text encoder kept for progressive encoding, if any.
// The blocking fallback closes its encoder before LoadTagging returns.
func (o *Orchestrator) Close() {
	if o.encoder != nil {
		o.encoder.Close()
	}
}
