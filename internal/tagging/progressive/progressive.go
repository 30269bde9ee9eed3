// Package progressive implements the progressive encoder: a synchronous
// seed encode followed by a background chunked tail that grows the
// scorer installed in a shared slot without ever blocking a reader.
package progressive

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/photon-tag/tagging/internal/config"
	"github.com/photon-tag/tagging/internal/logging"
	"github.com/photon-tag/tagging/internal/tagging"
	"github.com/photon-tag/tagging/internal/tagging/cache"
	"github.com/photon-tag/tagging/internal/tagging/labelbank"
	"github.com/photon-tag/tagging/internal/tagging/scorer"
	"github.com/photon-tag/tagging/internal/tagging/vocabulary"
)

// Slot is a single-writer/many-reader holder for the current Scorer.
// Readers (per-image scoring) call Get; the background encoder calls
// Install under the write side only for the duration of the pointer
// swap.
type Slot struct {
	mu     sync.RWMutex
	scorer *scorer.Scorer
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Get returns the currently installed Scorer, or nil if none has been
// installed yet.
func (s *Slot) Get() *scorer.Scorer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scorer
}

// Install replaces the slot's Scorer under the write side of the lock.
// Exported so the orchestrator can install a final Scorer directly on
// the cache-hit and blocking-fallback paths, where there is no
// background tail.
func (s *Slot) Install(sc *scorer.Scorer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scorer = sc
}

// Handle lets a caller wait for the background tail to finish, which is
// mainly useful for tests and for an orderly shutdown that wants to know
// whether a cache write is still pending.
type Handle struct {
	eg *errgroup.Group
}

// Wait blocks until the background tail has finished (or never started,
// in which case it returns immediately).
func (h *Handle) Wait() error {
	if h == nil || h.eg == nil {
		return nil
	}
	return h.eg.Wait()
}

// Start performs the synchronous prelude (seed encode + install) and, if
// any terms remain, launches the asynchronous tail that encodes them in
// chunks, swapping a growing Scorer into slot after each chunk.
//
// Go's runtime always provides goroutines, so the "no suitable async
// runtime" fallback spec.md §4.5 describes for environments that might
// lack one never applies here; the background tail is always spawned as
// a goroutine.
func Start(
	ctx context.Context,
	fullVocab *vocabulary.Vocabulary,
	encoder labelbank.TextEncoder,
	cfg *config.TaggingConfig,
	slot *Slot,
	seedIndices []int,
	cacheDir string,
	vocabHash string,
	chunkSize int,
) (*Handle, error) {
	runID := uuid.New().String()[:8]
	log := logging.Get(logging.CategoryProgressive)
	timer := logging.StartTimer(logging.CategoryProgressive, "Start:prelude")

	seedVocab := fullVocab.Subset(seedIndices)
	seedBank, err := labelbank.EncodeAll(seedVocab, encoder, cfg.EncodeBatchSize)
	if err != nil {
		timer.Stop()
		return nil, &tagging.ModelError{Reason: "encode seed terms", Cause: err}
	}
	seedScorer := scorer.New(seedVocab, seedBank, cfg)

	seedSet := make(map[int]bool, len(seedIndices))
	for _, i := range seedIndices {
		seedSet[i] = true
	}
	remaining := make([]int, 0, fullVocab.Len()-len(seedIndices))
	for i := 0; i < fullVocab.Len(); i++ {
		if !seedSet[i] {
			remaining = append(remaining, i)
		}
	}
	sort.Ints(remaining)

	if len(remaining) == 0 {
		if err := cache.Save(cacheDir, seedBank, vocabHash); err != nil {
			timer.Stop()
			return nil, err
		}
		slot.Install(seedScorer)
		timer.Stop()
		log.Info("progressive encode [%s]: seed covers the full vocabulary, no background tail needed", runID)
		return nil, nil
	}

	slot.Install(seedScorer)
	timer.Stop()
	log.Info("progressive encode [%s]: installed seed scorer (%d terms), %d terms remain for the background tail", runID, len(seedIndices), len(remaining))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		runBackgroundTail(egCtx, fullVocab, encoder, cfg, slot, seedIndices, seedBank, remaining, cacheDir, vocabHash, chunkSize, runID)
		return nil
	})
	return &Handle{eg: eg}, nil
}

func runBackgroundTail(
	ctx context.Context,
	fullVocab *vocabulary.Vocabulary,
	encoder labelbank.TextEncoder,
	cfg *config.TaggingConfig,
	slot *Slot,
	seedIndices []int,
	seedBank *labelbank.LabelBank,
	remaining []int,
	cacheDir string,
	vocabHash string,
	chunkSize int,
	runID string,
) {
	log := logging.Get(logging.CategoryProgressive)
	timer := logging.StartTimer(logging.CategoryProgressive, "Start:background")
	defer timer.Stop()

	encodedIndices := append([]int(nil), seedIndices...)
	bank := seedBank.Clone()
	failedChunks := 0

	for start := 0; start < len(remaining); start += chunkSize {
		select {
		case <-ctx.Done():
			log.Warn("progressive encode [%s]: background tail cancelled, %d/%d terms encoded, no cache written", runID, len(encodedIndices), fullVocab.Len())
			return
		default:
		}

		end := start + chunkSize
		if end > len(remaining) {
			end = len(remaining)
		}
		chunkIndices := remaining[start:end]

		chunkVocab := fullVocab.Subset(chunkIndices)
		chunkBank, err := labelbank.EncodeAll(chunkVocab, encoder, cfg.EncodeBatchSize)
		if err != nil {
			failedChunks++
			log.Warn("progressive encode [%s]: chunk [%d:%d] failed, skipping: %v", runID, start, end, err)
			continue
		}

		bank, err = bank.Append(chunkBank)
		if err != nil {
			failedChunks++
			log.Warn("progressive encode [%s]: chunk [%d:%d] append failed, skipping: %v", runID, start, end, err)
			continue
		}
		encodedIndices = append(encodedIndices, chunkIndices...)

		// encodedIndices must stay in encode order, not ascending order:
		// bank's rows are appended in the order each chunk was encoded, and
		// Subset preserves the order of the indices it's given, so sorting
		// here would desynchronize vocabulary term i from bank row i.
		combinedVocab := fullVocab.Subset(encodedIndices)
		newScorer := scorer.New(combinedVocab, bank, cfg)
		slot.Install(newScorer)

		if end < len(remaining) {
			bank = bank.Clone()
		}
		log.Debug("progressive encode: chunk [%d:%d] installed, %d/%d terms encoded", start, end, len(encodedIndices), fullVocab.Len())
	}

	if failedChunks > 0 {
		log.Warn("progressive encode: finished with %d failed chunk(s), cache not written", failedChunks)
		return
	}

	// bank's rows are in encode order (seed first, then each chunk), but the
	// cache is paired with fullVocab's own order when it is loaded again, so
	// write row k back at the vocabulary position encodedIndices[k].
	ordered := make([]float32, len(bank.Rows))
	for k, gi := range encodedIndices {
		copy(ordered[gi*bank.D:(gi+1)*bank.D], bank.Row(k))
	}
	if err := cache.Save(cacheDir, labelbank.FromRaw(ordered, bank.D, bank.N), vocabHash); err != nil {
		log.Error("progressive encode: failed to save completed label bank: %v", err)
		return
	}
	log.Info("progressive encode: background tail complete, %s cached", fmt.Sprintf("%d terms", bank.N))
}
