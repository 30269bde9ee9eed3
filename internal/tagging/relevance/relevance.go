// Package relevance implements the three-pool adaptive relevance tracker
// that narrows per-image scoring from the full vocabulary down to the
// terms actually being hit.
package relevance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/photon-tag/tagging/internal/logging"
	"github.com/photon-tag/tagging/internal/tagging/vocabulary"
)

// Pool is one of Active, Warm, Cold.
type Pool int

const (
	Active Pool = iota
	Warm
	Cold
)

func (p Pool) String() string {
	switch p {
	case Active:
		return "active"
	case Warm:
		return "warm"
	case Cold:
		return "cold"
	default:
		return "unknown"
	}
}

func parsePool(s string) Pool {
	switch s {
	case "active":
		return Active
	case "warm":
		return Warm
	default:
		return Cold
	}
}

// Stats is one term's tracked statistics.
type Stats struct {
	HitCount             uint64
	ScoreSum             float64
	LastHitTS            int64
	Pool                 Pool
	WarmChecksWithoutHit uint64
}

// AvgConfidence returns ScoreSum/HitCount, or 0 when HitCount is 0.
func (s Stats) AvgConfidence() float64 {
	if s.HitCount == 0 {
		return 0
	}
	return s.ScoreSum / float64(s.HitCount)
}

// Hit is a single (term index, confidence) observation passed to
// RecordHits.
type Hit struct {
	Index      int
	Confidence float64
}

// Config is the subset of TaggingConfig the tracker's sweep rules need.
type Config struct {
	WarmCheckInterval  int
	PromotionThreshold float64
	ActiveDemotionDays int
	WarmDemotionChecks int
}

// Tracker holds per-term statistics parallel to a Vocabulary, the running
// image counter, and the pool-membership index lists. All mutating
// methods (RecordHits, Sweep, PromoteToWarm) require external single-
// writer exclusion, enforced here via an internal mutex; the read-only
// accessors may be called concurrently with each other.
type Tracker struct {
	mu              sync.RWMutex
	stats           []Stats
	imagesProcessed uint64
	cfg             Config

	activeIndices []int
	warmIndices   []int
}

// New initialises a tracker for termCount terms. encodedMask[i] == true
// starts term i in Active; all others start in Cold.
func New(termCount int, encodedMask []bool, cfg Config) *Tracker {
	stats := make([]Stats, termCount)
	for i := range stats {
		if i < len(encodedMask) && encodedMask[i] {
			stats[i].Pool = Active
		} else {
			stats[i].Pool = Cold
		}
	}
	t := &Tracker{stats: stats, cfg: cfg}
	t.rebuildIndices()
	return t
}

func (t *Tracker) rebuildIndices() {
	t.activeIndices = t.activeIndices[:0]
	t.warmIndices = t.warmIndices[:0]
	for i, s := range t.stats {
		switch s.Pool {
		case Active:
			t.activeIndices = append(t.activeIndices, i)
		case Warm:
			t.warmIndices = append(t.warmIndices, i)
		}
	}
}

// ActiveIndices returns the current Active-pool index list. Callers must
// not mutate the returned slice.
func (t *Tracker) ActiveIndices() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeIndices
}

// WarmIndices returns the current Warm-pool index list. Callers must not
// mutate the returned slice.
func (t *Tracker) WarmIndices() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.warmIndices
}

// PoolCounts returns the number of terms currently in each pool.
func (t *Tracker) PoolCounts() (active, warm, cold int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, s := range t.stats {
		switch s.Pool {
		case Active:
			active++
		case Warm:
			warm++
		default:
			cold++
		}
	}
	return
}

// ImagesProcessed returns the running per-image counter.
func (t *Tracker) ImagesProcessed() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.imagesProcessed
}

// ShouldCheckWarm reports whether the current image count falls on a
// warm-check boundary.
func (t *Tracker) ShouldCheckWarm() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg.WarmCheckInterval > 0 && t.imagesProcessed%uint64(t.cfg.WarmCheckInterval) == 0
}

// RecordHits applies one image's worth of hits (already filtered to
// exceed min_confidence by the caller) and advances imagesProcessed by
// one, regardless of hit count. now is the caller-supplied timestamp
// (seconds since epoch) so callers control time, not the tracker.
func (t *Tracker) RecordHits(hits []Hit, now int64) {
	log := logging.Get(logging.CategoryRelevance)

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, h := range hits {
		if h.Index < 0 || h.Index >= len(t.stats) {
			log.Warn("RecordHits: index %d out of range (term count %d)", h.Index, len(t.stats))
			continue
		}
		s := &t.stats[h.Index]
		s.HitCount++
		s.ScoreSum += h.Confidence
		s.LastHitTS = now
		s.WarmChecksWithoutHit = 0
	}
	t.imagesProcessed++
}

// Sweep applies the pool transition rules and returns the indices newly
// promoted to Active. now is seconds since epoch.
func (t *Tracker) Sweep(now int64) []int {
	log := logging.Get(logging.CategoryRelevance)
	timer := logging.StartTimer(logging.CategoryRelevance, "Sweep")
	defer timer.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()

	var promoted []int
	activeDemotionSeconds := int64(t.cfg.ActiveDemotionDays) * 86400

	for i := range t.stats {
		s := &t.stats[i]
		switch s.Pool {
		case Active:
			if s.LastHitTS > 0 && (now-s.LastHitTS) > activeDemotionSeconds {
				s.Pool = Warm
				s.WarmChecksWithoutHit = 0
			} else if s.HitCount == 0 && t.imagesProcessed > 1000 {
				s.Pool = Warm
				s.WarmChecksWithoutHit = 0
			}
		case Warm:
			if s.HitCount > 0 && s.AvgConfidence() >= t.cfg.PromotionThreshold {
				s.Pool = Active
				s.WarmChecksWithoutHit = 0
				promoted = append(promoted, i)
			} else {
				s.WarmChecksWithoutHit++
				if s.WarmChecksWithoutHit >= uint64(t.cfg.WarmDemotionChecks) {
					s.Pool = Cold
					s.WarmChecksWithoutHit = 0
				}
			}
		case Cold:
			// untouched by sweep
		}
	}

	t.rebuildIndices()
	log.Info("sweep: promoted %d terms to active, %d active, %d warm", len(promoted), len(t.activeIndices), len(t.warmIndices))
	return promoted
}

// PromoteToWarm elevates each Cold entry in indices to Warm; non-Cold
// entries are left unchanged.
func (t *Tracker) PromoteToWarm(indices []int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, i := range indices {
		if i < 0 || i >= len(t.stats) {
			continue
		}
		if t.stats[i].Pool == Cold {
			t.stats[i].Pool = Warm
		}
	}
	t.rebuildIndices()
}

// persisted mirrors the relevance.json document shape from spec.md §6.
type persisted struct {
	Version         int                      `json:"version"`
	ImagesProcessed uint64                   `json:"images_processed"`
	LastUpdated     int64                    `json:"last_updated"`
	Terms           map[string]persistedStat `json:"terms"`
}

type persistedStat struct {
	HitCount             uint64  `json:"hit_count"`
	ScoreSum             float64 `json:"score_sum"`
	LastHitTS            int64   `json:"last_hit_ts"`
	Pool                 string  `json:"pool"`
	WarmChecksWithoutHit uint64  `json:"warm_checks_without_hit"`
}

// Save persists the tracker, keyed by term raw_name, to path.
func (t *Tracker) Save(path string, vocab *vocabulary.Vocabulary, now int64) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	doc := persisted{
		Version:         1,
		ImagesProcessed: t.imagesProcessed,
		LastUpdated:     now,
		Terms:           make(map[string]persistedStat, len(t.stats)),
	}
	for i, s := range t.stats {
		if i >= vocab.Len() {
			break
		}
		term := vocab.Term(i)
		doc.Terms[term.RawName] = persistedStat{
			HitCount:             s.HitCount,
			ScoreSum:             s.ScoreSum,
			LastHitTS:            s.LastHitTS,
			Pool:                 s.Pool.String(),
			WarmChecksWithoutHit: s.WarmChecksWithoutHit,
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal relevance state: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create relevance directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Load reads a previously-saved tracker and aligns it to vocab by
// raw_name: terms present in the file keep their statistics; terms newly
// added to the vocabulary start at zero/Cold; terms removed from the
// vocabulary are dropped. A missing file returns a fresh tracker with all
// encodedMask-true terms Active, matching New's semantics.
func Load(path string, vocab *vocabulary.Vocabulary, encodedMask []bool, cfg Config) (*Tracker, error) {
	log := logging.Get(logging.CategoryRelevance)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(vocab.Len(), encodedMask, cfg), nil
		}
		return nil, fmt.Errorf("read relevance state: %w", err)
	}

	var doc persisted
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn("relevance state %s is corrupt, starting fresh: %v", path, err)
		return New(vocab.Len(), encodedMask, cfg), nil
	}

	t := New(vocab.Len(), encodedMask, cfg)
	t.imagesProcessed = doc.ImagesProcessed

	for i := 0; i < vocab.Len(); i++ {
		term := vocab.Term(i)
		if ps, ok := doc.Terms[term.RawName]; ok {
			t.stats[i] = Stats{
				HitCount:             ps.HitCount,
				ScoreSum:             ps.ScoreSum,
				LastHitTS:            ps.LastHitTS,
				Pool:                 parsePool(ps.Pool),
				WarmChecksWithoutHit: ps.WarmChecksWithoutHit,
			}
		} else {
			t.stats[i].Pool = Cold
		}
	}
	t.rebuildIndices()
	log.Info("loaded relevance state from %s: %d images processed", path, t.imagesProcessed)
	return t, nil
}
