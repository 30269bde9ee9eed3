// Package scorer holds the immutable (Vocabulary, LabelBank, Config)
// triple and performs the mat-vec cosine-similarity scoring that turns an
// image embedding into ranked tags.
package scorer

import (
	"math"
	"sort"

	"github.com/photon-tag/tagging/internal/config"
	"github.com/photon-tag/tagging/internal/logging"
	"github.com/photon-tag/tagging/internal/tagging"
	"github.com/photon-tag/tagging/internal/tagging/hierarchy"
	"github.com/photon-tag/tagging/internal/tagging/labelbank"
	"github.com/photon-tag/tagging/internal/tagging/relevance"
	"github.com/photon-tag/tagging/internal/tagging/vocabulary"
)

// Tracker is the subset of relevance.Tracker's surface score_with_pools
// needs. Kept narrow so scorer tests can supply a fake tracker.
type Tracker interface {
	ActiveIndices() []int
	WarmIndices() []int
	ShouldCheckWarm() bool
}

// Scorer is immutable after construction: Vocabulary, LabelBank and
// Config never change for its lifetime. Replacing a Scorer (progressive
// encoding's atomic swap) means constructing a new one, never mutating
// an existing one.
type Scorer struct {
	vocab  *vocabulary.Vocabulary
	bank   *labelbank.LabelBank
	config *config.TaggingConfig
}

// New builds a Scorer over a vocabulary/bank pair that must have the same
// row count and term ordering.
func New(vocab *vocabulary.Vocabulary, bank *labelbank.LabelBank, cfg *config.TaggingConfig) *Scorer {
	return &Scorer{vocab: vocab, bank: bank, config: cfg}
}

// Vocabulary returns the scorer's vocabulary.
func (s *Scorer) Vocabulary() *vocabulary.Vocabulary { return s.vocab }

// LabelBank returns the scorer's label bank.
func (s *Scorer) LabelBank() *labelbank.LabelBank { return s.bank }

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// CosineToConfidence applies the calibration from spec.md §4.8.
func CosineToConfidence(cosine float32) float64 {
	return sigmoid(config.LogitScale*float64(cosine) + config.LogitBias)
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Score performs full-vocabulary scoring: a single mat-vec of the label
// bank against imageEmbedding, calibration, filtering, sorting,
// truncation, and (depending on config) hierarchy dedup and path
// annotation.
func (s *Scorer) Score(imageEmbedding []float32) ([]hierarchy.Tag, error) {
	if len(imageEmbedding) != s.bank.D {
		return nil, &tagging.TaggingError{Kind: tagging.DimensionMismatch, Reason: "image embedding length does not match label bank dimension"}
	}

	var hits []relevance.Hit
	for i := 0; i < s.bank.N; i++ {
		cosine := dot(s.bank.Row(i), imageEmbedding)
		confidence := CosineToConfidence(cosine)
		if confidence >= s.config.MinConfidence {
			hits = append(hits, relevance.Hit{Index: i, Confidence: confidence})
		}
	}
	return s.formatTags(hits), nil
}

// ScoreIndices computes cosine/calibration for exactly the given indices,
// in the order supplied, emitting only entries meeting min_confidence.
func (s *Scorer) ScoreIndices(imageEmbedding []float32, indices []int) ([]relevance.Hit, error) {
	if len(imageEmbedding) != s.bank.D {
		return nil, &tagging.TaggingError{Kind: tagging.DimensionMismatch, Reason: "image embedding length does not match label bank dimension"}
	}

	var hits []relevance.Hit
	for _, i := range indices {
		cosine := dot(s.bank.Row(i), imageEmbedding)
		confidence := CosineToConfidence(cosine)
		if confidence >= s.config.MinConfidence {
			hits = append(hits, relevance.Hit{Index: i, Confidence: confidence})
		}
	}
	return hits, nil
}

// ScoreWithPools scores the tracker's active pool, and also its warm pool
// when a warm check is due, returning formatted tags plus the raw hits so
// the caller can record them under a separate write lock. This method
// never mutates the tracker.
func (s *Scorer) ScoreWithPools(imageEmbedding []float32, tracker Tracker) ([]hierarchy.Tag, []relevance.Hit, error) {
	if len(imageEmbedding) != s.bank.D {
		return nil, nil, &tagging.TaggingError{Kind: tagging.DimensionMismatch, Reason: "image embedding length does not match label bank dimension"}
	}

	active, err := s.ScoreIndices(imageEmbedding, tracker.ActiveIndices())
	if err != nil {
		return nil, nil, err
	}
	all := append([]relevance.Hit(nil), active...)

	if tracker.ShouldCheckWarm() {
		warm, err := s.ScoreIndices(imageEmbedding, tracker.WarmIndices())
		if err != nil {
			return nil, nil, err
		}
		all = append(all, warm...)
	}

	return s.formatTags(all), all, nil
}

// formatTags runs the shared pipeline from spec.md §4.8: filter (already
// done by callers), map to Tag, stable-sort descending by confidence
// (ties broken by lower term index), truncate to max_tags, optionally
// dedup ancestors, optionally annotate paths.
func (s *Scorer) formatTags(hits []relevance.Hit) []hierarchy.Tag {
	log := logging.Get(logging.CategoryScorer)

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Confidence != hits[j].Confidence {
			return hits[i].Confidence > hits[j].Confidence
		}
		return hits[i].Index < hits[j].Index
	})

	if len(hits) > s.config.MaxTags {
		hits = hits[:s.config.MaxTags]
	}

	tags := make([]hierarchy.Tag, len(hits))
	for i, h := range hits {
		term := s.vocab.Term(h.Index)
		tags[i] = hierarchy.Tag{
			Name:       term.DisplayName,
			Confidence: h.Confidence,
			Category:   term.Category,
		}
	}

	if s.config.DeduplicateAncestors {
		tags = hierarchy.Deduplicate(tags, s.vocab)
	}
	if s.config.ShowPaths {
		tags = hierarchy.AddPaths(tags, s.vocab, s.config.PathMaxDepth)
	}

	log.Debug("formatted %d hits into %d tags", len(hits), len(tags))
	return tags
}
