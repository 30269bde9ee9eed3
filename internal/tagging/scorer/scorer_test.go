package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photon-tag/tagging/internal/config"
	"github.com/photon-tag/tagging/internal/tagging"
	"github.com/photon-tag/tagging/internal/tagging/labelbank"
	"github.com/photon-tag/tagging/internal/tagging/vocabulary"
)

func unitVector(d, hot int) []float32 {
	v := make([]float32, d)
	v[hot] = 1
	return v
}

func testConfig() *config.TaggingConfig {
	cfg := config.DefaultConfig()
	cfg.MinConfidence = 0.0
	cfg.MaxTags = 10
	cfg.DeduplicateAncestors = false
	cfg.ShowPaths = false
	return cfg
}

func TestScore_dimensionMismatch(t *testing.T) {
	v := vocabulary.New([]vocabulary.Term{{RawName: "dog", DisplayName: "dog"}})
	bank := labelbank.FromRaw([]float32{1, 0}, 2, 1)
	s := New(v, bank, testConfig())

	_, err := s.Score([]float32{1, 0, 0})
	require.Error(t, err)
	var te *tagging.TaggingError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tagging.DimensionMismatch, te.Kind)
}

func TestScore_idempotent(t *testing.T) {
	v := vocabulary.New([]vocabulary.Term{
		{RawName: "dog", DisplayName: "dog"},
		{RawName: "cat", DisplayName: "cat"},
	})
	bank := labelbank.FromRaw([]float32{1, 0, 0, 1}, 2, 2)
	s := New(v, bank, testConfig())

	embedding := unitVector(2, 0)
	a, err := s.Score(embedding)
	require.NoError(t, err)
	b, err := s.Score(embedding)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCosineToConfidence_monotonic(t *testing.T) {
	c1 := CosineToConfidence(-0.3)
	c2 := CosineToConfidence(0.1)
	assert.Less(t, c1, c2)
}

func TestCosineToConfidence_calibrationAnchors(t *testing.T) {
	assert.Less(t, CosineToConfidence(-0.20), 0.01)
	c := CosineToConfidence(-0.05)
	assert.Greater(t, c, 0.0)
	assert.Less(t, c, 1.0)
	assert.Greater(t, CosineToConfidence(0.20), 0.99)
}

func TestScore_sortedDescendingByConfidence(t *testing.T) {
	v := vocabulary.New([]vocabulary.Term{
		{RawName: "dog", DisplayName: "dog"},
		{RawName: "cat", DisplayName: "cat"},
		{RawName: "car", DisplayName: "car"},
	})
	// Row 0 exactly matches the query; row 1 is orthogonal; row 2 is a
	// weaker partial match.
	bank := labelbank.FromRaw([]float32{
		1, 0, 0,
		0, 1, 0,
		0.5, 0.5, 0,
	}, 3, 3)
	s := New(v, bank, testConfig())

	tags, err := s.Score(unitVector(3, 0))
	require.NoError(t, err)
	require.Len(t, tags, 3)
	assert.Equal(t, "dog", tags[0].Name)
	for i := 1; i < len(tags); i++ {
		assert.GreaterOrEqual(t, tags[i-1].Confidence, tags[i].Confidence)
	}
}

func TestScore_ancestorSuppressionScenario(t *testing.T) {
	v := vocabulary.New([]vocabulary.Term{
		{RawName: "labrador_retriever", DisplayName: "labrador retriever", Hypernyms: []string{"retriever", "dog", "animal"}},
		{RawName: "retriever", DisplayName: "retriever", Hypernyms: []string{"dog", "animal"}},
		{RawName: "dog", DisplayName: "dog", Hypernyms: []string{"animal"}},
		{RawName: "carpet", DisplayName: "carpet", Hypernyms: []string{"covering", "floor covering"}},
	})
	// One-hot rows make each term's cosine equal one embedding component.
	// Calibrated, these cosines all give confidences at or near 1.0; the
	// exact values don't matter, since dedup ignores confidence.
	bank := labelbank.FromRaw([]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}, 4, 4)
	cfg := testConfig()
	cfg.DeduplicateAncestors = true
	s := New(v, bank, cfg)

	embedding := []float32{0.9, 0.6, 0.3, 0.8}
	tags, err := s.Score(embedding)
	require.NoError(t, err)

	names := make([]string, len(tags))
	for i, tg := range tags {
		names[i] = tg.Name
	}
	assert.Contains(t, names, "labrador retriever")
	assert.Contains(t, names, "carpet")
	assert.NotContains(t, names, "retriever")
	assert.NotContains(t, names, "dog")
}

type fakeTracker struct {
	active, warm []int
	checkWarm    bool
}

func (f *fakeTracker) ActiveIndices() []int { return f.active }
func (f *fakeTracker) WarmIndices() []int   { return f.warm }
func (f *fakeTracker) ShouldCheckWarm() bool { return f.checkWarm }

func TestScoreWithPools_skipsWarmWhenNotDue(t *testing.T) {
	v := vocabulary.New([]vocabulary.Term{
		{RawName: "dog", DisplayName: "dog"},
		{RawName: "cat", DisplayName: "cat"},
	})
	bank := labelbank.FromRaw([]float32{1, 0, 0, 1}, 2, 2)
	s := New(v, bank, testConfig())

	tracker := &fakeTracker{active: []int{0}, warm: []int{1}, checkWarm: false}
	tags, hits, err := s.ScoreWithPools(unitVector(2, 0), tracker)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.Len(t, tags, 1)
}

func TestScoreWithPools_includesWarmWhenDue(t *testing.T) {
	v := vocabulary.New([]vocabulary.Term{
		{RawName: "dog", DisplayName: "dog"},
		{RawName: "cat", DisplayName: "cat"},
	})
	bank := labelbank.FromRaw([]float32{1, 0, 0, 1}, 2, 2)
	s := New(v, bank, testConfig())

	tracker := &fakeTracker{active: []int{0}, warm: []int{1}, checkWarm: true}
	_, hits, err := s.ScoreWithPools(unitVector(2, 0), tracker)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}
