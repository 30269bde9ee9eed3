package neighbors

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/photon-tag/tagging/internal/tagging/vocabulary"
)

func retrieverCatVocab() *vocabulary.Vocabulary {
	return vocabulary.New([]vocabulary.Term{
		{RawName: "labrador_retriever", Hypernyms: []string{"retriever", "dog", "animal"}},
		{RawName: "golden_retriever", Hypernyms: []string{"retriever", "dog", "animal"}},
		{RawName: "flat_coated_retriever", Hypernyms: []string{"retriever", "dog", "animal"}},
		{RawName: "persian_cat", Hypernyms: []string{"feline", "animal"}},
		{RawName: "siamese_cat", Hypernyms: []string{"feline", "animal"}},
		{RawName: "golden_hour", Category: "lighting"},
	})
}

func TestExpandAll_siblingsOnly(t *testing.T) {
	v := retrieverCatVocab()
	labIdx, _ := v.Index("labrador_retriever")
	goldenIdx, _ := v.Index("golden_retriever")
	flatIdx, _ := v.Index("flat_coated_retriever")

	result := ExpandAll(v, []int{labIdx})
	assert.ElementsMatch(t, []int{goldenIdx, flatIdx}, result)

	persianIdx, _ := v.Index("persian_cat")
	siameseIdx, _ := v.Index("siamese_cat")
	assert.NotContains(t, result, persianIdx)
	assert.NotContains(t, result, siameseIdx)
	assert.NotContains(t, result, labIdx)
}

func TestExpandAll_supplementaryContributesNothing(t *testing.T) {
	v := retrieverCatVocab()
	ghIdx, _ := v.Index("golden_hour")
	result := ExpandAll(v, []int{ghIdx})
	assert.Empty(t, result)
}

func TestExpandAll_noDuplicatesAcrossMultiplePromoted(t *testing.T) {
	v := retrieverCatVocab()
	labIdx, _ := v.Index("labrador_retriever")
	goldenIdx, _ := v.Index("golden_retriever")

	result := ExpandAll(v, []int{labIdx, goldenIdx})
	counts := map[int]int{}
	for _, i := range result {
		counts[i]++
	}
	for _, c := range counts {
		assert.Equal(t, 1, c)
	}
}
