package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photon-tag/tagging/internal/tagging/vocabulary"
)

func bigVocab() *vocabulary.Vocabulary {
	terms := make([]vocabulary.Term, 0, 20)
	for i := 0; i < 18; i++ {
		terms = append(terms, vocabulary.Term{RawName: rawName(i)})
	}
	terms = append(terms, vocabulary.Term{RawName: "golden_hour", Category: "lighting"})
	terms = append(terms, vocabulary.Term{RawName: "moody", Category: "mood"})
	return vocabulary.New(terms)
}

func rawName(i int) string {
	return string(rune('a'+i%26)) + "_term"
}

func TestSelect_includesSupplementaryUnconditionally(t *testing.T) {
	v := bigVocab()
	indices, err := Select(v, filepath.Join(t.TempDir(), "missing.txt"), 2)
	require.NoError(t, err)

	ghIdx, _ := v.Index("golden_hour")
	moodyIdx, _ := v.Index("moody")
	assert.Contains(t, indices, ghIdx)
	assert.Contains(t, indices, moodyIdx)
}

func TestSelect_curatedSeedFile(t *testing.T) {
	v := bigVocab()
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed_terms.txt")
	require.NoError(t, os.WriteFile(seedPath, []byte("# comment\n"+rawName(0)+"\n\n"), 0644))

	indices, err := Select(v, seedPath, 0)
	require.NoError(t, err)
	idx0, _ := v.Index(rawName(0))
	assert.Contains(t, indices, idx0)
}

func TestSelect_isSortedAndDeterministic(t *testing.T) {
	v := bigVocab()
	seedPath := filepath.Join(t.TempDir(), "missing.txt")

	a, err := Select(v, seedPath, 10)
	require.NoError(t, err)
	b, err := Select(v, seedPath, 10)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.True(t, sortedAscending(a))
}

func TestSelect_targetSizeCappedByVocab(t *testing.T) {
	v := bigVocab()
	seedPath := filepath.Join(t.TempDir(), "missing.txt")
	indices, err := Select(v, seedPath, 1000)
	require.NoError(t, err)
	assert.Equal(t, v.Len(), len(indices))
}

func sortedAscending(xs []int) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i-1] > xs[i] {
			return false
		}
	}
	return true
}
