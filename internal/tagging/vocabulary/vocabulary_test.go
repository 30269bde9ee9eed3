package vocabulary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVocabFixture(t *testing.T, dir string) {
	t.Helper()
	lexical := "labrador_retriever\tsyn001\tretriever|dog|animal\n" +
		"retriever\tsyn002\tdog|animal\n" +
		"dog\tsyn003\tanimal\n" +
		"cat\tsyn004\tfeline|animal\n" +
		"# a comment\n" +
		"\n" +
		"carpet\tsyn005\tcovering|floor_covering\n" +
		"malformed_line\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wordnet_nouns.txt"), []byte(lexical), 0644))

	supplemental := "golden_hour\tlighting\n" +
		"labrador_retriever\tduplicate_should_be_dropped\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "supplemental.txt"), []byte(supplemental), 0644))
}

func TestLoad_basic(t *testing.T) {
	dir := t.TempDir()
	writeVocabFixture(t, dir)

	v, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 6, v.Len())

	term, idx, ok := v.Get("labrador_retriever")
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "labrador retriever", term.DisplayName)
	assert.Equal(t, []string{"retriever", "dog", "animal"}, term.Hypernyms)
	assert.Empty(t, term.Category)

	gh, _, ok := v.Get("golden_hour")
	require.True(t, ok)
	assert.Equal(t, "lighting", gh.Category)
	assert.Empty(t, gh.Hypernyms)
}

func TestLoad_missingFilesAreEmpty(t *testing.T) {
	dir := t.TempDir()
	v, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Len())
}

func TestSubset_preservesOrderAndReindexes(t *testing.T) {
	dir := t.TempDir()
	writeVocabFixture(t, dir)
	v, err := Load(dir)
	require.NoError(t, err)

	sub := v.Subset([]int{2, 0})
	require.Equal(t, 2, sub.Len())
	_, idx, ok := sub.Get("dog")
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	_, idx, ok = sub.Get("labrador_retriever")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestContentHash_deterministicAndFullSubsetEquivalent(t *testing.T) {
	dir := t.TempDir()
	writeVocabFixture(t, dir)
	v, err := Load(dir)
	require.NoError(t, err)

	h1 := v.ContentHashHex()
	h2 := v.ContentHashHex()
	assert.Equal(t, h1, h2)

	all := make([]int, v.Len())
	for i := range all {
		all[i] = i
	}
	full := v.Subset(all)
	assert.Equal(t, h1, full.ContentHashHex())
}

func TestBuildParentIndex(t *testing.T) {
	dir := t.TempDir()
	writeVocabFixture(t, dir)
	v, err := Load(dir)
	require.NoError(t, err)

	idx := v.BuildParentIndex()
	retrieverIdx, _ := v.Index("retriever")
	assert.Contains(t, idx["retriever"], mustIndex(t, v, "labrador_retriever"))
	assert.NotZero(t, retrieverIdx)
	_, ok := idx["lighting"]
	assert.False(t, ok)
}

func mustIndex(t *testing.T, v *Vocabulary, name string) int {
	t.Helper()
	idx, ok := v.Index(name)
	require.True(t, ok)
	return idx
}
