package labelbank

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photon-tag/tagging/internal/tagging/vocabulary"
)

type fakeEncoder struct {
	dim int
}

func (f *fakeEncoder) EncodeBatch(prompts []string) ([][]float32, error) {
	out := make([][]float32, len(prompts))
	for i, p := range prompts {
		v := make([]float32, f.dim)
		for j := range v {
			v[j] = float32(len(p)+j) + 1
		}
		out[i] = v
	}
	return out, nil
}

func testVocab() *vocabulary.Vocabulary {
	return vocabulary.New([]vocabulary.Term{
		{RawName: "dog", DisplayName: "dog"},
		{RawName: "cat", DisplayName: "cat"},
		{RawName: "labrador_retriever", DisplayName: "labrador retriever"},
	})
}

func TestEncodeAll_shapeAndNormalization(t *testing.T) {
	v := testVocab()
	bank, err := EncodeAll(v, &fakeEncoder{dim: 4}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, bank.N)
	assert.Equal(t, 4, bank.D)

	for i := 0; i < bank.N; i++ {
		row := bank.Row(i)
		var sum float64
		for _, x := range row {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, sum, 1e-4)
	}
}

func TestEncodeAll_empty(t *testing.T) {
	bank, err := EncodeAll(vocabulary.New(nil), &fakeEncoder{dim: 4}, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, bank.N)
}

func TestAppend_mismatchedDims(t *testing.T) {
	a := FromRaw([]float32{1, 0, 0, 0}, 4, 1)
	b := FromRaw([]float32{1, 0, 0}, 3, 1)
	_, err := a.Append(b)
	require.Error(t, err)
}

func TestAppend_ontoEmpty(t *testing.T) {
	empty := Empty(4)
	other := FromRaw([]float32{1, 0, 0, 0}, 4, 1)
	combined, err := empty.Append(other)
	require.NoError(t, err)
	assert.Equal(t, 1, combined.N)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.bin")

	bank := FromRaw([]float32{0.6, 0.8, 0, -1}, 2, 2)
	require.NoError(t, Save(path, bank, "abc123"))

	assert.True(t, CacheValid(path, "abc123"))
	assert.False(t, CacheValid(path, "different"))

	loaded, err := Load(path, 2)
	require.NoError(t, err)
	assert.Equal(t, bank.Rows, loaded.Rows)
	assert.Equal(t, 2, loaded.D)
}

func TestLoad_wrongTermCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.bin")
	bank := FromRaw([]float32{1, 0}, 2, 1)
	require.NoError(t, Save(path, bank, "h"))

	_, err := Load(path, 5)
	require.Error(t, err)
}

func TestClone_isIndependent(t *testing.T) {
	bank := FromRaw([]float32{1, 2}, 2, 1)
	clone := bank.Clone()
	clone.Rows[0] = 99
	assert.Equal(t, float32(1), bank.Rows[0])
}
