// Package labelbank holds the N×D matrix of pre-encoded text embeddings,
// one row per vocabulary term, plus its on-disk persistence format.
package labelbank

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/photon-tag/tagging/internal/logging"
	"github.com/photon-tag/tagging/internal/tagging"
	"github.com/photon-tag/tagging/internal/tagging/vocabulary"
)

// TextEncoder is the subset of the text encoder's surface the label bank
// needs to build prompts and encode them. Kept narrow so tests can supply
// a fake without pulling in ONNX Runtime.
type TextEncoder interface {
	EncodeBatch(prompts []string) ([][]float32, error)
}

// LabelBank is a flat row-major N×D float32 matrix. Row i is the
// L2-normalised text embedding of vocabulary term i.
type LabelBank struct {
	Rows []float32 // len == N*D
	N    int
	D    int
}

// Empty returns a zero-row bank of the given dimension.
func Empty(d int) *LabelBank {
	return &LabelBank{D: d}
}

// FromRaw wraps pre-computed row-major data. Panics if the slice length
// doesn't match rows*dim, since that indicates a caller bug, not a runtime
// condition.
func FromRaw(rows []float32, dim, n int) *LabelBank {
	if len(rows) != n*dim {
		panic(fmt.Sprintf("labelbank: FromRaw length mismatch: got %d want %d", len(rows), n*dim))
	}
	return &LabelBank{Rows: rows, N: n, D: dim}
}

// Row returns a view onto row i. The caller must not retain it past the
// next mutation of the bank.
func (b *LabelBank) Row(i int) []float32 {
	return b.Rows[i*b.D : (i+1)*b.D]
}

// Append concatenates other's rows onto b, returning a new bank; b is left
// unmodified. Fails with ErrorKind DimensionMismatch semantics when the
// dimensions differ.
func (b *LabelBank) Append(other *LabelBank) (*LabelBank, error) {
	if b.N == 0 && b.D == 0 {
		// A zero-dimension empty bank (Empty(0), or EncodeAll over an empty
		// vocabulary) takes other's shape; Empty(d) with d > 0 goes through
		// the dimension check below.
		return &LabelBank{Rows: append([]float32(nil), other.Rows...), N: other.N, D: other.D}, nil
	}
	if b.D != other.D {
		return nil, &tagging.TaggingError{Kind: tagging.DimensionMismatch, Reason: fmt.Sprintf("label bank dims %d vs %d", b.D, other.D)}
	}
	rows := make([]float32, 0, len(b.Rows)+len(other.Rows))
	rows = append(rows, b.Rows...)
	rows = append(rows, other.Rows...)
	return &LabelBank{Rows: rows, N: b.N + other.N, D: b.D}, nil
}

// Clone makes an independent copy, used by the progressive encoder so the
// bank installed in a Scorer can keep being appended to without readers of
// that Scorer observing a partial update.
func (b *LabelBank) Clone() *LabelBank {
	rows := append([]float32(nil), b.Rows...)
	return &LabelBank{Rows: rows, N: b.N, D: b.D}
}

func l2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// EncodeAll builds "a photo of a {display_name}" prompts for every term in
// vocab and encodes them in batches of batchSize, returning the resulting
// bank in vocabulary order.
func EncodeAll(vocab *vocabulary.Vocabulary, encoder TextEncoder, batchSize int) (*LabelBank, error) {
	log := logging.Get(logging.CategoryLabelBank)
	timer := logging.StartTimer(logging.CategoryLabelBank, "EncodeAll")
	defer timer.Stop()

	terms := vocab.Terms()
	if len(terms) == 0 {
		return Empty(0), nil
	}
	if batchSize < 1 {
		batchSize = 1
	}

	var allRows []float32
	dim := 0
	for start := 0; start < len(terms); start += batchSize {
		end := start + batchSize
		if end > len(terms) {
			end = len(terms)
		}
		prompts := make([]string, end-start)
		for i, t := range terms[start:end] {
			prompts[i] = fmt.Sprintf("a photo of a %s", t.DisplayName)
		}
		vecs, err := encoder.EncodeBatch(prompts)
		if err != nil {
			return nil, &tagging.ModelError{Reason: "encode vocabulary batch", Cause: err}
		}
		for _, v := range vecs {
			if dim == 0 {
				dim = len(v)
			}
			l2Normalize(v)
			allRows = append(allRows, v...)
		}
		log.Debug("encoded batch [%d:%d] of %d terms", start, end, len(terms))
	}

	log.Info("encoded %d terms into a %dx%d label bank", len(terms), len(terms), dim)
	return &LabelBank{Rows: allRows, N: len(terms), D: dim}, nil
}

// Save writes the bank as raw little-endian f32 bytes plus a ".meta"
// sidecar recording vocab_hash, term_count, embedding_dim.
func Save(path string, bank *LabelBank, vocabHash string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &tagging.ModelError{Reason: "create cache directory", Cause: err}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return &tagging.ModelError{Reason: "create label bank file", Cause: err}
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	buf := make([]byte, 4)
	for _, v := range bank.Rows {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := w.Write(buf); err != nil {
			return &tagging.ModelError{Reason: "write label bank bytes", Cause: err}
		}
	}
	if err := w.Flush(); err != nil {
		return &tagging.ModelError{Reason: "flush label bank file", Cause: err}
	}

	meta := fmt.Sprintf("vocab_hash=%s\nterm_count=%d\nembedding_dim=%d\n", vocabHash, bank.N, bank.D)
	if err := os.WriteFile(metaPath(path), []byte(meta), 0644); err != nil {
		return &tagging.ModelError{Reason: "write label bank sidecar", Cause: err}
	}
	return nil
}

// Load reads a previously-saved bank, failing if the file size doesn't
// imply expectedTermCount rows of the recorded embedding_dim.
func Load(path string, expectedTermCount int) (*LabelBank, error) {
	meta, err := readMeta(metaPath(path))
	if err != nil {
		return nil, &tagging.ModelError{Reason: "read label bank sidecar", Cause: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &tagging.ModelError{Reason: "read label bank file", Cause: err}
	}
	if len(data)%4 != 0 {
		return nil, &tagging.ModelError{Reason: "label bank file size not a multiple of 4"}
	}
	floatCount := len(data) / 4
	if meta.embeddingDim <= 0 || floatCount%meta.embeddingDim != 0 {
		return nil, &tagging.ModelError{Reason: "label bank size does not align to embedding_dim"}
	}
	n := floatCount / meta.embeddingDim
	if n != expectedTermCount {
		return nil, &tagging.ModelError{Reason: fmt.Sprintf("label bank row count %d != expected %d", n, expectedTermCount)}
	}

	rows := make([]float32, floatCount)
	for i := 0; i < floatCount; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		rows[i] = math.Float32frombits(bits)
	}
	return &LabelBank{Rows: rows, N: n, D: meta.embeddingDim}, nil
}

// CacheValid reports whether the sidecar beside path records vocab_hash
// exactly. Any parse failure or missing sidecar is treated as "rebuild",
// not an error (spec.md §7, §9 open question).
func CacheValid(path string, vocabHash string) bool {
	meta, err := readMeta(metaPath(path))
	if err != nil {
		return false
	}
	return meta.vocabHash == vocabHash
}

func metaPath(binPath string) string {
	return binPath + ".meta"
}

type sidecar struct {
	vocabHash    string
	termCount    int
	embeddingDim int
}

func readMeta(path string) (sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sidecar{}, err
	}
	var m sidecar
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "vocab_hash":
			m.vocabHash = kv[1]
		case "term_count":
			m.termCount, _ = strconv.Atoi(kv[1])
		case "embedding_dim":
			m.embeddingDim, _ = strconv.Atoi(kv[1])
		}
	}
	if m.vocabHash == "" {
		return sidecar{}, fmt.Errorf("sidecar %s missing vocab_hash", path)
	}
	return m, nil
}
