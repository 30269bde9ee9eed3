// Package textencoder runs the neural text encoder used to turn vocabulary
// prompts into embeddings comparable against image embeddings.
package textencoder

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/daulet/tokenizers"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/photon-tag/tagging/internal/logging"
	"github.com/photon-tag/tagging/internal/tagging"
)

// seqLen is the fixed sequence length every prompt is truncated or padded
// to before the forward pass.
const seqLen = 64

// EmbeddingDim is the output dimension of the paired text encoder.
const EmbeddingDim = 768

// TextEncoder wraps an ONNX session and tokenizer. All exported methods
// are safe for concurrent use: inference calls are serialised internally.
type TextEncoder struct {
	mu        sync.Mutex
	session   *ort.DynamicAdvancedSession
	tokenizer *tokenizers.Tokenizer
}

// ModelExists reports whether modelDir contains both required files,
// without loading anything.
func ModelExists(modelDir string) bool {
	_, err1 := os.Stat(filepath.Join(modelDir, "text_model.onnx"))
	_, err2 := os.Stat(filepath.Join(modelDir, "tokenizer.json"))
	return err1 == nil && err2 == nil
}

// Load loads the ONNX model and tokenizer from modelDir. Both
// text_model.onnx and tokenizer.json must be present.
func Load(modelDir string) (*TextEncoder, error) {
	log := logging.Get(logging.CategoryTextEncoder)
	modelPath := filepath.Join(modelDir, "text_model.onnx")
	tokenPath := filepath.Join(modelDir, "tokenizer.json")

	if _, err := os.Stat(modelPath); err != nil {
		return nil, &tagging.ModelError{Reason: fmt.Sprintf("text encoder model not found at %s", modelPath), Cause: err}
	}
	if _, err := os.Stat(tokenPath); err != nil {
		return nil, &tagging.ModelError{Reason: fmt.Sprintf("tokenizer not found at %s", tokenPath), Cause: err}
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, &tagging.ModelError{Reason: "initialize onnxruntime environment", Cause: err}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, &tagging.ModelError{Reason: "create session options", Cause: err}
	}
	defer opts.Destroy()
	if err := opts.SetIntraOpNumThreads(1); err != nil {
		return nil, &tagging.ModelError{Reason: "set intra-op threads", Cause: err}
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return nil, &tagging.ModelError{Reason: "set inter-op threads", Cause: err}
	}

	inputNames := []string{"input_ids", "attention_mask", "token_type_ids"}
	outputNames := []string{"pooler_output"}
	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, opts)
	if err != nil {
		return nil, &tagging.ModelError{Reason: "create onnx session", Cause: err}
	}

	tk, err := tokenizers.FromFile(tokenPath)
	if err != nil {
		session.Destroy()
		return nil, &tagging.ModelError{Reason: "load tokenizer", Cause: err}
	}

	log.Info("loaded text encoder from %s", modelDir)
	return &TextEncoder{session: session, tokenizer: tk}, nil
}

// Close releases the ONNX session and tokenizer.
func (e *TextEncoder) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
	if e.tokenizer != nil {
		e.tokenizer.Close()
	}
}

// Encode is a convenience wrapper over EncodeBatch for a single prompt.
func (e *TextEncoder) Encode(prompt string) ([]float32, error) {
	vecs, err := e.EncodeBatch([]string{prompt})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EncodeBatch tokenizes prompts (truncating/padding each to exactly
// seqLen tokens), runs one forward pass, and returns one L2-normalised
// pooled vector per prompt.
func (e *TextEncoder) EncodeBatch(prompts []string) ([][]float32, error) {
	if len(prompts) == 0 {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryTextEncoder, "EncodeBatch")
	defer timer.Stop()

	batchSize := len(prompts)
	flatIDs := make([]int64, batchSize*seqLen)
	flatMask := make([]int64, batchSize*seqLen)
	flatType := make([]int64, batchSize*seqLen)

	for i, prompt := range prompts {
		enc := e.tokenizer.EncodeWithOptions(prompt, true, tokenizers.WithReturnAttentionMask())
		ids := enc.IDs
		if len(ids) > seqLen {
			ids = ids[:seqLen]
		}
		base := i * seqLen
		for j, id := range ids {
			flatIDs[base+j] = int64(id)
			mask := int64(1)
			if j < len(enc.AttentionMask) {
				mask = int64(enc.AttentionMask[j])
			}
			flatMask[base+j] = mask
		}
	}

	shape := ort.NewShape(int64(batchSize), int64(seqLen))
	inputIDs, err := ort.NewTensor(shape, flatIDs)
	if err != nil {
		return nil, &tagging.ModelError{Reason: "build input_ids tensor", Cause: err}
	}
	defer inputIDs.Destroy()

	attnMask, err := ort.NewTensor(shape, flatMask)
	if err != nil {
		return nil, &tagging.ModelError{Reason: "build attention_mask tensor", Cause: err}
	}
	defer attnMask.Destroy()

	typeIDs, err := ort.NewTensor(shape, flatType)
	if err != nil {
		return nil, &tagging.ModelError{Reason: "build token_type_ids tensor", Cause: err}
	}
	defer typeIDs.Destroy()

	inputs := []ort.Value{inputIDs, attnMask, typeIDs}
	outputs := []ort.Value{nil}
	if err := e.session.Run(inputs, outputs); err != nil {
		return nil, &tagging.ModelError{Reason: "onnx forward pass", Cause: err}
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	pooled, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, &tagging.ModelError{Reason: "pooler_output is not a float32 tensor"}
	}
	data := pooled.GetData()

	result := make([][]float32, batchSize)
	for i := 0; i < batchSize; i++ {
		vec := make([]float32, EmbeddingDim)
		copy(vec, data[i*EmbeddingDim:(i+1)*EmbeddingDim])
		l2Normalize(vec)
		result[i] = vec
	}
	return result, nil
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
