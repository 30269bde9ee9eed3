// Package seed picks the high-value subset of the vocabulary encoded
// synchronously before the progressive encoder's background tail starts.
package seed

import (
	"bufio"
	"encoding/binary"
	"math/rand"
	"os"
	"sort"
	"strings"

	"github.com/photon-tag/tagging/internal/logging"
	"github.com/photon-tag/tagging/internal/tagging"
	"github.com/photon-tag/tagging/internal/tagging/vocabulary"
)

// Select returns a sorted list of vocabulary indices to encode first, in
// priority order: all supplementary terms, then curated seed-file terms,
// then a deterministic random fill up to targetSize.
func Select(vocab *vocabulary.Vocabulary, seedFilePath string, targetSize int) ([]int, error) {
	log := logging.Get(logging.CategorySeed)

	chosen := make(map[int]bool)
	var order []int
	add := func(idx int) {
		if !chosen[idx] {
			chosen[idx] = true
			order = append(order, idx)
		}
	}

	terms := vocab.Terms()
	for i, t := range terms {
		if t.Category != "" {
			add(i)
		}
	}
	log.Debug("seed selector: %d supplementary terms", len(order))

	curated, err := readSeedFile(seedFilePath)
	if err != nil {
		return nil, &tagging.ModelError{Reason: "read seed file " + seedFilePath, Cause: err}
	}
	for _, name := range curated {
		if idx, ok := vocab.Index(name); ok {
			add(idx)
		}
	}

	if len(order) < targetSize {
		remaining := make([]int, 0, len(terms))
		for i := range terms {
			if !chosen[i] {
				remaining = append(remaining, i)
			}
		}
		rng := rand.New(rand.NewSource(seedFromHash(vocab.ContentHash())))
		rng.Shuffle(len(remaining), func(i, j int) { remaining[i], remaining[j] = remaining[j], remaining[i] })
		need := targetSize - len(order)
		if need > len(remaining) {
			need = len(remaining)
		}
		for _, idx := range remaining[:need] {
			add(idx)
		}
	}

	sort.Ints(order)
	log.Info("selected %d seed terms (target %d, vocabulary %d)", len(order), targetSize, len(terms))
	return order, nil
}

// seedFromHash derives a deterministic RNG seed from the vocabulary's
// content hash, per spec.md §4.4/§8: the first 8 bytes, big-endian.
func seedFromHash(hash [32]byte) int64 {
	return int64(binary.BigEndian.Uint64(hash[:8]))
}

func readSeedFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return names, nil
}
