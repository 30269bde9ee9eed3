// Package neighbors finds WordNet siblings of newly promoted terms, using
// the vocabulary's precomputed first-hypernym parent index.
package neighbors

import (
	"github.com/photon-tag/tagging/internal/logging"
	"github.com/photon-tag/tagging/internal/tagging/vocabulary"
)

// ExpandAll returns the sibling indices of every promoted index: for each
// promoted term, the other children of its first hypernym, deduplicated,
// with the promoted indices themselves excluded from the result. Terms
// with no hypernyms (including all supplementary terms) contribute
// nothing.
func ExpandAll(vocab *vocabulary.Vocabulary, promotedIndices []int) []int {
	log := logging.Get(logging.CategoryNeighbors)

	parentIndex := vocab.BuildParentIndex()
	promoted := make(map[int]bool, len(promotedIndices))
	for _, i := range promotedIndices {
		promoted[i] = true
	}

	seen := make(map[int]bool)
	var result []int
	for _, i := range promotedIndices {
		term := vocab.Term(i)
		if len(term.Hypernyms) == 0 {
			continue
		}
		parent := term.Hypernyms[0]
		for _, sibling := range parentIndex[parent] {
			if promoted[sibling] || seen[sibling] {
				continue
			}
			seen[sibling] = true
			result = append(result, sibling)
		}
	}

	log.Debug("expanded %d promoted indices into %d neighbor indices", len(promotedIndices), len(result))
	return result
}
