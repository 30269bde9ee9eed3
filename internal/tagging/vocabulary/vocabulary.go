// Package vocabulary loads and indexes the tagging engine's term set: the
// lexical (WordNet-derived) terms and their hypernym chains, plus
// supplementary non-lexical terms (scene, mood, style, ...).
package vocabulary

import (
	"bufio"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/photon-tag/tagging/internal/logging"
	"github.com/photon-tag/tagging/internal/tagging"
)

// Term is one vocabulary entry. RawName is the machine key (may contain
// underscores); DisplayName is RawName with underscores replaced by
// spaces. Hypernyms is ordered most-specific-first.
type Term struct {
	RawName     string
	DisplayName string
	SynsetID    string
	Hypernyms   []string
	Category    string
}

func displayName(raw string) string {
	return strings.ReplaceAll(raw, "_", " ")
}

// Vocabulary is an ordered, indexed set of Terms. Index assignment is
// stable for the lifetime of the Vocabulary and is the source of truth for
// every matrix/table/persisted file that references terms by position.
type Vocabulary struct {
	terms  []Term
	byName map[string]int
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int { return len(v.terms) }

// Term returns the term at index i.
func (v *Vocabulary) Term(i int) Term { return v.terms[i] }

// Get resolves a raw name to its term and index.
func (v *Vocabulary) Get(rawName string) (Term, int, bool) {
	idx, ok := v.byName[rawName]
	if !ok {
		return Term{}, 0, false
	}
	return v.terms[idx], idx, true
}

// Index resolves a raw name to its index only.
func (v *Vocabulary) Index(rawName string) (int, bool) {
	idx, ok := v.byName[rawName]
	return idx, ok
}

// Terms returns the ordered term slice. Callers must not mutate it.
func (v *Vocabulary) Terms() []Term { return v.terms }

// New builds a Vocabulary from an already-deduplicated, ordered term slice.
// Exported for callers assembling a Vocabulary outside of Load (tests,
// Subset).
func New(terms []Term) *Vocabulary {
	v := &Vocabulary{
		terms:  terms,
		byName: make(map[string]int, len(terms)),
	}
	for i, t := range terms {
		v.byName[t.RawName] = i
	}
	return v
}

// Subset returns a new Vocabulary containing exactly the terms at the
// given indices, in the given order, with index mapping rebuilt from
// scratch. The caller is responsible for keeping any accompanying label
// bank's rows aligned 1:1 with the returned indices (spec.md §3).
func (v *Vocabulary) Subset(indices []int) *Vocabulary {
	terms := make([]Term, len(indices))
	for i, idx := range indices {
		terms[i] = v.terms[idx]
	}
	return New(terms)
}

// ContentHash deterministically hashes every term's raw name in index
// order. Identical vocabularies (same terms, same order) always hash the
// same across runs and platforms.
func (v *Vocabulary) ContentHash() [32]byte {
	h := sha256.New()
	for _, t := range v.terms {
		h.Write([]byte(t.RawName))
		h.Write([]byte{0})
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ContentHashHex returns ContentHash as a lowercase 64-char hex string, the
// form persisted in the label-bank sidecar (spec.md §6).
func (v *Vocabulary) ContentHashHex() string {
	h := v.ContentHash()
	return fmt.Sprintf("%x", h)
}

// BuildParentIndex maps each distinct first-hypernym display name to the
// sorted list of term indices whose first hypernym equals it. Terms with no
// hypernyms (including every supplementary term) contribute nothing.
func (v *Vocabulary) BuildParentIndex() map[string][]int {
	out := make(map[string][]int)
	for i, t := range v.terms {
		if len(t.Hypernyms) == 0 {
			continue
		}
		parent := t.Hypernyms[0]
		out[parent] = append(out[parent], i)
	}
	for parent := range out {
		sort.Ints(out[parent])
	}
	return out
}

// Load reads the lexical and supplementary vocabulary files from dir.
// Missing files are treated as empty, not an error. Duplicate raw names:
// the first occurrence wins.
func Load(dir string) (*Vocabulary, error) {
	log := logging.Get(logging.CategoryVocabulary)
	timer := logging.StartTimer(logging.CategoryVocabulary, "Load")
	defer timer.Stop()

	var terms []Term
	seen := make(map[string]bool)

	lexicalPath := filepath.Join(dir, "wordnet_nouns.txt")
	lexical, err := readLines(lexicalPath)
	if err != nil {
		return nil, &tagging.ModelError{Reason: fmt.Sprintf("read lexical vocabulary %s", lexicalPath), Cause: err}
	}
	for lineNo, line := range lexical {
		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			log.Warn("lexical file %s line %d: expected 3 tab-separated fields, skipping", lexicalPath, lineNo+1)
			continue
		}
		raw := fields[0]
		if raw == "" {
			continue
		}
		if seen[raw] {
			continue
		}
		var hypernyms []string
		if fields[2] != "" {
			hypernyms = strings.Split(fields[2], "|")
		}
		terms = append(terms, Term{
			RawName:     raw,
			DisplayName: displayName(raw),
			SynsetID:    fields[1],
			Hypernyms:   hypernyms,
		})
		seen[raw] = true
	}

	supplementaryPath := filepath.Join(dir, "supplemental.txt")
	supplementary, err := readLines(supplementaryPath)
	if err != nil {
		return nil, &tagging.ModelError{Reason: fmt.Sprintf("read supplementary vocabulary %s", supplementaryPath), Cause: err}
	}
	for lineNo, line := range supplementary {
		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			log.Warn("supplementary file %s line %d: expected 2 tab-separated fields, skipping", supplementaryPath, lineNo+1)
			continue
		}
		raw := fields[0]
		if raw == "" {
			continue
		}
		if seen[raw] {
			continue
		}
		terms = append(terms, Term{
			RawName:     raw,
			DisplayName: displayName(raw),
			Category:    fields[1],
		})
		seen[raw] = true
	}

	log.Info("loaded %d terms from %s", len(terms), dir)
	return New(terms), nil
}

// readLines reads a file's lines, returning nil (not an error) when the
// file does not exist.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
