// Package hierarchy post-processes scored tags: suppressing redundant
// ancestor tags and annotating surviving tags with their general-to-
// specific hypernym path.
package hierarchy

import (
	"strings"

	"github.com/photon-tag/tagging/internal/tagging/vocabulary"
)

// Tag is one output record.
type Tag struct {
	Name       string
	Confidence float64
	Category   string
	Path       string
}

// genericTerms are skipped when building a path: too broad to be useful
// context (spec.md §4.9).
var genericTerms = map[string]bool{
	"entity": true, "physical entity": true, "object": true, "whole": true,
	"thing": true, "organism": true, "living thing": true,
	"abstraction": true, "matter": true, "substance": true,
	"body": true, "unit": true,
}

// Deduplicate removes any tag that appears in another tag's hypernym
// chain, preserving the original order of survivors. The more specific
// tag (the one whose chain contains the other) survives, irrespective of
// confidence ordering.
func Deduplicate(tags []Tag, vocab *vocabulary.Vocabulary) []Tag {
	suppressed := make([]bool, len(tags))

	ancestorsOf := func(name string) map[string]bool {
		set := make(map[string]bool)
		term, _, ok := vocab.Get(nameToRaw(name, vocab))
		if !ok {
			return set
		}
		for _, h := range term.Hypernyms {
			set[h] = true
		}
		return set
	}

	ancestorSets := make([]map[string]bool, len(tags))
	for i, tg := range tags {
		ancestorSets[i] = ancestorsOf(tg.Name)
	}

	for i, ti := range tags {
		for j := range tags {
			if i == j {
				continue
			}
			if ancestorSets[j][ti.Name] {
				suppressed[i] = true
				break
			}
		}
	}

	var out []Tag
	for i, tg := range tags {
		if !suppressed[i] {
			out = append(out, tg)
		}
	}
	return out
}

// AddPaths annotates each tag with a general→specific hypernym path,
// dropping generic terms and keeping at most maxAncestors of the most
// general remaining ancestors. Supplementary terms (no hypernyms) are
// left without a path.
func AddPaths(tags []Tag, vocab *vocabulary.Vocabulary, maxAncestors int) []Tag {
	out := make([]Tag, len(tags))
	for i, tg := range tags {
		out[i] = tg
		term, _, ok := vocab.Get(nameToRaw(tg.Name, vocab))
		if !ok || len(term.Hypernyms) == 0 {
			continue
		}

		var kept []string
		for _, h := range term.Hypernyms {
			if genericTerms[h] {
				continue
			}
			kept = append(kept, h)
		}
		// kept is most-specific-first, so the most general ones are at the end.
		if maxAncestors >= 0 && len(kept) > maxAncestors {
			kept = kept[len(kept)-maxAncestors:]
		}
		if len(kept) == 0 {
			continue
		}

		// kept is most-specific-first; reverse for general→specific.
		for l, r := 0, len(kept)-1; l < r; l, r = l+1, r-1 {
			kept[l], kept[r] = kept[r], kept[l]
		}
		kept = append(kept, tg.Name)
		out[i].Path = strings.Join(kept, " > ")
	}
	return out
}

// nameToRaw resolves a display name back to its raw_name so vocabulary
// lookups work regardless of which form a Tag carries. Display names are
// raw names with underscores replaced by spaces, so the reverse mapping
// is unambiguous as long as raw names never contain literal spaces.
func nameToRaw(displayName string, vocab *vocabulary.Vocabulary) string {
	raw := strings.ReplaceAll(displayName, " ", "_")
	if _, _, ok := vocab.Get(raw); ok {
		return raw
	}
	return displayName
}
