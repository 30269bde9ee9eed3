// Package cache resolves the on-disk path of the label bank cache and
// centralizes its "cache miss is not an error" semantics.
package cache

import (
	"path/filepath"

	"github.com/photon-tag/tagging/internal/tagging/labelbank"
)

// LabelBankPath returns the conventional on-disk path for the label bank
// binary inside cacheDir.
func LabelBankPath(cacheDir string) string {
	return filepath.Join(cacheDir, "label_bank.bin")
}

// Valid reports whether a previously-saved label bank at
// LabelBankPath(cacheDir) matches vocabHash and can be loaded as-is instead
// of re-encoded. Any I/O or parse failure counts as invalid, never an
// error: a missing or stale cache is the expected common case on first run
// and after a vocabulary change.
func Valid(cacheDir string, vocabHash string) bool {
	return labelbank.CacheValid(LabelBankPath(cacheDir), vocabHash)
}

// Load loads the cached label bank, assuming Valid has already returned
// true for the same cacheDir. It fails with a ModelError if the file does
// not hold termCount rows.
func Load(cacheDir string, termCount int) (*labelbank.LabelBank, error) {
	return labelbank.Load(LabelBankPath(cacheDir), termCount)
}

// Save persists bank as the cache for cacheDir, tagged with vocabHash.
func Save(cacheDir string, bank *labelbank.LabelBank, vocabHash string) error {
	return labelbank.Save(LabelBankPath(cacheDir), bank, vocabHash)
}
