package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// InputHash identifies the exact bytes of an input table.
//
// It ties run metadata and traces to the table they were produced from; two runs
// over byte-identical input share an InputHash.
type InputHash string

// HashInput returns the sha256 hex digest of the raw table bytes.
func HashInput(content []byte) InputHash {
	sum := sha256.Sum256(content)
	return InputHash(hex.EncodeToString(sum[:]))
}

func (h InputHash) String() string { return string(h) }

// Short returns the first 12 hex characters, for log lines.
func (h InputHash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}
