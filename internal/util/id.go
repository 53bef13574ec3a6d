package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random hex identifier with an entity-kind prefix, such as
// usr_, sub_ or prt_.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
