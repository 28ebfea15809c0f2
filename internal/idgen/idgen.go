// Package idgen generates opaque random ids for store records.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns a random 16-character hex id.
func New() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// NewWithPrefix returns a New id prefixed with prefix + "_".
func NewWithPrefix(prefix string) string {
	return prefix + "_" + New()
}
