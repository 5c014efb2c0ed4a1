package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewRequestID returns a URL-safe hex string used for request correlation.
func NewRequestID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
