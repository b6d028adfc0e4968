package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// Checksum returns the hex sha256 of data. Used to fingerprint uploaded
// resumes without persisting their bytes.
func Checksum(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
