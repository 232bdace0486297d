package store

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// ContentHash is the cache key of a file's content: its xxhash64 in hex.
// Any byte change produces a different key, so a hit always means identical
// content.
func ContentHash(content []byte) string {
	return strconv.FormatUint(xxhash.Sum64(content), 16)
}

// Fingerprint hashes parts in order into one key. Parts are separated so
// that moving bytes between neighbours changes the result.
func Fingerprint(parts ...[]byte) string {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.Write(p)
		_, _ = d.Write([]byte{0})
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
