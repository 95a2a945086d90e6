// Package util contains internal helpers for the query cache (key hashing,
// shard selection, padded counters).
//
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

const (
	fnvOffset64 = 1469598103934665603
	fnvPrime64  = 1099511628211
)

// HashKey hashes a cache key with 64-bit FNV-1a.
// The result only picks a shard; key equality is always decided on the full string.
func HashKey(key string) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < len(key); i++ {
		h ^= uint64(key[i])
		h *= fnvPrime64
	}
	return h
}
