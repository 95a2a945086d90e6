package util

import "runtime"

// maxShards bounds the automatic shard count. Query caches hold far fewer
// distinct keys than a general purpose KV store, so the cap is lower.
const maxShards = 64

// NextPow2 returns the smallest power of two >= x (x == 0 -> 1).
// Results that would overflow are clamped to 1<<63.
func NextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	x++
	if x == 0 {
		return 1 << 63
	}
	return x
}

// ShardCount normalizes a requested shard count: n <= 0 picks
// nextPow2(2*GOMAXPROCS) clamped to [1..maxShards], anything else is
// rounded up to a power of two.
func ShardCount(n int) int {
	if n > 0 {
		return int(NextPow2(uint64(n)))
	}
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	n = int(NextPow2(uint64(p * 2)))
	if n > maxShards {
		n = maxShards
	}
	return n
}

// ShardIndex maps a key to a shard index. shards must be a power of two.
func ShardIndex(key string, shards int) int {
	if shards <= 1 {
		return 0
	}
	return int(HashKey(key) & uint64(shards-1))
}
