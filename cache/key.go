package cache

import (
	"encoding/json"
	"fmt"
)

// Key derives the cache key for (url, data): the url and the JSON encoding of
// data, separated by a NUL byte. Two calls share a key iff both parts are
// byte-equal.
//
// The encoding is shape-sensitive: struct fields follow declaration order and
// slices keep caller order, while Go maps are encoded with sorted keys. Two
// semantically equal values of different shapes may therefore produce
// different keys; such calls are simply not coalesced.
func Key(url string, data any) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnhashableData, err)
	}
	return url + "\x00" + string(b), nil
}
