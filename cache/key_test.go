package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	t.Parallel()

	mustKey := func(url string, data any) string {
		k, err := Key(url, data)
		require.NoError(t, err)
		return k
	}

	assert.Equal(t, mustKey("/api/x", map[string]int{"q": 1}), mustKey("/api/x", map[string]int{"q": 1}))
	assert.NotEqual(t, mustKey("/api/x", map[string]int{"q": 1}), mustKey("/api/y", map[string]int{"q": 1}))
	assert.NotEqual(t, mustKey("/api/x", map[string]int{"q": 1}), mustKey("/api/x", map[string]int{"q": 2}))
	assert.Equal(t, "/api/x\x00null", mustKey("/api/x", nil))

	// Go maps encode with sorted keys.
	assert.Equal(t,
		mustKey("/api/x", map[string]any{"a": 1, "b": 2}),
		mustKey("/api/x", map[string]any{"b": 2, "a": 1}))

	// Ordered shapes keep caller order: equal content, different keys.
	type ab struct{ A, B int }
	type ba struct{ B, A int }
	assert.NotEqual(t, mustKey("/api/x", ab{1, 2}), mustKey("/api/x", ba{2, 1}))
	assert.NotEqual(t,
		mustKey("/api/x", [][2]string{{"a", "1"}, {"b", "2"}}),
		mustKey("/api/x", [][2]string{{"b", "2"}, {"a", "1"}}))

	// The separator keeps url and data from bleeding into each other.
	assert.NotEqual(t, mustKey("/a", "b"), mustKey("/a\"", "b"))
}

func TestKey_Unhashable(t *testing.T) {
	t.Parallel()

	_, err := Key("/api/x", func() {})
	assert.ErrorIs(t, err, ErrUnhashableData)
}

// Key must be deterministic and never panic for arbitrary strings.
func FuzzKey(f *testing.F) {
	f.Add("/api/x", "")
	f.Add("", "q")
	f.Add("/αβγ", "🙂")
	f.Add("/long", strings.Repeat("x", 1024))

	f.Fuzz(func(t *testing.T, url, q string) {
		data := map[string]string{"q": q}
		k1, err := Key(url, data)
		if err != nil {
			t.Fatalf("Key failed: %v", err)
		}
		k2, _ := Key(url, data)
		if k1 != k2 {
			t.Fatalf("Key not deterministic: %q vs %q", k1, k2)
		}
		if !strings.HasPrefix(k1, url+"\x00") {
			t.Fatalf("key %q does not start with url %q", k1, url)
		}
	})
}
