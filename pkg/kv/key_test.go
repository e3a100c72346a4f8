package kv_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/kvsession/pkg/kv"
)

func TestKey_EncodeDecode(t *testing.T) {
	t.Parallel()

	keys := []kv.Key{
		{"sessions", "abc"},
		{"sessions_by_user", "u1", "s1"},
		{"with\x00null", "\xff", ""},
		{"a\x00", "b"},
	}

	for _, key := range keys {
		decoded, err := kv.DecodeKey(key.Encode())
		require.NoError(t, err)
		assert.Equal(t, key, decoded)
	}
}

func TestKey_DecodeInvalid(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "plain", "\x02unterminated"} {
		_, err := kv.DecodeKey(raw)
		assert.ErrorIs(t, err, kv.ErrInvalidKey, "input %q", raw)
	}
}

func TestKey_EncodingIsUnambiguous(t *testing.T) {
	t.Parallel()

	a := kv.Key{"a\x00"}
	b := kv.Key{"a", "\xff"}
	assert.NotEqual(t, a.Encode(), b.Encode())
}

func TestKey_EncodingPreservesOrder(t *testing.T) {
	t.Parallel()

	ordered := []kv.Key{
		{"a"},
		{"a", "b"},
		{"a", "c"},
		{"a\x00"},
		{"a\x01"},
		{"a0"},
		{"b"},
	}

	encoded := make([]string, len(ordered))
	for i, k := range ordered {
		encoded[i] = k.Encode()
	}
	assert.True(t, sort.StringsAreSorted(encoded))
}

func TestPrefixRange(t *testing.T) {
	t.Parallel()

	start, end := kv.PrefixRange(kv.Key{"sessions_by_user", "u1"})

	inside := []kv.Key{
		{"sessions_by_user", "u1"},
		{"sessions_by_user", "u1", "s1"},
		{"sessions_by_user", "u1", "\xff\xff"},
	}
	for _, k := range inside {
		enc := k.Encode()
		assert.True(t, enc >= start && enc < end, "%s should be in range", k)
	}

	outside := []kv.Key{
		{"sessions_by_user", "u10", "s1"},
		{"sessions_by_user", "u", "s1"},
		{"sessions", "s1"},
	}
	for _, k := range outside {
		enc := k.Encode()
		assert.False(t, enc >= start && enc < end, "%s should be out of range", k)
	}
}

func TestKey_Helpers(t *testing.T) {
	t.Parallel()

	base := kv.Key{"sessions_by_user"}
	k := base.Append("u1", "s1")
	assert.Equal(t, kv.Key{"sessions_by_user", "u1", "s1"}, k)
	assert.Equal(t, kv.Key{"sessions_by_user"}, base, "append must not alias")

	assert.True(t, k.HasPrefix(kv.Key{"sessions_by_user", "u1"}))
	assert.False(t, k.HasPrefix(kv.Key{"sessions_by_user", "u2"}))
	assert.False(t, base.HasPrefix(k))

	assert.Equal(t, `["sessions_by_user","u1","s1"]`, k.String())
	assert.ErrorIs(t, kv.Key{}.Validate(), kv.ErrInvalidKey)
	assert.NoError(t, k.Validate())
}
