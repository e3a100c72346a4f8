package kv_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/kvsession/pkg/kv"
)

func TestAtomic_Builder(t *testing.T) {
	t.Parallel()

	primary := kv.Key{"sessions", "s1"}
	index := kv.Key{"sessions_by_user", "u1", "s1"}

	op := kv.NewAtomic().
		Check(primary, "").
		Check(index, "").
		Set(primary, []byte("a"), time.Minute).
		Set(index, []byte("a"), time.Minute).
		Delete(kv.Key{"other"})

	require.Len(t, op.Checks, 2)
	require.Len(t, op.Mutations, 3)
	assert.Equal(t, kv.MutationSet, op.Mutations[0].Kind)
	assert.Equal(t, time.Minute, op.Mutations[1].ExpireIn)
	assert.Equal(t, kv.MutationDelete, op.Mutations[2].Kind)

	assert.Equal(t, []kv.Key{primary, index, {"other"}}, op.Keys())
	assert.NoError(t, op.Validate())
}

func TestAtomic_Validate(t *testing.T) {
	t.Parallel()

	t.Run("nil commit", func(t *testing.T) {
		var op *kv.Atomic
		assert.ErrorIs(t, op.Validate(), kv.ErrNilCommit)
	})

	t.Run("empty check key", func(t *testing.T) {
		op := kv.NewAtomic().Check(nil, "")
		assert.ErrorIs(t, op.Validate(), kv.ErrInvalidKey)
	})

	t.Run("empty mutation key", func(t *testing.T) {
		op := kv.NewAtomic().Delete(kv.Key{})
		assert.ErrorIs(t, op.Validate(), kv.ErrInvalidKey)
	})

	t.Run("negative ttl", func(t *testing.T) {
		op := kv.NewAtomic().Set(kv.Key{"a"}, []byte("x"), -time.Second)
		assert.ErrorIs(t, op.Validate(), kv.ErrInvalidExpiration)
	})

	t.Run("unknown mutation", func(t *testing.T) {
		op := &kv.Atomic{Mutations: []kv.Mutation{{Key: kv.Key{"a"}}}}
		assert.ErrorIs(t, op.Validate(), kv.ErrInvalidMutation)
	})

	t.Run("empty commit is valid", func(t *testing.T) {
		assert.NoError(t, kv.NewAtomic().Validate())
	})
}
