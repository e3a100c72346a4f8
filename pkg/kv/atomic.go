package kv

import "time"

// Check is a commit precondition. An empty Versionstamp means the key must be
// absent (or expired) when the commit is applied.
type Check struct {
	Key          Key
	Versionstamp string
}

// MutationKind distinguishes set and delete mutations.
type MutationKind uint8

const (
	MutationSet MutationKind = iota + 1
	MutationDelete
)

// Mutation is a single write applied by a commit.
type Mutation struct {
	Kind  MutationKind
	Key   Key
	Value []byte
	// ExpireIn is relative to the moment the commit is applied. Zero disables expiry.
	ExpireIn time.Duration
}

// Atomic describes one all-or-nothing commit over a fixed set of keys.
//
//	op := kv.NewAtomic().
//	    Check(primary, "").
//	    Set(primary, payload, ttl).
//	    Set(index, payload, ttl)
//	err := store.Commit(ctx, op)
type Atomic struct {
	Checks    []Check
	Mutations []Mutation
}

// NewAtomic returns an empty commit description.
func NewAtomic() *Atomic {
	return &Atomic{}
}

// Check adds a precondition. Pass an empty versionstamp to require absence.
func (a *Atomic) Check(key Key, versionstamp string) *Atomic {
	a.Checks = append(a.Checks, Check{Key: key, Versionstamp: versionstamp})
	return a
}

// Set adds a write. A zero expireIn stores the value without expiry.
func (a *Atomic) Set(key Key, value []byte, expireIn time.Duration) *Atomic {
	a.Mutations = append(a.Mutations, Mutation{
		Kind:     MutationSet,
		Key:      key,
		Value:    value,
		ExpireIn: expireIn,
	})
	return a
}

// Delete adds a removal. Deleting a missing key is not an error.
func (a *Atomic) Delete(key Key) *Atomic {
	a.Mutations = append(a.Mutations, Mutation{Kind: MutationDelete, Key: key})
	return a
}

// Keys returns every distinct key touched by the commit, checks first,
// in the order they were added.
func (a *Atomic) Keys() []Key {
	seen := make(map[string]struct{}, len(a.Checks)+len(a.Mutations))
	keys := make([]Key, 0, len(a.Checks)+len(a.Mutations))
	add := func(k Key) {
		enc := k.Encode()
		if _, ok := seen[enc]; ok {
			return
		}
		seen[enc] = struct{}{}
		keys = append(keys, k)
	}
	for _, c := range a.Checks {
		add(c.Key)
	}
	for _, m := range a.Mutations {
		add(m.Key)
	}
	return keys
}

// Validate reports malformed commits before a binding touches the backend.
func (a *Atomic) Validate() error {
	if a == nil {
		return ErrNilCommit
	}
	for _, c := range a.Checks {
		if err := c.Key.Validate(); err != nil {
			return err
		}
	}
	for _, m := range a.Mutations {
		if err := m.Key.Validate(); err != nil {
			return err
		}
		switch m.Kind {
		case MutationSet:
			if m.ExpireIn < 0 {
				return ErrInvalidExpiration
			}
		case MutationDelete:
		default:
			return ErrInvalidMutation
		}
	}
	return nil
}
