package session

import "github.com/dmitrymomot/kvsession/pkg/kv"

const (
	sessionsPart       = "sessions"
	sessionsByUserPart = "sessions_by_user"
	usersPart          = "users"
)

// keyspace builds every key the store touches under an optional root.
type keyspace struct {
	root kv.Key
}

func (k keyspace) primary(sessionID string) kv.Key {
	return k.root.Append(sessionsPart, sessionID)
}

// index keys are ordered (user, session) so one user's sessions form a
// contiguous range.
func (k keyspace) index(userID, sessionID string) kv.Key {
	return k.root.Append(sessionsByUserPart, userID, sessionID)
}

func (k keyspace) userIndex(userID string) kv.Key {
	return k.root.Append(sessionsByUserPart, userID)
}

func (k keyspace) user(userID string) kv.Key {
	return k.root.Append(usersPart, userID)
}
