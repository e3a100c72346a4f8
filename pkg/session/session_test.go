package session_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/kvsession/pkg/session"
)

func TestSession_IsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sess := &session.Session{ExpiresAt: now}

	assert.True(t, sess.IsExpired(now))
	assert.True(t, sess.IsExpired(now.Add(time.Nanosecond)))
	assert.False(t, sess.IsExpired(now.Add(-time.Nanosecond)))

	var nilSession *session.Session
	assert.False(t, nilSession.IsExpired(now))
}

func TestSession_Attributes(t *testing.T) {
	sess := &session.Session{}

	_, ok := sess.Get("missing")
	assert.False(t, ok)

	sess.Set("ip", "1.2.3.4")
	sess.Set("count", 3)
	sess.Set("admin", true)

	ip, ok := sess.GetString("ip")
	assert.True(t, ok)
	assert.Equal(t, "1.2.3.4", ip)

	n, ok := sess.GetInt("count")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	admin, ok := sess.GetBool("admin")
	assert.True(t, ok)
	assert.True(t, admin)

	_, ok = sess.GetInt("ip")
	assert.False(t, ok)
	_, ok = sess.GetString("admin")
	assert.False(t, ok)
}

func TestSession_AttributesAfterJSON(t *testing.T) {
	src := &session.Session{ID: "s1", UserID: "u1", Attributes: map[string]any{"count": 42}}
	data, err := json.Marshal(src)
	require.NoError(t, err)

	var got session.Session
	require.NoError(t, json.Unmarshal(data, &got))

	n, ok := got.GetInt("count")
	assert.True(t, ok)
	assert.Equal(t, 42, n)
}

func TestSession_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(&session.Session{
		ID:        "s1",
		UserID:    "u1",
		ExpiresAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"s1","user_id":"u1","expires_at":"2026-03-01T12:00:00Z","attributes":null}`, string(data))
}

func TestUser_Get(t *testing.T) {
	var nilUser *session.User
	_, ok := nilUser.Get("x")
	assert.False(t, ok)

	u := &session.User{ID: "u1", Attributes: map[string]any{"name": "Ann"}}
	name, ok := u.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "Ann", name)
}
