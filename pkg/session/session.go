package session

import "time"

// Session is one authenticated session as seen by the caller.
// ID and UserID never change after creation; ExpiresAt is renewable.
type Session struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Attributes map[string]any `json:"attributes"`
}

// User is the read-only owner of a session.
type User struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// IsExpired reports whether the session expiration is at or before now.
func (s *Session) IsExpired(now time.Time) bool {
	return s != nil && !now.Before(s.ExpiresAt)
}

// Get retrieves a caller-defined attribute
func (s *Session) Get(key string) (any, bool) {
	if s == nil || s.Attributes == nil {
		return nil, false
	}
	val, ok := s.Attributes[key]
	return val, ok
}

// GetString retrieves a string attribute
func (s *Session) GetString(key string) (string, bool) {
	val, ok := s.Get(key)
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetInt retrieves an integer attribute. Integers read back from the store
// arrive as int64; float64 values are truncated.
func (s *Session) GetInt(key string) (int, bool) {
	val, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// GetBool retrieves a bool attribute
func (s *Session) GetBool(key string) (bool, bool) {
	val, ok := s.Get(key)
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}

// Set stores a caller-defined attribute. It only changes the in-memory value;
// persist it with Store.SetSession.
func (s *Session) Set(key string, value any) {
	if s == nil {
		return
	}
	if s.Attributes == nil {
		s.Attributes = make(map[string]any)
	}
	s.Attributes[key] = value
}

// Get retrieves a user attribute
func (u *User) Get(key string) (any, bool) {
	if u == nil || u.Attributes == nil {
		return nil, false
	}
	val, ok := u.Attributes[key]
	return val, ok
}
