package session

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Primary and index records share this encoding; the index holds a full copy
// rather than a pointer so that listing needs a single range scan.
func encodeSession(s *Session) ([]byte, error) {
	return json.Marshal(s)
}

func decodeSession(data []byte) (*Session, error) {
	var s Session
	if err := unmarshalRecord(data, &s); err != nil {
		return nil, errors.Join(ErrCorruptRecord, err)
	}
	if s.ID == "" || s.UserID == "" {
		return nil, ErrCorruptRecord
	}
	if s.Attributes != nil {
		s.Attributes = normalizeNumbers(s.Attributes).(map[string]any)
	}
	return &s, nil
}

// User records are flat JSON objects: "id" is the identifier and every other
// field is an attribute.
func decodeUser(data []byte) (*User, error) {
	var raw map[string]any
	if err := unmarshalRecord(data, &raw); err != nil {
		return nil, errors.Join(ErrCorruptRecord, err)
	}
	id, _ := raw["id"].(string)
	if id == "" {
		return nil, ErrCorruptRecord
	}
	delete(raw, "id")
	return &User{ID: id, Attributes: normalizeNumbers(raw).(map[string]any)}, nil
}

func unmarshalRecord(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// normalizeNumbers replaces json.Number with int64 when the literal is an
// integer that fits, and with float64 otherwise, so integer attributes keep
// their exact value.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	default:
		return v
	}
}
