package kv

import (
	"strings"
)

// Key is a tuple of string parts, e.g. Key{"sessions_by_user", userID, sessionID}.
type Key []string

const (
	partMarker  = 0x02
	partEnd     = 0x00
	escapeByte  = 0xff
	rangeSuffix = "\xff"
)

// Encode returns the order-preserving byte encoding of the key.
//
// Every part is written as 0x02, the part bytes with 0x00 escaped as 0x00 0xff,
// then a 0x00 terminator. Because a terminator is never followed by 0xff, the
// encoding is unambiguous and bytewise order matches tuple order.
func (k Key) Encode() string {
	var b strings.Builder
	for _, part := range k {
		b.WriteByte(partMarker)
		for i := 0; i < len(part); i++ {
			c := part[i]
			b.WriteByte(c)
			if c == partEnd {
				b.WriteByte(escapeByte)
			}
		}
		b.WriteByte(partEnd)
	}
	return b.String()
}

// DecodeKey parses an encoded key produced by Key.Encode.
func DecodeKey(encoded string) (Key, error) {
	if encoded == "" {
		return nil, ErrInvalidKey
	}

	var (
		key  Key
		part []byte
		open bool
	)
	for i := 0; i < len(encoded); i++ {
		c := encoded[i]
		if !open {
			if c != partMarker {
				return nil, ErrInvalidKey
			}
			open = true
			part = part[:0]
			continue
		}
		if c != partEnd {
			part = append(part, c)
			continue
		}
		if i+1 < len(encoded) && encoded[i+1] == escapeByte {
			part = append(part, partEnd)
			i++
			continue
		}
		key = append(key, string(part))
		open = false
	}
	if open {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// PrefixRange returns the half-open range [start, end) of encoded keys that
// begin with the given prefix tuple. The prefix key itself is included.
func PrefixRange(prefix Key) (start, end string) {
	start = prefix.Encode()
	return start, start + rangeSuffix
}

// HasPrefix reports whether k starts with every part of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}
	return true
}

// Append returns a new key with parts added to the end of k.
func (k Key) Append(parts ...string) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, parts...)
}

// Validate reports ErrInvalidKey for a key with no parts.
func (k Key) Validate() error {
	if len(k) == 0 {
		return ErrInvalidKey
	}
	return nil
}

// String renders the key for logs, e.g. ["sessions","abc"].
func (k Key) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, part := range k {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(part)
		b.WriteByte('"')
	}
	b.WriteByte(']')
	return b.String()
}
