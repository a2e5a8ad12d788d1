package auth

import (
	"context"
	"crypto/subtle"
	"errors"
)

// ErrNoKeys is returned by NewStaticKeys when no usable key is supplied.
var ErrNoKeys = errors.New("no API keys configured")

// Validator decides whether a caller-supplied API key is acceptable.
type Validator interface {
	Validate(ctx context.Context, key string) (bool, error)
}

// StaticKeys accepts any key from a fixed set.
type StaticKeys struct {
	keys [][]byte
}

// NewStaticKeys ignores empty entries and fails when none remain.
func NewStaticKeys(keys ...string) (*StaticKeys, error) {
	s := &StaticKeys{}
	for _, k := range keys {
		if k != "" {
			s.keys = append(s.keys, []byte(k))
		}
	}
	if len(s.keys) == 0 {
		return nil, ErrNoKeys
	}
	return s, nil
}

// Validate compares key against every configured key in constant time.
func (s *StaticKeys) Validate(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	candidate := []byte(key)
	match := 0
	for _, k := range s.keys {
		match |= subtle.ConstantTimeCompare(candidate, k)
	}
	return match == 1, nil
}
