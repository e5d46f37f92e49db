package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("key not found")

// Well-known keys of the local key-value storage.
const (
	KeyNotifications = "notifications"
	KeyLikedMemes    = "liked_memes"
	KeyUser          = "directus_user"
)

// Store defines the local persistence interface: a durable key-value table
// holding JSON documents, the terminal counterpart of browser local storage.
type Store interface {
	GetValue(ctx context.Context, key string) ([]byte, error)
	SetValue(ctx context.Context, key string, value []byte) error
	DeleteValue(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// GetJSON loads key and decodes it into v. It returns ErrNotFound when the
// key is absent.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.GetValue(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.SetValue(ctx, key, data)
}
