package cache

import "errors"

var ErrNotFound = errors.New("cache entry not found")

// Store is a key-value store for serialized completions. Entries never
// expire.
//
//go:generate mockgen -source=store.go -destination=mocks/store.go -package=mocks
type Store interface {
	Contains(key string) (bool, error)
	// Get returns ErrNotFound when the key is missing.
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}
