package kvstore

import "errors"

// UserIDKey holds the linked Upstox user id. Absence means signed out.
const UserIDKey = "user_id"

var ErrEmptyKey = errors.New("key cannot be empty")

// Store is the durable client-side key-value store.
// Get reports ok=false when the key is absent.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}
