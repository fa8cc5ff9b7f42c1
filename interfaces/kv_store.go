package interfaces

import "context"

//go:generate moq -stub -out mock/kv_store.go -pkg mock . KVStore

// KVStore is the shared internal key-value store the control servicer falls back to for the
// pre-session operations when no backend exists yet for a client (the working-directory upload
// path needs KV before session init). This interface is the narrow slice of it the proxier
// consumes.
type KVStore interface {
	// Put writes value under key. If overwrite is false and key already exists, it is left
	// unchanged.
	//
	// Returns: (alreadyExisted, nil) on success; (false, err) on store failure.
	Put(ctx context.Context, key, value []byte, overwrite bool) (alreadyExisted bool, err error)

	// Get reads the value stored under key.
	//
	// Returns: (value, true, nil) if present; (nil, false, nil) if absent; (nil, false, err) on
	// store failure.
	Get(ctx context.Context, key []byte) (value []byte, found bool, err error)

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key []byte) error

	// List returns all keys with the given prefix.
	List(ctx context.Context, prefix []byte) ([][]byte, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key []byte) (bool, error)

	// PinRuntimeEnvURI records that uri must not be garbage-collected for expirationSeconds (0
	// means "pin indefinitely").
	PinRuntimeEnvURI(ctx context.Context, uri string, expirationSeconds int32) error
}
