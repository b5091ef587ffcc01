// Package storage provides the local mirror port: a small synchronous
// key-value store the persistence coordinator writes the full serialized
// sheet list into on every change. The local mirror is the durable source
// of truth for a device; the remote backend is opportunistic.
package storage

// Store is a synchronous key-value store. Get returns (nil, false, nil)
// for an absent key. Set must be atomic at the value level: a reader never
// observes a torn write.
type Store interface {
	Get(key string) (value []byte, ok bool, err error)
	Set(key string, value []byte) error

	// Close releases any resources held by the store.
	Close() error
}

// MirrorKey is the single key under which the serialized sheet list is
// mirrored.
const MirrorKey = "schedule_sheets"
