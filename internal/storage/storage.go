// Package storage provides the string key-value persistence the note store
// writes through. Two backends: a single JSON file written atomically, and a
// sqlite database.
package storage

// KV is durable string-to-string storage. Implementations persist every Set
// and Delete before returning.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}
