package note

import "sync"

// SessionKeys maps note ids to derived encryption keys for the lifetime of
// the process. It is populated by successful lock and unlock operations,
// consulted by autosave and bulk export, and never serialized.
type SessionKeys struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func NewSessionKeys() *SessionKeys {
	return &SessionKeys{keys: map[string][]byte{}}
}

func (s *SessionKeys) Put(id string, key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[id] = key
}

func (s *SessionKeys) Get(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[id]
	return key, ok
}

func (s *SessionKeys) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, id)
}

func (s *SessionKeys) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = map[string][]byte{}
}
