package note

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"

	"gpad/internal/codec"
	"gpad/internal/crypto"
	"gpad/internal/storage"
)

const (
	notesKey        = "notebooks"
	activeKeyPrefix = "activeNoteId."

	// DefaultAutosaveDelay is the quiet period after the last edit before a
	// debounced autosave fires.
	DefaultAutosaveDelay = 500 * time.Millisecond

	// LockedPlaceholder stands in for the body of a note whose key is not
	// cached; UnreadablePlaceholder for a note whose stored token cannot be
	// decoded. Bulk export uses them instead of failing the batch.
	LockedPlaceholder     = "[locked]"
	UnreadablePlaceholder = "[unreadable]"
)

var modes = []Mode{ModePlain, ModeMarkdown}

// Store owns the ordered note collection. Every mutation rewrites the whole
// serialized collection plus the per-mode active pointers through the KV
// backend, so persistence is atomic at collection granularity.
type Store struct {
	kv   storage.KV
	keys *SessionKeys
	now  func() time.Time

	mu      sync.Mutex
	notes   []*Note
	active  map[Mode]string
	mode    Mode
	subs    map[int]func(Event)
	nextSub int

	debounced func(func())
	pending   func()
}

// Option adjusts Store construction.
type Option func(*Store)

// WithAutosaveDelay overrides the debounce quiet period.
func WithAutosaveDelay(d time.Duration) Option {
	return func(s *Store) { s.debounced = debounce.New(d) }
}

// WithClock substitutes the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSessionKeys shares an existing session key cache.
func WithSessionKeys(keys *SessionKeys) Option {
	return func(s *Store) { s.keys = keys }
}

// Open loads the collection from kv, runs the one-shot legacy migration and
// the startup search-shadow backfill, and returns a store in plain mode.
func Open(kv storage.KV, opts ...Option) (*Store, error) {
	s := &Store{
		kv:        kv,
		keys:      NewSessionKeys(),
		now:       time.Now,
		active:    map[Mode]string{},
		mode:      ModePlain,
		subs:      map[int]func(Event){},
		debounced: debounce.New(DefaultAutosaveDelay),
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, ok, err := kv.Get(notesKey)
	if err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.notes); err != nil {
			return nil, fmt.Errorf("parse notes: %w", err)
		}
	}
	for _, mode := range modes {
		id, ok, err := kv.Get(activeKeyPrefix + string(mode))
		if err != nil {
			return nil, fmt.Errorf("load active pointer: %w", err)
		}
		if ok && s.find(id) != nil {
			s.active[mode] = id
		}
	}

	migrated, err := s.migrateLegacy()
	if err != nil {
		return nil, fmt.Errorf("migrate legacy storage: %w", err)
	}
	backfilled := s.backfillShadows()
	if migrated || backfilled {
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
	}
	slog.Info("note store opened", "notes", len(s.notes))
	return s, nil
}

// backfillShadows derives missing search shadows for unencrypted notes and
// drops any shadow that leaked onto an encrypted one.
func (s *Store) backfillShadows() bool {
	changed := false
	for _, n := range s.notes {
		if n.Encrypted {
			if n.SearchableContent != "" {
				n.SearchableContent = ""
				changed = true
			}
			continue
		}
		if n.SearchableContent != "" {
			continue
		}
		text, err := codec.Decompress(n.Content)
		if err != nil {
			slog.Warn("shadow backfill skipped", "note_id", n.ID, "err", err)
			continue
		}
		if sc := shadow(text, n.Mode); sc != "" {
			n.SearchableContent = sc
			changed = true
		}
	}
	return changed
}

// Mode returns the current editing-surface mode.
func (s *Store) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode moves the context to mode without touching active pointers.
func (s *Store) SetMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// Get returns a copy of the note with the given id.
func (s *Store) Get(id string) (Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.find(id); n != nil {
		return *n, true
	}
	return Note{}, false
}

// Active returns a copy of the active note of the current mode.
func (s *Store) Active() (Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.find(s.active[s.mode]); n != nil {
		return *n, true
	}
	return Note{}, false
}

// List returns the collection ordered for display: pinned first, then most
// recently modified.
func (s *Store) List() []Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

func (s *Store) listLocked() []Note {
	out := make([]Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, *n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		return out[i].LastModified > out[j].LastModified
	})
	return out
}

// Add creates a note with defaults, appends it, makes it active for its mode
// and persists.
func (s *Store) Add(title, content string, mode Mode) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.addLocked(title, content, mode)
	if err != nil {
		return Note{}, err
	}
	s.emit(Event{Kind: EventChanged, NoteID: n.ID, Mode: n.Mode})
	return *n, nil
}

func (s *Store) addLocked(title, content string, mode Mode) (*Note, error) {
	n := newNote(title, mode, s.now())
	n.Content = codec.Compress(content)
	if n.Title == DefaultTitle {
		if t := autoTitle(content); t != "" {
			n.Title = t
		}
	}
	n.Tags = extractTags(content)
	n.SearchableContent = shadow(content, mode)
	s.notes = append(s.notes, n)
	s.active[mode] = n.ID
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return n, nil
}

// SwitchActive makes id the displayed note. Unknown ids are ignored. When
// the target lives in the other mode the context is redirected there instead
// of switching in place.
func (s *Store) SwitchActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.find(id)
	if n == nil {
		slog.Debug("switch ignored, unknown note", "note_id", id)
		return nil
	}
	redirected := n.Mode != s.mode
	s.mode = n.Mode
	s.active[n.Mode] = n.ID
	if err := s.persistLocked(); err != nil {
		return err
	}
	if redirected {
		s.emit(Event{Kind: EventModeRedirect, NoteID: n.ID, Mode: n.Mode})
	}
	s.emit(Event{Kind: EventSwitched, NoteID: n.ID, Mode: n.Mode})
	return nil
}

// Rename sets a note's title and replaces its manual tag set. Empty or
// whitespace-only titles are rejected as a no-op; autosave re-merges
// content-derived tags later.
func (s *Store) Rename(id, title string, tags []string) error {
	if strings.TrimSpace(title) == "" {
		slog.Debug("rename ignored, empty title", "note_id", id)
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.find(id)
	if n == nil {
		return ErrNotFound
	}
	n.Title = strings.TrimSpace(title)
	n.Tags = mergeTags(nil, tags)
	n.LastModified = s.now().UnixMilli()
	if err := s.persistLocked(); err != nil {
		return err
	}
	s.emit(Event{Kind: EventChanged, NoteID: n.ID, Mode: n.Mode})
	return nil
}

// Delete removes a note. If it was active for its mode, the most recently
// modified remaining note of that mode takes over; with none left a fresh
// untitled note is created so the active pointer never dangles.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, n := range s.notes {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrNotFound
	}
	mode := s.notes[idx].Mode
	s.notes = append(s.notes[:idx], s.notes[idx+1:]...)
	s.keys.Forget(id)

	switched := false
	if s.active[mode] == id {
		switched = true
		s.active[mode] = ""
		var next *Note
		for _, n := range s.notes {
			if n.Mode != mode {
				continue
			}
			if next == nil || n.LastModified > next.LastModified {
				next = n
			}
		}
		if next != nil {
			s.active[mode] = next.ID
		} else if _, err := s.addLocked("", "", mode); err != nil {
			return err
		}
	}
	if err := s.persistLocked(); err != nil {
		return err
	}
	s.emit(Event{Kind: EventChanged, NoteID: id, Mode: mode})
	if switched {
		s.emit(Event{Kind: EventSwitched, NoteID: s.active[mode], Mode: mode})
	}
	return nil
}

// TogglePin flips the pinned flag; it only affects list ordering.
func (s *Store) TogglePin(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.find(id)
	if n == nil {
		return ErrNotFound
	}
	n.Pinned = !n.Pinned
	if err := s.persistLocked(); err != nil {
		return err
	}
	s.emit(Event{Kind: EventChanged, NoteID: n.ID, Mode: n.Mode})
	return nil
}

// Lock encrypts a note's current body under a key freshly derived from
// password and a fresh salt, clears the search shadow and caches the key.
// Re-locking an already encrypted note re-keys it, which requires its
// session key to recover the plaintext first.
func (s *Store) Lock(id, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.find(id)
	if n == nil {
		return ErrNotFound
	}
	var text string
	if n.Encrypted {
		key, ok := s.keys.Get(n.ID)
		if !ok {
			return fmt.Errorf("re-key %s: %w", n.ID, ErrMissingSessionKey)
		}
		var err error
		text, err = crypto.DecryptWithKey(n.Content, key, n.IV)
		if err != nil {
			return fmt.Errorf("re-key %s: %w", n.ID, err)
		}
	} else {
		var err error
		text, err = codec.Decompress(n.Content)
		if err != nil {
			return fmt.Errorf("lock %s: %w", n.ID, err)
		}
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return err
	}
	nonce, err := crypto.NewNonce()
	if err != nil {
		return err
	}
	key := crypto.DeriveKey(password, salt)
	env, err := crypto.EncryptWithKey(text, key, salt, nonce)
	if err != nil {
		return err
	}
	n.Encrypted = true
	n.Content = env.Ciphertext
	n.Salt = env.Salt
	n.IV = env.IV
	n.KDFIterations = crypto.Iterations
	n.SearchableContent = ""
	n.LastModified = s.now().UnixMilli()
	s.keys.Put(n.ID, key)
	if err := s.persistLocked(); err != nil {
		return err
	}
	s.emit(Event{Kind: EventLocked, NoteID: n.ID, Mode: n.Mode})
	s.emit(Event{Kind: EventChanged, NoteID: n.ID, Mode: n.Mode})
	return nil
}

// Unlock derives the key from the stored salt and opens the note. When
// authenticated decryption fails it tries the corruption-recovery fallback:
// content that is really a plain compressed token (written over ciphertext
// by a keyless autosave defect) is decompressed and immediately re-encrypted
// under the supplied password. Only when both paths fail does the operation
// report ErrIncorrectPassword, leaving the note unchanged.
func (s *Store) Unlock(id, password string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.find(id)
	if n == nil {
		return "", ErrNotFound
	}
	if !n.Encrypted {
		return "", ErrNotEncrypted
	}

	key, err := crypto.DeriveKeyTokenIter(password, n.Salt, n.KDFIterations)
	if err != nil {
		return "", fmt.Errorf("unlock %s: %w", n.ID, err)
	}
	text, derr := crypto.DecryptWithKey(n.Content, key, n.IV)
	if derr == nil {
		s.keys.Put(n.ID, key)
		n.SearchableContent = shadow(text, n.Mode)
		if err := s.persistLocked(); err != nil {
			return "", err
		}
		s.emit(Event{Kind: EventUnlocked, NoteID: n.ID, Mode: n.Mode})
		s.emit(Event{Kind: EventChanged, NoteID: n.ID, Mode: n.Mode})
		return text, nil
	}

	recovered, rerr := codec.Decompress(n.Content)
	if rerr == nil && recovered != "" {
		slog.Warn("recovered corrupted note, re-encrypting", "note_id", n.ID)
		if err := s.encryptInPlace(n, recovered, password); err != nil {
			return "", err
		}
		if err := s.persistLocked(); err != nil {
			return "", err
		}
		s.emit(Event{Kind: EventUnlocked, NoteID: n.ID, Mode: n.Mode})
		s.emit(Event{Kind: EventChanged, NoteID: n.ID, Mode: n.Mode})
		return recovered, nil
	}
	return "", fmt.Errorf("unlock %s: %w", n.ID, ErrIncorrectPassword)
}

// encryptInPlace rewrites n as ciphertext of text under password with fresh
// salt and nonce, caching the derived key.
func (s *Store) encryptInPlace(n *Note, text, password string) error {
	salt, err := crypto.NewSalt()
	if err != nil {
		return err
	}
	nonce, err := crypto.NewNonce()
	if err != nil {
		return err
	}
	key := crypto.DeriveKey(password, salt)
	env, err := crypto.EncryptWithKey(text, key, salt, nonce)
	if err != nil {
		return err
	}
	n.Encrypted = true
	n.Content = env.Ciphertext
	n.Salt = env.Salt
	n.IV = env.IV
	n.KDFIterations = crypto.Iterations
	n.SearchableContent = shadow(text, n.Mode)
	n.LastModified = s.now().UnixMilli()
	s.keys.Put(n.ID, key)
	return nil
}

// Autosave schedules a debounced rewrite of the active note's body. Rapid
// calls coalesce into one trailing write after the quiet period.
func (s *Store) Autosave(content string) {
	s.mu.Lock()
	id := s.active[s.mode]
	s.pending = func() {
		if err := s.commitAutosave(id, content); err != nil {
			slog.Warn("autosave skipped", "note_id", id, "err", err)
		}
	}
	s.mu.Unlock()
	s.debounced(s.runPending)
}

// Flush runs any pending autosave immediately.
func (s *Store) Flush() {
	s.runPending()
}

func (s *Store) runPending() {
	s.mu.Lock()
	fn := s.pending
	s.pending = nil
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SaveNow writes content to the active note without debouncing.
func (s *Store) SaveNow(content string) error {
	s.mu.Lock()
	id := s.active[s.mode]
	s.mu.Unlock()
	return s.commitAutosave(id, content)
}

func (s *Store) commitAutosave(id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.find(id)
	if n == nil {
		// Stale save: the note was deleted after the edit was scheduled.
		slog.Debug("autosave dropped, note gone", "note_id", id)
		return nil
	}

	if n.Encrypted {
		key, ok := s.keys.Get(n.ID)
		if !ok {
			// Writing compressed plaintext here is exactly the corruption the
			// unlock recovery path exists for. Skip the save instead.
			return ErrMissingSessionKey
		}
		nonce, err := crypto.NewNonce()
		if err != nil {
			return err
		}
		salt, err := crypto.DecodeToken(n.Salt)
		if err != nil {
			return fmt.Errorf("decode salt for %s: %w", n.ID, err)
		}
		env, err := crypto.EncryptWithKey(content, key, salt, nonce)
		if err != nil {
			return err
		}
		n.Content = env.Ciphertext
		n.IV = env.IV
		n.SearchableContent = shadow(content, n.Mode)
	} else {
		n.Content = codec.Compress(content)
		n.SearchableContent = shadow(content, n.Mode)
	}

	n.Tags = mergeTags(n.Tags, extractTags(content))
	if n.Title == DefaultTitle {
		if t := autoTitle(content); t != "" {
			n.Title = t
		}
	}
	n.LastModified = s.now().UnixMilli()
	if err := s.persistLocked(); err != nil {
		return err
	}
	s.emit(Event{Kind: EventChanged, NoteID: n.ID, Mode: n.Mode})
	return nil
}

// Plaintext returns a note's body: decrypted through the session key cache
// for encrypted notes, decompressed otherwise.
func (s *Store) Plaintext(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.find(id)
	if n == nil {
		return "", ErrNotFound
	}
	return s.plaintextLocked(n)
}

func (s *Store) plaintextLocked(n *Note) (string, error) {
	if n.Encrypted {
		key, ok := s.keys.Get(n.ID)
		if !ok {
			return "", ErrMissingSessionKey
		}
		text, err := crypto.DecryptWithKey(n.Content, key, n.IV)
		if err != nil {
			return "", fmt.Errorf("decrypt %s: %w", n.ID, err)
		}
		return text, nil
	}
	text, err := codec.Decompress(n.Content)
	if err != nil {
		return "", fmt.Errorf("decompress %s: %w", n.ID, err)
	}
	return text, nil
}

// ExportItem is one note's plaintext (or placeholder) for bulk packaging.
type ExportItem struct {
	ID    string
	Title string
	Mode  Mode
	Text  string
}

// BulkExportAll produces plaintext for every note in display order. A note
// that cannot be decoded yields a placeholder instead of failing the batch.
func (s *Store) BulkExportAll() []ExportItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]ExportItem, 0, len(s.notes))
	for _, n := range s.listLocked() {
		item := ExportItem{ID: n.ID, Title: n.Title, Mode: n.Mode}
		text, err := s.plaintextLocked(s.find(n.ID))
		switch {
		case err == nil:
			item.Text = text
		case n.Encrypted:
			item.Text = LockedPlaceholder
		default:
			item.Text = UnreadablePlaceholder
		}
		if err != nil {
			slog.Warn("bulk export placeholder", "note_id", n.ID, "err", err)
		}
		items = append(items, item)
	}
	return items
}

// Search matches query as a case-insensitive substring of titles, search
// shadows and tags. Locked notes only ever match on title and tags.
func (s *Store) Search(query string) []Note {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Note
	for _, n := range s.listLocked() {
		if strings.Contains(strings.ToLower(n.Title), query) ||
			strings.Contains(n.SearchableContent, query) ||
			tagsMatch(n.Tags, query) {
			out = append(out, n)
		}
	}
	return out
}

func tagsMatch(tags []string, query string) bool {
	for _, t := range tags {
		if strings.Contains(t, query) {
			return true
		}
	}
	return false
}

func (s *Store) find(id string) *Note {
	if id == "" {
		return nil
	}
	for _, n := range s.notes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// persistLocked rewrites the serialized collection and both active pointers.
func (s *Store) persistLocked() error {
	payload, err := json.Marshal(s.notes)
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}
	if err := s.kv.Set(notesKey, string(payload)); err != nil {
		return fmt.Errorf("persist notes: %w", err)
	}
	for _, mode := range modes {
		key := activeKeyPrefix + string(mode)
		if id := s.active[mode]; id != "" {
			if err := s.kv.Set(key, id); err != nil {
				return fmt.Errorf("persist active pointer: %w", err)
			}
		} else if err := s.kv.Delete(key); err != nil {
			return fmt.Errorf("clear active pointer: %w", err)
		}
	}
	return nil
}
