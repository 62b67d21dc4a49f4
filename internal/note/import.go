package note

import (
	"fmt"
	"log/slog"

	"gpad/internal/codec"
)

// ImportSpec carries the content and metadata recovered from a share
// fragment. Content is the stored token form: ciphertext when Encrypted,
// compressed text otherwise.
type ImportSpec struct {
	Content      string
	Dir          string
	PaperTheme   string
	CreatedAt    int64
	LastModified int64
	Encrypted    bool
	Salt         string
	IV           string
}

// Import ingests a shared note into the collection. A note whose stored
// content is byte-identical is reused instead of duplicated. The result
// becomes active; encrypted imports additionally signal that an unlock
// prompt is needed. Reports whether a new note was created.
func (s *Store) Import(spec ImportSpec) (Note, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notes {
		if n.Content == spec.Content {
			slog.Info("import deduplicated", "note_id", n.ID)
			s.mode = n.Mode
			s.active[n.Mode] = n.ID
			if err := s.persistLocked(); err != nil {
				return Note{}, false, err
			}
			s.emit(Event{Kind: EventSwitched, NoteID: n.ID, Mode: n.Mode})
			return *n, false, nil
		}
	}

	n := newNote("", s.mode, s.now())
	n.Content = spec.Content
	if spec.Dir != "" {
		n.Dir = spec.Dir
	}
	if spec.PaperTheme != "" {
		n.PaperTheme = spec.PaperTheme
	}
	if spec.CreatedAt != 0 {
		n.CreatedAt = spec.CreatedAt
	}
	if spec.LastModified != 0 {
		n.LastModified = spec.LastModified
	}
	if spec.Encrypted {
		n.Encrypted = true
		n.Salt = spec.Salt
		n.IV = spec.IV
	} else {
		text, err := codec.Decompress(spec.Content)
		if err != nil {
			return Note{}, false, fmt.Errorf("import content: %w", err)
		}
		if t := autoTitle(text); t != "" {
			n.Title = t
		}
		n.Tags = extractTags(text)
		n.SearchableContent = shadow(text, n.Mode)
	}

	s.notes = append(s.notes, n)
	s.active[n.Mode] = n.ID
	if err := s.persistLocked(); err != nil {
		return Note{}, false, err
	}
	s.emit(Event{Kind: EventChanged, NoteID: n.ID, Mode: n.Mode})
	s.emit(Event{Kind: EventSwitched, NoteID: n.ID, Mode: n.Mode})
	if n.Encrypted {
		s.emit(Event{Kind: EventUnlockNeeded, NoteID: n.ID, Mode: n.Mode})
	}
	slog.Info("imported shared note", "note_id", n.ID, "encrypted", n.Encrypted)
	return *n, true, nil
}
