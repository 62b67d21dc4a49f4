package note

import (
	"log/slog"

	"gpad/internal/codec"
)

// Legacy single-note storage predating the collection format: one compressed
// blob per mode plus a shared active pointer. Consumed once and deleted.
const (
	legacyPlainKey    = "plaintextHash"
	legacyMarkdownKey = "markdownHash"
	legacyActiveKey   = "activeNotebookId"
)

// migrateLegacy imports legacy blobs as notes and resolves the old
// single-slot active pointer onto the per-mode pointers. Idempotent: the
// legacy keys are removed as soon as they are consumed, so a second startup
// finds nothing to do. Returns whether the collection changed.
func (s *Store) migrateLegacy() (bool, error) {
	changed := false
	for _, m := range []struct {
		key  string
		mode Mode
	}{
		{legacyPlainKey, ModePlain},
		{legacyMarkdownKey, ModeMarkdown},
	} {
		blob, ok, err := s.kv.Get(m.key)
		if err != nil {
			return changed, err
		}
		if !ok {
			continue
		}
		text, err := codec.Decompress(blob)
		if err != nil {
			slog.Warn("legacy blob unreadable, dropping", "key", m.key, "err", err)
		} else if text != "" {
			n := newNote("", m.mode, s.now())
			n.Content = blob
			if title := autoTitle(text); title != "" {
				n.Title = title
			}
			n.Tags = extractTags(text)
			n.SearchableContent = shadow(text, m.mode)
			s.notes = append(s.notes, n)
			if s.active[m.mode] == "" {
				s.active[m.mode] = n.ID
			}
			changed = true
			slog.Info("migrated legacy note", "mode", m.mode, "note_id", n.ID)
		}
		if err := s.kv.Delete(m.key); err != nil {
			return changed, err
		}
	}

	if id, ok, err := s.kv.Get(legacyActiveKey); err != nil {
		return changed, err
	} else if ok {
		if n := s.find(id); n != nil && s.active[n.Mode] == "" {
			s.active[n.Mode] = id
			changed = true
		}
		if err := s.kv.Delete(legacyActiveKey); err != nil {
			return changed, err
		}
	}
	return changed, nil
}
