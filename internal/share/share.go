// Package share serializes notes into compact URL-fragment tokens and
// ingests such fragments back into the store on load.
package share

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"gpad/internal/codec"
	"gpad/internal/note"
)

// record is the structured fragment payload. Field names are part of the
// wire format shared with older clients.
type record struct {
	Content      string `json:"c"`
	Dir          string `json:"d,omitempty"`
	Theme        string `json:"t,omitempty"`
	CreatedAt    int64  `json:"ca,omitempty"`
	LastModified int64  `json:"lm,omitempty"`
	Encrypted    bool   `json:"enc,omitempty"`
	Salt         string `json:"salt,omitempty"`
	IV           string `json:"iv,omitempty"`
}

// minFragmentLen filters out anchors that cannot plausibly be a payload
// (plain in-page anchors like "#top").
const minFragmentLen = 16

// Export builds the fragment token for a note. For an unencrypted note the
// shared snapshot is liveText, the text currently on the editing surface,
// so it matches what is on screen rather than the last autosaved state.
// Encrypted notes ship their stored ciphertext token unchanged.
func Export(n note.Note, liveText string) (string, error) {
	rec := record{
		Dir:          n.Dir,
		Theme:        n.PaperTheme,
		CreatedAt:    n.CreatedAt,
		LastModified: n.LastModified,
	}
	if n.Encrypted {
		rec.Content = n.Content
		rec.Encrypted = true
		rec.Salt = n.Salt
		rec.IV = n.IV
	} else {
		rec.Content = codec.Compress(liveText)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal share record: %w", err)
	}
	return codec.Compress(string(payload)), nil
}

// Import decodes fragment and ingests it into the store. Fragments below
// the plausibility threshold are ignored. A payload that does not parse as
// a structured record is treated as a bare legacy note body. The returned
// bool reports whether a new note was created (false on dedup against an
// existing note); decoding failures are surfaced so the caller can log and
// proceed without a fragment.
func Import(s *note.Store, fragment string) (note.Note, bool, error) {
	fragment = strings.TrimPrefix(strings.TrimSpace(fragment), "#")
	if len(fragment) < minFragmentLen {
		return note.Note{}, false, nil
	}
	payload, err := codec.Decompress(fragment)
	if err != nil {
		return note.Note{}, false, fmt.Errorf("decode fragment: %w", err)
	}

	var rec record
	if uerr := json.Unmarshal([]byte(payload), &rec); uerr != nil || rec.Content == "" {
		// Backward compatibility: old shares carried the bare note text.
		slog.Debug("fragment is not structured, importing as legacy body")
		rec = record{Content: codec.Compress(payload)}
	}

	n, created, err := s.Import(note.ImportSpec{
		Content:      rec.Content,
		Dir:          rec.Dir,
		PaperTheme:   rec.Theme,
		CreatedAt:    rec.CreatedAt,
		LastModified: rec.LastModified,
		Encrypted:    rec.Encrypted,
		Salt:         rec.Salt,
		IV:           rec.IV,
	})
	if err != nil {
		return note.Note{}, false, err
	}
	return n, created, nil
}
