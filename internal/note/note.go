// Package note holds the durable representation of the notebook: the Note
// model, the Store that owns the ordered collection and persists it
// wholesale on every mutation, the in-memory session key cache, and the
// derived search shadow kept in step with edits.
package note

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode selects the editing surface a note belongs to. Assigned at creation,
// never changed afterwards.
type Mode string

const (
	ModePlain    Mode = "plain"
	ModeMarkdown Mode = "markdown"
)

const (
	DefaultTitle = "Untitled"
	DefaultDir   = "ltr"
	DefaultTheme = "classic"

	maxTitleRunes = 64
)

// Note is the unit of user content. Content holds a compressed-text token of
// the body when Encrypted is false, and a ciphertext token when true; Salt
// and IV only carry meaning for encrypted notes. SearchableContent is the
// lowercased, image-stripped shadow used for search and must stay empty
// while the note is locked.
type Note struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Content           string   `json:"content"`
	Mode              Mode     `json:"mode"`
	Dir               string   `json:"dir"`
	PaperTheme        string   `json:"paperTheme"`
	CreatedAt         int64    `json:"createdAt"`
	LastModified      int64    `json:"lastModified"`
	Encrypted         bool     `json:"encrypted"`
	Salt              string   `json:"salt,omitempty"`
	IV                string   `json:"iv,omitempty"`
	KDFIterations     int      `json:"kdfIterations,omitempty"`
	Pinned            bool     `json:"pinned"`
	Tags              []string `json:"tags"`
	SearchableContent string   `json:"searchableContent"`
}

func newNote(title string, mode Mode, now time.Time) *Note {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	ts := now.UnixMilli()
	return &Note{
		ID:           uuid.NewString(),
		Title:        title,
		Mode:         mode,
		Dir:          DefaultDir,
		PaperTheme:   DefaultTheme,
		CreatedAt:    ts,
		LastModified: ts,
		Tags:         []string{},
	}
}

// autoTitle derives a title from the first non-empty content line while the
// note still carries the default placeholder.
func autoTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(strings.TrimLeft(line, "#"))
		if line == "" {
			continue
		}
		runes := []rune(line)
		if len(runes) > maxTitleRunes {
			line = string(runes[:maxTitleRunes])
		}
		return line
	}
	return ""
}
