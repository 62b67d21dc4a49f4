package note

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpad/internal/codec"
	"gpad/internal/storage"
)

func TestLegacyMigrationIsOneShot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	kv, err := storage.OpenFile(path)
	require.NoError(t, err)

	require.NoError(t, kv.Set(legacyPlainKey, codec.Compress("legacy plain body #old")))
	require.NoError(t, kv.Set(legacyMarkdownKey, codec.Compress("# Legacy MD\n\nbody")))

	s, err := Open(kv, WithClock(newTestClock().now))
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 2)
	var plain, md Note
	for _, n := range list {
		switch n.Mode {
		case ModePlain:
			plain = n
		case ModeMarkdown:
			md = n
		}
	}
	assert.Equal(t, "legacy plain body #old", plain.Title)
	assert.Equal(t, []string{"old"}, plain.Tags)
	assert.Equal(t, "Legacy MD", md.Title)

	text, err := s.Plaintext(plain.ID)
	require.NoError(t, err)
	assert.Equal(t, "legacy plain body #old", text)

	for _, key := range []string{legacyPlainKey, legacyMarkdownKey} {
		_, ok, err := kv.Get(key)
		require.NoError(t, err)
		assert.False(t, ok, "legacy key %s must be consumed", key)
	}

	// A second startup finds nothing to migrate.
	reopenedKV, err := storage.OpenFile(path)
	require.NoError(t, err)
	reopened, err := Open(reopenedKV, WithClock(newTestClock().now))
	require.NoError(t, err)
	assert.Len(t, reopened.List(), 2)
}

func TestLegacyActivePointerResolvedPerMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	kv, err := storage.OpenFile(path)
	require.NoError(t, err)

	s, err := Open(kv, WithClock(newTestClock().now))
	require.NoError(t, err)
	n, err := s.Add("a", "", ModeMarkdown)
	require.NoError(t, err)

	// Rewrite storage to the legacy single-slot pointer shape.
	reopenedKV, err := storage.OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, reopenedKV.Delete(activeKeyPrefix+string(ModeMarkdown)))
	require.NoError(t, reopenedKV.Set(legacyActiveKey, n.ID))

	reopened, err := Open(reopenedKV, WithClock(newTestClock().now))
	require.NoError(t, err)
	reopened.SetMode(ModeMarkdown)
	active, ok := reopened.Active()
	require.True(t, ok)
	assert.Equal(t, n.ID, active.ID)

	_, ok, err = reopenedKV.Get(legacyActiveKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorruptLegacyBlobIsDropped(t *testing.T) {
	kv, err := storage.OpenFile(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	require.NoError(t, kv.Set(legacyPlainKey, "###not-a-token###"))

	s, err := Open(kv, WithClock(newTestClock().now))
	require.NoError(t, err)
	assert.Empty(t, s.List())

	_, ok, err := kv.Get(legacyPlainKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenBackfillsMissingShadows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	kv, err := storage.OpenFile(path)
	require.NoError(t, err)

	s, err := Open(kv, WithClock(newTestClock().now))
	require.NoError(t, err)
	n, err := s.Add("a", "", ModePlain)
	require.NoError(t, err)
	require.NoError(t, s.SaveNow("Searchable Body"))

	// Blank the shadow in place, as records from older versions have it.
	s.mu.Lock()
	s.find(n.ID).SearchableContent = ""
	s.mu.Unlock()
	require.NoError(t, s.TogglePin(n.ID)) // persist the blanked record

	reopenedKV, err := storage.OpenFile(path)
	require.NoError(t, err)
	reopened, err := Open(reopenedKV, WithClock(newTestClock().now))
	require.NoError(t, err)
	got, ok := reopened.Get(n.ID)
	require.True(t, ok)
	assert.Equal(t, "searchable body", got.SearchableContent)
}
