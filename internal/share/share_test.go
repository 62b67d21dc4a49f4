package share

import (
	"path/filepath"
	"testing"

	"gpad/internal/codec"
	"gpad/internal/note"
	"gpad/internal/storage"
)

func newStore(t *testing.T) *note.Store {
	t.Helper()
	kv, err := storage.OpenFile(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	s, err := note.Open(kv)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newStore(t)
	if _, err := src.Add("travel notes", "", note.ModePlain); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := src.SaveNow("packing list #travel"); err != nil {
		t.Fatalf("save: %v", err)
	}
	exported, ok := src.Active()
	if !ok {
		t.Fatalf("no active note")
	}

	// The live editing surface has drifted past the last autosave; the
	// share must carry the on-screen text.
	fragment, err := Export(exported, "packing list #travel plus passport")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	dst := newStore(t)
	imported, created, err := Import(dst, "#"+fragment)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !created {
		t.Fatalf("expected a new note")
	}
	text, err := dst.Plaintext(imported.ID)
	if err != nil {
		t.Fatalf("plaintext: %v", err)
	}
	if text != "packing list #travel plus passport" {
		t.Fatalf("imported body %q", text)
	}
	if imported.Dir != exported.Dir || imported.PaperTheme != exported.PaperTheme {
		t.Fatalf("metadata not preserved: %+v", imported)
	}
	if imported.CreatedAt != exported.CreatedAt || imported.LastModified != exported.LastModified {
		t.Fatalf("timestamps not preserved: %+v", imported)
	}
	active, ok := dst.Active()
	if !ok || active.ID != imported.ID {
		t.Fatalf("imported note should be active")
	}
}

func TestImportEncryptedNoteSignalsUnlock(t *testing.T) {
	src := newStore(t)
	n, err := src.Add("secret", "", note.ModePlain)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := src.SaveNow("classified body"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := src.Lock(n.ID, "pw"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	locked, _ := src.Get(n.ID)

	fragment, err := Export(locked, "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	dst := newStore(t)
	var unlockNeeded bool
	defer dst.Subscribe(func(ev note.Event) {
		if ev.Kind == note.EventUnlockNeeded {
			unlockNeeded = true
		}
	})()

	imported, created, err := Import(dst, fragment)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !created || !imported.Encrypted {
		t.Fatalf("expected a new encrypted note, got %+v", imported)
	}
	if !unlockNeeded {
		t.Fatalf("expected unlock-needed signal")
	}
	if imported.Content != locked.Content || imported.Salt != locked.Salt || imported.IV != locked.IV {
		t.Fatalf("ciphertext token must travel unchanged")
	}

	text, err := dst.Unlock(imported.ID, "pw")
	if err != nil {
		t.Fatalf("unlock imported: %v", err)
	}
	if text != "classified body" {
		t.Fatalf("unlocked %q", text)
	}
}

func TestImportDeduplicatesIdenticalContent(t *testing.T) {
	s := newStore(t)
	n, err := s.Add("original", "", note.ModePlain)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.SaveNow("shared once"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ := s.Get(n.ID)

	fragment, err := Export(got, "shared once")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	imported, created, err := Import(s, fragment)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if created {
		t.Fatalf("identical content must deduplicate")
	}
	if imported.ID != n.ID {
		t.Fatalf("expected existing note, got %s", imported.ID)
	}
	if len(s.List()) != 1 {
		t.Fatalf("duplicate created: %d notes", len(s.List()))
	}
}

func TestImportLegacyBareText(t *testing.T) {
	s := newStore(t)
	fragment := codec.Compress("just an old plain shared body with no structure")

	imported, created, err := Import(s, fragment)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !created {
		t.Fatalf("expected a new note")
	}
	text, err := s.Plaintext(imported.ID)
	if err != nil {
		t.Fatalf("plaintext: %v", err)
	}
	if text != "just an old plain shared body with no structure" {
		t.Fatalf("imported %q", text)
	}
}

func TestImportIgnoresShortAnchors(t *testing.T) {
	s := newStore(t)
	for _, fragment := range []string{"", "#", "#top", "#section-2"} {
		if _, created, err := Import(s, fragment); err != nil || created {
			t.Fatalf("anchor %q: created=%v err=%v", fragment, created, err)
		}
	}
	if len(s.List()) != 0 {
		t.Fatalf("anchors must not create notes")
	}
}

func TestImportMalformedFragmentSurfacesError(t *testing.T) {
	s := newStore(t)
	if _, created, err := Import(s, "#????definitely-not-base64????"); err == nil || created {
		t.Fatalf("expected decode error, created=%v err=%v", created, err)
	}
	if len(s.List()) != 0 {
		t.Fatalf("failed import must not mutate the store")
	}
}
