package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func backends(t *testing.T) map[string]func(dir string) KV {
	t.Helper()
	return map[string]func(dir string) KV{
		"file": func(dir string) KV {
			kv, err := OpenFile(filepath.Join(dir, "store.json"))
			if err != nil {
				t.Fatalf("open file kv: %v", err)
			}
			return kv
		},
		"sqlite": func(dir string) KV {
			kv, err := OpenSQLite(filepath.Join(dir, "store.sqlite"))
			if err != nil {
				t.Fatalf("open sqlite kv: %v", err)
			}
			return kv
		},
	}
}

func TestKVRoundTrip(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			kv := open(t.TempDir())
			defer kv.Close()

			if _, ok, err := kv.Get("missing"); err != nil || ok {
				t.Fatalf("missing key: ok=%v err=%v", ok, err)
			}
			if err := kv.Set("notebooks", `[{"id":"a"}]`); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := kv.Set("notebooks", `[{"id":"b"}]`); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			v, ok, err := kv.Get("notebooks")
			if err != nil || !ok {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
			if v != `[{"id":"b"}]` {
				t.Fatalf("got %q", v)
			}
			if err := kv.Delete("notebooks"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, ok, _ := kv.Get("notebooks"); ok {
				t.Fatalf("key survived delete")
			}
			if err := kv.Delete("notebooks"); err != nil {
				t.Fatalf("delete absent key: %v", err)
			}
		})
	}
}

func TestFileKVPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")

	kv, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := kv.Set("activeNoteId.plain", "abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	kv.Close()

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	v, ok, err := reopened.Get("activeNoteId.plain")
	if err != nil || !ok || v != "abc" {
		t.Fatalf("reopen get: %q ok=%v err=%v", v, ok, err)
	}
}

func TestSQLiteKVPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.sqlite")

	kv, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := kv.Set("notebooks", "[]"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	v, ok, err := reopened.Get("notebooks")
	if err != nil || !ok || v != "[]" {
		t.Fatalf("reopen get: %q ok=%v err=%v", v, ok, err)
	}
}

func TestFileKVLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	kv, err := OpenFile(filepath.Join(dir, "store.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := kv.Set("key", strings.Repeat("x", i*100)); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp.") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}
