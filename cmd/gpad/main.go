// Command gpad is an interactive front end for the notebook core: it stands
// in for the browser shell, binding an editing loop, list rendering and
// password prompts to the note store.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"gpad/internal/config"
	"gpad/internal/note"
	"gpad/internal/share"
	"gpad/internal/storage"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
		slog.Error("create data dir", "path", cfg.DataPath, "err", err)
		os.Exit(1)
	}
	kv, err := openBackend(cfg)
	if err != nil {
		slog.Error("open storage", "backend", cfg.Backend, "err", err)
		os.Exit(1)
	}
	defer kv.Close()

	store, err := note.Open(kv, note.WithAutosaveDelay(cfg.AutosaveDelay))
	if err != nil {
		slog.Error("open note store", "err", err)
		os.Exit(1)
	}
	if cfg.InitialMode == string(note.ModeMarkdown) {
		store.SetMode(note.ModeMarkdown)
	}
	unsubscribe := store.Subscribe(func(ev note.Event) {
		slog.Debug("store event", "kind", ev.Kind, "note_id", ev.NoteID, "mode", ev.Mode)
	})
	defer unsubscribe()

	if len(os.Args) > 1 && strings.HasPrefix(os.Args[1], "#") {
		importFragment(store, os.Args[1])
	}

	repl(store)
	store.Flush()
}

func setupLogging(cfg config.Config) {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("GPAD_DEBUG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	var handler slog.Handler
	if cfg.LogPretty {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func openBackend(cfg config.Config) (storage.KV, error) {
	switch cfg.Backend {
	case "file":
		return storage.OpenFile(filepath.Join(cfg.DataPath, "gpad.json"))
	case "sqlite":
		return storage.OpenSQLite(filepath.Join(cfg.DataPath, "gpad.sqlite"))
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func importFragment(store *note.Store, fragment string) {
	n, created, err := share.Import(store, fragment)
	if err != nil {
		slog.Warn("fragment import failed, continuing without it", "err", err)
		return
	}
	if created {
		fmt.Printf("imported shared note %q\n", n.Title)
	} else if n.ID != "" {
		fmt.Printf("shared note already present: %q\n", n.Title)
	}
	if n.Encrypted {
		fmt.Println("the imported note is encrypted; use 'unlock' to open it")
	}
}

func repl(store *note.Store) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	fmt.Println("gpad — type 'help' for commands")
	for {
		fmt.Printf("%s> ", store.Mode())
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		switch cmd {
		case "help":
			printHelp()
		case "list":
			printList(store)
		case "new":
			cmdNew(store, rest)
		case "open":
			cmdOpen(store, rest)
		case "show":
			cmdShow(store)
		case "edit":
			cmdEdit(store, scanner)
		case "rename":
			cmdRename(store, rest)
		case "pin":
			cmdPin(store)
		case "del":
			cmdDelete(store)
		case "lock":
			cmdLock(store)
		case "unlock":
			cmdUnlock(store)
		case "mode":
			cmdMode(store, rest)
		case "search":
			cmdSearch(store, rest)
		case "share":
			cmdShare(store)
		case "import":
			importFragment(store, rest)
		case "export-all":
			cmdExportAll(store)
		case "quit", "exit":
			return
		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
	}
}

func printHelp() {
	fmt.Print(`commands:
  list                 notes of all modes, pinned first
  new [title]          create a note in the current mode
  open <n>             switch to note n from the last list
  show                 print the active note body
  edit                 replace the active note body (end with a line: .)
  rename <title>       retitle the active note
  pin                  toggle pin on the active note
  del                  delete the active note
  lock                 encrypt the active note with a password
  unlock               decrypt the active note for this session
  mode <plain|markdown> switch editing context
  search <text>        substring search over titles, bodies and tags
  share                print a shareable URL fragment for the active note
  import <#fragment>   ingest a shared fragment
  export-all           dump every note as plaintext (or placeholder)
  quit
`)
}

var lastList []note.Note

func printList(store *note.Store) {
	lastList = store.List()
	active, _ := store.Active()
	for i, n := range lastList {
		marks := ""
		if n.Pinned {
			marks += "*"
		}
		if n.Encrypted {
			marks += "#"
		}
		cursor := "  "
		if n.ID == active.ID {
			cursor = "> "
		}
		fmt.Printf("%s%2d %-40q %s %s %s\n", cursor, i+1, n.Title, n.Mode, marks,
			time.UnixMilli(n.LastModified).Format("2006-01-02 15:04"))
	}
}

func cmdNew(store *note.Store, title string) {
	n, err := store.Add(title, "", store.Mode())
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("created %q\n", n.Title)
}

func cmdOpen(store *note.Store, arg string) {
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 1 || idx > len(lastList) {
		fmt.Println("usage: open <n> (run 'list' first)")
		return
	}
	if err := store.SwitchActive(lastList[idx-1].ID); err != nil {
		fmt.Println("error:", err)
	}
}

func cmdShow(store *note.Store) {
	n, ok := store.Active()
	if !ok {
		fmt.Println("no active note")
		return
	}
	text, err := store.Plaintext(n.ID)
	if errors.Is(err, note.ErrMissingSessionKey) {
		fmt.Println(note.LockedPlaceholder)
		return
	}
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(text)
}

func cmdEdit(store *note.Store, scanner *bufio.Scanner) {
	n, ok := store.Active()
	if !ok {
		fmt.Println("no active note")
		return
	}
	if n.Encrypted {
		if _, err := store.Plaintext(n.ID); errors.Is(err, note.ErrMissingSessionKey) {
			fmt.Println("note is locked; 'unlock' it before editing")
			return
		}
	}
	fmt.Println("enter new body, end with a single '.' line:")
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "." {
			break
		}
		lines = append(lines, line)
	}
	store.Autosave(strings.Join(lines, "\n"))
	store.Flush()
	fmt.Println("saved")
}

func cmdRename(store *note.Store, title string) {
	n, ok := store.Active()
	if !ok {
		fmt.Println("no active note")
		return
	}
	if err := store.Rename(n.ID, title, n.Tags); err != nil {
		fmt.Println("error:", err)
	}
}

func cmdPin(store *note.Store) {
	if n, ok := store.Active(); ok {
		if err := store.TogglePin(n.ID); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func cmdDelete(store *note.Store) {
	n, ok := store.Active()
	if !ok {
		fmt.Println("no active note")
		return
	}
	if err := store.Delete(n.ID); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("deleted %q\n", n.Title)
}

func cmdLock(store *note.Store) {
	n, ok := store.Active()
	if !ok {
		fmt.Println("no active note")
		return
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	confirm, err := promptPassword("Confirm: ")
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if password != confirm {
		fmt.Println("passwords do not match")
		return
	}
	if err := store.Lock(n.ID, password); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("locked %q\n", n.Title)
}

func cmdUnlock(store *note.Store) {
	n, ok := store.Active()
	if !ok {
		fmt.Println("no active note")
		return
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	text, err := store.Unlock(n.ID, password)
	if errors.Is(err, note.ErrIncorrectPassword) {
		fmt.Println("incorrect password")
		return
	}
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(text)
}

func cmdMode(store *note.Store, arg string) {
	switch note.Mode(arg) {
	case note.ModePlain, note.ModeMarkdown:
		store.SetMode(note.Mode(arg))
	default:
		fmt.Println("usage: mode <plain|markdown>")
	}
}

func cmdSearch(store *note.Store, query string) {
	for _, n := range store.Search(query) {
		fmt.Printf("%q %s %v\n", n.Title, n.Mode, n.Tags)
	}
}

func cmdShare(store *note.Store) {
	n, ok := store.Active()
	if !ok {
		fmt.Println("no active note")
		return
	}
	live := ""
	if !n.Encrypted {
		text, err := store.Plaintext(n.ID)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		live = text
	}
	fragment, err := share.Export(n, live)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("#%s\n", fragment)
}

func cmdExportAll(store *note.Store) {
	for _, item := range store.BulkExportAll() {
		fmt.Printf("==== %s (%s)\n%s\n", item.Title, item.Mode, item.Text)
	}
}

func promptPassword(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(pass)), nil
}
