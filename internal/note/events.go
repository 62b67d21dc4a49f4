package note

// EventKind names a store state change collaborators can react to. The store
// emits typed events instead of probing ambient hooks; the UI layer
// subscribes explicitly and re-renders on what it cares about.
type EventKind string

const (
	// EventChanged fires after every successful persist of the collection.
	EventChanged EventKind = "changed"
	// EventSwitched fires when the active note changes.
	EventSwitched EventKind = "switched"
	// EventModeRedirect fires when a switch targeted a note in the other
	// mode; the shell should navigate to that mode's surface.
	EventModeRedirect EventKind = "mode-redirect"
	// EventLocked and EventUnlocked track the editing-surface binding of an
	// encrypted note.
	EventLocked   EventKind = "locked"
	EventUnlocked EventKind = "unlocked"
	// EventUnlockNeeded fires when an encrypted note arrives via import and
	// a password prompt should be shown.
	EventUnlockNeeded EventKind = "unlock-needed"
)

// Event is delivered synchronously to subscribers.
type Event struct {
	Kind   EventKind
	NoteID string
	Mode   Mode
}

// Subscribe registers fn for all store events and returns its removal
// function. Callbacks run on the mutating goroutine and must not call back
// into mutating store operations.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// emit must be called with s.mu held so subscribers observe a consistent
// store.
func (s *Store) emit(ev Event) {
	for _, fn := range s.subs {
		fn(ev)
	}
}
