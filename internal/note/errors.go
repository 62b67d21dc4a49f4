package note

import "errors"

var (
	// ErrNotFound reports an unknown note id.
	ErrNotFound = errors.New("note not found")

	// ErrIncorrectPassword reports that neither authenticated decryption nor
	// the corruption-recovery fallback could open a note.
	ErrIncorrectPassword = errors.New("incorrect password")

	// ErrMissingSessionKey reports an operation on an encrypted note whose
	// derived key is not cached in the current session. Autosave treats this
	// as a skip, never as license to write plaintext-derived content over
	// ciphertext.
	ErrMissingSessionKey = errors.New("session key not cached")

	// ErrNotEncrypted reports an unlock attempt on a plain note.
	ErrNotEncrypted = errors.New("note is not encrypted")
)
