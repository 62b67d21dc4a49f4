// Package crypto implements password-based authenticated encryption of note
// bodies. Keys are stretched with PBKDF2-SHA256 and payloads sealed with
// AES-256-GCM; all byte values travel as URL-safe base64 tokens.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the default PBKDF2 cost. It is part of the compatibility
	// contract: notes that do not record their own iteration count were
	// written with this value.
	Iterations = 100_000

	KeySize   = 32
	SaltSize  = 16
	NonceSize = 12
)

// ErrDecryption reports an authentication failure: wrong key, tampered
// ciphertext, or a mismatched nonce. GCM never returns garbage plaintext.
var ErrDecryption = errors.New("decryption failed")

// Envelope carries one encryption result. Salt is stable per note across
// re-encryptions with the same derived key; IV is fresh for every call.
type Envelope struct {
	Ciphertext string
	Salt       string
	IV         string
}

// DeriveKey stretches password into an AES-256 key with the default cost.
// Deterministic for a given (password, salt) pair.
func DeriveKey(password string, salt []byte) []byte {
	return DeriveKeyIter(password, salt, Iterations)
}

// DeriveKeyIter derives with an explicit iteration count, for notes that
// record their own KDF parameters.
func DeriveKeyIter(password string, salt []byte, iterations int) []byte {
	if iterations <= 0 {
		iterations = Iterations
	}
	return pbkdf2.Key([]byte(password), salt, iterations, KeySize, sha256.New)
}

// DeriveKeyToken is DeriveKey with the salt in its encoded-text form.
func DeriveKeyToken(password, saltToken string) ([]byte, error) {
	return DeriveKeyTokenIter(password, saltToken, Iterations)
}

// DeriveKeyTokenIter is DeriveKeyIter with the salt in its encoded-text form.
func DeriveKeyTokenIter(password, saltToken string, iterations int) ([]byte, error) {
	salt, err := DecodeToken(saltToken)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	return DeriveKeyIter(password, salt, iterations), nil
}

// DecodeToken recovers the raw bytes behind a salt, nonce or ciphertext
// token.
func DecodeToken(token string) ([]byte, error) {
	return decodeToken(token)
}

// NewSalt returns fresh random salt bytes.
func NewSalt() ([]byte, error) {
	return randomBytes(SaltSize)
}

// NewNonce returns a fresh random GCM nonce. A nonce must never be reused
// with the same key.
func NewNonce() ([]byte, error) {
	return randomBytes(NonceSize)
}

// Encrypt seals text under a key derived from password with a fresh salt and
// a fresh nonce.
func Encrypt(text, password string) (Envelope, error) {
	salt, err := NewSalt()
	if err != nil {
		return Envelope{}, err
	}
	nonce, err := NewNonce()
	if err != nil {
		return Envelope{}, err
	}
	return EncryptWithKey(text, DeriveKey(password, salt), salt, nonce)
}

// EncryptWithKey seals text under an already-derived key. The caller must
// guarantee nonce is freshly random for this call; reuse with the same key
// breaks confidentiality.
func EncryptWithKey(text string, key, salt, nonce []byte) (Envelope, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return Envelope{}, err
	}
	if len(nonce) != gcm.NonceSize() {
		return Envelope{}, fmt.Errorf("bad nonce size %d", len(nonce))
	}
	sealed := gcm.Seal(nil, nonce, []byte(text), nil)
	return Envelope{
		Ciphertext: encodeToken(sealed),
		Salt:       encodeToken(salt),
		IV:         encodeToken(nonce),
	}, nil
}

// Decrypt derives the key from password and the stored salt, then opens the
// ciphertext token. Fails with ErrDecryption on a wrong password.
func Decrypt(ciphertext, password, saltToken, nonceToken string) (string, error) {
	key, err := DeriveKeyToken(password, saltToken)
	if err != nil {
		return "", err
	}
	return DecryptWithKey(ciphertext, key, nonceToken)
}

// DecryptWithKey opens a ciphertext token with an already-derived key.
func DecryptWithKey(ciphertext string, key []byte, nonceToken string) (string, error) {
	raw, err := decodeToken(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext encoding", ErrDecryption)
	}
	nonce, err := decodeToken(nonceToken)
	if err != nil {
		return "", fmt.Errorf("%w: bad nonce encoding", ErrDecryption)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("%w: bad nonce size %d", ErrDecryption, len(nonce))
	}
	plain, err := gcm.Open(nil, nonce, raw, nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plain), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return gcm, nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	return b, nil
}

func encodeToken(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeToken(token string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(token)
}
