// Package codec implements the reversible text-to-token transform used for
// at-rest note bodies and share fragments: DEFLATE over the UTF-8 bytes,
// encoded with the URL-safe base64 alphabet so tokens can sit in a URL
// fragment without percent-encoding.
package codec

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrDecode reports a malformed or truncated token.
var ErrDecode = errors.New("malformed token")

// Compress encodes text as a URL-safe compressed token. The empty string
// yields a valid, decompressible token.
func Compress(text string) string {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		// only reachable with an invalid compression level
		panic(err)
	}
	_, _ = w.Write([]byte(text))
	_ = w.Close()
	return base64.RawURLEncoding.EncodeToString(buf.Bytes())
}

// Decompress reverses Compress. Corrupted or truncated tokens fail with an
// error matching ErrDecode; callers must not assume stored tokens are intact.
func Decompress(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	text, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return string(text), nil
}
