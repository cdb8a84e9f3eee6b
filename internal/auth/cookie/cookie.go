// Package cookie seals session identifiers into tamper-proof cookie values.
// Values are encrypted and authenticated with NaCl secretbox, so a client
// can neither read nor forge the session reference it carries.
package cookie

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"

	"warikan/pkg/sentinel"
)

const (
	keySize   = 32
	nonceSize = 24
)

// Codec seals and opens cookie values with a fixed 32-byte key.
type Codec struct {
	key [keySize]byte
}

// NewCodec parses a hex-encoded 32-byte key, as configured in SESSION_KEY.
func NewCodec(hexKey string) (*Codec, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("session key is not hex: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("session key must be %d bytes, got %d", keySize, len(raw))
	}
	c := &Codec{}
	copy(c.key[:], raw)
	return c, nil
}

// Seal encrypts a value into a cookie-safe string.
func (c *Codec) Seal(value string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(value), &nonce, &c.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a cookie value. Any tampering or a value sealed with a
// different key opens as sentinel.ErrNotFound: an unreadable cookie is the
// same as no cookie.
func (c *Codec) Open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize {
		return "", fmt.Errorf("malformed cookie: %w", sentinel.ErrNotFound)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	value, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", fmt.Errorf("unsealable cookie: %w", sentinel.ErrNotFound)
	}
	return string(value), nil
}
