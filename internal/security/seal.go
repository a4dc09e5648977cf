package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// ErrSealOpen is returned when a sealed blob cannot be decrypted (tampered,
// truncated, or sealed under a different key).
var ErrSealOpen = errors.New("cannot open sealed value")

// Sealer encrypts small payloads with AES-256-GCM for round-tripping through
// untrusted clients, e.g. the OAuth state parameter.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer returns a Sealer for a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != 32 {
		return nil, errors.New("seal key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext and returns nonce||ciphertext encoded base64url
// without padding, safe for use in a URL query parameter.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open decrypts a blob produced by Seal. Any decode or authentication failure
// returns ErrSealOpen without detail, so callers cannot distinguish tampering
// from truncation.
func (s *Sealer) Open(blob string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrSealOpen
	}
	if len(raw) < s.aead.NonceSize() {
		return nil, ErrSealOpen
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrSealOpen
	}
	return plaintext, nil
}
