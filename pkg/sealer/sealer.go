package sealer

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	keyInfo   = "secret-santa link cipher v1"
)

var (
	ErrNoSecret      = errors.New("link secret is required")
	ErrMalformed     = errors.New("malformed ciphertext")
	ErrDecryptFailed = errors.New("failed to open ciphertext with secretbox")
)

// Sealer encrypts link payloads with a key derived from a shared secret.
// Ciphertexts are url-safe base64 of nonce||secretbox output.
type Sealer struct {
	key [keySize]byte
}

// New derives the symmetric key from secret using HKDF-SHA256
func New(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}

	s := &Sealer{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("failed to derive link key: %w", err)
	}
	return s, nil
}

// Encrypt seals plaintext under a fresh random nonce
func (s *Sealer) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt
func (s *Sealer) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrMalformed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plaintext, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}
