// Package sealbox provides authenticated encryption for credentials the
// portal persists locally (refresh and access tokens at rest).
//
// Output format: [24-byte nonce][ciphertext+16-byte auth tag].
package sealbox

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrNoKeyMaterial is returned when neither a key file nor the environment
// provides key material.
var ErrNoKeyMaterial = errors.New("sealbox: no key material available")

// Box seals and opens small secrets under a single symmetric key.
type Box struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// New derives a 32-byte key from arbitrary key material via SHA-256 and
// returns a ready Box.
func New(keyMaterial []byte) (*Box, error) {
	if len(keyMaterial) == 0 {
		return nil, ErrNoKeyMaterial
	}

	key := sha256.Sum256(keyMaterial)
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("sealbox: create aead: %w", err)
	}

	return &Box{aead: aead}, nil
}

// Open loads key material from path (preferred) or the PORTAL_SEAL_KEY
// environment variable. When neither is set a random ephemeral key is
// generated, which means persisted sessions do not survive a restart. Fine
// for development, logged loudly by the caller.
func Open(path string) (*Box, bool, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("sealbox: read key file: %w", err)
		}
		box, err := New(data)
		return box, false, err
	}

	if env := os.Getenv("PORTAL_SEAL_KEY"); env != "" {
		box, err := New([]byte(env))
		return box, false, err
	}

	// Development fallback - ephemeral key
	ephemeral := make([]byte, 32)
	if _, err := rand.Read(ephemeral); err != nil {
		return nil, false, fmt.Errorf("sealbox: generate ephemeral key: %w", err)
	}
	box, err := New(ephemeral)
	return box, true, err
}

// Seal encrypts and authenticates plaintext with a random nonce.
func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("sealbox: generate nonce: %w", err)
	}

	// Seal appends ciphertext and auth tag to the nonce
	return b.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// OpenSealed decrypts data produced by Seal.
func (b *Box) OpenSealed(sealed []byte) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("sealbox: ciphertext too short")
	}

	nonce, ciphertext := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("sealbox: decryption failed: %w", err)
	}

	return plaintext, nil
}
