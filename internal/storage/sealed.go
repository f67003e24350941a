// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// sealedPrefix marks a sealed value: "ENC:" | nonce | ciphertext+tag
	sealedPrefix = "ENC:"

	keySize  = 32
	saltSize = 32

	// PBKDF2Iterations follows the OWASP 2023 floor for PBKDF2-SHA-256.
	PBKDF2Iterations = 600000

	// Reserved keys, hidden from Keys().
	saltKey  = "_lingochat_salt"
	checkKey = "_lingochat_check"
)

var checkPlaintext = []byte("lingochat")

var (
	// ErrDecryptionFailed means the passphrase is wrong or the value was tampered with.
	ErrDecryptionFailed = errors.New("decryption failed: wrong passphrase or corrupted value")

	// ErrInvalidCiphertext means a stored value is not in sealed form.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
)

// =============================================================================
// SEALED STORE
// =============================================================================

// Sealed encrypts every value with AES-256-GCM under a key derived from a
// passphrase with PBKDF2-SHA-256. Keys themselves stay in the clear.
type Sealed struct {
	inner Store
	aead  cipher.AEAD
}

// NewSealed wraps inner. On first use it writes a random salt and a check
// value; later opens verify the passphrase against the check value. Values
// already in inner that are not sealed (a store that held plaintext before
// a passphrase was set) are sealed in place.
func NewSealed(inner Store, passphrase string) (*Sealed, error) {
	return newSealed(inner, passphrase, PBKDF2Iterations)
}

func newSealed(inner Store, passphrase string, iterations int) (*Sealed, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase must not be empty")
	}

	salt, err := inner.Get(saltKey)
	fresh := errors.Is(err, ErrNotFound)
	switch {
	case fresh:
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}

	key := pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
	// SECURITY: Zero key material once the cipher holds its own schedule
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	s := &Sealed{inner: inner, aead: aead}

	needCheck := fresh
	if fresh {
		if err := inner.Set(saltKey, salt); err != nil {
			return nil, fmt.Errorf("failed to save salt: %w", err)
		}
	} else if _, err := s.Get(checkKey); errors.Is(err, ErrNotFound) {
		needCheck = true
	} else if err != nil {
		return nil, err
	}

	if err := s.sealPlaintext(); err != nil {
		return nil, err
	}
	if needCheck {
		if err := s.Set(checkKey, checkPlaintext); err != nil {
			return nil, fmt.Errorf("failed to save check value: %w", err)
		}
	}
	return s, nil
}

// sealPlaintext rewrites every unsealed value in sealed form. The check
// value is written after it, so an interrupted run resumes on next open.
func (s *Sealed) sealPlaintext() error {
	keys, err := s.Keys()
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}
	for _, k := range keys {
		raw, err := s.inner.Get(k)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", k, err)
		}
		if isSealed(raw) {
			continue
		}
		if err := s.Set(k, raw); err != nil {
			return fmt.Errorf("failed to seal %s: %w", k, err)
		}
	}
	return nil
}

func (s *Sealed) Get(key string) ([]byte, error) {
	raw, err := s.inner.Get(key)
	if err != nil {
		return nil, err
	}
	return s.open(key, raw)
}

func (s *Sealed) Set(key string, value []byte) error {
	sealed, err := s.seal(key, value)
	if err != nil {
		return err
	}
	return s.inner.Set(key, sealed)
}

func (s *Sealed) Delete(key string) error {
	return s.inner.Delete(key)
}

func (s *Sealed) Keys() ([]string, error) {
	keys, err := s.inner.Keys()
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if k == saltKey || k == checkKey {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

func (s *Sealed) Close() error {
	return s.inner.Close()
}

// seal binds the value to key through the GCM additional data, so a
// sealed value copied under another key fails to open.
func (s *Sealed) seal(key string, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := make([]byte, 0, len(sealedPrefix)+len(nonce)+len(plaintext)+s.aead.Overhead())
	out = append(out, sealedPrefix...)
	out = append(out, nonce...)
	return s.aead.Seal(out, nonce, plaintext, []byte(key)), nil
}

func (s *Sealed) open(key string, raw []byte) ([]byte, error) {
	if !isSealed(raw) {
		return nil, ErrInvalidCiphertext
	}
	raw = raw[len(sealedPrefix):]
	ns := s.aead.NonceSize()
	if len(raw) < ns+s.aead.Overhead() {
		return nil, ErrInvalidCiphertext
	}
	plain, err := s.aead.Open(nil, raw[:ns], raw[ns:], []byte(key))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plain, nil
}

func isSealed(raw []byte) bool {
	return strings.HasPrefix(string(raw), sealedPrefix)
}

// zeroBytes overwrites b.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
