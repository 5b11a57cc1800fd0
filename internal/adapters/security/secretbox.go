package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	secretBoxKeySize   = 32
	secretBoxNonceSize = 24
)

// ErrSecretBoxOpen is returned for truncated, tampered or foreign envelopes.
var ErrSecretBoxOpen = errors.New("secretbox: cannot open envelope")

// SecretBox seals small secrets with XSalsa20-Poly1305. Envelope layout is nonce || box.
type SecretBox struct {
	key [secretBoxKeySize]byte
}

// NewSecretBox expects exactly 32 key bytes.
func NewSecretBox(key []byte) (*SecretBox, error) {
	if len(key) != secretBoxKeySize {
		return nil, fmt.Errorf("secretbox key must be %d bytes, got %d", secretBoxKeySize, len(key))
	}
	b := &SecretBox{}
	copy(b.key[:], key)
	return b, nil
}

// NewSecretBoxFromBase64 decodes a standard or URL-safe base64 key from config.
func NewSecretBoxFromBase64(encoded string) (*SecretBox, error) {
	if encoded == "" {
		return nil, errors.New("secretbox key is required")
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		key, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode secretbox key: %w", err)
		}
	}
	return NewSecretBox(key)
}

func (b *SecretBox) Seal(plaintext []byte) ([]byte, error) {
	var nonce [secretBoxNonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("secretbox nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &b.key), nil
}

func (b *SecretBox) Open(envelope []byte) ([]byte, error) {
	if len(envelope) < secretBoxNonceSize+secretbox.Overhead {
		return nil, ErrSecretBoxOpen
	}
	var nonce [secretBoxNonceSize]byte
	copy(nonce[:], envelope[:secretBoxNonceSize])
	plaintext, ok := secretbox.Open(nil, envelope[secretBoxNonceSize:], &nonce, &b.key)
	if !ok {
		return nil, ErrSecretBoxOpen
	}
	return plaintext, nil
}
