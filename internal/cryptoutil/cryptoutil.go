// Package cryptoutil wraps AES-128-GCM for the three encrypted streams
// (video, audio, control), each bound to its own immutable per-session key
// and nonce scheme.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

var (
	ErrInvalidKey        = errors.New("cryptoutil: invalid key size")
	ErrDecryptionFailed  = errors.New("cryptoutil: decryption failed")
	ErrInvalidNonceSize  = errors.New("cryptoutil: invalid nonce size")
)

// GCMContext holds an AES-128-GCM AEAD bound to one immutable session key.
type GCMContext struct {
	aead cipher.AEAD
}

// NewGCMContext builds a GCM context from a 16-byte AES key.
func NewGCMContext(key [16]byte) (*GCMContext, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &GCMContext{aead: aead}, nil
}

// Seal encrypts plaintext into a new buffer against nonce, returning ciphertext and
// tag separately; the wire format keeps them adjacent but logically
// distinct.
func (c *GCMContext) Seal(nonce [12]byte, plaintext []byte) (ciphertext, tag []byte) {
	sealed := c.aead.Seal(nil, nonce[:], plaintext, nil)
	tagStart := len(sealed) - c.aead.Overhead()
	return sealed[:tagStart], sealed[tagStart:]
}

// Open authenticates and decrypts a ciphertext+tag pair against nonce.
func (c *GCMContext) Open(nonce [12]byte, ciphertext, tag []byte) ([]byte, error) {
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	pt, err := c.aead.Open(nil, nonce[:], sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return pt, nil
}

// Overhead returns the GCM tag size (16 bytes for AES-128-GCM).
func (c *GCMContext) Overhead() int { return c.aead.Overhead() }
