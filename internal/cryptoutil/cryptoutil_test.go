package cryptoutil

import (
	"bytes"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	ctx, err := NewGCMContext(key)
	if err != nil {
		t.Fatalf("NewGCMContext: %v", err)
	}

	var nonce [12]byte
	copy(nonce[:], []byte("abcdefghijkl"))
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	ciphertext, tag := ctx.Seal(nonce, plaintext)
	if bytes.Equal(ciphertext, plaintext) {
		t.Error("ciphertext must not equal plaintext")
	}
	if len(tag) != ctx.Overhead() {
		t.Errorf("tag length = %d, want %d", len(tag), ctx.Overhead())
	}

	got, err := ctx.Open(nonce, ciphertext, tag)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("decrypted = %q, want %q", got, plaintext)
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	key := [16]byte{}
	ctx, _ := NewGCMContext(key)
	var nonce [12]byte
	ciphertext, tag := ctx.Seal(nonce, []byte("payload"))
	ciphertext[0] ^= 0xFF

	if _, err := ctx.Open(nonce, ciphertext, tag); err != ErrDecryptionFailed {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestOpenRejectsWrongNonce(t *testing.T) {
	key := [16]byte{}
	ctx, _ := NewGCMContext(key)
	var nonce1, nonce2 [12]byte
	nonce2[0] = 1
	ciphertext, tag := ctx.Seal(nonce1, []byte("payload"))

	if _, err := ctx.Open(nonce2, ciphertext, tag); err != ErrDecryptionFailed {
		t.Errorf("expected ErrDecryptionFailed for mismatched nonce, got %v", err)
	}
}
