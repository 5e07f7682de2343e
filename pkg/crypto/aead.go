package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/jimmy-claw/logos-messaging-a2a/internal/protoerr"
)

// NonceSize is the ChaCha20-Poly1305 nonce length in bytes.
const NonceSize = chacha20poly1305.NonceSize

// Seal encrypts plaintext under key with associatedData bound into the
// AEAD tag. It returns a fresh random 12-byte nonce and the
// ciphertext-plus-tag.
func Seal(key [32]byte, associatedData, plaintext []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, nil, fmt.Errorf("chacha20poly1305 init: %w", err)
	}

	nonce = make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("nonce generation: %w", err)
	}

	ciphertext = aead.Seal(nil, nonce, plaintext, associatedData)
	return nonce, ciphertext, nil
}

// Open authenticates and decrypts ciphertext under key. It fails with
// protoerr.CryptoAuth on tag mismatch, length mismatch, or
// nonce/associated-data mismatch.
func Open(key [32]byte, associatedData, nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != chacha20poly1305.NonceSize {
		return nil, protoerr.New(protoerr.CryptoAuth, "invalid nonce length")
	}

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("chacha20poly1305 init: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, associatedData)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.CryptoAuth, err)
	}
	return plaintext, nil
}
