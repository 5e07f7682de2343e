// Package crypto implements the identity, key-agreement, and AEAD
// primitives that back the A2A encryption layer: static X25519 ECDH to
// a shared secret, HKDF-SHA-256 to a session key, and ChaCha20-Poly1305
// to seal/open task payloads. It also mints the secp256k1 identity
// keypair agents use as their stable network address.
//
// This package is the seam a future ratcheted design replaces: Node
// reaches key agreement and sealing only through the functions and
// types defined here, and the reliability layer does not import it.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"crypto/sha256"
	"io"

	"github.com/jimmy-claw/logos-messaging-a2a/internal/protoerr"
)

// sessionInfo is the fixed HKDF info string for session-key derivation.
const sessionInfo = "waku-a2a/session/v1"

// AgentIdentity holds an agent's X25519 keypair used for ECDH key
// agreement. The secret never leaves this type.
type AgentIdentity struct {
	secret [32]byte
	public [32]byte
}

// GenerateIdentity creates a fresh random X25519 identity.
func GenerateIdentity() (*AgentIdentity, error) {
	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return nil, fmt.Errorf("x25519 keygen: %w", err)
	}
	return identityFromSecret(secret)
}

// IdentityFromHex reconstructs an identity from a 64-hex-char (32 byte)
// secret key. Useful for deterministic tests.
func IdentityFromHex(secretHex string) (*AgentIdentity, error) {
	b, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.CryptoKey, fmt.Errorf("invalid hex secret: %w", err))
	}
	if len(b) != 32 {
		return nil, protoerr.New(protoerr.CryptoKey, "x25519 secret must be 32 bytes")
	}
	var secret [32]byte
	copy(secret[:], b)
	return identityFromSecret(secret)
}

func identityFromSecret(secret [32]byte) (*AgentIdentity, error) {
	pub, err := curve25519.X25519(secret[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("x25519 basepoint mul: %w", err)
	}
	id := &AgentIdentity{secret: secret}
	copy(id.public[:], pub)
	return id, nil
}

// PublicKey returns the 32-byte X25519 public key.
func (a *AgentIdentity) PublicKey() [32]byte {
	return a.public
}

// PublicKeyHex returns the hex-encoded X25519 public key.
func (a *AgentIdentity) PublicKeyHex() string {
	return hex.EncodeToString(a.public[:])
}

// ParseX25519PublicKey parses a hex-encoded 32-byte X25519 public key.
func ParseX25519PublicKey(hexStr string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return out, protoerr.Wrap(protoerr.CryptoKey, fmt.Errorf("invalid hex public key: %w", err))
	}
	if len(b) != 32 {
		return out, protoerr.New(protoerr.CryptoKey, "x25519 public key must be 32 bytes")
	}
	copy(out[:], b)
	return out, nil
}

// DeriveSession computes the 32-byte symmetric session key shared
// between this identity and a peer's X25519 public key: raw X25519 ECDH
// followed by HKDF-SHA-256 with the fixed info string
// "waku-a2a/session/v1". Fails with protoerr.CryptoKey if the ECDH
// output is the all-zero point (a degenerate/invalid peer key).
func (a *AgentIdentity) DeriveSession(peerPublic [32]byte) ([32]byte, error) {
	var out [32]byte
	shared, err := curve25519.X25519(a.secret[:], peerPublic[:])
	if err != nil {
		return out, protoerr.Wrap(protoerr.CryptoKey, fmt.Errorf("x25519 derive: %w", err))
	}
	if isAllZero(shared) {
		return out, protoerr.New(protoerr.CryptoKey, "x25519 ecdh produced all-zero output")
	}

	reader := hkdf.New(sha256.New, shared, nil, []byte(sessionInfo))
	if _, err := io.ReadFull(reader, out[:]); err != nil {
		return out, fmt.Errorf("hkdf: %w", err)
	}
	return out, nil
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// IdentityKey is an agent's stable secp256k1 identity keypair. It is
// distinct from AgentIdentity (X25519) — spec.md leaves unifying the
// two curves out of scope for v1.
type IdentityKey struct {
	priv *btcec.PrivateKey
}

// GenerateIdentityKey creates a fresh random secp256k1 identity keypair.
func GenerateIdentityKey() (*IdentityKey, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("secp256k1 keygen: %w", err)
	}
	return &IdentityKey{priv: priv}, nil
}

// IdentityKeyFromHex reconstructs a secp256k1 identity from a
// 64-hex-char (32 byte) secret scalar. Useful for deterministic tests.
func IdentityKeyFromHex(secretHex string) (*IdentityKey, error) {
	b, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.CryptoKey, fmt.Errorf("invalid hex secret: %w", err))
	}
	if len(b) != 32 {
		return nil, protoerr.New(protoerr.CryptoKey, "secp256k1 secret must be 32 bytes")
	}
	priv, _ := btcec.PrivKeyFromBytes(b)
	return &IdentityKey{priv: priv}, nil
}

// PublicKeyHex returns the 33-byte compressed secp256k1 public key as
// 66 lowercase hex characters — the canonical AgentCard.public_key
// encoding.
func (k *IdentityKey) PublicKeyHex() string {
	return hex.EncodeToString(k.priv.PubKey().SerializeCompressed())
}
