package crypto

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// CiphersuiteX25519ChaCha20Poly1305V1 is the only ciphersuite identifier
// this implementation advertises. Decoding a bundle does not check the
// ciphersuite field.
const CiphersuiteX25519ChaCha20Poly1305V1 = "x25519-chacha20poly1305-v1"

// IntroBundle is the out-of-band advertisement of an agent's X25519
// public key and supported ciphersuite, carried inside an AgentCard or
// exchanged separately.
type IntroBundle struct {
	X25519PublicKey [32]byte
	Ciphersuite     string
}

// NewIntroBundle builds a bundle for the given identity using the only
// supported ciphersuite.
func NewIntroBundle(identity *AgentIdentity) IntroBundle {
	return IntroBundle{
		X25519PublicKey: identity.PublicKey(),
		Ciphersuite:     CiphersuiteX25519ChaCha20Poly1305V1,
	}
}

// introBundleWire is the canonical wire shape: base64url (no padding)
// for the byte field.
type introBundleWire struct {
	X25519PublicKey string `json:"x25519_public_key"`
	Ciphersuite     string `json:"ciphersuite"`
}

// MarshalJSON implements the canonical base64url encoding.
func (b IntroBundle) MarshalJSON() ([]byte, error) {
	return json.Marshal(introBundleWire{
		X25519PublicKey: base64.RawURLEncoding.EncodeToString(b.X25519PublicKey[:]),
		Ciphersuite:     b.Ciphersuite,
	})
}

// UnmarshalJSON parses the canonical base64url encoding.
func (b *IntroBundle) UnmarshalJSON(data []byte) error {
	var wire introBundleWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("intro bundle: %w", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(wire.X25519PublicKey)
	if err != nil {
		return fmt.Errorf("intro bundle: invalid base64url x25519 key: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("intro bundle: x25519 key must be 32 bytes, got %d", len(raw))
	}
	copy(b.X25519PublicKey[:], raw)
	b.Ciphersuite = wire.Ciphersuite
	return nil
}
