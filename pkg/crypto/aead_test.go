package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	alice, err := GenerateIdentity()
	require.NoError(t, err)
	bob, err := GenerateIdentity()
	require.NoError(t, err)

	keyAB, err := alice.DeriveSession(bob.PublicKey())
	require.NoError(t, err)
	keyBA, err := bob.DeriveSession(alice.PublicKey())
	require.NoError(t, err)

	ad := []byte("waku-a2a/v1")
	plaintext := []byte("Hello, encrypted world!")

	nonce, ciphertext, err := Seal(keyAB, ad, plaintext)
	require.NoError(t, err)
	assert.Len(t, nonce, NonceSize)

	got, err := Open(keyBA, ad, nonce, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestSealNonceIsRandomPerCall(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))

	n1, _, err := Seal(key, nil, []byte("same plaintext"))
	require.NoError(t, err)
	n2, _, err := Seal(key, nil, []byte("same plaintext"))
	require.NoError(t, err)

	assert.NotEqual(t, n1, n2, "nonce must be random each time")
}

func TestOpenFailsOnWrongKey(t *testing.T) {
	alice, err := GenerateIdentity()
	require.NoError(t, err)
	bob, err := GenerateIdentity()
	require.NoError(t, err)
	eve, err := GenerateIdentity()
	require.NoError(t, err)

	keyAB, err := alice.DeriveSession(bob.PublicKey())
	require.NoError(t, err)
	keyAE, err := alice.DeriveSession(eve.PublicKey())
	require.NoError(t, err)

	nonce, ciphertext, err := Seal(keyAB, nil, []byte("secret"))
	require.NoError(t, err)

	_, err = Open(keyAE, nil, nonce, ciphertext)
	assert.Error(t, err)
}

func TestOpenFailsOnTamperedAssociatedData(t *testing.T) {
	var key [32]byte
	nonce, ciphertext, err := Seal(key, []byte("recipient-a"), []byte("payload"))
	require.NoError(t, err)

	_, err = Open(key, []byte("recipient-b"), nonce, ciphertext)
	assert.Error(t, err)
}

func TestOpenFailsOnMalformedNonce(t *testing.T) {
	var key [32]byte
	_, err := Open(key, nil, []byte("short"), []byte("ciphertext"))
	assert.Error(t, err)
}
