package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

// NewKeyPair generates a random ed25519 keypair.
func NewKeyPair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

// NewAddress returns a random base58 encoded account address.
func NewAddress(t *testing.T) string {
	pub, _ := NewKeyPair(t)
	return base58.Encode(pub)
}
