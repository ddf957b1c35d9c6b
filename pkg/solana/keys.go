package solana

import (
	"crypto/ed25519"
	"encoding/json"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// ErrInvalidKeyLength is returned when decoded key material has the wrong size.
var ErrInvalidKeyLength = errors.New("invalid key length")

// PublicKeyFromBase58 decodes a base58 encoded account address.
func PublicKeyFromBase58(encoded string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base58 public key")
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, ErrInvalidKeyLength
	}
	return decoded, nil
}

// MustPublicKeyFromBase58 is PublicKeyFromBase58 for package level constants.
func MustPublicKeyFromBase58(encoded string) ed25519.PublicKey {
	pub, err := PublicKeyFromBase58(encoded)
	if err != nil {
		panic(err)
	}
	return pub
}

// PrivateKeyFromJSON parses a keypair in the CLI wallet format, a JSON array
// of 64 bytes (seed followed by public key).
func PrivateKeyFromJSON(raw []byte) (ed25519.PrivateKey, error) {
	var values []int
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, errors.Wrap(err, "invalid keypair json")
	}
	if len(values) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeyLength
	}

	b := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, errors.Errorf("invalid keypair byte at %d: %d", i, v)
		}
		b[i] = byte(v)
	}

	priv := ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
	if !priv.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(b[ed25519.SeedSize:])) {
		return nil, errors.New("keypair public key does not match seed")
	}

	return priv, nil
}
