package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"math"

	"github.com/jdgcs/ed25519/edwards25519"
	"github.com/pkg/errors"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrTooManySeeds          = errors.New("too many seeds")
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	ErrInvalidPublicKey      = errors.New("invalid public key")
	ErrNoViableBump          = errors.New("unable to find a viable program address bump seed")
)

var programHashCtor = sha256.New

// CreateProgramAddress derives a program address from the program and seeds.
//
// Program addresses must lie off the ed25519 curve so that no private key
// exists for them. ErrInvalidPublicKey is returned when the derived hash is a
// valid curve point.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L158
func CreateProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	if len(seeds) > maxSeeds {
		return nil, ErrTooManySeeds
	}
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return nil, ErrMaxSeedLengthExceeded
		}
	}

	h := programHashCtor()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(program)
	h.Write([]byte(pdaMarker))

	var candidate [ed25519.PublicKeySize]byte
	copy(candidate[:], h.Sum(nil))

	if isOnCurve(&candidate) {
		return nil, ErrInvalidPublicKey
	}
	return candidate[:], nil
}

// isOnCurve reports whether b decompresses to an ed25519 point. The stdlib
// doesn't expose point decompression.
func isOnCurve(b *[ed25519.PublicKeySize]byte) bool {
	var point edwards25519.ExtendedGroupElement
	return point.FromBytes(b)
}

// FindProgramAddressAndBump tries bump seeds from 255 downwards and returns the
// first off-curve address along with its bump.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L234
func FindProgramAddressAndBump(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, uint8, error) {
	bump := []byte{0}
	withBump := append(append(make([][]byte, 0, len(seeds)+1), seeds...), bump)

	for b := math.MaxUint8; b > 0; b-- {
		bump[0] = uint8(b)

		address, err := CreateProgramAddress(program, withBump...)
		switch err {
		case nil:
			return address, bump[0], nil
		case ErrInvalidPublicKey:
		default:
			return nil, 0, err
		}
	}

	return nil, 0, ErrNoViableBump
}

// FindProgramAddress is FindProgramAddressAndBump without the bump.
func FindProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	address, _, err := FindProgramAddressAndBump(program, seeds...)
	return address, err
}
