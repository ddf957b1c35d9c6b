// Package metadata decodes token metadata accounts owned by the Metaplex
// token metadata program.
package metadata

import (
	"crypto/ed25519"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/tunegate/tunegate-server/pkg/solana"
)

// ProgramKey is the address of the token metadata program.
//
// Current key: metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s
var ProgramKey = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

const seedPrefix = "metadata"

// Key is the account discriminant stored in the first byte of the account.
type Key uint8

// Reference: https://github.com/metaplex-foundation/mpl-token-metadata/blob/main/programs/token-metadata/program/src/state/mod.rs
const (
	KeyUninitialized Key = iota
	KeyEditionV1
	KeyMasterEditionV1
	KeyReservationListV1
	KeyMetadataV1
	KeyReservationListV2
	KeyMasterEditionV2
	KeyEditionMarker
)

// IsKnownKey reports whether k is a discriminant the metadata program
// writes. Decoding never rejects unknown keys.
func (k Key) IsKnownKey() bool {
	return k <= KeyEditionMarker
}

func (k Key) String() string {
	switch k {
	case KeyUninitialized:
		return "uninitialized"
	case KeyEditionV1:
		return "edition_v1"
	case KeyMasterEditionV1:
		return "master_edition_v1"
	case KeyReservationListV1:
		return "reservation_list_v1"
	case KeyMetadataV1:
		return "metadata_v1"
	case KeyReservationListV2:
		return "reservation_list_v2"
	case KeyMasterEditionV2:
		return "master_edition_v2"
	case KeyEditionMarker:
		return "edition_marker"
	}
	return "unknown"
}

// Creator is a creator entry with a royalty share. Verified holds the raw
// flag byte; any non-zero value means verified.
type Creator struct {
	Address  solanago.PublicKey
	Verified uint8
	Share    uint8
}

func (c Creator) IsVerified() bool {
	return c.Verified != 0
}

// Data is the user-controlled portion of the metadata account.
type Data struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16

	// Creators is nil when the account has no creators list.
	Creators []Creator
}

// Metadata is a decoded metadata account.
type Metadata struct {
	Key                 Key
	UpdateAuthority     solanago.PublicKey
	Mint                solanago.PublicKey
	Data                Data
	PrimarySaleHappened bool
	IsMutable           bool
}

func (m *Metadata) Clone() *Metadata {
	cloned := *m
	if m.Data.Creators != nil {
		cloned.Data.Creators = append([]Creator{}, m.Data.Creators...)
	}
	return &cloned
}

// GetMetadataAddress returns the metadata account address for a mint.
func GetMetadataAddress(mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	if len(mint) != ed25519.PublicKeySize {
		return nil, errors.Wrapf(solana.ErrInvalidKeyLength, "mint has %d bytes", len(mint))
	}

	return solana.FindProgramAddress(
		ProgramKey,
		[]byte(seedPrefix),
		ProgramKey,
		mint,
	)
}
