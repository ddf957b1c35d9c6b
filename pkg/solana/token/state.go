package token

import (
	"crypto/ed25519"
	"encoding/binary"
)

// Reference: https://github.com/solana-labs/solana-program-library/blob/11b1e3eefdd4e523768d63f7c70a7aa391ea0d02/token/program/src/state.rs#L36
const MintAccountSize = 82

const optionSize = 4

// Mint is the on-chain state of a token mint.
type Mint struct {
	// Optional authority used to mint new tokens.
	MintAuthority ed25519.PublicKey
	// Total supply of tokens.
	Supply uint64
	// Number of base 10 digits to the right of the decimal place.
	Decimals byte
	// Is true if this structure has been initialized.
	IsInitialized bool
	// Optional authority to freeze token accounts.
	FreezeAuthority ed25519.PublicKey
}

func (m *Mint) Marshal() []byte {
	b := make([]byte, MintAccountSize)

	offset := putOptionalKey(b, m.MintAuthority)
	binary.LittleEndian.PutUint64(b[offset:], m.Supply)
	offset += 8
	b[offset] = m.Decimals
	offset++
	if m.IsInitialized {
		b[offset] = 1
	}
	offset++
	putOptionalKey(b[offset:], m.FreezeAuthority)

	return b
}

func (m *Mint) Unmarshal(b []byte) bool {
	if len(b) != MintAccountSize {
		return false
	}

	var offset int
	m.MintAuthority, offset = getOptionalKey(b)
	m.Supply = binary.LittleEndian.Uint64(b[offset:])
	offset += 8
	m.Decimals = b[offset]
	offset++
	m.IsInitialized = b[offset] == 1
	offset++
	m.FreezeAuthority, _ = getOptionalKey(b[offset:])

	return true
}

// COption<Pubkey> is a u32 tag followed by the key, regardless of presence.
func putOptionalKey(dst []byte, key ed25519.PublicKey) int {
	if len(key) > 0 {
		binary.LittleEndian.PutUint32(dst, 1)
		copy(dst[optionSize:], key)
	}
	return optionSize + ed25519.PublicKeySize
}

func getOptionalKey(src []byte) (ed25519.PublicKey, int) {
	var key ed25519.PublicKey
	if binary.LittleEndian.Uint32(src) == 1 {
		key = make(ed25519.PublicKey, ed25519.PublicKeySize)
		copy(key, src[optionSize:])
	}
	return key, optionSize + ed25519.PublicKeySize
}
