package system

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
)

var (
	// SystemAccount is the system program address in key form.
	SystemAccount = mustDecode("11111111111111111111111111111111")

	// RentSysVar holds the rent parameters read by InitializeMint.
	//
	// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/sysvar/rent.rs#L11
	RentSysVar = mustDecode("SysvarRent111111111111111111111111111111111")
)

func mustDecode(encoded string) ed25519.PublicKey {
	key, err := base58.Decode(encoded)
	if err != nil || len(key) != ed25519.PublicKeySize {
		panic("invalid builtin address: " + encoded)
	}
	return key
}
