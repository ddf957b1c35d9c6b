// Package mint records the token mints created by the backend authority.
package mint

import (
	"time"

	"github.com/pkg/errors"

	"github.com/tunegate/tunegate-server/pkg/solana"
)

type Record struct {
	Id uint64

	Mint      string
	Authority string
	Decimals  uint8
	Signature string

	CreatedAt time.Time
}

func (r *Record) Validate() error {
	if _, err := solana.PublicKeyFromBase58(r.Mint); err != nil {
		return errors.Wrap(err, "invalid mint")
	}
	if _, err := solana.PublicKeyFromBase58(r.Authority); err != nil {
		return errors.Wrap(err, "invalid authority")
	}
	if len(r.Signature) == 0 {
		return errors.New("signature is required")
	}
	if _, err := solana.SignatureFromBase58(r.Signature); err != nil {
		return errors.Wrap(err, "invalid signature")
	}
	return nil
}

func (r *Record) Clone() Record {
	return Record{
		Id:        r.Id,
		Mint:      r.Mint,
		Authority: r.Authority,
		Decimals:  r.Decimals,
		Signature: r.Signature,
		CreatedAt: r.CreatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id
	dst.Mint = r.Mint
	dst.Authority = r.Authority
	dst.Decimals = r.Decimals
	dst.Signature = r.Signature
	dst.CreatedAt = r.CreatedAt
}
