package metadata

import (
	solanago "github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
	"github.com/pkg/errors"
)

type borshCreator struct {
	Address  [solanago.PublicKeyLength]byte
	Verified uint8
	Share    uint8
}

type borshData struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             *[]borshCreator
}

type borshMetadata struct {
	Key                 uint8
	UpdateAuthority     [solanago.PublicKeyLength]byte
	Mint                [solanago.PublicKeyLength]byte
	Data                borshData
	PrimarySaleHappened bool
	IsMutable           bool
}

// Marshal encodes m in the account layout read by Unmarshal.
func (m *Metadata) Marshal() ([]byte, error) {
	v := borshMetadata{
		Key:             uint8(m.Key),
		UpdateAuthority: m.UpdateAuthority,
		Mint:            m.Mint,
		Data: borshData{
			Name:                 m.Data.Name,
			Symbol:               m.Data.Symbol,
			URI:                  m.Data.URI,
			SellerFeeBasisPoints: m.Data.SellerFeeBasisPoints,
		},
		PrimarySaleHappened: m.PrimarySaleHappened,
		IsMutable:           m.IsMutable,
	}

	if m.Data.Creators != nil {
		creators := make([]borshCreator, len(m.Data.Creators))
		for i, c := range m.Data.Creators {
			creators[i] = borshCreator{
				Address:  c.Address,
				Verified: c.Verified,
				Share:    c.Share,
			}
		}
		v.Data.Creators = &creators
	}

	b, err := borsh.Serialize(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize metadata")
	}
	return b, nil
}
