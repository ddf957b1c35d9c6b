package mint

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	address, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	record := &Record{
		Id:        3,
		Mint:      base58.Encode(address),
		Authority: base58.Encode(address),
		Decimals:  9,
		Signature: base58.Encode(make([]byte, ed25519.SignatureSize)),
		CreatedAt: time.Now(),
	}
	require.NoError(t, record.Validate())

	cloned := record.Clone()
	assert.Equal(t, *record, cloned)

	var copied Record
	record.CopyTo(&copied)
	assert.Equal(t, *record, copied)

	record.Signature = base58.Encode([]byte{1, 2, 3})
	assert.Error(t, record.Validate())
}
