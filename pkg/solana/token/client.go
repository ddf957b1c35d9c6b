package token

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/tunegate/tunegate-server/pkg/solana"
)

var (
	// ErrMintNotFound indicates there is no account for the given mint address.
	ErrMintNotFound = errors.New("mint not found")
	// ErrInvalidMint indicates that a Solana account exists at the given
	// address, but it is not an initialized token mint.
	ErrInvalidMint = errors.New("invalid mint")
)

// Client reads token program state.
type Client struct {
	sc solana.Client
}

// NewClient creates a new Client.
func NewClient(sc solana.Client) *Client {
	return &Client{
		sc: sc,
	}
}

// GetMint returns the mint state for the specified address.
func (c *Client) GetMint(address ed25519.PublicKey, commitment solana.Commitment) (*Mint, error) {
	info, err := c.sc.GetAccountInfo(address, commitment)
	if err == solana.ErrNoAccountInfo {
		return nil, ErrMintNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to get mint account")
	}

	if !bytes.Equal(info.Owner, ProgramKey) {
		return nil, ErrInvalidMint
	}

	var mint Mint
	if !mint.Unmarshal(info.Data) || !mint.IsInitialized {
		return nil, ErrInvalidMint
	}

	return &mint, nil
}
