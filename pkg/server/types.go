package server

import (
	"time"

	"github.com/tunegate/tunegate-server/pkg/data/mint"
	"github.com/tunegate/tunegate-server/pkg/library"
	"github.com/tunegate/tunegate-server/pkg/solana/metadata"
	"github.com/tunegate/tunegate-server/pkg/swap"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

type BalanceResponse struct {
	Owner    string  `json:"owner"`
	Lamports uint64  `json:"lamports"`
	Sol      float64 `json:"sol"`
}

type LibraryResponse struct {
	Owner  string           `json:"owner"`
	Tracks []*library.Track `json:"tracks"`
}

type AccessResponse struct {
	Owner     string `json:"owner"`
	Mint      string `json:"mint"`
	HasAccess bool   `json:"hasAccess"`
}

type CreatorResponse struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
	Share    uint8  `json:"share"`
}

type MetadataResponse struct {
	Address              string            `json:"address"`
	Key                  string            `json:"key"`
	UpdateAuthority      string            `json:"updateAuthority"`
	Mint                 string            `json:"mint"`
	Name                 string            `json:"name"`
	Symbol               string            `json:"symbol"`
	URI                  string            `json:"uri"`
	SellerFeeBasisPoints uint16            `json:"sellerFeeBasisPoints"`
	Creators             []CreatorResponse `json:"creators"`
	PrimarySaleHappened  bool              `json:"primarySaleHappened"`
	IsMutable            bool              `json:"isMutable"`
}

func toMetadataResponse(address string, md *metadata.Metadata) MetadataResponse {
	resp := MetadataResponse{
		Address:              address,
		Key:                  md.Key.String(),
		UpdateAuthority:      md.UpdateAuthority.String(),
		Mint:                 md.Mint.String(),
		Name:                 md.Name(),
		Symbol:               md.Symbol(),
		URI:                  md.URI(),
		SellerFeeBasisPoints: md.Data.SellerFeeBasisPoints,
		Creators:             []CreatorResponse{},
		PrimarySaleHappened:  md.PrimarySaleHappened,
		IsMutable:            md.IsMutable,
	}
	for _, c := range md.Data.Creators {
		resp.Creators = append(resp.Creators, CreatorResponse{
			Address:  c.Address.String(),
			Verified: c.IsVerified(),
			Share:    c.Share,
		})
	}
	return resp
}

type MintResponse struct {
	Mint      string `json:"mint"`
	Authority string `json:"authority"`
	Decimals  uint8  `json:"decimals"`
	Signature string `json:"txSignature"`
	CreatedAt string `json:"createdAt"`
}

type MintListResponse struct {
	Mints      []MintResponse `json:"mints"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

func toMintResponse(r *mint.Record) MintResponse {
	return MintResponse{
		Mint:      r.Mint,
		Authority: r.Authority,
		Decimals:  r.Decimals,
		Signature: r.Signature,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// CreateMintResponse is the body of a successful POST /api/createMint.
type CreateMintResponse struct {
	Mint        string `json:"mint"`
	TxSignature string `json:"txSignature"`
}

type SwapTransactionRequest struct {
	InputMint     string  `json:"inputMint"`
	OutputMint    string  `json:"outputMint"`
	Amount        float64 `json:"amount"`
	UserPublicKey string  `json:"userPublicKey"`
}

type SwapTransactionResponse struct {
	SwapTransaction string            `json:"swapTransaction"`
	Quote           *swap.QuoteResult `json:"quote"`
}

type RelayRequest struct {
	Transaction string `json:"transaction"`
}

type RelayResponse struct {
	Signature string `json:"signature"`
}
