package swap

import (
	"math"

	"github.com/pkg/errors"
)

const (
	SolMint  = "So11111111111111111111111111111111111111112"
	JupMint  = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
	UsdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	// DefaultDecimals applies to mints missing from the known token table.
	DefaultDecimals = 9
)

var ErrInvalidAmount = errors.New("amount must be positive")

// Token is a swappable token with a known number of decimals.
type Token struct {
	Symbol   string `json:"symbol"`
	Mint     string `json:"mint"`
	Decimals uint8  `json:"decimals"`
}

var knownTokens = []Token{
	{Symbol: "SOL", Mint: SolMint, Decimals: 9},
	{Symbol: "JUP", Mint: JupMint, Decimals: 6},
	{Symbol: "USDC", Mint: UsdcMint, Decimals: 6},
}

// KnownTokens returns the tokens with a known number of decimals.
func KnownTokens() []Token {
	tokens := make([]Token, len(knownTokens))
	copy(tokens, knownTokens)
	return tokens
}

// DecimalsFor returns the decimals of mint, or DefaultDecimals if unknown.
func DecimalsFor(mint string) uint8 {
	for _, token := range knownTokens {
		if token.Mint == mint {
			return token.Decimals
		}
	}
	return DefaultDecimals
}

// ToBaseUnits floors a UI amount into base units.
func ToBaseUnits(uiAmount float64, decimals uint8) (uint64, error) {
	if math.IsNaN(uiAmount) || math.IsInf(uiAmount, 0) || uiAmount <= 0 {
		return 0, ErrInvalidAmount
	}

	quarks := math.Floor(uiAmount * math.Pow10(int(decimals)))
	if quarks < 1 {
		return 0, errors.Wrapf(ErrInvalidAmount, "%v is smaller than one base unit", uiAmount)
	}
	if quarks >= math.MaxUint64 {
		return 0, errors.Wrapf(ErrInvalidAmount, "%v overflows", uiAmount)
	}
	return uint64(quarks), nil
}
