// Package swap quotes and executes token swaps routed through Jupiter.
package swap

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/tunegate/tunegate-server/pkg/jupiter"
	"github.com/tunegate/tunegate-server/pkg/metrics"
	"github.com/tunegate/tunegate-server/pkg/solana"
)

const (
	DefaultConfirmationTimeout = time.Minute

	confirmationPollInterval = 2 * time.Second

	metricsStructName = "swap.service"
)

var (
	ErrNotFullySigned  = errors.New("transaction is not fully signed")
	ErrInvalidEncoding = errors.New("transaction is not valid base64")
)

// Router is the subset of the aggregator API used to quote and build swaps.
type Router interface {
	GetQuote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.Quote, error)
	GetSwapTransaction(ctx context.Context, quote *jupiter.Quote, userPublicKey string, wrapAndUnwrapSol bool) ([]byte, error)
}

type Config struct {
	SlippageBps         uint32
	ConfirmationTimeout time.Duration
	Registerer          prometheus.Registerer
}

// QuoteResult is a quote with amounts in both base and UI units.
type QuoteResult struct {
	InputMint  string           `json:"inputMint"`
	OutputMint string           `json:"outputMint"`
	SwapMode   jupiter.SwapMode `json:"swapMode"`

	InAmount    uint64  `json:"inAmount,string"`
	OutAmount   uint64  `json:"outAmount,string"`
	UIInAmount  float64 `json:"uiInAmount"`
	UIOutAmount float64 `json:"uiOutAmount"`

	OtherAmountThreshold uint64  `json:"otherAmountThreshold,string"`
	SlippageBps          uint32  `json:"slippageBps"`
	PriceImpactPct       float64 `json:"priceImpactPct"`
	RouteHops            int     `json:"routeHops"`

	quote *jupiter.Quote
}

// CounterAmount returns the UI amount the caller did not specify: the output
// for ExactIn and the input for ExactOut.
func (r *QuoteResult) CounterAmount() float64 {
	if r.SwapMode == jupiter.SwapModeExactOut {
		return r.UIInAmount
	}
	return r.UIOutAmount
}

type Service struct {
	log    *logrus.Entry
	router Router
	sc     solana.Client
	conf   Config

	quotes *prometheus.CounterVec
	relays *prometheus.CounterVec
}

func NewService(router Router, sc solana.Client, conf Config) *Service {
	if conf.SlippageBps == 0 {
		conf.SlippageBps = jupiter.DefaultSlippageBps
	}
	if conf.ConfirmationTimeout <= 0 {
		conf.ConfirmationTimeout = DefaultConfirmationTimeout
	}

	reg := conf.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Service{
		log:    logrus.StandardLogger().WithField("type", "swap/service"),
		router: router,
		sc:     sc,
		conf:   conf,
		quotes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: metrics.Name(metrics.MetricSwapQuotesTotal),
			Help: "Number of swap quotes requested, by mode and result.",
		}, []string{"mode", "result"}),
		relays: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: metrics.Name(metrics.MetricSwapRelaysTotal),
			Help: "Number of swap transactions submitted, by result.",
		}, []string{"result"}),
	}
}

// Quote quotes a swap of uiAmount. For ExactIn uiAmount is denominated in the
// input token, for ExactOut in the output token.
func (s *Service) Quote(ctx context.Context, inputMint, outputMint string, uiAmount float64, mode jupiter.SwapMode) (result *QuoteResult, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Quote")
	defer tracer.End()
	defer func() {
		tracer.OnError(err)
		s.quotes.WithLabelValues(string(mode), resultLabel(err)).Inc()
	}()

	if len(mode) == 0 {
		mode = jupiter.SwapModeExactIn
	}

	amountMint := inputMint
	if mode == jupiter.SwapModeExactOut {
		amountMint = outputMint
	}

	amount, err := ToBaseUnits(uiAmount, DecimalsFor(amountMint))
	if err != nil {
		return nil, err
	}

	quote, err := s.router.GetQuote(ctx, jupiter.QuoteRequest{
		InputMint:   inputMint,
		OutputMint:  outputMint,
		Amount:      amount,
		SlippageBps: s.conf.SlippageBps,
		SwapMode:    mode,
	})
	if err != nil {
		return nil, err
	}

	return &QuoteResult{
		InputMint:            quote.InputMint,
		OutputMint:           quote.OutputMint,
		SwapMode:             mode,
		InAmount:             quote.InAmount,
		OutAmount:            quote.OutAmount,
		UIInAmount:           solana.ToUIAmount(quote.InAmount, DecimalsFor(inputMint)),
		UIOutAmount:          solana.ToUIAmount(quote.OutAmount, DecimalsFor(outputMint)),
		OtherAmountThreshold: quote.OtherAmountThreshold,
		SlippageBps:          quote.SlippageBps,
		PriceImpactPct:       quote.PriceImpactPct,
		RouteHops:            quote.RouteHops,
		quote:                quote,
	}, nil
}

// BuildTransaction quotes an ExactIn swap and returns the unsigned swap
// transaction, base64 encoded, for user to sign.
func (s *Service) BuildTransaction(ctx context.Context, inputMint, outputMint string, uiAmount float64, user ed25519.PublicKey) (encoded string, quote *QuoteResult, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "BuildTransaction")
	defer tracer.End()
	defer func() { tracer.OnError(err) }()

	raw, quote, err := s.buildTransaction(ctx, inputMint, outputMint, uiAmount, user)
	if err != nil {
		return "", nil, err
	}
	return base64.StdEncoding.EncodeToString(raw), quote, nil
}

func (s *Service) buildTransaction(ctx context.Context, inputMint, outputMint string, uiAmount float64, user ed25519.PublicKey) ([]byte, *QuoteResult, error) {
	quote, err := s.Quote(ctx, inputMint, outputMint, uiAmount, jupiter.SwapModeExactIn)
	if err != nil {
		return nil, nil, err
	}

	raw, err := s.router.GetSwapTransaction(ctx, quote.quote, base58.Encode(user), true)
	if err != nil {
		return nil, nil, err
	}
	return raw, quote, nil
}

// Execute builds an ExactIn swap for signer, signs it and submits it, waiting
// until the transaction is confirmed.
func (s *Service) Execute(ctx context.Context, signer ed25519.PrivateKey, inputMint, outputMint string, uiAmount float64) (sig solana.Signature, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Execute")
	defer tracer.End()
	defer func() { tracer.OnError(err) }()

	user := signer.Public().(ed25519.PublicKey)

	raw, quote, err := s.buildTransaction(ctx, inputMint, outputMint, uiAmount, user)
	if err != nil {
		return sig, err
	}

	var txn solana.Transaction
	if err := txn.Unmarshal(raw); err != nil {
		return sig, errors.Wrap(err, "failed to unmarshal swap transaction")
	}
	if err := txn.Sign(signer); err != nil {
		return sig, errors.Wrap(err, "failed to sign swap transaction")
	}

	s.log.WithFields(logrus.Fields{
		"method":     "Execute",
		"user":       base58.Encode(user),
		"input_mint": inputMint,
		"in_amount":  quote.InAmount,
		"out_amount": quote.OutAmount,
	}).Info("submitting swap")

	return s.submit(ctx, txn)
}

// Relay submits a base64 encoded transaction already signed by the wallet.
func (s *Service) Relay(ctx context.Context, encoded string) (sig solana.Signature, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Relay")
	defer tracer.End()
	defer func() { tracer.OnError(err) }()

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return sig, ErrInvalidEncoding
	}

	var txn solana.Transaction
	if err := txn.Unmarshal(raw); err != nil {
		return sig, errors.Wrap(err, "failed to unmarshal transaction")
	}
	if !txn.IsFullySigned() {
		return sig, ErrNotFullySigned
	}

	return s.submit(ctx, txn)
}

func (s *Service) submit(ctx context.Context, txn solana.Transaction) (sig solana.Signature, err error) {
	defer func() { s.relays.WithLabelValues(resultLabel(err)).Inc() }()

	sig, err = s.sc.SubmitTransaction(txn, solana.CommitmentConfirmed)
	if err != nil {
		return sig, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.conf.ConfirmationTimeout)
	defer cancel()

	if _, err := solana.PollForConfirmation(ctx, s.sc, sig, solana.CommitmentConfirmed, confirmationPollInterval); err != nil {
		return sig, err
	}
	return sig, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, jupiter.ErrNoRoute):
		return "no_route"
	}
	return "error"
}
