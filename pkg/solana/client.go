package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"
	"golang.org/x/time/rate"

	"github.com/tunegate/tunegate-server/pkg/retry"
	"github.com/tunegate/tunegate-server/pkg/retry/backoff"
)

const (
	// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L11
	rpcNodeUnhealthyCode = -32005

	invalidParamCode = -32602

	// LamportsPerSol is the number of lamports in one SOL.
	LamportsPerSol = 1_000_000_000
)

type Commitment struct {
	Commitment string `json:"commitment"`
}

const (
	confirmationStatusProcessed = "processed"
	confirmationStatusConfirmed = "confirmed"
	confirmationStatusFinalized = "finalized"
)

var (
	CommitmentProcessed = Commitment{Commitment: confirmationStatusProcessed}
	CommitmentConfirmed = Commitment{Commitment: confirmationStatusConfirmed}
	CommitmentFinalized = Commitment{Commitment: confirmationStatusFinalized}
)

var (
	ErrNoAccountInfo     = errors.New("no account info")
	ErrSignatureNotFound = errors.New("signature not found")
	ErrNoBalance         = errors.New("no balance")
)

// AccountInfo contains the Solana account information (not to be confused with a TokenAccount)
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

// ParsedTokenAccount is a token account as returned by the jsonParsed encoding.
type ParsedTokenAccount struct {
	Address  ed25519.PublicKey
	Mint     ed25519.PublicKey
	Owner    ed25519.PublicKey
	Amount   uint64
	Decimals uint8
	UIAmount float64
}

type SignatureStatus struct {
	Slot        uint64
	ErrorResult *TransactionError

	// Confirmations will be nil if the transaction has been rooted.
	Confirmations      *int
	ConfirmationStatus string
}

func (s SignatureStatus) Confirmed() bool {
	if s.Finalized() {
		return true
	}

	if s.ConfirmationStatus == confirmationStatusConfirmed {
		return true
	}

	return *s.Confirmations >= 1
}

func (s SignatureStatus) Finalized() bool {
	return s.Confirmations == nil || s.ConfirmationStatus == confirmationStatusFinalized
}

// Reached reports whether the status satisfies the commitment level.
func (s SignatureStatus) Reached(commitment Commitment) bool {
	switch commitment {
	case CommitmentFinalized:
		return s.Finalized()
	case CommitmentConfirmed:
		return s.Confirmed()
	default:
		return true
	}
}

// Client provides an interaction with the Solana JSON RPC API.
//
// Reference: https://docs.solana.com/apps/jsonrpc-api
type Client interface {
	GetAccountInfo(ed25519.PublicKey, Commitment) (AccountInfo, error)
	GetBalance(ed25519.PublicKey) (uint64, error)
	GetParsedTokenAccountsByOwner(owner, program ed25519.PublicKey) ([]ParsedTokenAccount, error)
	GetMinimumBalanceForRentExemption(size uint64) (lamports uint64, err error)
	GetLatestBlockhash() (Blockhash, error)
	GetSignatureStatus(Signature) (*SignatureStatus, error)
	GetSignatureStatuses([]Signature) ([]*SignatureStatus, error)
	SubmitTransaction(Transaction, Commitment) (Signature, error)
}

var (
	errRateLimited  = errors.New("rate limited")
	errServiceError = errors.New("service error")
)

type rpcResponse struct {
	Context struct {
		Slot int64 `json:"slot"`
	} `json:"context"`
	Value interface{} `json:"value"`
}

type client struct {
	log      *logrus.Entry
	endpoint string
	client   jsonrpc.RPCClient
	retrier  retry.Retrier
	limiter  *rate.Limiter

	blockMu   sync.RWMutex
	blockhash Blockhash
	lastWrite time.Time
}

// Option configures a client.
type Option func(*client)

// WithRateLimit caps outbound requests per second. A non-positive limit
// leaves requests unthrottled.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *client) {
		if requestsPerSecond <= 0 {
			return
		}

		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithHTTPClient overrides the HTTP client used for RPC calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		c.client = jsonrpc.NewClientWithOpts(c.endpoint, &jsonrpc.RPCClientOpts{HTTPClient: httpClient})
	}
}

// WithRetrier overrides the retry behaviour of RPC calls.
func WithRetrier(r retry.Retrier) Option {
	return func(c *client) {
		c.retrier = r
	}
}

// New returns a client using the specified endpoint.
func New(endpoint string, opts ...Option) Client {
	c := &client{
		log:      logrus.StandardLogger().WithFields(logrus.Fields{"type": "solana/client", "endpoint": endpoint}),
		endpoint: endpoint,
		client:   jsonrpc.NewClient(endpoint),
		retrier: retry.NewRetrier(
			retry.RetriableErrors(errRateLimited, errServiceError),
			retry.Limit(3),
			retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), 10*time.Second, 0.1),
		),
	}

	for _, o := range opts {
		o(c)
	}

	return c
}

func (c *client) call(out interface{}, method string, params ...interface{}) error {
	_, err := c.retrier.Retry(func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(context.Background()); err != nil {
				return err
			}
		}

		err := c.client.CallFor(out, method, params...)
		if err == nil {
			return nil
		}

		return c.handleRpcError(method, err)
	})

	return err
}

func (c *client) handleRpcError(method string, err error) error {
	switch typed := err.(type) {
	case *jsonrpc.HTTPError:
		if typed.Code == http.StatusTooManyRequests {
			c.log.WithField("method", method).Warn("rate limited")
			return errRateLimited
		}
		if typed.Code >= 500 {
			return errServiceError
		}
	case *jsonrpc.RPCError:
		if typed.Code == http.StatusTooManyRequests {
			c.log.WithField("method", method).Warn("rate limited")
			return errRateLimited
		}
		if typed.Code >= 500 || typed.Code == rpcNodeUnhealthyCode {
			return errServiceError
		}
	}

	return err
}

func (c *client) GetMinimumBalanceForRentExemption(dataSize uint64) (lamports uint64, err error) {
	if err := c.call(&lamports, "getMinimumBalanceForRentExemption", dataSize); err != nil {
		return 0, errors.Wrapf(err, "getMinimumBalanceForRentExemption() failed to send request")
	}

	return lamports, nil
}

func (c *client) GetLatestBlockhash() (hash Blockhash, err error) {
	// Refreshes are jittered so concurrent builders don't all expire together.
	window := time.Duration(float64(2*time.Second) * (0.8 + rand.Float64()))

	c.blockMu.RLock()
	if time.Since(c.lastWrite) < window {
		hash = c.blockhash
	}
	c.blockMu.RUnlock()

	if hash != (Blockhash{}) {
		return hash, nil
	}

	type response struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}

	var resp response
	if err := c.call(&resp, "getLatestBlockhash", []interface{}{CommitmentConfirmed}); err != nil {
		return hash, errors.Wrapf(err, "getLatestBlockhash() failed to send request")
	}

	hashBytes, err := base58.Decode(resp.Value.Blockhash)
	if err != nil {
		return hash, errors.Wrap(err, "invalid base58 encoded hash in response")
	}
	if len(hashBytes) != len(hash) {
		return hash, errors.Errorf("invalid blockhash length: %d", len(hashBytes))
	}

	copy(hash[:], hashBytes)

	c.blockMu.Lock()
	c.blockhash = hash
	c.lastWrite = time.Now()
	c.blockMu.Unlock()

	return hash, nil
}

func (c *client) GetBalance(account ed25519.PublicKey) (uint64, error) {
	var resp rpcResponse
	if err := c.call(&resp, "getBalance", base58.Encode(account[:]), CommitmentConfirmed); err != nil {
		jsonRPCErr, ok := err.(*jsonrpc.RPCError)
		if ok && jsonRPCErr.Code == invalidParamCode {
			return 0, ErrNoBalance
		}

		return 0, errors.Wrapf(err, "getBalance() failed to send request")
	}

	if balance, ok := resp.Value.(float64); ok {
		return uint64(balance), nil
	}

	return 0, errors.Errorf("invalid value in response")
}

func (c *client) GetAccountInfo(account ed25519.PublicKey, commitment Commitment) (accountInfo AccountInfo, err error) {
	type rpcResponse struct {
		Value *struct {
			Lamports   uint64   `json:"lamports"`
			Owner      string   `json:"owner"`
			Data       []string `json:"data"`
			Executable bool     `json:"executable"`
		} `json:"value"`
	}

	rpcConfig := struct {
		Commitment string `json:"commitment"`
		Encoding   string `json:"encoding"`
	}{
		Commitment: commitment.Commitment,
		Encoding:   "base64",
	}

	var resp rpcResponse
	if err := c.call(&resp, "getAccountInfo", base58.Encode(account[:]), rpcConfig); err != nil {
		return accountInfo, errors.Wrap(err, "getAccountInfo() failed to send request")
	}

	if resp.Value == nil {
		return accountInfo, ErrNoAccountInfo
	}

	accountInfo.Owner, err = base58.Decode(resp.Value.Owner)
	if err != nil {
		return accountInfo, errors.Wrap(err, "invalid base58 encoded owner")
	}

	if len(resp.Value.Data) == 0 {
		return accountInfo, errors.New("account data missing from response")
	}
	accountInfo.Data, err = base64.StdEncoding.DecodeString(resp.Value.Data[0])
	if err != nil {
		return accountInfo, errors.Wrap(err, "invalid base64 encoded data")
	}

	accountInfo.Lamports = resp.Value.Lamports
	accountInfo.Executable = resp.Value.Executable

	return accountInfo, nil
}

func (c *client) GetParsedTokenAccountsByOwner(owner, program ed25519.PublicKey) ([]ParsedTokenAccount, error) {
	filter := struct {
		ProgramID string `json:"programId"`
	}{
		ProgramID: base58.Encode(program),
	}
	config := struct {
		Encoding   string `json:"encoding"`
		Commitment string `json:"commitment"`
	}{
		Encoding:   "jsonParsed",
		Commitment: confirmationStatusConfirmed,
	}

	type tokenAmount struct {
		Amount         string   `json:"amount"`
		Decimals       uint8    `json:"decimals"`
		UIAmount       *float64 `json:"uiAmount"`
		UIAmountString string   `json:"uiAmountString"`
	}

	var resp struct {
		Value []struct {
			PubKey  string `json:"pubkey"`
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string      `json:"mint"`
							Owner       string      `json:"owner"`
							TokenAmount tokenAmount `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	if err := c.call(&resp, "getTokenAccountsByOwner", base58.Encode(owner), filter, config); err != nil {
		return nil, errors.Wrap(err, "getTokenAccountsByOwner() failed to send request")
	}

	accounts := make([]ParsedTokenAccount, 0, len(resp.Value))
	for _, v := range resp.Value {
		info := v.Account.Data.Parsed.Info

		var account ParsedTokenAccount
		var err error

		if account.Address, err = base58.Decode(v.PubKey); err != nil {
			return nil, errors.Wrap(err, "invalid token account address")
		}
		if account.Mint, err = base58.Decode(info.Mint); err != nil {
			return nil, errors.Wrap(err, "invalid token account mint")
		}
		if account.Owner, err = base58.Decode(info.Owner); err != nil {
			return nil, errors.Wrap(err, "invalid token account owner")
		}

		account.Decimals = info.TokenAmount.Decimals
		if len(info.TokenAmount.Amount) > 0 {
			if account.Amount, err = strconv.ParseUint(info.TokenAmount.Amount, 10, 64); err != nil {
				return nil, errors.Wrap(err, "invalid token amount")
			}
		}

		switch {
		case len(info.TokenAmount.UIAmountString) > 0:
			if account.UIAmount, err = strconv.ParseFloat(info.TokenAmount.UIAmountString, 64); err != nil {
				return nil, errors.Wrap(err, "invalid ui token amount")
			}
		case info.TokenAmount.UIAmount != nil:
			account.UIAmount = *info.TokenAmount.UIAmount
		default:
			account.UIAmount = ToUIAmount(account.Amount, account.Decimals)
		}

		accounts = append(accounts, account)
	}

	return accounts, nil
}

func (c *client) SubmitTransaction(txn Transaction, commitment Commitment) (Signature, error) {
	sig := txn.Signature()
	txnBytes := txn.Marshal()

	config := struct {
		Encoding            string `json:"encoding"`
		SkipPreflight       bool   `json:"skipPreflight"`
		PreflightCommitment string `json:"preflightCommitment"`
	}{
		Encoding:            "base64",
		SkipPreflight:       false,
		PreflightCommitment: commitment.Commitment,
	}

	var sigStr string
	err := c.call(&sigStr, "sendTransaction", base64.StdEncoding.EncodeToString(txnBytes), config)
	if err == nil {
		return sig, nil
	}

	jsonRPCErr, ok := err.(*jsonrpc.RPCError)
	if !ok {
		return sig, errors.Wrapf(err, "sendTransaction() failed to send request")
	}

	txResult, parseErr := ParseRPCError(jsonRPCErr)
	if parseErr != nil || txResult == nil {
		return sig, errors.Wrap(err, "sendTransaction() rejected")
	}

	c.log.WithFields(logrus.Fields{
		"method":    "sendTransaction",
		"signature": sig.String(),
		"error_key": txResult.ErrorKey(),
	}).Debug("transaction failed preflight")

	return sig, txResult
}

func (c *client) GetSignatureStatus(sig Signature) (*SignatureStatus, error) {
	statuses, err := c.GetSignatureStatuses([]Signature{sig})
	if err != nil {
		return nil, err
	}

	if statuses[0] == nil {
		return nil, ErrSignatureNotFound
	}
	return statuses[0], nil
}

func (c *client) GetSignatureStatuses(sigs []Signature) ([]*SignatureStatus, error) {
	b58Sigs := make([]string, len(sigs))
	for i := range sigs {
		b58Sigs[i] = base58.Encode(sigs[i][:])
	}

	req := struct {
		SearchTransactionHistory bool `json:"searchTransactionHistory"`
	}{
		SearchTransactionHistory: true,
	}

	type signatureStatus struct {
		Slot               uint64          `json:"slot"`
		Confirmations      *int            `json:"confirmations"`
		ConfirmationStatus string          `json:"confirmationStatus"`
		Err                json.RawMessage `json:"err"`
	}

	var resp struct {
		Value []*signatureStatus `json:"value"`
	}
	if err := c.call(&resp, "getSignatureStatuses", b58Sigs, req); err != nil {
		return nil, errors.Wrap(err, "getSignatureStatuses() failed to send request")
	}

	statuses := make([]*SignatureStatus, len(sigs))
	for i, v := range resp.Value {
		if v == nil || i >= len(statuses) {
			continue
		}

		statuses[i] = &SignatureStatus{
			Slot:               v.Slot,
			Confirmations:      v.Confirmations,
			ConfirmationStatus: v.ConfirmationStatus,
		}

		if len(v.Err) == 0 || string(v.Err) == "null" {
			continue
		}

		var txError interface{}
		if err := json.Unmarshal(v.Err, &txError); err != nil {
			return nil, errors.Wrap(err, "failed to parse transaction result")
		}

		txErr, err := ParseTransactionError(txError)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse transaction result")
		}
		statuses[i].ErrorResult = txErr
	}

	return statuses, nil
}

// ToUIAmount converts base units to a decimal amount.
func ToUIAmount(amount uint64, decimals uint8) float64 {
	v := float64(amount)
	for i := uint8(0); i < decimals; i++ {
		v /= 10
	}
	return v
}
