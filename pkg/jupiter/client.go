package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tunegate/tunegate-server/pkg/metrics"
)

// Reference: https://station.jup.ag/docs/apis/swap-api

const (
	DefaultApiBaseUrl = "https://quote-api.jup.ag/v6/"

	DefaultSlippageBps = 50

	quoteEndpointName = "quote"
	swapEndpointName  = "swap"

	maxResponseBytes = 4 << 20

	metricsStructName = "jupiter.client"
)

var (
	// ErrNoRoute indicates the aggregator could not route the requested swap.
	ErrNoRoute = errors.New("no route found")
)

type SwapMode string

const (
	SwapModeExactIn  SwapMode = "ExactIn"
	SwapModeExactOut SwapMode = "ExactOut"
)

// ParseSwapMode accepts the aggregator's mode names case-insensitively. An
// empty string is ExactIn.
func ParseSwapMode(s string) (SwapMode, error) {
	switch strings.ToLower(s) {
	case "", "exactin":
		return SwapModeExactIn, nil
	case "exactout":
		return SwapModeExactOut, nil
	}
	return "", errors.Errorf("invalid swap mode: %q", s)
}

type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps uint32
	SwapMode    SwapMode
}

// Quote is an aggregator quote. The raw response is retained verbatim since
// the swap endpoint expects it echoed back.
type Quote struct {
	raw json.RawMessage

	InputMint            string
	OutputMint           string
	InAmount             uint64
	OutAmount            uint64
	OtherAmountThreshold uint64
	SwapMode             SwapMode
	SlippageBps          uint32
	PriceImpactPct       float64
	RouteHops            int
}

// Raw returns the quote response exactly as received.
func (q *Quote) Raw() json.RawMessage {
	return q.raw
}

type Client struct {
	log        *logrus.Entry
	baseUrl    string
	httpClient *http.Client
}

// NewClient returns a new Jupiter client for quoting and building swaps
func NewClient(baseUrl string, httpClient *http.Client) *Client {
	if len(baseUrl) == 0 {
		baseUrl = DefaultApiBaseUrl
	}
	if !strings.HasSuffix(baseUrl, "/") {
		baseUrl += "/"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		log:        logrus.StandardLogger().WithField("type", "jupiter/client"),
		baseUrl:    baseUrl,
		httpClient: httpClient,
	}
}

// GetQuote gets an optimal route for performing a swap
func (c *Client) GetQuote(ctx context.Context, req QuoteRequest) (quote *Quote, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetQuote")
	defer tracer.End()
	defer func() { tracer.OnError(err) }()

	if req.Amount == 0 {
		return nil, errors.New("amount must be positive")
	}
	if len(req.SwapMode) == 0 {
		req.SwapMode = SwapModeExactIn
	}

	params := url.Values{}
	params.Set("inputMint", req.InputMint)
	params.Set("outputMint", req.OutputMint)
	params.Set("amount", strconv.FormatUint(req.Amount, 10))
	params.Set("slippageBps", strconv.FormatUint(uint64(req.SlippageBps), 10))
	params.Set("swapMode", string(req.SwapMode))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseUrl+quoteEndpointName+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "error creating http request")
	}

	respBody, err := c.do(httpReq)
	if isNoRouteResponse(err) {
		return nil, ErrNoRoute
	} else if err != nil {
		return nil, err
	}

	var parsed jsonQuote
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errors.Wrap(err, "error unmarshalling json response")
	}

	if len(parsed.RoutePlan) == 0 {
		return nil, ErrNoRoute
	}

	quote = &Quote{
		raw:         json.RawMessage(respBody),
		InputMint:   parsed.InputMint,
		OutputMint:  parsed.OutputMint,
		SwapMode:    SwapMode(parsed.SwapMode),
		SlippageBps: parsed.SlippageBps,
		RouteHops:   len(parsed.RoutePlan),
	}
	if len(quote.SwapMode) == 0 {
		quote.SwapMode = req.SwapMode
	}

	if quote.InAmount, err = parseAmount(parsed.InAmount); err != nil {
		return nil, errors.Wrap(err, "error parsing in amount")
	}
	if quote.OutAmount, err = parseAmount(parsed.OutAmount); err != nil {
		return nil, errors.Wrap(err, "error parsing out amount")
	}
	if quote.OtherAmountThreshold, err = parseAmount(parsed.OtherAmountThreshold); err != nil {
		return nil, errors.Wrap(err, "error parsing other amount threshold")
	}
	if len(parsed.PriceImpactPct) > 0 {
		if quote.PriceImpactPct, err = strconv.ParseFloat(parsed.PriceImpactPct, 64); err != nil {
			return nil, errors.Wrap(err, "error parsing price impact")
		}
	}

	// The counter amount is what the caller is being quoted for.
	counter := quote.OutAmount
	if quote.SwapMode == SwapModeExactOut {
		counter = quote.InAmount
	}
	if counter == 0 {
		return nil, ErrNoRoute
	}

	tracer.AddAttributes(map[string]interface{}{
		"input_mint":  quote.InputMint,
		"output_mint": quote.OutputMint,
		"route_hops":  quote.RouteHops,
	})

	return quote, nil
}

// GetSwapTransaction gets a serialized, unsigned versioned transaction that
// performs the quoted swap for userPublicKey.
func (c *Client) GetSwapTransaction(ctx context.Context, quote *Quote, userPublicKey string, wrapAndUnwrapSol bool) (txn []byte, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetSwapTransaction")
	defer tracer.End()
	defer func() { tracer.OnError(err) }()

	if quote == nil || len(quote.raw) == 0 {
		return nil, errors.New("quote is required")
	}

	reqBody, err := json.Marshal(jsonSwapRequest{
		QuoteResponse:    quote.raw,
		UserPublicKey:    userPublicKey,
		WrapAndUnwrapSol: wrapAndUnwrapSol,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error marshalling swap request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl+swapEndpointName, bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "error creating http request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var parsed jsonSwapResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errors.Wrap(err, "error unmarshalling json response")
	}
	if len(parsed.SwapTransaction) == 0 {
		return nil, errors.New("swap transaction not provided")
	}

	txn, err = base64.StdEncoding.DecodeString(parsed.SwapTransaction)
	if err != nil {
		return nil, errors.Wrap(err, "error decoding base64 swap transaction")
	}

	c.log.WithFields(logrus.Fields{
		"method":                  "GetSwapTransaction",
		"user":                    userPublicKey,
		"last_valid_block_height": parsed.LastValidBlockHeight,
	}).Debug("received swap transaction")

	return txn, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "error executing http request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "error reading response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: respBody}
	}

	return respBody, nil
}

type statusError struct {
	code int
	body []byte
}

func (e *statusError) Error() string {
	return "received http status " + strconv.Itoa(e.code) + ": " + string(e.body)
}

// isNoRouteResponse reports whether the quote endpoint rejected the request
// because the pair can't be routed. The aggregator answers 400 with an error
// body and no route plan in that case.
func isNoRouteResponse(err error) bool {
	var se *statusError
	if !errors.As(err, &se) || se.code != http.StatusBadRequest {
		return false
	}

	var parsed jsonErrorResponse
	if err := json.Unmarshal(se.body, &parsed); err != nil {
		return false
	}

	switch parsed.ErrorCode {
	case "COULD_NOT_FIND_ANY_ROUTE", "NO_ROUTES_FOUND":
		return true
	}
	return len(parsed.RoutePlan) == 0
}

func parseAmount(s string) (uint64, error) {
	if len(s) == 0 {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

type jsonQuote struct {
	InputMint            string            `json:"inputMint"`
	InAmount             string            `json:"inAmount"`
	OutputMint           string            `json:"outputMint"`
	OutAmount            string            `json:"outAmount"`
	OtherAmountThreshold string            `json:"otherAmountThreshold"`
	SwapMode             string            `json:"swapMode"`
	SlippageBps          uint32            `json:"slippageBps"`
	PriceImpactPct       string            `json:"priceImpactPct"`
	RoutePlan            []json.RawMessage `json:"routePlan"`
}

type jsonErrorResponse struct {
	Error     string            `json:"error"`
	ErrorCode string            `json:"errorCode"`
	RoutePlan []json.RawMessage `json:"routePlan"`
}

type jsonSwapRequest struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

type jsonSwapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}
