package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	solMint = "So11111111111111111111111111111111111111112"
	jupMint = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
)

func TestGetQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quote", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, solMint, q.Get("inputMint"))
		assert.Equal(t, jupMint, q.Get("outputMint"))
		assert.Equal(t, "100000000", q.Get("amount"))
		assert.Equal(t, "50", q.Get("slippageBps"))
		assert.Equal(t, "ExactIn", q.Get("swapMode"))

		_, _ = w.Write([]byte(`{
			"inputMint": "` + solMint + `",
			"inAmount": "100000000",
			"outputMint": "` + jupMint + `",
			"outAmount": "21500000",
			"otherAmountThreshold": "21392500",
			"swapMode": "ExactIn",
			"slippageBps": 50,
			"priceImpactPct": "0.0012",
			"routePlan": [{"percent": 100}, {"percent": 100}]
		}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, server.Client())

	quote, err := c.GetQuote(context.Background(), QuoteRequest{
		InputMint:   solMint,
		OutputMint:  jupMint,
		Amount:      100_000_000,
		SlippageBps: DefaultSlippageBps,
	})
	require.NoError(t, err)

	assert.EqualValues(t, 100_000_000, quote.InAmount)
	assert.EqualValues(t, 21_500_000, quote.OutAmount)
	assert.EqualValues(t, 21_392_500, quote.OtherAmountThreshold)
	assert.Equal(t, SwapModeExactIn, quote.SwapMode)
	assert.Equal(t, 2, quote.RouteHops)
	assert.InDelta(t, 0.0012, quote.PriceImpactPct, 1e-9)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(quote.Raw(), &raw))
	assert.Equal(t, "21500000", raw["outAmount"])
}

func TestGetQuote_NoRoute(t *testing.T) {
	for _, body := range []string{
		`{"inAmount": "1", "outAmount": "5", "routePlan": []}`,
		`{"inAmount": "1", "outAmount": "5"}`,
		`{"inAmount": "1", "outAmount": "0", "swapMode": "ExactIn", "routePlan": [{}]}`,
		`{"inAmount": "0", "outAmount": "5", "swapMode": "ExactOut", "routePlan": [{}]}`,
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		c := NewClient(server.URL, server.Client())
		_, err := c.GetQuote(context.Background(), QuoteRequest{InputMint: solMint, OutputMint: jupMint, Amount: 1})
		assert.Equal(t, ErrNoRoute, err, body)

		server.Close()
	}
}

func TestGetQuote_NoRouteStatus(t *testing.T) {
	for _, body := range []string{
		`{"error":"Could not find any route","errorCode":"COULD_NOT_FIND_ANY_ROUTE"}`,
		`{"error":"No routes found","errorCode":"NO_ROUTES_FOUND"}`,
		`{"error":"Could not find any route"}`,
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(body))
		}))

		c := NewClient(server.URL, server.Client())
		_, err := c.GetQuote(context.Background(), QuoteRequest{InputMint: solMint, OutputMint: jupMint, Amount: 1})
		assert.True(t, errors.Is(err, ErrNoRoute), body)

		server.Close()
	}
}

func TestGetQuote_HTTPError(t *testing.T) {
	for _, tc := range []struct {
		status int
		body   string
	}{
		{http.StatusBadRequest, `bad request`},
		{http.StatusInternalServerError, `{"error":"upstream unavailable"}`},
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))

		c := NewClient(server.URL, server.Client())
		_, err := c.GetQuote(context.Background(), QuoteRequest{InputMint: solMint, OutputMint: jupMint, Amount: 1})
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrNoRoute))
		assert.Contains(t, err.Error(), fmt.Sprintf("received http status %d", tc.status))

		server.Close()
	}

	c := NewClient("http://localhost", nil)
	_, err := c.GetQuote(context.Background(), QuoteRequest{InputMint: solMint, OutputMint: jupMint})
	assert.Error(t, err)
}

func TestGetSwapTransaction(t *testing.T) {
	expected := []byte{1, 2, 3, 4}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			_, _ = w.Write([]byte(`{"inAmount":"1000000","outAmount":"10","swapMode":"ExactOut","routePlan":[{}]}`))
		case "/swap":
			require.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var req struct {
				QuoteResponse    map[string]interface{} `json:"quoteResponse"`
				UserPublicKey    string                 `json:"userPublicKey"`
				WrapAndUnwrapSol bool                   `json:"wrapAndUnwrapSol"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "1000000", req.QuoteResponse["inAmount"])
			assert.Equal(t, "user", req.UserPublicKey)
			assert.True(t, req.WrapAndUnwrapSol)

			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"swapTransaction":      base64.StdEncoding.EncodeToString(expected),
				"lastValidBlockHeight": 100,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", server.Client())

	quote, err := c.GetQuote(context.Background(), QuoteRequest{
		InputMint:  solMint,
		OutputMint: jupMint,
		Amount:     10,
		SwapMode:   SwapModeExactOut,
	})
	require.NoError(t, err)
	assert.Equal(t, SwapModeExactOut, quote.SwapMode)

	txn, err := c.GetSwapTransaction(context.Background(), quote, "user", true)
	require.NoError(t, err)
	assert.Equal(t, expected, txn)

	_, err = c.GetSwapTransaction(context.Background(), &Quote{}, "user", true)
	assert.Error(t, err)
}

func TestGetSwapTransaction_Missing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, server.Client())
	_, err := c.GetSwapTransaction(context.Background(), &Quote{raw: json.RawMessage(`{}`)}, "user", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "swap transaction not provided")
}

func TestParseSwapMode(t *testing.T) {
	for in, expected := range map[string]SwapMode{
		"":         SwapModeExactIn,
		"ExactIn":  SwapModeExactIn,
		"exactout": SwapModeExactOut,
	} {
		actual, err := ParseSwapMode(in)
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	}

	_, err := ParseSwapMode("sideways")
	assert.Error(t, err)
}
