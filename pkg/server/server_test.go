package server

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/tunegate/tunegate-server/pkg/data/mint"
	"github.com/tunegate/tunegate-server/pkg/data/mint/memory"
	"github.com/tunegate/tunegate-server/pkg/database/query"
	"github.com/tunegate/tunegate-server/pkg/jupiter"
	"github.com/tunegate/tunegate-server/pkg/library"
	tgrate "github.com/tunegate/tunegate-server/pkg/rate"
	"github.com/tunegate/tunegate-server/pkg/solana"
	"github.com/tunegate/tunegate-server/pkg/solana/metadata"
	"github.com/tunegate/tunegate-server/pkg/swap"
	"github.com/tunegate/tunegate-server/pkg/testutil"
)

type fakeLibrary struct {
	tracks   []*library.Track
	access   bool
	metadata *metadata.Metadata
	err      error
}

func (l *fakeLibrary) GetLibrary(context.Context, ed25519.PublicKey) ([]*library.Track, error) {
	return l.tracks, l.err
}

func (l *fakeLibrary) HasAccess(context.Context, ed25519.PublicKey, ed25519.PublicKey) (bool, error) {
	return l.access, l.err
}

func (l *fakeLibrary) GetMetadata(context.Context, ed25519.PublicKey) (*metadata.Metadata, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.metadata == nil {
		return nil, library.ErrMetadataNotFound
	}
	return l.metadata, nil
}

type fakeSwapper struct {
	quote   *swap.QuoteResult
	encoded string
	sig     solana.Signature
	err     error

	lastAmount float64
	lastMode   jupiter.SwapMode
	lastRelay  string
}

func (s *fakeSwapper) Quote(_ context.Context, _, _ string, amount float64, mode jupiter.SwapMode) (*swap.QuoteResult, error) {
	s.lastAmount = amount
	s.lastMode = mode
	return s.quote, s.err
}

func (s *fakeSwapper) BuildTransaction(_ context.Context, _, _ string, amount float64, _ ed25519.PublicKey) (string, *swap.QuoteResult, error) {
	s.lastAmount = amount
	return s.encoded, s.quote, s.err
}

func (s *fakeSwapper) Relay(_ context.Context, encoded string) (solana.Signature, error) {
	s.lastRelay = encoded
	return s.sig, s.err
}

type fakeMinter struct {
	record *mint.Record
	err    error
	calls  int
}

func (m *fakeMinter) Create(context.Context) (*mint.Record, error) {
	m.calls++
	return m.record, m.err
}

type balanceFunc func(ed25519.PublicKey) (uint64, error)

func (f balanceFunc) GetBalance(key ed25519.PublicKey) (uint64, error) {
	return f(key)
}

type env struct {
	library *fakeLibrary
	swapper *fakeSwapper
	minter  *fakeMinter
	mints   mint.Store
	reg     *prometheus.Registry
	server  *Server
}

func setup(t *testing.T, opts ...func(*Config)) *env {
	e := &env{
		library: &fakeLibrary{},
		swapper: &fakeSwapper{},
		minter:  &fakeMinter{},
		mints:   memory.New(),
		reg:     prometheus.NewRegistry(),
	}

	conf := Config{
		Library: e.library,
		Swapper: e.swapper,
		Minter:  e.minter,
		Mints:   e.mints,
		Balance: balanceFunc(func(ed25519.PublicKey) (uint64, error) {
			return 1_500_000_000, nil
		}),
		Registerer: e.reg,
		Gatherer:   e.reg,
	}
	for _, opt := range opts {
		opt(&conf)
	}

	e.server = New(conf)
	return e
}

func (e *env) do(method, target string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	e := setup(t)

	rec := e.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Uptime)

	_, err := uuid.Parse(rec.Header().Get(requestIDHeader))
	assert.NoError(t, err)
}

func TestRequestID_Propagated(t *testing.T) {
	e := setup(t)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, id)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(requestIDHeader))
}

func TestBalance(t *testing.T) {
	e := setup(t)
	owner := testutil.NewAddress(t)

	rec := e.do(http.MethodGet, "/v1/wallets/"+owner+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BalanceResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, owner, resp.Owner)
	assert.EqualValues(t, 1_500_000_000, resp.Lamports)
	assert.Equal(t, 1.5, resp.Sol)

	testutil.AssertJSONError(t, e.do(http.MethodGet, "/v1/wallets/not-base58!/balance", nil), http.StatusBadRequest, "")
	testutil.AssertJSONError(t, e.do(http.MethodGet, "/v1/wallets/abc/balance", nil), http.StatusBadRequest, "")
}

func TestBalance_Error(t *testing.T) {
	e := setup(t, func(c *Config) {
		c.Balance = balanceFunc(func(ed25519.PublicKey) (uint64, error) {
			return 0, errors.New("rpc down")
		})
	})

	rec := e.do(http.MethodGet, "/v1/wallets/"+testutil.NewAddress(t)+"/balance", nil)
	testutil.AssertJSONError(t, rec, http.StatusInternalServerError, "internal error")
}

func TestLibrary(t *testing.T) {
	e := setup(t)
	owner := testutil.NewAddress(t)

	rec := e.do(http.MethodGet, "/v1/wallets/"+owner+"/library", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tracks":[]`)

	e.library.tracks = []*library.Track{
		{Mint: "m", Song: "Song", Artist: "Artist", Audio: "https://example.com/a.mp3", Image: "https://example.com/a.png"},
	}
	rec = e.do(http.MethodGet, "/v1/wallets/"+owner+"/library", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LibraryResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, owner, resp.Owner)
	assert.Equal(t, e.library.tracks, resp.Tracks)

	e.library.err = errors.New("rpc down")
	testutil.AssertJSONError(t, e.do(http.MethodGet, "/v1/wallets/"+owner+"/library", nil), http.StatusInternalServerError, "")
}

func TestAccess(t *testing.T) {
	e := setup(t)
	owner := testutil.NewAddress(t)
	gating := testutil.NewAddress(t)

	e.library.access = true
	rec := e.do(http.MethodGet, "/v1/wallets/"+owner+"/access/"+gating, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AccessResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, AccessResponse{Owner: owner, Mint: gating, HasAccess: true}, resp)

	testutil.AssertJSONError(t, e.do(http.MethodGet, "/v1/wallets/"+owner+"/access/bad", nil), http.StatusBadRequest, "")
}

func TestMetadata(t *testing.T) {
	e := setup(t)
	mintKey, _ := testutil.NewKeyPair(t)
	creator, _ := testutil.NewKeyPair(t)

	testutil.AssertJSONError(t, e.do(http.MethodGet, "/v1/mints/"+base58.Encode(mintKey)+"/metadata", nil), http.StatusNotFound, "metadata not found")

	e.library.metadata = &metadata.Metadata{
		Key:  metadata.KeyMetadataV1,
		Mint: solanago.PublicKeyFromBytes(mintKey),
		Data: metadata.Data{
			Name:                 "Artist\x00\x00",
			Symbol:               "SONG",
			URI:                  "https://example.com/m.json\x00\x00",
			SellerFeeBasisPoints: 500,
			Creators: []metadata.Creator{
				{Address: solanago.PublicKeyFromBytes(creator), Verified: 1, Share: 100},
			},
		},
		IsMutable: true,
	}

	rec := e.do(http.MethodGet, "/v1/mints/"+base58.Encode(mintKey)+"/metadata", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MetadataResponse
	testutil.DecodeJSON(t, rec, &resp)

	address, err := metadata.GetMetadataAddress(mintKey)
	require.NoError(t, err)
	assert.Equal(t, base58.Encode(address), resp.Address)
	assert.Equal(t, "metadata_v1", resp.Key)
	assert.Equal(t, base58.Encode(mintKey), resp.Mint)
	assert.Equal(t, "Artist", resp.Name)
	assert.Equal(t, "https://example.com/m.json", resp.URI)
	assert.EqualValues(t, 500, resp.SellerFeeBasisPoints)
	require.Len(t, resp.Creators, 1)
	assert.Equal(t, base58.Encode(creator), resp.Creators[0].Address)
	assert.True(t, resp.Creators[0].Verified)
	assert.True(t, resp.IsMutable)

	e.library.err = &metadata.DecodeError{Field: "name", Offset: 65, Need: 4, Have: 1}
	testutil.AssertJSONError(t, e.do(http.MethodGet, "/v1/mints/"+base58.Encode(mintKey)+"/metadata", nil), http.StatusUnprocessableEntity, "")
}

func saveMints(t *testing.T, s mint.Store, n int) []*mint.Record {
	var records []*mint.Record
	for i := 0; i < n; i++ {
		sig := make([]byte, ed25519.SignatureSize)
		sig[0] = byte(i + 1)

		record := &mint.Record{
			Mint:      testutil.NewAddress(t),
			Authority: testutil.NewAddress(t),
			Decimals:  9,
			Signature: base58.Encode(sig),
			CreatedAt: time.Now(),
		}
		require.NoError(t, s.Save(context.Background(), record))
		records = append(records, record)
	}
	return records
}

func TestListMints(t *testing.T) {
	e := setup(t)

	rec := e.do(http.MethodGet, "/v1/mints", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mints":[]`)

	records := saveMints(t, e.mints, 3)

	rec = e.do(http.MethodGet, "/v1/mints?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page MintListResponse
	testutil.DecodeJSON(t, rec, &page)
	require.Len(t, page.Mints, 2)
	assert.Equal(t, records[0].Mint, page.Mints[0].Mint)
	assert.Equal(t, records[0].Signature, page.Mints[0].Signature)
	require.NotEmpty(t, page.NextCursor)

	rec = e.do(http.MethodGet, "/v1/mints?limit=2&cursor="+page.NextCursor, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	page = MintListResponse{}
	testutil.DecodeJSON(t, rec, &page)
	require.Len(t, page.Mints, 1)
	assert.Equal(t, records[2].Mint, page.Mints[0].Mint)
	assert.Empty(t, page.NextCursor)

	rec = e.do(http.MethodGet, "/v1/mints?order=desc", nil)
	page = MintListResponse{}
	testutil.DecodeJSON(t, rec, &page)
	require.Len(t, page.Mints, 3)
	assert.Equal(t, records[2].Mint, page.Mints[0].Mint)

	testutil.AssertJSONError(t, e.do(http.MethodGet, "/v1/mints?cursor=0OIl", nil), http.StatusBadRequest, "invalid cursor")
	testutil.AssertJSONError(t, e.do(http.MethodGet, "/v1/mints?limit=-1", nil), http.StatusBadRequest, "invalid limit")
	testutil.AssertJSONError(t, e.do(http.MethodGet, "/v1/mints?order=up", nil), http.StatusBadRequest, "invalid order")

	next := query.ToCursor(records[2].Id).ToBase58()
	rec = e.do(http.MethodGet, "/v1/mints?cursor="+next, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mints":[]`)
}

func TestTokens(t *testing.T) {
	e := setup(t)

	rec := e.do(http.MethodGet, "/v1/swap/tokens", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tokens []swap.Token
	testutil.DecodeJSON(t, rec, &tokens)
	assert.Equal(t, swap.KnownTokens(), tokens)
}

func TestQuote(t *testing.T) {
	e := setup(t)
	e.swapper.quote = &swap.QuoteResult{
		InputMint:   swap.SolMint,
		OutputMint:  swap.JupMint,
		SwapMode:    jupiter.SwapModeExactOut,
		InAmount:    100_000_000,
		OutAmount:   2_500_000,
		UIInAmount:  0.1,
		UIOutAmount: 2.5,
	}

	rec := e.do(http.MethodGet, "/v1/swap/quote?inputMint="+swap.SolMint+"&outputMint="+swap.JupMint+"&amount=2.5&mode=exactout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.5, e.swapper.lastAmount)
	assert.Equal(t, jupiter.SwapModeExactOut, e.swapper.lastMode)

	var resp map[string]interface{}
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, "100000000", resp["inAmount"])
	assert.Equal(t, 0.1, resp["uiInAmount"])

	base := "/v1/swap/quote?inputMint=" + swap.SolMint + "&outputMint=" + swap.JupMint
	testutil.AssertJSONError(t, e.do(http.MethodGet, base+"&amount=abc", nil), http.StatusBadRequest, "invalid amount")
	testutil.AssertJSONError(t, e.do(http.MethodGet, base+"&amount=1&mode=sideways", nil), http.StatusBadRequest, "")
	testutil.AssertJSONError(t, e.do(http.MethodGet, "/v1/swap/quote?inputMint=bad&outputMint="+swap.JupMint+"&amount=1", nil), http.StatusBadRequest, "invalid inputMint")

	e.swapper.err = jupiter.ErrNoRoute
	testutil.AssertJSONError(t, e.do(http.MethodGet, base+"&amount=1", nil), http.StatusNotFound, jupiter.ErrNoRoute.Error())

	e.swapper.err = swap.ErrInvalidAmount
	testutil.AssertJSONError(t, e.do(http.MethodGet, base+"&amount=0", nil), http.StatusBadRequest, "")

	e.swapper.err = errors.Wrapf(swap.ErrInvalidAmount, "%v overflows", 1e30)
	testutil.AssertJSONError(t, e.do(http.MethodGet, base+"&amount=1e30", nil), http.StatusBadRequest, "")

	e.swapper.err = errors.New("aggregator unavailable")
	testutil.AssertJSONError(t, e.do(http.MethodGet, base+"&amount=1", nil), http.StatusInternalServerError, "internal error")
}

func TestSwapTransaction(t *testing.T) {
	e := setup(t)
	e.swapper.encoded = "AQID"
	e.swapper.quote = &swap.QuoteResult{InAmount: 1}

	user := testutil.NewAddress(t)
	rec := e.do(http.MethodPost, "/v1/swap/transaction", SwapTransactionRequest{
		InputMint:     swap.SolMint,
		OutputMint:    swap.JupMint,
		Amount:        0.1,
		UserPublicKey: user,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SwapTransactionResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, "AQID", resp.SwapTransaction)
	assert.EqualValues(t, 1, resp.Quote.InAmount)
	assert.Equal(t, 0.1, e.swapper.lastAmount)

	rec = e.do(http.MethodPost, "/v1/swap/transaction", SwapTransactionRequest{
		InputMint:     swap.SolMint,
		OutputMint:    swap.JupMint,
		Amount:        0.1,
		UserPublicKey: "nope",
	})
	testutil.AssertJSONError(t, rec, http.StatusBadRequest, "invalid userPublicKey")

	req := httptest.NewRequest(http.MethodPost, "/v1/swap/transaction", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	testutil.AssertJSONError(t, rec, http.StatusBadRequest, "invalid request body")

	testutil.AssertJSONError(t, e.do(http.MethodGet, "/v1/swap/transaction", nil), http.StatusMethodNotAllowed, "")
}

func TestRelay(t *testing.T) {
	e := setup(t)
	e.swapper.sig = solana.Signature{1, 2, 3}

	rec := e.do(http.MethodPost, "/v1/transactions", RelayRequest{Transaction: "signed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "signed", e.swapper.lastRelay)

	var resp RelayResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, e.swapper.sig.String(), resp.Signature)

	e.swapper.err = swap.ErrNotFullySigned
	testutil.AssertJSONError(t, e.do(http.MethodPost, "/v1/transactions", RelayRequest{Transaction: "x"}), http.StatusBadRequest, swap.ErrNotFullySigned.Error())

	e.swapper.err = errors.Wrap(solana.NewTransactionError(solana.TransactionErrorAccountInUse), "submit failed")
	testutil.AssertJSONError(t, e.do(http.MethodPost, "/v1/transactions", RelayRequest{Transaction: "x"}), http.StatusUnprocessableEntity, "AccountInUse")
}

func TestCreateMint(t *testing.T) {
	e := setup(t)
	e.minter.record = &mint.Record{Mint: "mint-address", Signature: "signature"}

	rec := e.do(http.MethodPost, "/api/createMint", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CreateMintResponse
	testutil.DecodeJSON(t, rec, &resp)
	assert.Equal(t, CreateMintResponse{Mint: "mint-address", TxSignature: "signature"}, resp)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		testutil.AssertJSONError(t, e.do(method, "/api/createMint", nil), http.StatusMethodNotAllowed, "Method not allowed")
	}
	assert.Equal(t, 1, e.minter.calls)

	e.minter.err = errors.New("blockhash not found")
	testutil.AssertJSONError(t, e.do(http.MethodPost, "/api/createMint", nil), http.StatusInternalServerError, "Error creating mint")
}

func TestCreateMint_NoAuthority(t *testing.T) {
	e := setup(t, func(c *Config) { c.Minter = nil })

	testutil.AssertJSONError(t, e.do(http.MethodPost, "/api/createMint", nil), http.StatusInternalServerError, "Error creating mint")
}

func TestCreateMint_RateLimited(t *testing.T) {
	e := setup(t, func(c *Config) {
		c.CreateMintLimiter = tgrate.NewLocalRateLimiter(rate.Limit(0.001), 1)
	})
	e.minter.record = &mint.Record{Mint: "mint-address", Signature: "signature"}

	require.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/createMint", nil).Code)
	testutil.AssertJSONError(t, e.do(http.MethodPost, "/api/createMint", nil), http.StatusTooManyRequests, "Too many requests")
	assert.Equal(t, 1, e.minter.calls)
}

func TestNotFound(t *testing.T) {
	e := setup(t)
	testutil.AssertJSONError(t, e.do(http.MethodGet, "/v1/unknown", nil), http.StatusNotFound, "not found")
}

func TestMetrics(t *testing.T) {
	e := setup(t)

	owner := testutil.NewAddress(t)
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/v1/wallets/"+owner+"/balance", nil).Code)
	require.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/v1/wallets/bad/balance", nil).Code)

	rec := e.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `tunegate_http_requests_total{code="200",method="GET",route="/v1/wallets/{owner}/balance"} 1`)
	assert.Contains(t, body, `tunegate_http_requests_total{code="400",method="GET",route="/v1/wallets/{owner}/balance"} 1`)
	assert.Contains(t, body, "tunegate_http_request_duration_seconds")
}

func TestPaginationLimit(t *testing.T) {
	limit, ok := paginationLimit("")
	assert.True(t, ok)
	assert.EqualValues(t, query.DefaultLimit, limit)

	limit, ok = paginationLimit("5000")
	assert.True(t, ok)
	assert.EqualValues(t, query.MaxLimit, limit)

	_, ok = paginationLimit("ten")
	assert.False(t, ok)
}
