// Package server exposes the music library, swap and mint services over HTTP.
package server

import (
	"context"
	"crypto/ed25519"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/tunegate/tunegate-server/pkg/data/mint"
	"github.com/tunegate/tunegate-server/pkg/database/query"
	"github.com/tunegate/tunegate-server/pkg/jupiter"
	"github.com/tunegate/tunegate-server/pkg/library"
	"github.com/tunegate/tunegate-server/pkg/metrics"
	"github.com/tunegate/tunegate-server/pkg/rate"
	"github.com/tunegate/tunegate-server/pkg/solana"
	"github.com/tunegate/tunegate-server/pkg/solana/metadata"
	"github.com/tunegate/tunegate-server/pkg/swap"
)

// Library resolves token gated music.
type Library interface {
	GetLibrary(ctx context.Context, owner ed25519.PublicKey) ([]*library.Track, error)
	HasAccess(ctx context.Context, owner, gatingMint ed25519.PublicKey) (bool, error)
	GetMetadata(ctx context.Context, mint ed25519.PublicKey) (*metadata.Metadata, error)
}

// Swapper quotes, builds and relays swaps.
type Swapper interface {
	Quote(ctx context.Context, inputMint, outputMint string, uiAmount float64, mode jupiter.SwapMode) (*swap.QuoteResult, error)
	BuildTransaction(ctx context.Context, inputMint, outputMint string, uiAmount float64, user ed25519.PublicKey) (string, *swap.QuoteResult, error)
	Relay(ctx context.Context, encoded string) (solana.Signature, error)
}

// Minter creates backend owned mints.
type Minter interface {
	Create(ctx context.Context) (*mint.Record, error)
}

// BalanceGetter returns the lamport balance of an account.
type BalanceGetter interface {
	GetBalance(ed25519.PublicKey) (uint64, error)
}

type Config struct {
	Library Library
	Swapper Swapper
	Balance BalanceGetter
	Mints   mint.Store

	// Minter is nil when no backend authority is configured, in which case
	// mint creation fails.
	Minter Minter

	// CreateMintLimiter limits mint creation per client address.
	CreateMintLimiter rate.Limiter

	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	MetricsProvider *newrelic.Application
}

// Server bundles dependencies for the HTTP API.
type Server struct {
	log     *logrus.Entry
	router  *chi.Mux
	conf    Config
	metrics *metrics.HTTPMetrics
	started time.Time
}

// New constructs a Server with registered routes.
func New(conf Config) *Server {
	if conf.CreateMintLimiter == nil {
		conf.CreateMintLimiter = &rate.NoLimiter{}
	}

	s := &Server{
		log:     logrus.StandardLogger().WithField("type", "server"),
		router:  chi.NewRouter(),
		conf:    conf,
		metrics: metrics.NewHTTPMetrics(conf.Registerer),
		started: time.Now(),
	}

	s.router.Use(
		requestID,
		middleware.RealIP,
		s.recoverer,
		s.observe,
	)

	s.router.Get("/healthz", s.healthzHandler)
	if conf.Gatherer != nil {
		s.router.Handle("/metrics", metrics.Handler(conf.Gatherer))
	}

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/wallets/{owner}/balance", s.balanceHandler)
		r.Get("/wallets/{owner}/library", s.libraryHandler)
		r.Get("/wallets/{owner}/access/{mint}", s.accessHandler)

		r.Get("/mints", s.listMintsHandler)
		r.Get("/mints/{mint}/metadata", s.metadataHandler)

		r.Get("/swap/quote", s.quoteHandler)
		r.Get("/swap/tokens", s.tokensHandler)
		r.Post("/swap/transaction", s.swapTransactionHandler)

		r.Post("/transactions", s.relayHandler)
	})

	// Every method is routed here so that the 405 body is JSON.
	s.router.HandleFunc("/api/createMint", s.createMintHandler)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return s
}

// Handler exposes the underlying router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// paginationLimit parses the limit query parameter.
func paginationLimit(raw string) (uint64, bool) {
	if len(raw) == 0 {
		return query.DefaultLimit, true
	}

	limit, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return query.ClampLimit(limit), true
}
