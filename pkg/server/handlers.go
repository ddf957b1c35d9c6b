package server

import (
	"crypto/ed25519"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tunegate/tunegate-server/pkg/data/mint"
	"github.com/tunegate/tunegate-server/pkg/database/query"
	"github.com/tunegate/tunegate-server/pkg/jupiter"
	"github.com/tunegate/tunegate-server/pkg/library"
	"github.com/tunegate/tunegate-server/pkg/solana"
	"github.com/tunegate/tunegate-server/pkg/solana/metadata"
	"github.com/tunegate/tunegate-server/pkg/swap"
)

const (
	maxRequestBodyBytes = 1 << 20

	errCreatingMint = "Error creating mint"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.StandardLogger().WithError(err).Warn("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, method string, err error) {
	s.log.WithError(err).WithFields(logrus.Fields{
		"method":     method,
		"request_id": RequestIDFromContext(r.Context()),
	}).Warn("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

// publicKeyParam decodes a base58 path parameter, writing a 400 when invalid.
func publicKeyParam(w http.ResponseWriter, r *http.Request, name string) (ed25519.PublicKey, bool) {
	raw := chi.URLParam(r, name)
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name+": "+raw)
		return nil, false
	}
	return key, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Millisecond).String(),
	})
}

func (s *Server) balanceHandler(w http.ResponseWriter, r *http.Request) {
	owner, ok := publicKeyParam(w, r, "owner")
	if !ok {
		return
	}

	lamports, err := s.conf.Balance.GetBalance(owner)
	if err != nil {
		s.internalError(w, r, "balance", err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{
		Owner:    base58.Encode(owner),
		Lamports: lamports,
		Sol:      float64(lamports) / solana.LamportsPerSol,
	})
}

func (s *Server) libraryHandler(w http.ResponseWriter, r *http.Request) {
	owner, ok := publicKeyParam(w, r, "owner")
	if !ok {
		return
	}

	tracks, err := s.conf.Library.GetLibrary(r.Context(), owner)
	if err != nil {
		s.internalError(w, r, "library", err)
		return
	}
	if tracks == nil {
		tracks = []*library.Track{}
	}

	writeJSON(w, http.StatusOK, LibraryResponse{
		Owner:  base58.Encode(owner),
		Tracks: tracks,
	})
}

func (s *Server) accessHandler(w http.ResponseWriter, r *http.Request) {
	owner, ok := publicKeyParam(w, r, "owner")
	if !ok {
		return
	}
	gatingMint, ok := publicKeyParam(w, r, "mint")
	if !ok {
		return
	}

	hasAccess, err := s.conf.Library.HasAccess(r.Context(), owner, gatingMint)
	if err != nil {
		s.internalError(w, r, "access", err)
		return
	}

	writeJSON(w, http.StatusOK, AccessResponse{
		Owner:     base58.Encode(owner),
		Mint:      base58.Encode(gatingMint),
		HasAccess: hasAccess,
	})
}

func (s *Server) metadataHandler(w http.ResponseWriter, r *http.Request) {
	mintKey, ok := publicKeyParam(w, r, "mint")
	if !ok {
		return
	}

	md, err := s.conf.Library.GetMetadata(r.Context(), mintKey)

	var decodeErr *metadata.DecodeError
	switch {
	case errors.Is(err, library.ErrMetadataNotFound):
		writeError(w, http.StatusNotFound, "metadata not found")
		return
	case errors.As(err, &decodeErr):
		writeError(w, http.StatusUnprocessableEntity, decodeErr.Error())
		return
	case err != nil:
		s.internalError(w, r, "metadata", err)
		return
	}

	address, err := metadata.GetMetadataAddress(mintKey)
	if err != nil {
		s.internalError(w, r, "metadata", err)
		return
	}

	writeJSON(w, http.StatusOK, toMetadataResponse(base58.Encode(address), md))
}

func (s *Server) listMintsHandler(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	cursor, err := query.CursorFromBase58(params.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	limit, ok := paginationLimit(params.Get("limit"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	direction := query.Ascending
	if order := params.Get("order"); len(order) > 0 {
		direction, err = query.ToOrdering(order)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid order")
			return
		}
	}

	records, err := s.conf.Mints.GetAll(r.Context(), cursor, limit, direction)
	if err != nil && err != mint.ErrNotFound {
		s.internalError(w, r, "mints", err)
		return
	}

	resp := MintListResponse{Mints: []MintResponse{}}
	for _, record := range records {
		resp.Mints = append(resp.Mints, toMintResponse(record))
	}
	if uint64(len(records)) == limit {
		resp.NextCursor = query.ToCursor(records[len(records)-1].Id).ToBase58()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) tokensHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, swap.KnownTokens())
}

func (s *Server) quoteHandler(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	inputMint, outputMint := params.Get("inputMint"), params.Get("outputMint")
	if _, err := solana.PublicKeyFromBase58(inputMint); err != nil {
		writeError(w, http.StatusBadRequest, "invalid inputMint")
		return
	}
	if _, err := solana.PublicKeyFromBase58(outputMint); err != nil {
		writeError(w, http.StatusBadRequest, "invalid outputMint")
		return
	}

	amount, err := strconv.ParseFloat(params.Get("amount"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	mode, err := jupiter.ParseSwapMode(params.Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	quote, err := s.conf.Swapper.Quote(r.Context(), inputMint, outputMint, amount, mode)
	if err != nil {
		s.swapError(w, r, "quote", err)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) swapTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var req SwapTransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := solana.PublicKeyFromBase58(req.UserPublicKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid userPublicKey")
		return
	}
	if _, err := solana.PublicKeyFromBase58(req.InputMint); err != nil {
		writeError(w, http.StatusBadRequest, "invalid inputMint")
		return
	}
	if _, err := solana.PublicKeyFromBase58(req.OutputMint); err != nil {
		writeError(w, http.StatusBadRequest, "invalid outputMint")
		return
	}

	encoded, quote, err := s.conf.Swapper.BuildTransaction(r.Context(), req.InputMint, req.OutputMint, req.Amount, user)
	if err != nil {
		s.swapError(w, r, "swap_transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, SwapTransactionResponse{
		SwapTransaction: encoded,
		Quote:           quote,
	})
}

func (s *Server) relayHandler(w http.ResponseWriter, r *http.Request) {
	var req RelayRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sig, err := s.conf.Swapper.Relay(r.Context(), req.Transaction)
	if err != nil {
		s.swapError(w, r, "relay", err)
		return
	}

	writeJSON(w, http.StatusOK, RelayResponse{Signature: sig.String()})
}

func (s *Server) swapError(w http.ResponseWriter, r *http.Request, method string, err error) {
	var txErr *solana.TransactionError

	switch {
	case errors.Is(err, swap.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, swap.ErrInvalidEncoding), errors.Is(err, swap.ErrNotFullySigned):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jupiter.ErrNoRoute):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &txErr):
		writeError(w, http.StatusUnprocessableEntity, txErr.Error())
	default:
		s.internalError(w, r, method, err)
	}
}

func (s *Server) createMintHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	log := s.log.WithFields(logrus.Fields{
		"method":     "createMint",
		"request_id": RequestIDFromContext(r.Context()),
	})

	allowed, err := s.conf.CreateMintLimiter.Allow(clientAddress(r))
	if err != nil {
		log.WithError(err).Warn("rate limiter failed")
	} else if !allowed {
		writeError(w, http.StatusTooManyRequests, "Too many requests")
		return
	}

	if s.conf.Minter == nil {
		log.Warn("mint creation requested without a backend authority")
		writeError(w, http.StatusInternalServerError, errCreatingMint)
		return
	}

	record, err := s.conf.Minter.Create(r.Context())
	if err != nil {
		log.WithError(err).Warn("failed to create mint")
		writeError(w, http.StatusInternalServerError, errCreatingMint)
		return
	}

	writeJSON(w, http.StatusOK, CreateMintResponse{
		Mint:        record.Mint,
		TxSignature: record.Signature,
	})
}

func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
