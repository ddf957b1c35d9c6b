// Package library resolves the music a wallet unlocks by holding tokens.
package library

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tunegate/tunegate-server/pkg/cache"
	"github.com/tunegate/tunegate-server/pkg/metrics"
	"github.com/tunegate/tunegate-server/pkg/offchain"
	"github.com/tunegate/tunegate-server/pkg/solana"
	"github.com/tunegate/tunegate-server/pkg/solana/metadata"
	"github.com/tunegate/tunegate-server/pkg/solana/token"
	sync_util "github.com/tunegate/tunegate-server/pkg/sync"
)

const (
	// minLibraryBalance is the UI amount a wallet must hold for a token to be
	// listed in its library.
	minLibraryBalance = 1.0

	DefaultConcurrency = 8
	DefaultCacheBudget = 1024
	DefaultCacheTTL    = 10 * time.Minute

	documentLockStripes = 64

	metricsStructName = "library.service"
)

var ErrMetadataNotFound = errors.New("metadata account not found")

// Track is a playable token in a wallet's library.
type Track struct {
	Mint   string `json:"mint"`
	Song   string `json:"song"`
	Artist string `json:"artist"`
	Audio  string `json:"audio"`
	Image  string `json:"image"`
}

type Config struct {
	Concurrency int
	CacheBudget int
	CacheTTL    time.Duration
	Registerer  prometheus.Registerer
}

type Service struct {
	log     *logrus.Entry
	sc      solana.Client
	fetcher offchain.Fetcher
	conf    Config
	metrics *serviceMetrics

	metadataCache cache.Cache[*metadata.Metadata]
	documentCache cache.Cache[*offchain.Document]
	documentLocks *sync_util.StripedLock
}

func NewService(sc solana.Client, fetcher offchain.Fetcher, conf Config) *Service {
	if conf.Concurrency <= 0 {
		conf.Concurrency = DefaultConcurrency
	}
	if conf.CacheBudget <= 0 {
		conf.CacheBudget = DefaultCacheBudget
	}
	if conf.CacheTTL <= 0 {
		conf.CacheTTL = DefaultCacheTTL
	}

	return &Service{
		log:           logrus.StandardLogger().WithField("type", "library/service"),
		sc:            sc,
		fetcher:       fetcher,
		conf:          conf,
		metrics:       newServiceMetrics(conf.Registerer),
		metadataCache: cache.New[*metadata.Metadata](conf.CacheBudget, conf.CacheTTL),
		documentCache: cache.New[*offchain.Document](conf.CacheBudget, conf.CacheTTL),
		documentLocks: sync_util.NewStripedLock(documentLockStripes),
	}
}

// GetLibrary returns the tracks unlocked by the tokens owner holds, in token
// account order. Tokens whose metadata can't be resolved are skipped.
func (s *Service) GetLibrary(ctx context.Context, owner ed25519.PublicKey) (tracks []*Track, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetLibrary")
	defer tracer.End()
	defer func() { tracer.OnError(err) }()

	log := s.log.WithFields(logrus.Fields{
		"method": "GetLibrary",
		"owner":  base58.Encode(owner),
	})

	start := time.Now()
	accounts, err := s.sc.GetParsedTokenAccountsByOwner(owner, token.ProgramKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get token accounts")
	}
	s.metrics.scans.Inc()

	var held []solana.ParsedTokenAccount
	for _, account := range accounts {
		if account.UIAmount >= minLibraryBalance {
			held = append(held, account)
		}
	}

	results := make([]*Track, len(held))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.conf.Concurrency)
	for i, account := range held {
		g.Go(func() error {
			track, err := s.resolveTrack(gctx, account.Mint)
			if err != nil {
				s.metrics.skipped.WithLabelValues(skipReason(err)).Inc()
				log.WithError(err).WithField("mint", base58.Encode(account.Mint)).Debug("skipping token")
				return nil
			}

			results[i] = track
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tracks = make([]*Track, 0, len(results))
	for _, track := range results {
		if track != nil {
			tracks = append(tracks, track)
		}
	}
	s.metrics.tracks.Add(float64(len(tracks)))
	metrics.RecordCount(ctx, "Library/Tracks", uint64(len(tracks)))
	metrics.RecordDuration(ctx, "Library/ScanDuration", time.Since(start))

	tracer.AddAttribute("tracks", len(tracks))
	return tracks, nil
}

// errNoAudio marks documents that don't link to audio.
var errNoAudio = errors.New("document has no audio")

var errEmptyURI = errors.New("metadata uri is empty")

func (s *Service) resolveTrack(ctx context.Context, mint ed25519.PublicKey) (*Track, error) {
	md, err := s.GetMetadata(ctx, mint)
	if err != nil {
		return nil, err
	}

	uri := md.URI()
	if len(uri) == 0 {
		return nil, errEmptyURI
	}

	doc, err := s.getDocument(ctx, md.Mint.String(), uri)
	if err != nil {
		return nil, err
	}
	if !doc.HasAudio() {
		return nil, errNoAudio
	}

	return &Track{
		Mint:   base58.Encode(mint),
		Song:   doc.Symbol,
		Artist: doc.Name,
		Audio:  doc.Audio,
		Image:  doc.Image,
	}, nil
}

// HasAccess reports whether owner holds any amount of gatingMint.
func (s *Service) HasAccess(ctx context.Context, owner, gatingMint ed25519.PublicKey) (ok bool, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "HasAccess")
	defer tracer.End()
	defer func() { tracer.OnError(err) }()

	accounts, err := s.sc.GetParsedTokenAccountsByOwner(owner, token.ProgramKey)
	if err != nil {
		return false, errors.Wrap(err, "failed to get token accounts")
	}

	for _, account := range accounts {
		if bytes.Equal(account.Mint, gatingMint) && account.UIAmount > 0 {
			return true, nil
		}
	}
	return false, nil
}

// GetMetadata returns the decoded metadata account of mint.
func (s *Service) GetMetadata(ctx context.Context, mint ed25519.PublicKey) (*metadata.Metadata, error) {
	key := base58.Encode(mint)
	if md, ok := s.metadataCache.Retrieve(key); ok {
		s.metrics.cacheHits.WithLabelValues("metadata").Inc()
		return md.Clone(), nil
	}

	address, err := metadata.GetMetadataAddress(mint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive metadata address")
	}

	info, err := s.sc.GetAccountInfo(address, solana.CommitmentConfirmed)
	if err == solana.ErrNoAccountInfo {
		return nil, ErrMetadataNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to get metadata account")
	}

	md, err := metadata.Unmarshal(info.Data)
	if err != nil {
		return nil, err
	}

	s.metadataCache.Upsert(key, md, 1)
	return md.Clone(), nil
}

func (s *Service) getDocument(ctx context.Context, mint, uri string) (*offchain.Document, error) {
	// Keyed by uri as well, so mutable metadata pointing somewhere new
	// isn't served a stale document.
	key := mint + "|" + uri
	if doc, ok := s.documentCache.Retrieve(key); ok {
		s.metrics.cacheHits.WithLabelValues("document").Inc()
		return doc, nil
	}

	// Concurrent scans of the same token wait on a single fetch.
	mu := s.documentLocks.Get([]byte(key))
	mu.Lock()
	defer mu.Unlock()

	if doc, ok := s.documentCache.Retrieve(key); ok {
		s.metrics.cacheHits.WithLabelValues("document").Inc()
		return doc, nil
	}

	doc, err := s.fetcher.Fetch(ctx, uri)
	if err != nil {
		return nil, err
	}

	s.documentCache.Upsert(key, doc, 1)
	return doc, nil
}

// FlushCaches drops every cached metadata account and document.
func (s *Service) FlushCaches() {
	s.metadataCache.Clear()
	s.documentCache.Clear()
}

func skipReason(err error) string {
	var decodeErr *metadata.DecodeError

	switch {
	case errors.Is(err, ErrMetadataNotFound):
		return "no_metadata"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.Is(err, errEmptyURI):
		return "empty_uri"
	case errors.Is(err, errNoAudio):
		return "no_audio"
	case errors.Is(err, offchain.ErrInvalidURI):
		return "invalid_uri"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "fetch"
}
