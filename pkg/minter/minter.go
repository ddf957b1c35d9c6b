// Package minter creates SPL token mints owned by the backend authority.
package minter

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/tunegate/tunegate-server/pkg/data/mint"
	"github.com/tunegate/tunegate-server/pkg/metrics"
	"github.com/tunegate/tunegate-server/pkg/solana"
	"github.com/tunegate/tunegate-server/pkg/solana/system"
	"github.com/tunegate/tunegate-server/pkg/solana/token"
)

const (
	MintDecimals = 9

	DefaultConfirmationTimeout = time.Minute

	defaultPollInterval = time.Second

	metricsStructName = "minter.minter"
)

var ErrMissingAuthority = errors.New("backend wallet secret is not configured")

// LoadAuthority parses the backend wallet secret, a JSON array of 64 bytes.
func LoadAuthority(secret string) (ed25519.PrivateKey, error) {
	if len(strings.TrimSpace(secret)) == 0 {
		return nil, ErrMissingAuthority
	}

	key, err := solana.PrivateKeyFromJSON([]byte(secret))
	if err != nil {
		return nil, errors.Wrap(err, "invalid backend wallet secret")
	}
	return key, nil
}

type Config struct {
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
	Registerer          prometheus.Registerer
}

type Minter struct {
	log       *logrus.Entry
	sc        solana.Client
	store     mint.Store
	authority ed25519.PrivateKey
	conf      Config

	// keygen is replaced in tests.
	keygen func() (ed25519.PublicKey, ed25519.PrivateKey, error)

	created *prometheus.CounterVec
}

func New(sc solana.Client, store mint.Store, authority ed25519.PrivateKey, conf Config) *Minter {
	if conf.ConfirmationTimeout <= 0 {
		conf.ConfirmationTimeout = DefaultConfirmationTimeout
	}
	if conf.PollInterval <= 0 {
		conf.PollInterval = defaultPollInterval
	}

	reg := conf.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Minter{
		log:       logrus.StandardLogger().WithField("type", "minter/minter"),
		sc:        sc,
		store:     store,
		authority: authority,
		conf:      conf,
		keygen: func() (ed25519.PublicKey, ed25519.PrivateKey, error) {
			return ed25519.GenerateKey(rand.Reader)
		},
		created: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: metrics.Name(metrics.MetricMintsCreatedTotal),
			Help: "Number of mint creation attempts, by result.",
		}, []string{"result"}),
	}
}

// Authority returns the backend public key used as payer and mint authority.
func (m *Minter) Authority() ed25519.PublicKey {
	return m.authority.Public().(ed25519.PublicKey)
}

// Create creates and initializes a new mint with the backend as both mint and
// freeze authority, records it, and returns the record once the creating
// transaction is confirmed.
func (m *Minter) Create(ctx context.Context) (record *mint.Record, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Create")
	defer tracer.End()
	defer func() {
		tracer.OnError(err)

		result := "ok"
		if err != nil {
			result = "error"
		}
		m.created.WithLabelValues(result).Inc()
	}()

	authority := m.Authority()

	mintPublic, mintPrivate, err := m.keygen()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate mint keypair")
	}

	log := m.log.WithFields(logrus.Fields{
		"method":    "Create",
		"mint":      base58.Encode(mintPublic),
		"authority": base58.Encode(authority),
	})

	lamports, err := m.sc.GetMinimumBalanceForRentExemption(token.MintAccountSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rent exemption balance")
	}

	txn := solana.NewTransaction(
		authority,
		system.CreateAccount(authority, mintPublic, token.ProgramKey, lamports, token.MintAccountSize),
		token.InitializeMint(mintPublic, authority, authority, MintDecimals),
	)

	bh, err := m.sc.GetLatestBlockhash()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest blockhash")
	}
	txn.SetBlockhash(bh)

	if err := txn.Sign(m.authority, mintPrivate); err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	sig, err := m.sc.SubmitTransaction(txn, solana.CommitmentConfirmed)
	if err != nil {
		log.WithError(err).Warn("failed to submit mint transaction")
		return nil, errors.Wrap(err, "failed to submit transaction")
	}

	log = log.WithField("signature", sig.String())

	pollCtx, cancel := context.WithTimeout(ctx, m.conf.ConfirmationTimeout)
	defer cancel()

	if _, err := solana.PollForConfirmation(pollCtx, m.sc, sig, solana.CommitmentConfirmed, m.conf.PollInterval); err != nil {
		log.WithError(err).Warn("mint transaction not confirmed")
		return nil, err
	}

	record = &mint.Record{
		Mint:      base58.Encode(mintPublic),
		Authority: base58.Encode(authority),
		Decimals:  MintDecimals,
		Signature: sig.String(),
		CreatedAt: time.Now(),
	}
	if m.store != nil {
		if err := m.store.Save(ctx, record); err != nil {
			// The mint is already on chain at this point.
			log.WithError(err).Warn("failed to record mint")
		}
	}

	metrics.RecordEvent(ctx, "MintCreated", map[string]interface{}{
		"mint":      record.Mint,
		"signature": record.Signature,
	})

	log.Info("created mint")
	return record, nil
}
