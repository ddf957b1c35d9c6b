package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/tunegate/tunegate-server/pkg/app"
	"github.com/tunegate/tunegate-server/pkg/data/mint"
	"github.com/tunegate/tunegate-server/pkg/data/mint/memory"
	mintpg "github.com/tunegate/tunegate-server/pkg/data/mint/postgres"
	pg "github.com/tunegate/tunegate-server/pkg/database/postgres"
	"github.com/tunegate/tunegate-server/pkg/jupiter"
	"github.com/tunegate/tunegate-server/pkg/library"
	"github.com/tunegate/tunegate-server/pkg/minter"
	"github.com/tunegate/tunegate-server/pkg/offchain"
	tgrate "github.com/tunegate/tunegate-server/pkg/rate"
	"github.com/tunegate/tunegate-server/pkg/server"
	"github.com/tunegate/tunegate-server/pkg/solana"
	"github.com/tunegate/tunegate-server/pkg/solana/token"
	"github.com/tunegate/tunegate-server/pkg/swap"
)

const limiterIdleTimeout = time.Hour

var configPath string

func main() {
	root := &cobra.Command{
		Use:          "tunegate",
		Short:        "token gated music library, swaps and mint creation on solana",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (env vars override it)")

	root.AddCommand(serveCmd())
	root.AddCommand(metadataCmd())
	root.AddCommand(libraryCmd())
	root.AddCommand(accessCmd())
	root.AddCommand(balanceCmd())
	root.AddCommand(mintInfoCmd())
	root.AddCommand(tokensCmd())
	root.AddCommand(quoteCmd())
	root.AddCommand(swapCmd())
	root.AddCommand(createMintCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// deps holds the services shared by every command.
type deps struct {
	config   app.Config
	registry *prometheus.Registry
	chain    solana.Client
	library  *library.Service
	swapper  *swap.Service
}

func load() *deps {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		die(err)
	}
	app.ConfigureLogger(config, nil)

	registry := prometheus.NewRegistry()

	var opts []solana.Option
	if config.SolanaRpcRateLimit > 0 {
		opts = append(opts, solana.WithRateLimit(config.SolanaRpcRateLimit))
	}
	chain := solana.New(solana.EndpointFor(config.SolanaRpcEndpoint), opts...)

	return &deps{
		config:   config,
		registry: registry,
		chain:    chain,
		library: library.NewService(chain, offchain.NewFetcher(nil), library.Config{
			Concurrency: config.LibraryConcurrency,
			CacheBudget: config.MetadataCacheBudget,
			Registerer:  registry,
		}),
		swapper: swap.NewService(jupiter.NewClient(config.JupiterBaseUrl, nil), chain, swap.Config{
			SlippageBps: config.SwapSlippageBps,
			Registerer:  registry,
		}),
	}
}

func (d *deps) mintStore(ctx context.Context) mint.Store {
	if len(d.config.PostgresDSN) == 0 {
		logrus.Warn("no postgres dsn configured, mint records are kept in memory")
		return memory.New()
	}

	db, err := pg.Open(ctx, pg.Config{DSN: d.config.PostgresDSN})
	if err != nil {
		die(err)
	}
	if err := mintpg.CreateTable(ctx, db); err != nil {
		die(errors.Wrap(err, "failed to create mint table"))
	}
	return mintpg.New(db)
}

// minter returns nil when no backend wallet is configured.
func (d *deps) minter(store mint.Store) *minter.Minter {
	authority, err := minter.LoadAuthority(d.config.BackendWalletSecret)
	if err == minter.ErrMissingAuthority {
		return nil
	} else if err != nil {
		die(err)
	}

	return minter.New(d.chain, store, authority, minter.Config{Registerer: d.registry})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the http api",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			d := load()

			metricsProvider, err := app.NewMetricsProvider(d.config)
			if err != nil {
				die(err)
			}
			app.ConfigureLogger(d.config, metricsProvider)

			d.registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			store := d.mintStore(ctx)

			conf := server.Config{
				Library:         d.library,
				Swapper:         d.swapper,
				Balance:         d.chain,
				Mints:           store,
				Registerer:      d.registry,
				Gatherer:        d.registry,
				MetricsProvider: metricsProvider,
			}
			if m := d.minter(store); m != nil {
				conf.Minter = m
				logrus.WithField("authority", base58.Encode(m.Authority())).Info("mint creation enabled")
			} else {
				logrus.Warn("no backend wallet configured, mint creation is disabled")
			}

			jobs := []app.Job{
				{Name: "flush_library_caches", Schedule: d.config.CacheFlushSchedule, Run: d.library.FlushCaches},
			}
			if d.config.CreateMintRateLimit > 0 {
				limiter := tgrate.NewLocalRateLimiter(rate.Limit(d.config.CreateMintRateLimit), 1)
				conf.CreateMintLimiter = limiter
				jobs = append(jobs, app.Job{
					Name:     "prune_create_mint_limiter",
					Schedule: "@every 10m",
					Run:      func() { limiter.Prune(limiterIdleTimeout) },
				})
			}

			if err := app.Run(ctx, d.config, server.New(conf).Handler(), jobs...); err != nil {
				die(err)
			}
		},
	}
}

func metadataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metadata <mint>",
		Short: "decode the metadata account of a mint",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			d := load()
			mintKey := parseKey(args[0])

			md, err := d.library.GetMetadata(cmd.Context(), mintKey)
			if err != nil {
				die(err)
			}

			fmt.Printf("name: %s\n", md.Name())
			fmt.Printf("symbol: %s\n", md.Symbol())
			fmt.Printf("uri: %s\n", md.URI())
			fmt.Printf("update authority: %s\n", md.UpdateAuthority)
			fmt.Printf("seller fee: %d bps\n", md.Data.SellerFeeBasisPoints)
			for _, c := range md.Data.Creators {
				fmt.Printf("creator: %s share=%d verified=%t\n", c.Address, c.Share, c.IsVerified())
			}
			fmt.Printf("mutable: %t\n", md.IsMutable)
		},
	}
}

func libraryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "library <owner>",
		Short: "list the playable tracks held by a wallet",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			d := load()

			tracks, err := d.library.GetLibrary(cmd.Context(), parseKey(args[0]))
			if err != nil {
				die(err)
			}
			if len(tracks) == 0 {
				fmt.Println("no tracks")
				return
			}

			for _, track := range tracks {
				fmt.Printf("%s - %s\n  mint: %s\n  audio: %s\n", track.Artist, track.Song, track.Mint, track.Audio)
			}
		},
	}
}

func accessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "access <owner> <mint>",
		Short: "check whether a wallet holds a gating token",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			d := load()

			ok, err := d.library.HasAccess(cmd.Context(), parseKey(args[0]), parseKey(args[1]))
			if err != nil {
				die(err)
			}
			fmt.Printf("access: %t\n", ok)
		},
	}
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <owner>",
		Short: "show the sol balance of a wallet",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			d := load()

			lamports, err := d.chain.GetBalance(parseKey(args[0]))
			if err != nil {
				die(err)
			}
			fmt.Printf("%.9f SOL (%d lamports)\n", float64(lamports)/solana.LamportsPerSol, lamports)
		},
	}
}

func mintInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mint-info <mint>",
		Short: "show the supply and authorities of a token mint",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			d := load()

			m, err := token.NewClient(d.chain).GetMint(parseKey(args[0]), solana.CommitmentConfirmed)
			if err != nil {
				die(err)
			}
			fmt.Printf("supply: %d\n", m.Supply)
			fmt.Printf("decimals: %d\n", m.Decimals)
			if m.MintAuthority != nil {
				fmt.Printf("mint authority: %s\n", base58.Encode(m.MintAuthority))
			}
			if m.FreezeAuthority != nil {
				fmt.Printf("freeze authority: %s\n", base58.Encode(m.FreezeAuthority))
			}
		},
	}
}

func tokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens",
		Short: "list the tokens offered for swaps",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, known := range swap.KnownTokens() {
				fmt.Printf("%-5s %s decimals=%d\n", known.Symbol, known.Mint, known.Decimals)
			}
		},
	}
}

func quoteCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "quote <input mint> <output mint> <amount>",
		Short: "quote a swap",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			d := load()

			swapMode, err := jupiter.ParseSwapMode(mode)
			if err != nil {
				die(err)
			}

			quote, err := d.swapper.Quote(cmd.Context(), args[0], args[1], parseAmount(args[2]), swapMode)
			if err != nil {
				die(err)
			}

			fmt.Printf("in: %v (%d)\n", quote.UIInAmount, quote.InAmount)
			fmt.Printf("out: %v (%d)\n", quote.UIOutAmount, quote.OutAmount)
			fmt.Printf("price impact: %v%%\n", quote.PriceImpactPct)
			fmt.Printf("hops: %d\n", quote.RouteHops)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(jupiter.SwapModeExactIn), "ExactIn or ExactOut")
	return cmd
}

func swapCmd() *cobra.Command {
	var keypairPath string

	cmd := &cobra.Command{
		Use:   "swap <input mint> <output mint> <amount>",
		Short: "execute an exact in swap signed by a local keypair",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			d := load()

			raw, err := os.ReadFile(keypairPath)
			if err != nil {
				die(err)
			}
			signer, err := solana.PrivateKeyFromJSON(raw)
			if err != nil {
				die(err)
			}

			sig, err := d.swapper.Execute(cmd.Context(), signer, args[0], args[1], parseAmount(args[2]))
			if err != nil {
				die(err)
			}
			fmt.Printf("tx: %s\n", sig)
		},
	}

	cmd.Flags().StringVar(&keypairPath, "keypair", "", "path to a json keypair file")
	cmd.MarkFlagRequired("keypair")
	return cmd
}

func createMintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-mint",
		Short: "create a mint owned by the backend wallet",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			d := load()

			m := d.minter(d.mintStore(cmd.Context()))
			if m == nil {
				die(minter.ErrMissingAuthority)
			}

			record, err := m.Create(cmd.Context())
			if err != nil {
				die(err)
			}

			out, _ := json.MarshalIndent(server.CreateMintResponse{
				Mint:        record.Mint,
				TxSignature: record.Signature,
			}, "", "  ")
			fmt.Println(string(out))
		},
	}
}

func parseKey(s string) ed25519.PublicKey {
	key, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		die(errors.Wrapf(err, "invalid address %q", s))
	}
	return key
}

func parseAmount(s string) float64 {
	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		die(fmt.Errorf("invalid amount: %s", s))
	}
	return amount
}

func die(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
