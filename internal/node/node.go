// Package node assembles the swap program, its host ledger and the HTTP
// surface from configuration, and runs them until the context ends.
package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/token-swap/internal/config"
	"github.com/rovshanmuradov/token-swap/internal/events"
	"github.com/rovshanmuradov/token-swap/internal/export"
	"github.com/rovshanmuradov/token-swap/internal/ledger"
	"github.com/rovshanmuradov/token-swap/internal/ledger/memory"
	"github.com/rovshanmuradov/token-swap/internal/ledger/postgres"
	"github.com/rovshanmuradov/token-swap/internal/ledger/redisledger"
	"github.com/rovshanmuradov/token-swap/internal/program"
	"github.com/rovshanmuradov/token-swap/internal/server"
	"github.com/rovshanmuradov/token-swap/internal/utils/metrics"
)

const shutdownTimeout = 15 * time.Second

type Node struct {
	cfg    *config.Config
	logger *zap.Logger

	Ledger  ledger.Ledger
	Bus     *events.Bus
	Metrics *metrics.Collector
	Journal *export.Journal
	Tape    *export.Tape // nil unless swap_tape_file is set
	Program *program.Program
	Server  *server.Server

	shutdown *ShutdownHandler
}

// New opens the configured ledger backend and wires every component to it.
// On error everything opened so far is closed again.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (n *Node, err error) {
	programID, err := cfg.Program()
	if err != nil {
		return nil, err
	}

	n = &Node{
		cfg:      cfg,
		logger:   logger.Named("node"),
		shutdown: NewShutdownHandler(logger, shutdownTimeout),
	}
	defer func() {
		if err != nil {
			_ = n.shutdown.Shutdown(context.Background())
		}
	}()

	n.Ledger, err = OpenLedger(ctx, cfg.Ledger, logger)
	if err != nil {
		return nil, err
	}
	n.shutdown.AddCloser("ledger", n.Ledger)

	// лента закрывается после шины, чтобы дописать последние сделки
	if cfg.SwapTapeFile != "" {
		n.Tape, err = export.OpenTape(cfg.SwapTapeFile, export.DefaultTapeFlushInterval, logger)
		if err != nil {
			return nil, err
		}
		n.shutdown.AddCloser("swap tape", n.Tape)
	}

	n.Bus = events.NewBus(logger, cfg.EventBuffer)
	n.shutdown.Add("events", n.Bus.Shutdown)

	n.Metrics = metrics.NewCollector()
	n.Metrics.WatchBus(n.Bus.Stats)
	n.Journal = export.NewJournal(cfg.JournalSize)
	n.Bus.Subscribe(events.AllEvents, events.NewLogHandler(logger))
	n.Bus.Subscribe(events.AllEvents, n.Metrics)
	n.Bus.Subscribe(events.SwapExecuted, n.Journal)
	if n.Tape != nil {
		n.Bus.Subscribe(events.SwapExecuted, n.Tape)
	}

	n.Program, err = program.New(n.Ledger, program.Options{
		ProgramID:     programID,
		MaxFeeRateBps: cfg.Pool.MaxFeeRateBps,
		Events:        n.Bus,
	}, logger)
	if err != nil {
		return nil, err
	}

	h := &server.Handlers{
		Program: n.Program,
		Ledger:  n.Ledger,
		Metrics: n.Metrics,
		Journal: n.Journal,
		Logger:  logger,
	}
	if cfg.FaucetEnabled {
		h.Faucet = server.NewFaucet(n.Ledger, logger)
		n.logger.Warn("Faucet enabled: anyone with API access can mint test tokens")
	}
	n.Server, err = server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:         cfg.ListenAddr,
			DevMode:      cfg.DebugLogging,
			APIKey:       cfg.APIKey,
			RateLimitRPS: cfg.RateLimitRPS,
			RateBurst:    cfg.RateBurst,
		},
	})
	if err != nil {
		return nil, err
	}
	n.shutdown.Add("http", n.Server.Shutdown)

	return n, nil
}

// OpenLedger connects the configured backend. Postgres tables are migrated
// and redis is pinged before the ledger is returned.
func OpenLedger(ctx context.Context, cfg config.LedgerConfig, logger *zap.Logger) (ledger.Ledger, error) {
	retry := ledger.RetryPolicy{MaxTries: uint(cfg.MaxRetries)}

	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		return redisledger.New(client, redisledger.Options{Retry: retry}, logger), nil
	case config.BackendPostgres:
		l, err := postgres.Open(cfg.PostgresURL, retry, logger)
		if err != nil {
			return nil, err
		}
		if err := l.Migrate(ctx); err != nil {
			_ = l.Close()
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

// Run serves HTTP until ctx is cancelled or the listener fails, then stops
// every component: the server first, the ledger last.
func (n *Node) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n.logger.Info("HTTP server listening",
			zap.String("addr", n.cfg.ListenAddr),
			zap.String("program_id", n.Program.ProgramID().String()),
			zap.String("ledger", n.cfg.Ledger.Backend))
		if err := n.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		n.logger.Info("Stopping", zap.NamedError("cause", context.Cause(gctx)))
		return n.shutdown.Shutdown(context.WithoutCancel(ctx))
	})

	return g.Wait()
}
