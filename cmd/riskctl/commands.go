package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"riskengine/internal/api"
	"riskengine/internal/catalog"
	"riskengine/internal/config"
	"riskengine/internal/engine"
	"riskengine/internal/ingest"
	"riskengine/internal/ingest/wsingest"
	"riskengine/internal/rules"
	"riskengine/internal/sink/httpsink"
	"riskengine/internal/store"
	"riskengine/internal/store/sqlitestore"
	"riskengine/pkg/types"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "riskctl",
	Short: "riskctl operates the risk-control engine",
	Long:  "riskctl loads, runs, and manually exercises the risk-control engine.",
}

func init() {
	registerPersistentFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replCmd)
}

// registerPersistentFlags wires flags shared by every subcommand
// directly against the pflag.FlagSet cobra.Command exposes — the same
// split the pack's CLI entry points use between cobra for command
// structure and pflag for the flags themselves.
func registerPersistentFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&cfgPath, "config", "c", "configs/config.yaml", "path to config file")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine against its configured ingest adapter and API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEngine(cmd.Context())
	},
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Open an interactive REPL against a freshly constructed engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepl(cmd.Context())
	},
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// sqliteStoreAdapter adapts sqlitestore.Store's context/timestamp-aware
// API to the engine.Store interface, which neither takes a context nor
// needs more than the latest snapshot.
type sqliteStoreAdapter struct {
	s *sqlitestore.Store
}

func (a sqliteStoreAdapter) Save(blob []byte) error {
	return a.s.Save(context.Background(), time.Now().UnixNano(), blob)
}

func (a sqliteStoreAdapter) Load() ([]byte, error) {
	return a.s.LoadLatest(context.Background())
}

func buildStore(cfg config.StoreConfig) (engine.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		s, err := sqlitestore.Open(context.Background(), cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return sqliteStoreAdapter{s: s}, nil
	default:
		s, err := store.Open(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		return s, nil
	}
}

// noopSink logs nothing and simply drops every action; it is the
// engine's sink when no webhook is configured, e.g. a local repl
// session with no downstream gateway to call.
type noopSink struct{}

func (noopSink) Deliver(ctx context.Context, a types.Action, reasons []string) error {
	return nil
}

func buildSink(cfg config.SinkConfig, logger *slog.Logger) engine.Sink {
	if cfg.WebhookURL == "" {
		return noopSink{}
	}
	return httpsink.New(cfg.WebhookURL, cfg.Timeout, cfg.RetryCount, logger)
}

// builtEngine bundles everything buildEngine constructs so callers
// (run vs. repl) can decide which pieces they actually need.
type builtEngine struct {
	engine *engine.Engine
	reg    *prometheus.Registry
	hub    *api.Hub
}

// buildEngine constructs an engine from cfg: catalog, store, sink
// (optionally broadcasting through an inspection-API hub), metrics
// registry, and every configured rule, then restores its last
// snapshot. withHub controls whether a Hub is created and its
// broadcasting sink wrapper installed — the run command wants one
// whenever its API is enabled; the repl never does.
func buildEngine(cfg *config.Config, logger *slog.Logger, withHub bool) (*builtEngine, error) {
	cat, err := catalog.LoadSeed(cfg.Catalog.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog seed: %w", err)
	}

	st, err := buildStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	sink := buildSink(cfg.Sink, logger)

	var hub *api.Hub
	if withHub {
		hub = api.NewHub(logger)
		sink = api.NewBroadcastSink(sink, hub)
	}

	reg := prometheus.NewRegistry()

	eng, err := engine.New(cat, 1<<20, sink, st, reg, logger)
	if err != nil {
		return nil, fmt.Errorf("construct engine: %w", err)
	}

	rs, err := rules.FromConfig(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("build rules: %w", err)
	}
	eng.ReplaceRules(rs)

	if err := eng.Restore(); err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}

	return &builtEngine{engine: eng, reg: reg, hub: hub}, nil
}

func runEngine(ctx context.Context) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.Logging)

	built, err := buildEngine(cfg, logger, cfg.API.Enabled)
	if err != nil {
		return err
	}
	eng := built.engine

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API, eng, built.hub, built.reg, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("inspection api failed", "error", err)
			}
		}()
		logger.Info("inspection api started", "port", cfg.API.Port)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	switch {
	case cfg.Ingest.WSURL != "":
		var throttle *wsingest.TokenBucket
		if cfg.Ingest.RateLimitPerSec > 0 {
			throttle = wsingest.NewTokenBucket(float64(cfg.Ingest.RateLimitBurst), cfg.Ingest.RateLimitPerSec)
		}
		feed := wsingest.New(cfg.Ingest.WSURL, throttle, logger)
		go feed.Run(runCtx)
		go driveWSFeed(runCtx, eng, feed)

	case cfg.Ingest.RestURL != "":
		pollInterval := cfg.Ingest.PollInterval
		if pollInterval <= 0 {
			pollInterval = 5 * time.Second
		}
		maxPages := cfg.Ingest.MaxPages
		if maxPages <= 0 {
			maxPages = 10
		}
		ingestor := ingest.New(cfg.Ingest.RestURL, pollInterval, maxPages, logger)
		go ingestor.Run(runCtx)
		go driveBatches(runCtx, eng, ingestor)

	default:
		logger.Warn("no ingest source configured (ingest.ws_url / ingest.rest_url both empty)")
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	snapTicker := time.NewTicker(cfg.Snapshot.Interval)
	defer snapTicker.Stop()

	logger.Info("risk-control engine started", "rules", eng.RuleNames())

	for {
		select {
		case <-runCtx.Done():
			if apiServer != nil {
				apiServer.Stop()
			}
			return nil
		case now := <-ticker.C:
			eng.Tick(runCtx, now.UnixNano())
		case <-snapTicker.C:
			if err := eng.Snapshot(); err != nil {
				logger.Error("snapshot failed", "error", err)
			}
		}
	}
}

func driveWSFeed(ctx context.Context, eng *engine.Engine, feed *wsingest.Feed) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-feed.OrderEvents():
			_ = eng.OnOrder(ctx, o)
		case t := <-feed.TradeEvents():
			_ = eng.OnTrade(ctx, t)
		case c := <-feed.CancelEvents():
			_ = eng.OnCancel(ctx, c)
		}
	}
}

func driveBatches(ctx context.Context, eng *engine.Engine, ingestor *ingest.Ingestor) {
	for {
		select {
		case <-ctx.Done():
			return
		case result := <-ingestor.Results():
			for _, o := range result.Orders {
				_ = eng.OnOrder(ctx, o)
			}
			for _, t := range result.Trades {
				_ = eng.OnTrade(ctx, t)
			}
			for _, c := range result.Cancels {
				_ = eng.OnCancel(ctx, c)
			}
		}
	}
}

func runRepl(ctx context.Context) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Logging)

	built, err := buildEngine(cfg, logger, false)
	if err != nil {
		return err
	}

	Repl(ctx, built.engine)
	return nil
}
