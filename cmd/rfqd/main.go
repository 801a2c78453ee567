package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"rfqsettle/cmd/internal/passphrase"
	"rfqsettle/config"
	"rfqsettle/core/events"
	"rfqsettle/core/state"
	"rfqsettle/crypto"
	"rfqsettle/native/rfq"
	"rfqsettle/observability"
	"rfqsettle/observability/logging"
	"rfqsettle/observability/metrics"
	telemetry "rfqsettle/observability/otel"
	"rfqsettle/rpc"
	"rfqsettle/rpc/modules"
	"rfqsettle/services/attestor"
	"rfqsettle/services/indexer"
	"rfqsettle/storage"
)

func main() {
	var (
		cfgPath     string
		exportDir   string
		exportSince time.Duration
	)
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to rfqd configuration")
	flag.StringVar(&exportDir, "export-settlements", "", "write a CSV and parquet settlement report to this directory and exit")
	flag.DurationVar(&exportSince, "export-window", 24*time.Hour, "lookback window for -export-settlements")
	flag.Parse()

	if err := run(cfgPath, exportDir, exportSince); err != nil {
		fmt.Fprintf(os.Stderr, "rfqd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath, exportDir string, exportSince time.Duration) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser := logging.SetupWithFile(cfg.ServiceName, cfg.Logging.Env, logging.FileConfig{
		Path:       cfg.ResolvePath(cfg.Logging.File),
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   true,
	})
	defer logCloser.Close()

	var idx *indexer.Indexer
	if cfg.Indexer.Path != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		target := cfg.Indexer.Path
		if !indexer.IsPostgres(target) {
			target = cfg.ResolvePath(target)
		}
		idx, err = indexer.Open(target)
		if err != nil {
			return fmt.Errorf("open indexer: %w", err)
		}
		defer idx.Close()
		idx.SetLogger(logger)
		idx.SetMetrics(metrics.Indexer())
	}

	if exportDir != "" {
		if idx == nil {
			return errors.New("settlement export requires indexer.Path")
		}
		end := time.Now().UTC()
		report, err := idx.ExportSettlements(exportDir, end.Add(-exportSince), end)
		if err != nil {
			return fmt.Errorf("export settlements: %w", err)
		}
		logger.Info("settlement report written",
			slog.String("csv", report.CSVPath),
			slog.String("parquet", report.ParquetPath),
			slog.Int("count", report.Count))
		return nil
	}

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Logging.Env,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.OTLPInsecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.OTLPHeaders),
		Metrics:     true,
		Traces:      true,
		SampleRatio: cfg.Telemetry.TraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	registry, err := cfg.Registry.Parse()
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.StorageBackend, cfg.StatePath())
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer db.Close()

	hub := rpc.NewEventHub()
	emitter := events.Fanout{observability.Events(), hub}
	if idx != nil {
		emitter = append(emitter, idx)
	}
	manager := state.NewManager(db)
	manager.SetEmitter(emitter)

	engine := rfq.NewEngine()
	engine.SetStore(manager)
	engine.SetRegistry(registry)
	engine.SetVerifier(crypto.Ed25519Verifier{})
	engine.SetMetrics(observability.RFQ())
	engine.SetLogger(logger)
	engine.SetEmitter(emitter)
	treasury, err := engine.OpenTreasuryAccount()
	if err != nil {
		return fmt.Errorf("open treasury account: %w", err)
	}
	logger.Info("treasury account ready", slog.String("account", treasury.Hex()))

	mods := rpc.Modules{
		RFQ:    modules.NewRFQModule(engine, manager),
		Ledger: modules.NewLedgerModule(manager, cfg.RPC.EnableLedgerAdmin),
	}
	if cfg.AttestorKeystorePath != "" {
		pass, err := passphrase.NewSource(cfg.AttestorPassphraseEnv, "Enter attestor keystore passphrase: ").Get()
		if err != nil {
			return err
		}
		key, err := cfg.AttestorKey(pass)
		if err != nil {
			return fmt.Errorf("load attestor key: %w", err)
		}
		att := attestor.New(key, manager)
		if att.Address() != registry.AttestationKey {
			logger.Warn("attestor key differs from registry attestation key; attestations will be rejected",
				slog.String("attestor", att.Address().Hex()))
		}
		mods.Attest = modules.NewAttestModule(engine, att)
	}
	if idx != nil {
		mods.Index = modules.NewIndexModule(idx)
	}
	server := rpc.NewServer(mods, rpc.Options{
		RateLimitPerSec: cfg.RPC.RateLimitPerSec,
		RateLimitBurst:  cfg.RPC.RateLimitBurst,
		JWTIssuer:       cfg.RPC.JWTIssuer,
		Logger:          logger,
	})

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Method(http.MethodPost, "/rpc", otelhttp.NewHandler(server, "rfq.rpc"))
	router.Handle("/ws/events", hub)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Telemetry.MetricsEnabled {
		router.Handle("/metrics", promhttp.Handler())
	}

	httpServer := &http.Server{
		Addr:              cfg.RPC.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: time.Duration(cfg.RPC.ReadHeaderTimeout) * time.Second,
		ReadTimeout:       time.Duration(cfg.RPC.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.RPC.WriteTimeout) * time.Second,
		IdleTimeout:       time.Duration(cfg.RPC.IdleTimeout) * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("rfqd listening", slog.String("addr", cfg.RPC.ListenAddress))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
