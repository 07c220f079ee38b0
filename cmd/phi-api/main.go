package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/phi-api/internal/audit"
	"github.com/jwalitptl/phi-api/internal/codec"
	"github.com/jwalitptl/phi-api/internal/config"
	"github.com/jwalitptl/phi-api/internal/crypto"
	"github.com/jwalitptl/phi-api/internal/keyvault"
	"github.com/jwalitptl/phi-api/internal/policy"
	"github.com/jwalitptl/phi-api/internal/projection"
	"github.com/jwalitptl/phi-api/internal/repository/postgres"
	"github.com/jwalitptl/phi-api/internal/service/record"
	"github.com/jwalitptl/phi-api/internal/worker"
	"github.com/jwalitptl/phi-api/pkg/logger"
	"github.com/jwalitptl/phi-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := logger.NewLogger(&logger.Config{Level: level, Output: os.Stdout})

	m := metrics.NewMetrics("phi_api", "core")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	base := postgres.NewBaseRepository(db)
	vaultStore := postgres.NewVaultRepository(base)
	docStore := postgres.NewDocumentRepository(base)
	auditStore := postgres.NewAuditRepository(base)

	masterKey, err := cfg.Vault.MasterKey()
	if err != nil {
		log.Fatal(err, "failed to decode master key")
	}
	vault, err := keyvault.NewClient(vaultStore, keyvault.Config{
		MasterKey:          masterKey,
		CacheTTL:           cfg.Vault.CacheTTL,
		BreakerMaxFailures: cfg.Vault.BreakerMaxFailures,
		BreakerTimeout:     cfg.Vault.BreakerTimeout,
	}, log, m)
	if err != nil {
		log.Fatal(err, "failed to initialize key vault client")
	}

	engine := crypto.NewEngine(vault, crypto.DefaultSchema(), cfg.Vault.KeyAltName, m)
	recordCodec := codec.New(engine)

	auditor := audit.NewWriter(auditStore, audit.Config{
		MaxRetries:      cfg.Audit.MaxRetries,
		InitialInterval: cfg.Audit.InitialInterval,
		MaxInterval:     cfg.Audit.MaxInterval,
	}, log, m)

	evaluator := policy.NewEvaluator(policy.DefaultRules(), auditor, log, m)
	projector := projection.New(projection.DefaultTable())

	svc := record.NewService(recordCodec, engine, evaluator, projector, docStore, auditor, log)
	_ = svc // handed to the request layer, which is wired separately

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	retention := worker.NewAuditRetentionWorker(auditStore, cfg.Audit.Retention, cfg.Audit.CleanupInterval, log)
	go retention.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "metrics server failed")
		}
	}()

	log.Info("phi core started", "metrics_addr", cfg.Metrics.Addr)
	<-ctx.Done()
	srv.Shutdown(context.Background())
	log.Info("phi core stopped")
}
