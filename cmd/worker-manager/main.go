// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"certificate-workers/internal/certificate/approval"
	"certificate-workers/internal/certificate/content"
	"certificate-workers/internal/certificate/issuance"
	"certificate-workers/internal/certificate/ledger"
	"certificate-workers/internal/certificate/notify"
	"certificate-workers/internal/certificate/numbering"
	"certificate-workers/internal/certificate/render"
	"certificate-workers/internal/certificate/revocation"
	"certificate-workers/internal/certificate/store"
	"certificate-workers/internal/certificate/verification"
	"certificate-workers/internal/common/aws"
	"certificate-workers/internal/common/camunda"
	"certificate-workers/internal/common/config"
	"certificate-workers/internal/common/database"
	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/common/observability"
	"certificate-workers/internal/common/validation"
	"certificate-workers/pkg/registry"

	// Application approval workers (2)
	ca "certificate-workers/internal/workers/application/cancel-application"
	da "certificate-workers/internal/workers/application/decide-approval"

	// Certificate lifecycle workers (5)
	dc "certificate-workers/internal/workers/certificate/download-certificate"
	ic "certificate-workers/internal/workers/certificate/issue-certificate"
	rla "certificate-workers/internal/workers/certificate/retry-ledger-anchor"
	rc "certificate-workers/internal/workers/certificate/revoke-certificate"
	vc "certificate-workers/internal/workers/certificate/verify-certificate"

	// Communication & data access workers (2)
	scn "certificate-workers/internal/workers/communication/send-certificate-notification"
	qva "certificate-workers/internal/workers/data-access/query-verification-audit"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// timeoutFor resolves a job timeout: worker config, then the registry entry, then the handler default.
func timeoutFor(cfg *config.Config, reg *registry.ActivityRegistry, taskType string, fallback time.Duration) time.Duration {
	if ms := config.GetWorkerConfig(cfg, taskType).Timeout; ms > 0 {
		return config.GetDuration(ms)
	}
	if a, ok := reg.FindByTaskType(taskType); ok {
		if d := a.TimeoutDuration(); d > 0 {
			return d
		}
	}
	return fallback
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, envFile, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}
	_ = bootLog.Sync()

	var outputs []string
	if cfg.Logging.Output != "" {
		outputs = append(outputs, cfg.Logging.Output)
	}
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, outputs...)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting certificate worker manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("envFile", envFile),
	)

	obs := observability.New(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint)
	defer obs.Shutdown()

	ctx := context.Background()
	callTimeout := config.GetDuration(cfg.Certificate.CallTimeout)

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(cfg.Camunda)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	if cfg.Database.Postgres.MigrationsAuto {
		if err := database.Migrate(ctx, pg.DB); err != nil {
			zapLog.Fatal("database migration failed", zap.Error(err))
		}
		zapLog.Info("Database migrations applied")
	}

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (verification audit trail) ---
	var (
		audit    *verification.ElasticAudit
		esClient *database.ElasticsearchClient
	)
	if cfg.Database.Elasticsearch.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return esClient.Ping(pingCtx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		index := cfg.Database.Elasticsearch.AuditIndex
		if err := esClient.EnsureIndex(ctx, index, verification.AuditIndexMapping); err != nil {
			zapLog.Fatal("audit index setup failed", zap.Error(err), zap.String("index", index))
		}
		audit = verification.NewElasticAudit(esClient.Client, index, log)
		zapLog.Info("Elasticsearch connected successfully", zap.String("auditIndex", index))
	}

	// --- Certificate infrastructure ---
	st := store.NewPostgres(pg.DB)

	var cs content.Store
	switch cfg.Content.Provider {
	case "memory":
		cs = content.NewMemoryStore()
		zapLog.Warn("Using in-memory content store, artifacts will not survive a restart")
	default:
		cs = content.NewIPFSClient(cfg.Content.APIURL(), config.GetDuration(cfg.Content.IPFS.Timeout), log)
	}

	var (
		anchor ledger.Anchor
		webase *ledger.WebaseClient
	)
	if cfg.Ledger.Enabled {
		switch cfg.Ledger.Provider {
		case "memory":
			anchor = ledger.NewMemory()
		default:
			webase = ledger.NewWebaseClient(cfg.Ledger.WeBASE, log)
			anchor = webase
		}
		zapLog.Info("Ledger anchoring enabled", zap.String("provider", cfg.Ledger.Provider))
	} else {
		zapLog.Info("Ledger anchoring disabled, certificates are issued unanchored")
	}

	var (
		emailSender notify.EmailSender
		smsSender   notify.SMSSender
	)
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		awsCfg, err := aws.LoadConfig(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("aws config load failed", zap.Error(err))
		}
		if cfg.Notifications.Email.Enabled {
			emailSender = aws.NewSESClient(awsCfg, cfg.Notifications.Email.FromEmail)
		}
		if cfg.Notifications.SMS.Enabled {
			smsSender = aws.NewSNSClient(awsCfg, cfg.Notifications.SMS.SenderID)
		}
	}
	notifier := notify.NewNotifier(st, emailSender, smsSender, log)

	renderer := render.NewPDFRenderer()
	if path := cfg.Certificate.FontPath; path != "" {
		if renderer, err = render.LoadUTF8PDFRenderer(path); err != nil {
			zapLog.Fatal("certificate font load failed", zap.Error(err), zap.String("path", path))
		}
		zapLog.Info("Certificate font loaded", zap.String("path", path))
	}

	numbers := numbering.NewGenerator(numbering.NewRedisSequence(redis.Client), log)
	issuer := issuance.NewIssuer(st, cs, anchor, renderer, numbers, issuance.Options{
		IssuerName:       cfg.Certificate.IssuerName,
		CallTimeout:      callTimeout,
		ValidityYears:    cfg.Certificate.ValidityYears,
		LedgerRetryBatch: cfg.Certificate.LedgerRetryBatch,
	}, log)
	workflow := approval.NewWorkflow(st, st, cs, issuer, log)

	var auditRecorder verification.AuditRecorder
	if audit != nil {
		auditRecorder = audit
	}
	engine := verification.NewEngine(st, cs, anchor, auditRecorder, verification.Options{
		DownloadBasePath: cfg.Certificate.DownloadBasePath,
		CallTimeout:      callTimeout,
	}, log)
	coordinator := revocation.NewCoordinator(st, anchor, notifier, callTimeout, log)

	// --- Activity registry & input validation ---
	reg, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("activity registry load failed", zap.Error(err), zap.String("path", cfg.Registry.Path))
	}
	if errs := validation.ValidateRegistry(reg); len(errs) > 0 {
		zapLog.Fatal("activity registry invalid", zap.Errors("errors", errs))
	}
	validator, err := validation.NewValidator(reg)
	if err != nil {
		zapLog.Fatal("activity schema compilation failed", zap.Error(err))
	}

	starter := camunda.NewStarter(zeebe.GetClient(), validator, log).WithRecorder(obs)

	// --- START: Register all 9 workers ---

	// --- 1. Application approval ---
	starter.Start(da.TaskType, config.GetWorkerConfig(cfg, da.TaskType), da.NewHandler(
		&da.Config{Timeout: timeoutFor(cfg, reg, da.TaskType, da.LoadConfig().Timeout)},
		workflow, log,
	))
	starter.Start(ca.TaskType, config.GetWorkerConfig(cfg, ca.TaskType), ca.NewHandler(
		&ca.Config{Timeout: timeoutFor(cfg, reg, ca.TaskType, ca.LoadConfig().Timeout)},
		workflow, log,
	))

	// --- 2. Certificate lifecycle ---
	starter.Start(ic.TaskType, config.GetWorkerConfig(cfg, ic.TaskType), ic.NewHandler(
		&ic.Config{Timeout: timeoutFor(cfg, reg, ic.TaskType, ic.LoadConfig().Timeout)},
		issuer, zeebe, log,
	))

	retryCfg := rla.LoadConfig()
	retryCfg.Timeout = timeoutFor(cfg, reg, rla.TaskType, retryCfg.Timeout)
	if cfg.Certificate.LedgerRetryBatch > 0 {
		retryCfg.BatchSize = cfg.Certificate.LedgerRetryBatch
	}
	starter.Start(rla.TaskType, config.GetWorkerConfig(cfg, rla.TaskType), rla.NewHandler(retryCfg, issuer, log))

	starter.Start(rc.TaskType, config.GetWorkerConfig(cfg, rc.TaskType), rc.NewHandler(
		&rc.Config{Timeout: timeoutFor(cfg, reg, rc.TaskType, rc.LoadConfig().Timeout)},
		coordinator, st, log,
	))

	// --- 3. Verification ---
	starter.Start(vc.TaskType, config.GetWorkerConfig(cfg, vc.TaskType), vc.NewHandler(
		&vc.Config{Timeout: timeoutFor(cfg, reg, vc.TaskType, vc.LoadConfig().Timeout)},
		engine, obs, log,
	))

	downloadCfg := dc.LoadConfig()
	downloadCfg.Timeout = timeoutFor(cfg, reg, dc.TaskType, downloadCfg.Timeout)
	starter.Start(dc.TaskType, config.GetWorkerConfig(cfg, dc.TaskType), dc.NewHandler(downloadCfg, engine, log))

	// --- 4. Communication & audit ---
	starter.Start(scn.TaskType, config.GetWorkerConfig(cfg, scn.TaskType), scn.NewHandler(
		&scn.Config{Timeout: timeoutFor(cfg, reg, scn.TaskType, scn.LoadConfig().Timeout)},
		notifier, log,
	))

	if audit != nil {
		starter.Start(qva.TaskType, config.GetWorkerConfig(cfg, qva.TaskType), qva.NewHandler(
			&qva.Config{Timeout: timeoutFor(cfg, reg, qva.TaskType, qva.LoadConfig().Timeout)},
			audit, log,
		))
	} else {
		zapLog.Info("worker disabled, elasticsearch is off", zap.String("taskType", qva.TaskType))
	}
	enabled := 0
	for _, taskType := range reg.TaskTypes() {
		if config.IsWorkerEnabled(cfg, taskType) {
			enabled++
		}
	}
	zapLog.Info("Certificate workers registered",
		zap.Int("activities", len(reg.Activities)), zap.Int("enabled", enabled))

	// --- Health & Metrics Server ---
	checks := map[string]readinessCheck{
		"postgres": pg.Ping,
		"redis":    redis.Ping,
		"zeebe":    zeebe.HealthCheck,
	}
	if esClient != nil {
		checks["elasticsearch"] = esClient.Ping
	}
	if webase != nil {
		checks["ledger"] = func(ctx context.Context) error {
			_, err := webase.BlockNumber(ctx)
			return err
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           newRouter(checks, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	starter.Close()
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
