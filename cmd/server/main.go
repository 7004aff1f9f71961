// Command server runs the link detection API. It wires the detection
// engine, threshold policies, request budgets, and the audit pipeline, then
// serves HTTP until interrupted.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	detecthandler "linkage/internal/detection/handler"
	detectsvc "linkage/internal/detection/service"
	matchmetrics "linkage/internal/match/metrics"
	"linkage/internal/platform/config"
	"linkage/internal/platform/httpserver"
	"linkage/internal/platform/kafka"
	"linkage/internal/platform/kafka/consumer"
	"linkage/internal/platform/kafka/producer"
	"linkage/internal/platform/logger"
	platformmetrics "linkage/internal/platform/metrics"
	platformredis "linkage/internal/platform/redis"
	"linkage/internal/policy"
	"linkage/internal/profile"
	rladmin "linkage/internal/ratelimit/admin"
	rlconfig "linkage/internal/ratelimit/config"
	budgethandler "linkage/internal/ratelimit/handler"
	rlmetrics "linkage/internal/ratelimit/metrics"
	rlmiddleware "linkage/internal/ratelimit/middleware"
	rlmodels "linkage/internal/ratelimit/models"
	rlservice "linkage/internal/ratelimit/service"
	"linkage/internal/ratelimit/store/bucket"
	"linkage/internal/token"
	httptransport "linkage/internal/transport/http"
	audit "linkage/pkg/platform/audit"
	auditconsumer "linkage/pkg/platform/audit/consumer"
	"linkage/pkg/platform/audit/publishers/compliance"
	"linkage/pkg/platform/audit/publishers/ops"
	"linkage/pkg/platform/audit/publishers/security"
	memorystore "linkage/pkg/platform/audit/store/memory"
	pgstore "linkage/pkg/platform/audit/store/postgres"
	"linkage/pkg/platform/audit/worker"
	"linkage/pkg/platform/middleware/auth"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openPostgres(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	rdb, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// Audit events land in postgres behind the outbox; without postgres the
	// process keeps them in memory, which is fine for development but loses
	// the trail on restart.
	var auditStore audit.Store
	var pgAudit *pgstore.Store
	if db != nil {
		pgAudit = pgstore.New(db)
		auditStore = pgAudit
	} else {
		log.Warn("postgres not configured, audit events are held in memory")
		auditStore = memorystore.NewInMemoryStore()
	}

	compliancePub := compliance.New(auditStore,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics()),
	)
	defer func() { _ = compliancePub.Close() }()

	securityPub := security.New(auditStore,
		security.WithLogger(log),
		security.WithMetrics(security.NewMetrics()),
	)
	defer func() { _ = securityPub.Close() }()

	opsTracker := ops.NewTracker(auditStore,
		ops.WithLogger(log),
		ops.WithMetrics(ops.NewMetrics()),
	)
	defer func() { _ = opsTracker.Close() }()

	profiles := profile.NewRegistry()
	if err := profiles.LoadBuiltins(); err != nil {
		return fmt.Errorf("load builtin profiles: %w", err)
	}
	if cfg.Profiles.Dir != "" {
		if err := profiles.LoadDir(cfg.Profiles.Dir); err != nil {
			return fmt.Errorf("load profiles from %s: %w", cfg.Profiles.Dir, err)
		}
	}

	svc, err := detectsvc.New(profiles, policy.NewRegistry(),
		detectsvc.WithLogger(log),
		detectsvc.WithMetrics(matchmetrics.New()),
		detectsvc.WithCompliancePublisher(compliancePub),
		detectsvc.WithSecurityPublisher(securityPub),
		detectsvc.WithOpsTracker(opsTracker),
	)
	if err != nil {
		return fmt.Errorf("create detection service: %w", err)
	}

	rlMetrics := rlmetrics.New()
	rlCfg := &rlconfig.Config{
		Detect:        rlconfig.Limit{Budget: cfg.RateLimit.DetectBudget, Window: cfg.RateLimit.DetectWindow},
		Read:          rlconfig.Limit{Budget: cfg.RateLimit.ReadBudget, Window: cfg.RateLimit.ReadWindow},
		Write:         rlconfig.Limit{Budget: cfg.RateLimit.WriteBudget, Window: cfg.RateLimit.WriteWindow},
		BypassTenants: cfg.RateLimit.BypassTenants,
	}

	// Budgets live in Redis so replicas share one window; each instance keeps
	// an in-memory fallback for when Redis is down or not configured.
	var primaryBuckets rlservice.BucketStore
	budgetOpts := []rlmiddleware.Option{
		rlmiddleware.WithMetrics(rlMetrics),
		rlmiddleware.WithDisabled(cfg.RateLimit.Disabled),
	}
	if rdb != nil {
		primaryBuckets = bucket.NewRedisStore(rdb.Client)
		fallback, err := rlservice.New(bucket.New(),
			rlservice.WithLogger(log),
			rlservice.WithConfig(rlCfg),
			rlservice.WithSecurityPublisher(securityPub),
			rlservice.WithMetrics(rlMetrics),
		)
		if err != nil {
			return fmt.Errorf("create fallback limiter: %w", err)
		}
		budgetOpts = append(budgetOpts, rlmiddleware.WithFallback(fallback))
	} else {
		primaryBuckets = bucket.New()
	}

	limiter, err := rlservice.New(primaryBuckets,
		rlservice.WithLogger(log),
		rlservice.WithConfig(rlCfg),
		rlservice.WithSecurityPublisher(securityPub),
		rlservice.WithMetrics(rlMetrics),
	)
	if err != nil {
		return fmt.Errorf("create limiter: %w", err)
	}
	budgets := rlmiddleware.New(limiter, log, budgetOpts...)

	tokens := token.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	operatorAuth := auth.RequireOperator(tokens, log, auth.WithSecurityPublisher(securityPub))

	handler := detecthandler.New(svc, log,
		detecthandler.WithOperatorAuth(operatorAuth),
		detecthandler.WithDetectBudget(budgets.DetectBudget()),
		detecthandler.WithReadBudget(budgets.Limit(rlmodels.ClassRead)),
		detecthandler.WithWriteBudget(budgets.Limit(rlmodels.ClassWrite)),
	)

	budgetAdmin, err := rladmin.New(primaryBuckets,
		rladmin.WithLogger(log),
		rladmin.WithConfig(rlCfg),
		rladmin.WithSecurityPublisher(securityPub),
		rladmin.WithMetrics(rlMetrics),
	)
	if err != nil {
		return fmt.Errorf("create budget admin service: %w", err)
	}

	var readiness []httptransport.Check
	if db != nil {
		readiness = append(readiness, httptransport.Check{Name: "postgres", Probe: db.PingContext})
	}
	if rdb != nil {
		readiness = append(readiness, httptransport.Check{Name: "redis", Probe: rdb.Health})
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Detection:   handler,
		BudgetAdmin: budgethandler.New(budgetAdmin, log),
		Metrics:     platformmetrics.New(),
		AdminToken:  cfg.Auth.AdminToken,
		Readiness:   readiness,
		Logger:      log,
	})

	// The relay moves committed outbox rows to Kafka; the consumer group
	// materializes them into the queryable audit table. Both need postgres
	// and brokers, so they only run when the full pipeline is configured.
	var relay *worker.Relay
	var auditConsumer *consumer.Consumer
	if len(cfg.Kafka.Brokers) > 0 && pgAudit != nil {
		if err := kafka.EnsureAuditTopics(ctx, cfg.Kafka.Brokers, cfg.Kafka.TopicPartitions, cfg.Kafka.ReplicationFactor); err != nil {
			return fmt.Errorf("ensure audit topics: %w", err)
		}

		kafkaProducer, err := producer.New(cfg.Kafka.Brokers, producer.WithLogger(log))
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		defer kafkaProducer.Close()

		relay = worker.NewRelay(db, kafkaProducer, log,
			worker.WithInterval(cfg.Audit.RelayInterval),
			worker.WithBatchSize(cfg.Audit.RelayBatchSize),
			worker.WithMetrics(worker.NewMetrics()),
		)

		topicRouter := auditconsumer.NewRouter(log, auditconsumer.NewOpsHandler(pgAudit, log))
		topicRouter.Register(kafka.TopicAuditCompliance, auditconsumer.NewComplianceHandler(pgAudit, log))
		topicRouter.Register(kafka.TopicAuditSecurity, auditconsumer.NewSecurityHandler(pgAudit, log))

		auditConsumer, err = consumer.New(consumer.Config{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.GroupID,
			Topics:  kafka.AuditTopics(),
		}, topicRouter, log)
		if err != nil {
			return fmt.Errorf("create audit consumer: %w", err)
		}
		defer auditConsumer.Close()
	}

	srv := httpserver.New(cfg.Server.Addr, router)

	log.Info("starting linkage",
		"addr", cfg.Server.Addr,
		"profiles", profiles.Len(),
		"postgres", db != nil,
		"redis", rdb != nil,
		"kafka", relay != nil,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if relay != nil {
		g.Go(func() error {
			if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("outbox relay: %w", err)
			}
			return nil
		})
	}
	if auditConsumer != nil {
		g.Go(func() error {
			if err := auditConsumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("audit consumer: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// openPostgres connects the audit database. A missing URL is not an error;
// the caller falls back to in-memory stores.
func openPostgres(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}
