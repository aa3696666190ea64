package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	controlhandler "parapet/internal/control/handler"
	controlstore "parapet/internal/control/store"
	jwttoken "parapet/internal/jwt_token"
	"parapet/internal/platform/config"
	"parapet/internal/platform/httpserver"
	"parapet/internal/platform/kafka"
	kafkaconsumer "parapet/internal/platform/kafka/consumer"
	"parapet/internal/platform/logger"
	platformmetrics "parapet/internal/platform/metrics"
	"parapet/internal/platform/postgres"
	"parapet/internal/platform/redis"
	"parapet/internal/review"
	reviewhandler "parapet/internal/review/handler"
	reviewmetrics "parapet/internal/review/metrics"
	riskhandler "parapet/internal/risk/handler"
	riskmetrics "parapet/internal/risk/metrics"
	riskservice "parapet/internal/risk/service"
	riskstore "parapet/internal/risk/store"
	"parapet/pkg/platform/audit"
	auditconsumer "parapet/pkg/platform/audit/consumer"
	compliancepub "parapet/pkg/platform/audit/publishers/compliance"
	opspub "parapet/pkg/platform/audit/publishers/ops"
	securitypub "parapet/pkg/platform/audit/publishers/security"
	auditmem "parapet/pkg/platform/audit/store/memory"
	auditpg "parapet/pkg/platform/audit/store/postgres"
	"parapet/pkg/platform/audit/worker"
	"parapet/pkg/platform/httputil"
	"parapet/pkg/platform/middleware/actor"
	"parapet/pkg/platform/middleware/contenttype"
	"parapet/pkg/platform/middleware/logging"
	"parapet/pkg/platform/middleware/metadata"
	"parapet/pkg/platform/middleware/recovery"
	"parapet/pkg/platform/middleware/requestid"
	"parapet/pkg/platform/middleware/requesttime"
)

const (
	tokenIssuer   = "parapet"
	tokenAudience = "parapet-api"

	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// controlCatalog is what main needs from a control store: lookups for the
// risk service, listing for the pick-list endpoint.
type controlCatalog interface {
	riskservice.ControlStore
	controlhandler.Catalog
}

// main wires the register's dependencies and keeps the server lifecycle
// small. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores and the audit trail. An empty DSN selects the in-memory stores,
	// which is the development mode: no Postgres, no Kafka, seeded controls.
	var (
		db       *sql.DB
		risks    riskservice.RiskStore
		controls controlCatalog
		trail    audit.Store
	)
	if cfg.Postgres.DSN != "" {
		opened, err := postgres.Open(cfg.Postgres)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		defer opened.Close()
		if err := postgres.Migrate(ctx, opened); err != nil {
			log.Error("postgres migrate failed", "error", err)
			os.Exit(1)
		}

		db = opened
		risks = riskstore.NewPostgres(db)
		controls = controlstore.NewPostgres(db)
		trail = auditpg.New(db)
	} else {
		risks = riskstore.NewInMemory()
		memControls := controlstore.NewInMemory()
		if err := controlstore.SeedBaselineControls(ctx, memControls); err != nil {
			log.Error("control seed failed", "error", err)
			os.Exit(1)
		}
		controls = memControls
		trail = auditmem.NewInMemoryStore()
		log.Info("no PARAPET_DB_DSN set, using in-memory stores")
	}

	compliance := compliancepub.New(trail,
		compliancepub.WithLogger(log),
		compliancepub.WithMetrics(compliancepub.NewMetrics()),
	)
	defer compliance.Close()

	security := securitypub.NewAuditor(trail,
		securitypub.WithLogger(log),
		securitypub.WithMetrics(securitypub.NewMetrics()),
	)
	defer security.Close()

	ops := opspub.NewTracker(trail,
		opspub.WithLogger(log),
		opspub.WithMetrics(opspub.NewMetrics()),
	)
	defer ops.Close()

	// The Kafka leg of the audit pipeline: the relay drains the outbox to the
	// topics, the consumers materialize the topics back into the per-category
	// tables. Both sides need the outbox, so both need Postgres.
	if cfg.Kafka.Enabled() {
		if db == nil {
			log.Warn("PARAPET_KAFKA_BROKERS set without PARAPET_DB_DSN, audit pipeline disabled")
		} else {
			producer, err := kafka.NewProducer(cfg.Kafka)
			if err != nil {
				log.Error("kafka producer init failed", "error", err)
				os.Exit(1)
			}
			defer producer.Close()
			if err := producer.EnsureTopics(ctx, audit.TopicCompliance, audit.TopicSecurity, audit.TopicOps); err != nil {
				log.Error("kafka topic creation failed", "error", err)
				os.Exit(1)
			}

			relay := worker.NewRelay(db, producer, log)
			go func() {
				if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
					log.Error("outbox relay stopped", "error", err)
				}
			}()

			pgTrail := auditpg.New(db)
			router := auditconsumer.NewRouter(log, nil)
			router.Register(audit.TopicCompliance, auditconsumer.NewComplianceHandler(pgTrail, log))
			router.Register(audit.TopicSecurity, auditconsumer.NewSecurityHandler(pgTrail, log))
			router.Register(audit.TopicOps, auditconsumer.NewOpsHandler(pgTrail, log))

			consumer, err := kafkaconsumer.New(cfg.Kafka,
				[]string{audit.TopicCompliance, audit.TopicSecurity, audit.TopicOps}, router, log)
			if err != nil {
				log.Error("kafka consumer init failed", "error", err)
				os.Exit(1)
			}
			defer consumer.Close()
			go func() {
				if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
					log.Error("audit consumer stopped", "error", err)
				}
			}()
		}
	}

	service := riskservice.New(risks, controls, trail,
		riskservice.WithLogger(log),
		riskservice.WithCompliancePublisher(compliance),
		riskservice.WithSecurityPublisher(security),
		riskservice.WithOpsPublisher(ops),
		riskservice.WithMetrics(riskmetrics.New()),
	)

	aggregatorOpts := []review.Option{
		review.WithLogger(log),
		review.WithOpsPublisher(ops),
		review.WithMetrics(reviewmetrics.New()),
		review.WithPageSize(cfg.Review.PageSize),
		review.WithMaxPages(cfg.Review.MaxPages),
	}
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		aggregatorOpts = append(aggregatorOpts, review.WithCache(
			review.NewCache(redisClient.Client,
				review.WithCacheTTL(cfg.Review.CacheTTL),
				review.WithCacheLogger(log),
			)))
	}
	aggregator := review.New(risks, aggregatorOpts...)

	tokens := jwttoken.NewService(cfg.Server.JWTSigningKey, tokenIssuer, tokenAudience)

	r := chi.NewRouter()
	r.Use(recovery.Middleware(log))
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(logging.Middleware(log))
	r.Use(platformmetrics.New().Middleware)
	r.Use(chimiddleware.Timeout(requestTimeout))
	r.Use(contenttype.RequireJSON)
	r.Use(actor.Attribution(tokens, security, log))

	riskhandler.New(service, log).Register(r)
	controlhandler.New(controls, log).Register(r)
	reviewhandler.New(aggregator, log).Register(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Server.Addr, r)

	log.Info("starting parapet", "addr", cfg.Server.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	cancel()
}
