package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"datex/internal/checks"
	checkshandler "datex/internal/checks/handler"
	"datex/internal/consent"
	"datex/internal/consent/adapters"
	consenthandler "datex/internal/consent/handler"
	"datex/internal/exchange"
	exchangehandler "datex/internal/exchange/handler"
	"datex/internal/identity"
	identityhandler "datex/internal/identity/handler"
	"datex/internal/participant"
	participanthandler "datex/internal/participant/handler"
	"datex/internal/platform/config"
	"datex/internal/platform/httpserver"
	"datex/internal/platform/kafka"
	"datex/internal/platform/logger"
	"datex/internal/platform/metrics"
	platformredis "datex/internal/platform/redis"
	"datex/internal/profile"
	profilehandler "datex/internal/profile/handler"
	httptransport "datex/internal/transport/http"
	id "datex/pkg/domain"
	audit "datex/pkg/platform/audit"
	auditmemory "datex/pkg/platform/audit/store/memory"
	auditpostgres "datex/pkg/platform/audit/store/postgres"
	auditworker "datex/pkg/platform/audit/worker"
)

// main wires stores, services, and the HTTP surface, then runs until a
// shutdown signal. Business logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Durable stores when Postgres is configured, in-memory otherwise. The
	// in-memory fallback exists for local development and tests only.
	var (
		db               *sql.DB
		consentStore     consent.Store
		participantStore participant.Store
		identityStore    identity.Store
		auditStore       audit.Store
	)
	if cfg.PostgresURL != "" {
		var err error
		db, err = sql.Open("pgx", cfg.PostgresURL)
		if err != nil {
			fatal(log, "open postgres", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			fatal(log, "ping postgres", err)
		}
		consentStore = consent.NewPostgresStore(db, cfg.StoreTimeout)
		participantStore = participant.NewPostgresStore(db, cfg.StoreTimeout)
		identityStore = identity.NewPostgresStore(db, cfg.StoreTimeout)
		auditStore = auditpostgres.New(db, cfg.StoreTimeout)
	} else {
		log.Warn("postgres not configured, using in-memory stores")
		consentStore = consent.NewInMemoryStore()
		participantStore = participant.NewInMemoryStore()
		identityStore = identity.NewInMemoryStore()
		auditStore = auditmemory.New()
	}

	var profileStore profile.Store
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		fatal(log, "connect redis", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		profileStore = profile.NewRedisStore(redisClient.Client, 90*24*time.Hour)
	} else {
		log.Warn("redis not configured, using in-memory profile store")
		profileStore = profile.NewInMemoryStore()
	}

	// Audit pipeline: durable store write first, best-effort Kafka forward.
	auditOpts := []audit.Option{audit.WithLogger(log)}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, log)
		if err != nil {
			fatal(log, "connect kafka", err)
		}
		defer producer.Close()
		if err := producer.EnsureTopics(ctx, auditworker.Topics...); err != nil {
			fatal(log, "ensure audit topics", err)
		}
		forward := make(chan audit.Event, 1024)
		auditOpts = append(auditOpts, audit.WithForwardChannel(forward))
		forwarder := auditworker.NewForwarder(producer, forward, log)
		go func() {
			if err := forwarder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit forwarder stopped", "error", err)
			}
		}()
	}
	auditor := audit.NewPublisher(auditStore, auditOpts...)

	m := metrics.New()

	participantSvc := participant.NewService(participantStore, auditor, log)
	if cfg.PostgresURL == "" {
		if err := participant.SeedDev(ctx, participantStore, log); err != nil {
			fatal(log, "seed participants", err)
		}
	}

	tokens := consent.NewTokenIssuer(cfg.TokenSigningKey)
	consentSvc := consent.NewService(
		consentStore,
		adapters.NewRegistry(participantSvc),
		profileStore,
		tokens,
		id.DefaultVocabulary(),
		auditor,
		log,
	)
	identitySvc := identity.NewService(identityStore, consentSvc,
		[]byte(cfg.FingerprintPepper), auditor, log)
	exchangeSvc := exchange.NewService(consentSvc, profileStore, auditor, m, log)
	profileSvc := profile.NewService(profileStore, id.DefaultVocabulary(), log)
	checksSvc := checks.NewService(checks.DefaultCheckers(profileStore), consentSvc, auditor, log)

	router := httptransport.NewRouter(httptransport.Handlers{
		Identity:    identityhandler.New(identitySvc, log),
		Consent:     consenthandler.New(consentSvc, log, m),
		Exchange:    exchangehandler.New(exchangeSvc, log),
		Checks:      checkshandler.New(checksSvc, log),
		Participant: participanthandler.New(participantSvc, log),
		Profile:     profilehandler.New(profileSvc, log),
	}, httptransport.Deps{
		Logger:        log,
		Metrics:       m,
		Authenticator: participantSvc,
		Health: func() error {
			if db != nil {
				return db.Ping()
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting datex core", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "server error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fatal(log, "graceful shutdown failed", err)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
