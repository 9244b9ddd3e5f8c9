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

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"sigil/internal/audit"
	clientStore "sigil/internal/client/store"
	"sigil/internal/code"
	"sigil/internal/journey"
	"sigil/internal/notify"
	"sigil/internal/platform/config"
	"sigil/internal/platform/httpserver"
	"sigil/internal/platform/kafka"
	"sigil/internal/platform/logger"
	"sigil/internal/platform/metrics"
	"sigil/internal/platform/postgres"
	platformredis "sigil/internal/platform/redis"
	sessionStore "sigil/internal/session/store"
	"sigil/internal/token"
	httptransport "sigil/internal/transport/http"
	userService "sigil/internal/user/service"
	userStore "sigil/internal/user/store"
)

const auditBuffer = 1024

// main wires stores, services, and the HTTP router, then runs until a
// signal arrives. Every backend is optional: without Redis, Postgres, or
// Kafka the process runs self-contained on in-memory stores, which is the
// development mode.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		fatal(log, "redis connection failed", err)
	}

	var sessions httptransport.SessionStore
	var codeStore code.Store
	if redisClient != nil {
		defer redisClient.Close()
		sessions = sessionStore.NewRedis(redisClient.Client, cfg.Policy.SessionTTL)
		codeStore = code.NewRedisStore(redisClient)
		log.Info("using redis session and code stores")
	} else {
		sessions = sessionStore.NewInMemory(cfg.Policy.SessionTTL)
		codeStore = code.NewInMemoryStore()
		log.Info("using in-memory session and code stores")
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		fatal(log, "postgres connection failed", err)
	}

	var users userStore.Store
	var clients clientStore.Store
	if pool != nil {
		defer pool.Close()
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			fatal(log, "postgres open failed", err)
		}
		defer db.Close()
		users = userStore.NewPostgres(pool)
		clients = clientStore.NewPostgres(db)
		log.Info("using postgres user and client stores")
	} else {
		users = userStore.NewInMemory()
		memClients := clientStore.NewInMemory()
		seeded, err := clientStore.SeedDevClients(memClients)
		if err != nil {
			fatal(log, "client seeding failed", err)
		}
		for _, c := range seeded {
			log.Info("seeded dev client", "client_id", c.ID.String(), "name", c.Name)
		}
		clients = memClients
		log.Info("using in-memory user and client stores")
	}

	producer, err := kafka.NewProducer(cfg.Kafka, log)
	if err != nil {
		fatal(log, "kafka connection failed", err)
	}
	var sink audit.Publisher
	if producer != nil {
		defer producer.Close()
		sink = audit.NewKafkaPublisher(producer)
		log.Info("publishing audit events to kafka", "topic", cfg.Kafka.Topic)
	} else {
		sink = audit.NewStorePublisher(audit.NewInMemoryStore())
		log.Info("keeping audit events in process")
	}
	recorder := audit.NewRecorder(auditBuffer, log)
	worker := audit.NewWorker(sink, recorder.Inbox(), log)

	machine, err := journey.NewMachine(cfg.Policy.TermsVersion)
	if err != nil {
		fatal(log, "journey graph rejected", err)
	}
	journeys, err := journey.NewService(machine, sessions,
		journey.WithLogger(log),
		journey.WithMetrics(m),
		journey.WithAuditPublisher(recorder),
	)
	if err != nil {
		fatal(log, "journey service init failed", err)
	}

	policy, err := code.New(codeStore, cfg.Policy, code.WithLogger(log), code.WithMetrics(m))
	if err != nil {
		fatal(log, "code policy init failed", err)
	}
	userSvc, err := userService.New(users, cfg.Policy.MaxRetries, userService.WithLogger(log))
	if err != nil {
		fatal(log, "user service init failed", err)
	}
	tokens, err := token.New(token.NewInMemoryCodeStore(), token.NewJWTService(cfg.JWTSigningKey, cfg.Issuer), cfg, token.WithLogger(log))
	if err != nil {
		fatal(log, "token service init failed", err)
	}

	handler := httptransport.NewHandler(httptransport.HandlerConfig{
		Journeys:     journeys,
		Sessions:     sessions,
		Users:        userSvc,
		Clients:      clients,
		Codes:        policy,
		Tokens:       tokens,
		Notifier:     notify.NewLogSender(log),
		Logger:       log,
		Metrics:      m,
		TermsVersion: cfg.Policy.TermsVersion,
		Issuer:       cfg.Issuer,
	})
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(ctx)
	})
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fatal(log, "server exited", err)
	}
	log.Info("shutdown complete")
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
