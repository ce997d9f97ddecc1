package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imperio/internal/config"
	"imperio/internal/infra"
	"imperio/internal/middleware"
	"imperio/internal/notify"
	"imperio/internal/repository"
	"imperio/internal/router"
	"imperio/internal/service"
	"imperio/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty console in development, JSON in production
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infra.NewMetrics(reg)

	// Event sinks: Redis pub/sub feeds every instance's SSE clients; Kafka
	// is an optional downstream copy.
	sinks := notify.Fanout{notify.Guard("redis", notify.NewRedisPublisher(rdb, cfg.EventChannel), metrics)}
	kw := infra.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
	if kw != nil {
		defer kw.Close()
		sinks = append(sinks, notify.Guard("kafka", notify.NewKafkaPublisher(kw), metrics))
		log.Info().Str("topic", cfg.KafkaTopic).Msg("kafka event sink enabled")
	}

	// Async jobs: reconciliation PDF after a till close, then the email.
	// Handlers are wired here (composition root) so that the pool has full
	// access to all infrastructure dependencies.
	dispatcher := worker.NewDispatcher(rdb)
	mailer := infra.NewMailer(cfg)
	smtpCB := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
		Name: "smtp",
		OnStateChange: func(name string, from, to infra.CBState) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	// the report worker reads closed sessions through the ledger
	tillSvc := service.NewTillService(repository.NewTillRepository(db), sinks, dispatcher, metrics)

	pool := worker.NewPool(rdb, metrics)
	pool.Register(worker.JobTillReport, worker.NewReportWorker(tillSvc, dispatcher, cfg.StoreName, cfg.ReportStoragePath, cfg.ReportEmail))
	pool.Register(worker.JobEmail, worker.NewEmailWorker(mailer, smtpCB))
	pool.Start(ctx, cfg.WorkerPoolSize)
	worker.StartReplayCron(ctx, worker.ReplayCronConfig{RDB: rdb, Breaker: smtpCB})

	limiter := middleware.NewRateLimiter(cfg.RateLimit, time.Minute)
	limiter.StartPurge(ctx)

	r := router.New(cfg, db, rdb, router.Deps{
		Events:     sinks,
		Subscriber: notify.NewRedisSubscriber(rdb, cfg.EventChannel),
		Reports:    dispatcher,
		Metrics:    metrics,
		Gatherer:   reg,
		Limiter:    limiter,
	})

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: it would cut the SSE stream
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("%s backend listening on :%d", cfg.StoreName, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
