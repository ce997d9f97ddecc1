package worker

// retry_cron.go
// Background goroutine that periodically replays parked email jobs once the
// SMTP circuit breaker allows traffic again. Report jobs are not replayed:
// their failures are permanent (missing or still-open session).

import (
	"context"
	"time"

	"imperio/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	replayTickInterval = 5 * time.Minute
	replayBatchSize    = 10
)

// ReplayCronConfig holds all dependencies for the replay goroutine.
type ReplayCronConfig struct {
	RDB      *redis.Client
	Breaker  *infra.CircuitBreaker
	Interval time.Duration
}

// StartReplayCron ticks every Interval (5 min by default) and requeues a
// batch of DLQ email jobs. It respects ctx for graceful shutdown.
func StartReplayCron(ctx context.Context, cfg ReplayCronConfig) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = replayTickInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("interval", interval).Msg("replay_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("replay_cron: shutting down")
				return
			case <-ticker.C:
				replayTick(ctx, cfg)
			}
		}
	}()
}

func replayTick(ctx context.Context, cfg ReplayCronConfig) {
	// Replaying into an open breaker would only park the jobs again
	if cfg.Breaker != nil && cfg.Breaker.State() == infra.CBOpen {
		log.Debug().Msg("replay_cron: smtp circuit open, skipping tick")
		return
	}
	n, err := ReplayDLQ(ctx, cfg.RDB, QueueEmail, replayBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("replay_cron: replay failed")
		return
	}
	if n > 0 {
		log.Info().Int("requeued", n).Msg("replay_cron: email jobs requeued")
	}
}
