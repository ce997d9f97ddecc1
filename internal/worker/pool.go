package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"imperio/internal/infra"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueReports = "jobs:reports"
	QueueEmail   = "jobs:email"

	JobTillReport = "till_report"
	JobEmail      = "email"

	// MaxJobAttempts is how many times a job runs before it is parked in the DLQ.
	MaxJobAttempts = 3
)

// ErrPermanent marks a failure that retrying cannot fix (bad payload,
// missing record). Such jobs go straight to the DLQ.
var ErrPermanent = errors.New("permanent job failure")

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
	Replays  int             `json:"replays,omitempty"`
}

// Handler processes one job payload.
type Handler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

type HandlerFunc func(ctx context.Context, raw json.RawMessage) error

func (f HandlerFunc) Process(ctx context.Context, raw json.RawMessage) error { return f(ctx, raw) }

// listPusher is the slice of the redis client the pool writes through.
type listPusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb listPusher
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueTillReport queues the reconciliation PDF of a closed session.
func (d *Dispatcher) EnqueueTillReport(ctx context.Context, sessionID uuid.UUID) error {
	return d.enqueue(ctx, QueueReports, JobTillReport, TillReportPayload{SessionID: sessionID})
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, JobEmail, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return push(ctx, d.rdb, queue, Job{Type: jobType, Payload: data})
}

func push(ctx context.Context, rdb listPusher, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// Pool consumes the job queues with a fixed number of goroutines.
type Pool struct {
	rdb      *redis.Client
	out      listPusher
	handlers map[string]Handler
	queues   []string
	metrics  *infra.Metrics
}

func NewPool(rdb *redis.Client, metrics *infra.Metrics) *Pool {
	return &Pool{
		rdb:      rdb,
		out:      rdb,
		handlers: make(map[string]Handler),
		queues:   []string{QueueReports, QueueEmail},
		metrics:  metrics,
	}
}

// Register binds a job type to its handler.
func (p *Pool) Register(jobType string, h Handler) {
	p.handlers[jobType] = h
}

// Start launches numWorkers goroutines consuming every queue.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop; waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, p.queues...).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					log.Warn().Err(err).Int("worker", id).Msg("worker: brpop failed")
					time.Sleep(time.Second)
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.processJob(ctx, result[0], result[1])
		}
	}
}

// processJob runs one job and settles it: done, requeued for another
// attempt, or parked in the DLQ.
func (p *Pool) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("worker: failed to unmarshal job")
		quoted, _ := json.Marshal(raw)
		SendToDLQ(ctx, p.out, queue, Job{Type: "unknown", Payload: quoted}, err.Error())
		p.metrics.JobProcessed("unknown", "dlq")
		return
	}

	h, ok := p.handlers[job.Type]
	if !ok {
		SendToDLQ(ctx, p.out, queue, job, "no handler registered")
		p.metrics.JobProcessed(job.Type, "dlq")
		return
	}

	job.Attempts++
	err := h.Process(ctx, job.Payload)
	switch {
	case err == nil:
		log.Info().Str("type", job.Type).Str("queue", queue).Int("attempt", job.Attempts).Msg("worker: job done")
		p.metrics.JobProcessed(job.Type, "ok")
	case errors.Is(err, ErrPermanent) || job.Attempts >= MaxJobAttempts:
		SendToDLQ(ctx, p.out, queue, job, err.Error())
		p.metrics.JobProcessed(job.Type, "dlq")
	default:
		log.Warn().Err(err).Str("type", job.Type).Int("attempt", job.Attempts).Msg("worker: job failed, requeueing")
		if perr := push(ctx, p.out, queue, job); perr != nil {
			log.Error().Err(perr).Str("queue", queue).Msg("worker: requeue failed")
		}
		p.metrics.JobProcessed(job.Type, "retry")
	}
}
