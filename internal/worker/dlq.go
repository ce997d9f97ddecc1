package worker

// dlq.go: dead letter queue
// Jobs that exhaust their attempts are parked here for inspection or replay.
// Uses a Redis list per source queue: dlq:{original_queue}

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DLQPrefix = "dlq:"
	// DeadSuffix holds entries that already used up their replays.
	DeadSuffix = ":dead"
	MaxReplays = 2
)

// DLQEntry wraps a failed job with metadata for debugging.
type DLQEntry struct {
	OriginalQueue string `json:"original_queue"`
	Job           Job    `json:"job"`
	Reason        string `json:"reason"`
	FailedAt      string `json:"failed_at"` // ISO 8601
}

// SendToDLQ parks a failed job. Errors are logged, never returned: the job
// has already failed and there is nothing left to unwind.
func SendToDLQ(ctx context.Context, rdb listPusher, queue string, job Job, reason string) {
	entry := DLQEntry{
		OriginalQueue: queue,
		Job:           job,
		Reason:        reason,
		FailedAt:      time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: failed to marshal entry")
		return
	}

	dlqKey := DLQPrefix + queue
	if err := rdb.LPush(ctx, dlqKey, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", dlqKey).Msg("dlq: failed to push to DLQ")
		return
	}

	log.Warn().
		Str("queue", queue).
		Str("job_type", job.Type).
		Str("reason", reason).
		Int("attempts", job.Attempts).
		Msg("dlq: job moved to dead letter queue")
}

// DLQLength returns the number of entries in a DLQ for monitoring.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}

type dlqStore interface {
	listPusher
	RPop(ctx context.Context, key string) *redis.StringCmd
}

// ReplayDLQ moves up to batch of the oldest entries back onto queue with a
// fresh attempt budget. Entries past MaxReplays go to the dead list instead.
// It returns how many jobs were requeued.
func ReplayDLQ(ctx context.Context, rdb dlqStore, queue string, batch int) (int, error) {
	requeued := 0
	for i := 0; i < batch; i++ {
		raw, err := rdb.RPop(ctx, DLQPrefix+queue).Result()
		if errors.Is(err, redis.Nil) {
			return requeued, nil
		}
		if err != nil {
			return requeued, err
		}

		var entry DLQEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("dlq: unreadable entry dropped")
			continue
		}
		if entry.Job.Replays >= MaxReplays {
			if err := rdb.LPush(ctx, DLQPrefix+queue+DeadSuffix, raw).Err(); err != nil {
				return requeued, err
			}
			continue
		}

		job := entry.Job
		job.Attempts = 0
		job.Replays++
		if err := push(ctx, rdb, queue, job); err != nil {
			return requeued, err
		}
		requeued++
	}
	return requeued, nil
}
