package worker

// dlq.go
// Jobs that keep failing are buried in a per-queue Redis list
// (dlq:{queue}) instead of being dropped. Buried audit events can be
// drained back into the source queue once the underlying fault is fixed,
// so the audit trail stays complete even across outages.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const dlqPrefix = "dlq:"

// DeadLetter is one buried job plus the context needed to triage it.
type DeadLetter struct {
	Queue    string          `json:"queue"`
	JobType  string          `json:"job_type"`
	Payload  json.RawMessage `json:"payload"`
	Reason   string          `json:"reason"`
	Attempts int             `json:"attempts"`
	BuriedAt time.Time       `json:"buried_at"`
}

// bury moves a job that exhausted its retries into the dead letter list.
func bury(ctx context.Context, rdb *redis.Client, queue string, job Job, reason string) {
	letter := DeadLetter{
		Queue:    queue,
		JobType:  job.Type,
		Payload:  job.Payload,
		Reason:   reason,
		Attempts: job.Attempts,
		BuriedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(letter)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: marshal failed, job lost")
		return
	}
	if err := rdb.LPush(ctx, dlqPrefix+queue, data).Err(); err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: push failed, job lost")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("job_type", job.Type).
		Str("reason", reason).
		Int("attempts", job.Attempts).
		Msg("dlq: job buried after exhausting retries")
}

// DLQLength reports how many jobs are buried for a queue.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, dlqPrefix+queue).Result()
}

// RequeueDLQ drains up to max buried jobs back into their source queue with
// a reset attempt counter. Invoked operationally after the fault behind the
// failures is resolved.
func RequeueDLQ(ctx context.Context, rdb *redis.Client, queue string, max int) (int, error) {
	requeued := 0
	for requeued < max {
		raw, err := rdb.RPop(ctx, dlqPrefix+queue).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return requeued, err
		}
		var letter DeadLetter
		if uerr := json.Unmarshal([]byte(raw), &letter); uerr != nil {
			log.Error().Err(uerr).Str("queue", queue).Msg("dlq: skipping unreadable entry")
			continue
		}
		job := Job{Type: letter.JobType, Payload: letter.Payload}
		data, merr := json.Marshal(job)
		if merr != nil {
			return requeued, merr
		}
		if perr := rdb.LPush(ctx, queue, data).Err(); perr != nil {
			return requeued, perr
		}
		requeued++
	}
	if requeued > 0 {
		log.Info().Int("count", requeued).Str("queue", queue).Msg("dlq: jobs requeued")
	}
	return requeued, nil
}
