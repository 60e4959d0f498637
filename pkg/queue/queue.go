package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueEmails is the Redis list key for email jobs.
	QueueEmails = "worker:emails"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// DefaultMaxRetries is the number of attempts before a job moves to the DLQ.
	DefaultMaxRetries = 3
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeEmail JobType = "email"
)

// EmailKind tells the worker which message the email carries.
type EmailKind string

const (
	EmailOTP             EmailKind = "otp"
	EmailApprovalDecided EmailKind = "approval_decided"
)

// EmailPayload is the payload for email jobs. Subject and body are rendered by the producer.
type EmailPayload struct {
	Kind           EmailKind `json:"kind"`
	RecipientEmail string    `json:"recipient_email"`
	RecipientName  string    `json:"recipient_name,omitempty"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Email decodes the job payload as an email.
func (j *Job) Email() (EmailPayload, error) {
	var p EmailPayload
	if j.Type != JobTypeEmail {
		return p, fmt.Errorf("job %s is %q, not email", j.ID, j.Type)
	}
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return p, fmt.Errorf("decode email payload: %w", err)
	}
	return p, nil
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client     *redis.Client
	logger     *zap.Logger
	maxRetries int
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, maxRetries int, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Queue{client: client, logger: logger, maxRetries: maxRetries}
}

// EnqueueEmail enqueues an email job.
func (q *Queue) EnqueueEmail(ctx context.Context, payload EmailPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      JobTypeEmail,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}
	if err := q.push(ctx, QueueEmails, &job); err != nil {
		return err
	}
	q.logger.Debug("enqueued email job", zap.String("job_id", job.ID), zap.String("kind", string(payload.Kind)))
	return nil
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for an email job. A nil job with nil error means the wait timed out
// or the entry was malformed.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueEmails).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		if err := q.client.RPush(ctx, QueueDLQ, result[1]).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err))
		}
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. Once the attempt reaches the retry
// limit the job is pushed to the DLQ instead. It reports whether the job was dead-lettered.
func (q *Queue) Retry(ctx context.Context, job *Job, cause error) (bool, error) {
	job.Attempt++
	if cause != nil {
		job.LastError = cause.Error()
	}
	if job.Attempt >= q.maxRetries {
		if err := q.DeadLetter(ctx, job, nil); err != nil {
			return false, err
		}
		return true, nil
	}
	if err := q.push(ctx, QueueEmails, job); err != nil {
		return false, err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return false, nil
}

// DeadLetter moves a job straight to the DLQ, for failures retrying cannot fix.
func (q *Queue) DeadLetter(ctx context.Context, job *Job, cause error) error {
	if cause != nil {
		job.LastError = cause.Error()
	}
	if err := q.push(ctx, QueueDLQ, job); err != nil {
		q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
		return err
	}
	q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// Pending returns the number of queued email jobs.
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, QueueEmails).Result()
}

// DeadLetters returns the number of dead-lettered jobs.
func (q *Queue) DeadLetters(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, QueueDLQ).Result()
}
