// Package worker delivers queued email jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/pkg/queue"
)

// PollTimeout bounds one blocking dequeue so shutdown is noticed promptly.
const PollTimeout = 5 * time.Second

// Sender delivers one rendered email.
type Sender interface {
	Send(ctx context.Context, msg queue.EmailPayload) error
}

// JobQueue is the part of the Redis queue the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job, cause error) (bool, error)
	DeadLetter(ctx context.Context, job *queue.Job, cause error) error
}

// EmailProcessor processes email jobs: decode, send with exponential backoff, retry or dead-letter.
type EmailProcessor struct {
	queue      JobQueue
	sender     Sender
	maxElapsed time.Duration
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

// NewEmailProcessor creates an email processor. maxElapsed bounds the in-process backoff of a
// single attempt before the job goes back to the queue.
func NewEmailProcessor(q JobQueue, sender Sender, maxElapsed time.Duration, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &EmailProcessor{queue: q, sender: sender, maxElapsed: maxElapsed, logger: logger}
	p.newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = p.maxElapsed
		return b
	}
	return p
}

// errInvalidJob marks jobs no retry can deliver.
var errInvalidJob = errors.New("invalid email job")

// Process executes one email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	msg, err := job.Email()
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidJob, err)
	}
	if strings.TrimSpace(msg.RecipientEmail) == "" {
		return fmt.Errorf("%w: job %s has no recipient", errInvalidJob, job.ID)
	}

	attempt := 0
	send := func() error {
		attempt++
		err := p.sender.Send(ctx, msg)
		if err != nil {
			p.logger.Debug("email send failed", zap.String("job_id", job.ID), zap.Int("try", attempt), zap.Error(err))
		}
		return err
	}
	if err := backoff.Retry(send, backoff.WithContext(p.newBackOff(), ctx)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	p.logger.Info("email sent", zap.String("job_id", job.ID), zap.String("kind", string(msg.Kind)),
		zap.String("to", msg.RecipientEmail))
	return nil
}

// handle processes a job and requeues or dead-letters it on failure.
func (p *EmailProcessor) handle(ctx context.Context, job *queue.Job) {
	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	err := p.Process(ctx, job)
	if err == nil {
		return
	}
	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
	if errors.Is(err, errInvalidJob) {
		if dlErr := p.queue.DeadLetter(ctx, job, err); dlErr != nil {
			p.logger.Error("dead-letter failed", zap.Error(dlErr))
		}
		return
	}
	if _, reErr := p.queue.Retry(ctx, job, err); reErr != nil {
		p.logger.Error("retry enqueue failed", zap.Error(reErr))
	}
}

// Run starts the worker loop until ctx is cancelled.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("email worker stopping")
			return
		}
		job, err := p.queue.Dequeue(ctx, PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}
		p.handle(ctx, job)
	}
}
