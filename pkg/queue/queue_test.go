package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestQueue(t *testing.T, maxRetries int) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, maxRetries, zaptest.NewLogger(t)), mr
}

func TestEnqueueDequeueEmail(t *testing.T) {
	q, _ := newTestQueue(t, 3)
	ctx := context.Background()

	require.NoError(t, q.EnqueueEmail(ctx, EmailPayload{
		Kind:           EmailOTP,
		RecipientEmail: "a@example.com",
		Subject:        "Your code",
		Body:           "123456",
	}))
	n, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, JobTypeEmail, job.Type)

	p, err := job.Email()
	require.NoError(t, err)
	assert.Equal(t, EmailOTP, p.Kind)
	assert.Equal(t, "a@example.com", p.RecipientEmail)
}

func TestRetryThenDeadLetter(t *testing.T) {
	q, _ := newTestQueue(t, 2)
	ctx := context.Background()
	require.NoError(t, q.EnqueueEmail(ctx, EmailPayload{Kind: EmailApprovalDecided, RecipientEmail: "b@example.com"}))

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)

	dead, err := q.Retry(ctx, job, errors.New("smtp down"))
	require.NoError(t, err)
	assert.False(t, dead)

	job, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 1, job.Attempt)
	assert.Equal(t, "smtp down", job.LastError)

	dead, err = q.Retry(ctx, job, errors.New("smtp down"))
	require.NoError(t, err)
	assert.True(t, dead)

	pending, _ := q.Pending(ctx)
	dlq, _ := q.DeadLetters(ctx)
	assert.EqualValues(t, 0, pending)
	assert.EqualValues(t, 1, dlq)
}

func TestDequeueMalformedGoesToDLQ(t *testing.T) {
	q, mr := newTestQueue(t, 3)
	ctx := context.Background()
	_, err := mr.Push(QueueEmails, "{not json")
	require.NoError(t, err)

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Nil(t, job)
	dlq, _ := q.DeadLetters(ctx)
	assert.EqualValues(t, 1, dlq)
}

func TestJobEmailRejectsOtherTypes(t *testing.T) {
	j := &Job{ID: "x", Type: "report"}
	_, err := j.Email()
	assert.Error(t, err)
}
