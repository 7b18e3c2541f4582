package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ragJob = "voice.rag_index"

func startQueue(t *testing.T, cfg Config, h Handler) *Queue {
	t.Helper()
	q := NewQueue("rag-index", cfg)
	q.Handle(ragJob, h)
	q.Start(context.Background())
	t.Cleanup(q.Stop)
	return q
}

func TestQueueRunsJobs(t *testing.T) {
	done := make(chan Job, 1)
	q := startQueue(t, Config{}, func(ctx context.Context, job Job) error {
		done <- job
		return nil
	})

	require.NoError(t, q.TryEnqueue(Job{Type: ragJob, Payload: "doc-1"}))

	select {
	case job := <-done:
		assert.NotEmpty(t, job.ID)
		assert.Equal(t, "doc-1", job.Payload)
		assert.False(t, job.Enqueued.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("job not processed")
	}
}

func TestQueueRetriesTransientFailures(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := startQueue(t, Config{MaxAttempts: 3, RetryDelay: time.Millisecond}, func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("status 503")
		}
		close(done)
		return nil
	})

	require.NoError(t, q.TryEnqueue(Job{Type: ragJob}))

	select {
	case <-done:
		assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
}

func TestQueueDoesNotRetryPermanentFailures(t *testing.T) {
	var attempts int32
	q := startQueue(t, Config{MaxAttempts: 5, RetryDelay: time.Millisecond}, func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return Permanent(errors.New("bad payload"))
	})

	require.NoError(t, q.TryEnqueue(Job{Type: ragJob}))
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&attempts))
}

func TestQueueRecoversPanics(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := startQueue(t, Config{RetryDelay: time.Millisecond}, func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) == 1 {
			panic("boom")
		}
		close(done)
		return nil
	})

	require.NoError(t, q.TryEnqueue(Job{Type: ragJob}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("panicking job was not retried")
	}
}

func TestQueueCoalescesWaitingKeys(t *testing.T) {
	block := make(chan struct{})
	q := startQueue(t, Config{Workers: 1, BufferSize: 4}, func(ctx context.Context, job Job) error {
		<-block
		return nil
	})
	defer close(block)

	require.NoError(t, q.TryEnqueue(Job{Type: ragJob, Key: "busy"}))
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, q.TryEnqueue(Job{Type: ragJob, Key: "doc-1"}))
	assert.ErrorIs(t, q.TryEnqueue(Job{Type: ragJob, Key: "doc-1"}), ErrDuplicate)
	assert.NoError(t, q.TryEnqueue(Job{Type: ragJob, Key: "doc-2"}))
}

func TestTryEnqueueWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := startQueue(t, Config{Workers: 1, BufferSize: 1}, func(ctx context.Context, job Job) error {
		<-block
		return nil
	})
	defer close(block)

	var full bool
	for i := 0; i < 5; i++ {
		if err := q.TryEnqueue(Job{Type: ragJob}); errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
	}
	assert.True(t, full)
}

func TestTryEnqueueRejectsUnknownTypeAndStoppedQueue(t *testing.T) {
	q := NewQueue("rag-index", Config{})
	q.Handle(ragJob, func(ctx context.Context, job Job) error { return nil })
	assert.Error(t, q.TryEnqueue(Job{Type: ragJob}))

	q.Start(context.Background())
	defer q.Stop()
	assert.ErrorIs(t, q.TryEnqueue(Job{Type: "unknown"}), ErrUnknownType)
}
