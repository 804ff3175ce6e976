package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florstein/ledger-reconciler/internal/jobs"
)

func noBackoff(int) time.Duration { return time.Millisecond }

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.ReconcileDocumentJob {
	t.Helper()
	var got *jobs.ReconcileDocumentJob
	require.Eventually(t, func() bool {
		job, err := store.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		got = job
		return job.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestQueue_PublishFillsDefaults(t *testing.T) {
	store := NewStore()
	q := NewQueue(QueueOptions{BufferSize: 1, MaxRetries: 2}, store)
	defer q.Close()

	job := &jobs.ReconcileDocumentJob{TenantID: "t1", TextURI: "gs://b/a.txt"}
	require.NoError(t, q.PublishReconcileDocument(context.Background(), job))

	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, jobs.JobStatusPending, job.Status)
	assert.False(t, job.CreatedAt.IsZero())
	assert.Equal(t, 2, job.MaxRetries)

	stored, err := store.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, "gs://b/a.txt", stored.TextURI)
}

func TestQueue_ProcessesJobs(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(QueueOptions{BufferSize: 10, Workers: 2}, store)

	var handled atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.ReconcileDocumentJob) error {
		handled.Add(1)
		job.TransactionID = "tx-" + job.JobID
		return nil
	}))

	for _, id := range []string{"j1", "j2", "j3"} {
		require.NoError(t, q.PublishReconcileDocument(ctx, &jobs.ReconcileDocumentJob{JobID: id, TenantID: "t1"}))
	}

	for _, id := range []string{"j1", "j2", "j3"} {
		job := waitForStatus(t, store, id, jobs.JobStatusCompleted)
		assert.Equal(t, "tx-"+id, job.TransactionID)
		assert.NotNil(t, job.StartedAt)
		assert.NotNil(t, job.CompletedAt)
	}
	assert.Equal(t, int32(3), handled.Load())
	require.NoError(t, q.Stop(ctx))
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(QueueOptions{BufferSize: 1, Workers: 1, MaxRetries: 3, Backoff: noBackoff}, store)
	defer q.Close()

	var attempts atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.ReconcileDocumentJob) error {
		if attempts.Add(1) < 3 {
			return errors.New("storage unavailable")
		}
		return nil
	}))
	require.NoError(t, q.PublishReconcileDocument(ctx, &jobs.ReconcileDocumentJob{JobID: "j1", TenantID: "t1"}))

	job := waitForStatus(t, store, "j1", jobs.JobStatusCompleted)
	assert.Equal(t, 2, job.RetryCount)
	assert.Empty(t, job.Error)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestQueue_FailsAfterRetryBudget(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(QueueOptions{BufferSize: 1, Workers: 1, MaxRetries: 1, Backoff: noBackoff}, store)
	defer q.Close()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.ReconcileDocumentJob) error {
		return errors.New("bad text")
	}))
	require.NoError(t, q.PublishReconcileDocument(ctx, &jobs.ReconcileDocumentJob{JobID: "j1", TenantID: "t1"}))

	job := waitForStatus(t, store, "j1", jobs.JobStatusFailed)
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, "bad text", job.Error)
}

func TestQueue_NegativeRetriesDisableRetry(t *testing.T) {
	q := NewQueue(QueueOptions{MaxRetries: -1}, nil)
	assert.Equal(t, 0, q.opts.MaxRetries)
	assert.Equal(t, defaultWorkers, q.opts.Workers)
}

func TestQueue_ClosedQueueRejects(t *testing.T) {
	q := NewQueue(QueueOptions{BufferSize: 1}, nil)
	require.NoError(t, q.Stop(context.Background()))
	require.NoError(t, q.Stop(context.Background()), "stop is idempotent")

	err := q.PublishReconcileDocument(context.Background(), &jobs.ReconcileDocumentJob{TenantID: "t1"})
	assert.ErrorIs(t, err, jobs.ErrQueueClosed)

	err = q.Start(context.Background(), func(context.Context, *jobs.ReconcileDocumentJob) error { return nil })
	assert.ErrorIs(t, err, jobs.ErrQueueClosed)
}

func TestQueue_PublishHonoursContext(t *testing.T) {
	q := NewQueue(QueueOptions{BufferSize: 0}, nil)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.PublishReconcileDocument(ctx, &jobs.ReconcileDocumentJob{TenantID: "t1"})
	assert.ErrorIs(t, err, context.Canceled)
}
