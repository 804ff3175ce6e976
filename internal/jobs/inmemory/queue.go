// Package inmemory provides a channel-backed job queue and a map-backed job
// store for single-instance deployments and tests.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/florstein/ledger-reconciler/internal/jobs"
	"github.com/florstein/ledger-reconciler/internal/logger"
)

const (
	defaultWorkers    = 5
	defaultMaxRetries = 3
)

// QueueOptions tunes a Queue. Zero values fall back to defaults; a negative
// MaxRetries disables retries.
type QueueOptions struct {
	BufferSize int
	Workers    int
	MaxRetries int
	// Backoff returns the delay before retry attempt n (1-based). The
	// default is n seconds.
	Backoff func(attempt int) time.Duration
}

// Queue is an in-memory job publisher and consumer. It uses a buffered
// channel for distribution and is safe for concurrent use.
type Queue struct {
	jobChan   chan *jobs.ReconcileDocumentJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	opts      QueueOptions
	closed    bool
}

// NewQueue creates a new in-memory job queue. store may be nil.
func NewQueue(opts QueueOptions, store jobs.JobStore) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	switch {
	case opts.MaxRetries == 0:
		opts.MaxRetries = defaultMaxRetries
	case opts.MaxRetries < 0:
		opts.MaxRetries = 0
	}
	if opts.Backoff == nil {
		opts.Backoff = func(attempt int) time.Duration { return time.Duration(attempt) * time.Second }
	}
	return &Queue{
		jobChan:   make(chan *jobs.ReconcileDocumentJob, max(opts.BufferSize, 0)),
		closeChan: make(chan struct{}),
		store:     store,
		opts:      opts,
	}
}

// PublishReconcileDocument implements the Publisher interface. It fills in
// the id, status, creation time and retry budget when they are unset.
func (q *Queue) PublishReconcileDocument(ctx context.Context, job *jobs.ReconcileDocumentJob) error {
	if q.isClosed() {
		return fmt.Errorf("PublishReconcileDocument: %w", jobs.ErrQueueClosed)
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.opts.MaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("PublishReconcileDocument: saving job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("PublishReconcileDocument: %w", jobs.ErrQueueClosed)
	}
}

// Start implements the Consumer interface. It launches the configured number
// of workers and returns immediately.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	if q.isClosed() {
		return fmt.Errorf("Start: %w", jobs.ErrQueueClosed)
	}

	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i, handler)
	}
	log := logger.FromContext(ctx)
	log.Info().Int("workers", q.opts.Workers).Msg("Job queue started")
	return nil
}

func (q *Queue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *Queue) worker(ctx context.Context, id int, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, id, job, handler)
		}
	}
}

// processJob runs one attempt and schedules a retry while budget remains.
func (q *Queue) processJob(ctx context.Context, workerID int, job *jobs.ReconcileDocumentJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().
		Int("worker", workerID).
		Str("job_id", job.JobID).
		Str("tenant_id", job.TenantID).
		Int("attempt", job.RetryCount+1).
		Logger()

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	q.save(ctx, job)

	err := handler(logger.WithContext(ctx, log), job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err == nil {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.save(ctx, job)
		log.Info().Dur("duration", completedAt.Sub(now)).Msg("Job completed")
		return
	}

	job.Error = err.Error()
	if job.RetryCount >= job.MaxRetries {
		job.Status = jobs.JobStatusFailed
		q.save(ctx, job)
		log.Error().Err(err).Msg("Job failed")
		return
	}

	job.RetryCount++
	job.Status = jobs.JobStatusRetrying
	q.save(ctx, job)

	backoff := q.opts.Backoff(job.RetryCount)
	log.Warn().Err(err).Dur("backoff", backoff).Msg("Job failed, retrying")

	retry := *job
	time.AfterFunc(backoff, func() {
		retry.Status = jobs.JobStatusPending
		retry.StartedAt = nil
		retry.CompletedAt = nil
		if err := q.PublishReconcileDocument(ctx, &retry); err != nil {
			log.Warn().Err(err).Msg("Could not requeue job")
		}
	})
}

func (q *Queue) save(ctx context.Context, job *jobs.ReconcileDocumentJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop implements the Consumer interface. It stops the queue and waits for
// in-flight jobs until ctx is done. Jobs still buffered are dropped.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
