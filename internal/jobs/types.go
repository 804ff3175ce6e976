// Package jobs describes asynchronous reconcile work and the queue contracts
// that carry it.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/florstein/ledger-reconciler/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeReconcileDocument reconciles one extracted text object.
	JobTypeReconcileDocument JobType = "reconcile_document"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed and will not be retried.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is scheduled again.
	JobStatusRetrying JobStatus = "retrying"
)

// ErrJobNotFound is returned by a JobStore for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// ErrQueueClosed is returned when publishing to or starting a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// ReconcileDocumentJob asks a worker to reconcile the text stored at TextURI
// for one tenant.
type ReconcileDocumentJob struct {
	JobID    string `json:"job_id"`
	TenantID string `json:"tenant_id"`

	// TextURI is a gs:// URI or a local path holding extracted text.
	TextURI string `json:"text_uri"`

	// DocTypeHint overrides the classifier when it names a known type.
	DocTypeHint domain.DocType `json:"doc_type_hint,omitempty"`

	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// TransactionID is set once the job completes.
	TransactionID string `json:"transaction_id,omitempty"`

	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ReconcileDocumentJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ReconcileDocumentJob) GetType() JobType {
	return JobTypeReconcileDocument
}

// GetStatus implements the Job interface.
func (j *ReconcileDocumentJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs.
type Publisher interface {
	PublishReconcileDocument(ctx context.Context, job *ReconcileDocumentJob) error
	Close() error
}

// Consumer runs a handler over queued jobs.
type Consumer interface {
	// Start begins consuming jobs; handler is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the attempt failed and
// makes the job eligible for a retry.
type JobHandler func(ctx context.Context, job *ReconcileDocumentJob) error

// JobStore keeps job state across attempts.
type JobStore interface {
	SaveJob(ctx context.Context, job *ReconcileDocumentJob) error
	GetJob(ctx context.Context, jobID string) (*ReconcileDocumentJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ReconcileDocumentJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	TenantID string
	Status   JobStatus
	Limit    int
	Offset   int
}
