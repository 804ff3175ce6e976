package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florstein/ledger-reconciler/internal/config"
	"github.com/florstein/ledger-reconciler/internal/jobs"
	"github.com/florstein/ledger-reconciler/internal/jobs/inmemory"
	"github.com/florstein/ledger-reconciler/internal/logger"
)

func TestQueueOptions(t *testing.T) {
	tests := []struct {
		name        string
		maxRetries  int
		wantRetries int
	}{
		{"configured budget", 2, 2},
		{"zero disables retries", 0, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := queueOptions(config.WorkerConfig{QueueSize: 10, Workers: 2, MaxRetries: tt.maxRetries})
			assert.Equal(t, 10, opts.BufferSize)
			assert.Equal(t, 2, opts.Workers)
			assert.Equal(t, tt.wantRetries, opts.MaxRetries)
		})
	}
}

func TestZeroRetriesFailsJobOnFirstError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := inmemory.NewStore()
	queue := inmemory.NewQueue(queueOptions(config.WorkerConfig{QueueSize: 4, Workers: 1}), store)

	calls := 0
	require.NoError(t, queue.Start(ctx, func(ctx context.Context, job *jobs.ReconcileDocumentJob) error {
		calls++
		return errors.New("store down")
	}))

	require.NoError(t, queue.PublishReconcileDocument(ctx, &jobs.ReconcileDocumentJob{JobID: "j1", TenantID: "t1", TextURI: "a.txt"}))

	require.Eventually(t, func() bool {
		job, err := store.GetJob(ctx, "j1")
		return err == nil && job.Status == jobs.JobStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, queue.Stop(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestSubmitJobs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.jsonl")
	lines := `{"job_id":"j1","tenant_id":"t1","text_uri":"a.txt"}

not json
{"job_id":"j2","tenant_id":"t1","text_uri":"gs://b/c.txt","doc_type_hint":"card_payment"}
`
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o600))

	store := inmemory.NewStore()
	queue := inmemory.NewQueue(inmemory.QueueOptions{BufferSize: 4}, store)
	defer queue.Close()

	n, err := submitJobs(context.Background(), logger.NewWithWriter(io.Discard), queue, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := store.ListJobs(context.Background(), jobs.JobFilter{Status: jobs.JobStatusPending})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
