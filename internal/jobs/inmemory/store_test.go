package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florstein/ledger-reconciler/internal/jobs"
)

func TestStore_SaveAndGetCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	job := &jobs.ReconcileDocumentJob{JobID: "j1", TenantID: "t1", Status: jobs.JobStatusPending}
	require.NoError(t, s.SaveJob(ctx, job))
	job.Status = jobs.JobStatusFailed

	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, got.Status)

	got.TenantID = "other"
	again, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "t1", again.TenantID)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	assert.Error(t, s.SaveJob(ctx, &jobs.ReconcileDocumentJob{}))

	_, err := s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)

	err = s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, "boom")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
}

func TestStore_UpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.SaveJob(ctx, &jobs.ReconcileDocumentJob{JobID: "j1", Error: "old"}))

	require.NoError(t, s.UpdateJobStatus(ctx, "j1", jobs.JobStatusRunning, ""))
	got, _ := s.GetJob(ctx, "j1")
	assert.Equal(t, jobs.JobStatusRunning, got.Status)
	assert.Equal(t, "old", got.Error)

	require.NoError(t, s.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "boom"))
	got, _ = s.GetJob(ctx, "j1")
	assert.Equal(t, "boom", got.Error)
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, j := range []jobs.ReconcileDocumentJob{
		{JobID: "c", TenantID: "t1", Status: jobs.JobStatusCompleted},
		{JobID: "a", TenantID: "t1", Status: jobs.JobStatusPending},
		{JobID: "b", TenantID: "t2", Status: jobs.JobStatusPending},
		{JobID: "d", TenantID: "t1", Status: jobs.JobStatusPending},
	} {
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.SaveJob(ctx, &j))
	}

	ids := func(list []*jobs.ReconcileDocumentJob) []string {
		var out []string
		for _, j := range list {
			out = append(out, j.JobID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all in creation order", jobs.JobFilter{}, []string{"c", "a", "b", "d"}},
		{"by tenant", jobs.JobFilter{TenantID: "t1"}, []string{"c", "a", "d"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusPending}, []string{"a", "b", "d"}},
		{"limit and offset", jobs.JobFilter{Offset: 1, Limit: 2}, []string{"a", "b"}},
		{"offset past end", jobs.JobFilter{Offset: 10}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}
