package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/florstein/ledger-reconciler/internal/app"
	"github.com/florstein/ledger-reconciler/internal/config"
	"github.com/florstein/ledger-reconciler/internal/gcsuploader"
	"github.com/florstein/ledger-reconciler/internal/jobs"
	"github.com/florstein/ledger-reconciler/internal/jobs/inmemory"
	"github.com/florstein/ledger-reconciler/internal/logger"
	"github.com/florstein/ledger-reconciler/internal/pipeline"
)

func main() {
	jobsPath := flag.String("jobs", "-", "JSON-lines file of reconcile jobs, '-' for stdin")
	drain := flag.Bool("drain", false, "Exit once every submitted job has finished")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithLevel(cfg.Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("GCS unavailable; only local text paths can be processed")
	}
	source := app.TextSource{}
	if storage != nil {
		source.Storage = storage
		defer storage.Close()
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(queueOptions(cfg.Worker), jobStore)

	handler := jobs.NewReconcileHandler(source, pipeline.NewService(store, cfg.MatcherConfig()))
	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, reading jobs")

	submitted, err := submitJobs(ctx, log, jobQueue, *jobsPath)
	if err != nil {
		log.Error().Err(err).Msg("Reading jobs failed")
	}
	log.Info().Int("submitted", submitted).Msg("Jobs submitted")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if *drain {
		waitForJobs(ctx, log, jobStore, submitted, quit)
	} else {
		<-quit
	}

	log.Info().Msg("Shutting down worker service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	reportJobs(log, jobStore)
	log.Info().Msg("Worker service exited")
}

// queueOptions maps worker settings onto the queue. A configured zero
// retry budget disables retries; the queue reads zero as its default.
func queueOptions(w config.WorkerConfig) inmemory.QueueOptions {
	opts := inmemory.QueueOptions{
		BufferSize: w.QueueSize,
		Workers:    w.Workers,
		MaxRetries: w.MaxRetries,
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = -1
	}
	return opts
}

// submitJobs publishes one job per non-empty input line.
func submitJobs(ctx context.Context, log zerolog.Logger, publisher jobs.Publisher, path string) (int, error) {
	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return 0, fmt.Errorf("submitJobs: %w", err)
		}
		defer f.Close()
		in = f
	}

	submitted := 0
	scanner := bufio.NewScanner(in)
	for line := 1; scanner.Scan(); line++ {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var job jobs.ReconcileDocumentJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			log.Warn().Err(err).Int("line", line).Msg("Skipping malformed job")
			continue
		}
		if err := publisher.PublishReconcileDocument(ctx, &job); err != nil {
			return submitted, fmt.Errorf("submitJobs: line %d: %w", line, err)
		}
		submitted++
	}
	if err := scanner.Err(); err != nil {
		return submitted, fmt.Errorf("submitJobs: %w", err)
	}
	return submitted, nil
}

// waitForJobs polls the job store until n jobs reached a final state or a
// signal arrives.
func waitForJobs(ctx context.Context, log zerolog.Logger, store jobs.JobStore, n int, quit <-chan os.Signal) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		done := 0
		for _, status := range []jobs.JobStatus{jobs.JobStatusCompleted, jobs.JobStatusFailed} {
			list, err := store.ListJobs(ctx, jobs.JobFilter{Status: status})
			if err != nil {
				log.Error().Err(err).Msg("Listing jobs failed")
				return
			}
			done += len(list)
		}
		if done >= n {
			return
		}

		select {
		case <-quit:
			return
		case <-ticker.C:
		}
	}
}

func reportJobs(log zerolog.Logger, store jobs.JobStore) {
	list, err := store.ListJobs(context.Background(), jobs.JobFilter{})
	if err != nil {
		log.Error().Err(err).Msg("Listing jobs failed")
		return
	}
	for _, job := range list {
		event := log.Info()
		if job.Status != jobs.JobStatusCompleted {
			event = log.Warn()
		}
		event.
			Str("job_id", job.JobID).
			Str("tenant_id", job.TenantID).
			Str("status", string(job.Status)).
			Str("transaction_id", job.TransactionID).
			Int("retries", job.RetryCount).
			Str("error", job.Error).
			Msg("Job summary")
	}
}
