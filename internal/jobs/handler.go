package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/florstein/ledger-reconciler/internal/domain"
	"github.com/florstein/ledger-reconciler/internal/logger"
	"github.com/florstein/ledger-reconciler/internal/pipeline"
)

// ErrInvalidJob is returned for jobs missing a tenant or text URI.
var ErrInvalidJob = errors.New("invalid reconcile job")

// TextReader loads extracted text by URI.
type TextReader interface {
	Read(ctx context.Context, uri string) (string, error)
}

// Reconciler runs one document through the reconciliation pipeline.
type Reconciler interface {
	ReconcileDocument(ctx context.Context, req pipeline.ReconcileRequest) (domain.ReconciledTransaction, error)
}

// NewReconcileHandler returns a JobHandler that reads the job's text and
// reconciles it, recording the stored transaction id on the job.
func NewReconcileHandler(reader TextReader, reconciler Reconciler) JobHandler {
	return func(ctx context.Context, job *ReconcileDocumentJob) error {
		if job.TenantID == "" || job.TextURI == "" {
			return fmt.Errorf("ReconcileHandler: job %s: %w", job.JobID, ErrInvalidJob)
		}

		log := logger.FromContext(ctx)
		log.Info().Str("text_uri", job.TextURI).Msg("Processing reconcile job")

		text, err := reader.Read(ctx, job.TextURI)
		if err != nil {
			return fmt.Errorf("ReconcileHandler: reading %s: %w", job.TextURI, err)
		}

		tx, err := reconciler.ReconcileDocument(ctx, pipeline.ReconcileRequest{
			TenantID:    job.TenantID,
			SourceFile:  job.TextURI,
			Text:        text,
			DocTypeHint: job.DocTypeHint,
		})
		if err != nil {
			return fmt.Errorf("ReconcileHandler: %w", err)
		}

		job.TransactionID = tx.ID
		log.Info().
			Str("transaction_id", tx.ID).
			Str("match_status", string(tx.MatchStatus)).
			Msg("Reconcile job finished")
		return nil
	}
}
