package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/florstein/ledger-reconciler/internal/app"
	"github.com/florstein/ledger-reconciler/internal/config"
	"github.com/florstein/ledger-reconciler/internal/domain"
	"github.com/florstein/ledger-reconciler/internal/extract"
	"github.com/florstein/ledger-reconciler/internal/gcsuploader"
	"github.com/florstein/ledger-reconciler/internal/logger"
	"github.com/florstein/ledger-reconciler/internal/pipeline"
	"github.com/florstein/ledger-reconciler/internal/repository"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithLevel(cfg.Log.Level)

	switch os.Args[1] {
	case "parse":
		runParse(log)
	case "reconcile":
		runReconcile(log, cfg)
	case "ingest-sale":
		runIngestSale(log, cfg)
	case "upload":
		runUpload(log, cfg)
	case "schema":
		runSchema(log, cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Ledger Reconciler CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  parse        Classify and parse extracted text files, print records as JSON")
	fmt.Println("  reconcile    Reconcile text files or gs:// objects against the configured store")
	fmt.Println("  ingest-sale  Record an expected sale from a free-form receipt")
	fmt.Println("  upload       Upload an extracted text file to GCS")
	fmt.Println("  schema       Create or migrate the configured store's tables")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
	fmt.Println("\nThe store is selected with LEDGER_STORE_DRIVER (memory, sqlite, bigquery).")
}

// parsedFile is one entry of the parse command's output.
type parsedFile struct {
	File    string                   `json:"file"`
	DocType domain.DocType           `json:"doc_type"`
	Record  domain.TransactionRecord `json:"record"`
}

func runParse(log zerolog.Logger) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	hint := fs.String("hint", "", "Document type hint (mp_transfer, galicia_movement, card_payment)")
	concurrency := fs.Int("concurrency", 4, "Number of files parsed in parallel")
	fs.Parse(os.Args[2:])

	files := fs.Args()
	if len(files) == 0 {
		log.Fatal().Msg("Usage: cli parse [-hint TYPE] FILE...")
	}

	ctx := logger.WithContext(context.Background(), log)
	source := app.TextSource{}
	results := make([]parsedFile, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*concurrency, 1))
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			text, err := source.Read(gctx, file)
			if err != nil {
				return err
			}
			doc, rec := extract.ParseDocument(text, domain.DocType(*hint))
			results[i] = parsedFile{File: file, DocType: doc.DocType, Record: rec}

			log.Debug().
				Str("file", file).
				Str("doc_type", string(doc.DocType)).
				Int("parse_confidence", rec.ParseConfidence).
				Msg("File parsed")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Parse failed")
	}

	printJSON(log, results)
}

func runReconcile(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	tenantID := fs.String("tenant", "", "Tenant ID (required)")
	hint := fs.String("hint", "", "Document type hint applied to every input")
	concurrency := fs.Int("concurrency", 4, "Number of documents reconciled in parallel")
	fs.Parse(os.Args[2:])

	inputs := fs.Args()
	if *tenantID == "" || len(inputs) == 0 {
		log.Fatal().Msg("Usage: cli reconcile -tenant ID [-hint TYPE] FILE|gs://URI...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store := openStore(ctx, log, cfg)
	defer store.Close()

	source, closeSource := textSource(ctx, log, inputs)
	defer closeSource()

	svc := pipeline.NewService(store, cfg.MatcherConfig())
	results := make([]domain.ReconciledTransaction, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*concurrency, 1))
	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			text, err := source.Read(gctx, input)
			if err != nil {
				return err
			}
			tx, err := svc.ReconcileDocument(gctx, pipeline.ReconcileRequest{
				TenantID:    *tenantID,
				SourceFile:  sourceName(input),
				Text:        text,
				DocTypeHint: domain.DocType(*hint),
			})
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			results[i] = tx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Reconcile failed")
	}

	printJSON(log, results)
}

func runIngestSale(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("ingest-sale", flag.ExitOnError)
	tenantID := fs.String("tenant", "", "Tenant ID (required)")
	file := fs.String("file", "", "Path or gs:// URI of the receipt text (required)")
	description := fs.String("description", "", "Free-form description stored with the sale")
	draftOnly := fs.Bool("draft", false, "Print the parsed sale without storing it")
	fs.Parse(os.Args[2:])

	if *tenantID == "" || *file == "" {
		log.Fatal().Msg("Usage: cli ingest-sale -tenant ID -file PATH [-description TEXT] [-draft]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	source, closeSource := textSource(ctx, log, []string{*file})
	defer closeSource()

	text, err := source.Read(ctx, *file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read receipt")
	}

	if *draftOnly {
		draft := extract.ParseSale(text)
		if !draft.Amount.Valid {
			log.Warn().Msg("No amount found; the sale could not be stored as is")
		}
		sale := pipeline.SaleFromDraft(draft, *tenantID, "", time.Now())
		sale.Description = *description
		printJSON(log, sale)
		return
	}

	store := openStore(ctx, log, cfg)
	defer store.Close()

	sale, err := pipeline.NewService(store, cfg.MatcherConfig()).IngestSale(ctx, pipeline.SaleRequest{
		TenantID:    *tenantID,
		Text:        text,
		Description: *description,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Sale ingestion failed")
	}

	printJSON(log, sale)
}

func runUpload(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", cfg.GCS.Bucket, "GCS bucket name (defaults to LEDGER_GCS_BUCKET)")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local text file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}
	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	text, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read file")
	}

	svc, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage service")
	}
	defer svc.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading text to GCS")

	uri, err := svc.UploadText(ctx, *bucketName, *objectName, text)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
}

func runSchema(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("schema", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store := openStore(ctx, log, cfg)
	defer store.Close()

	if err := app.EnsureSchema(ctx, store); err != nil {
		log.Fatal().Err(err).Msg("Schema setup failed")
	}

	fmt.Printf("Schema ready for %s store.\n", cfg.Store.Driver)
}

func openStore(ctx context.Context, log zerolog.Logger, cfg *config.Config) repository.Store {
	if cfg.Store.Driver == config.DriverMemory {
		log.Warn().Msg("Using the in-memory store; nothing is kept after this command exits")
	}
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	return store
}

// textSource creates a GCS-backed source only when an input needs one.
func textSource(ctx context.Context, log zerolog.Logger, inputs []string) (app.TextSource, func()) {
	for _, in := range inputs {
		if !gcsuploader.IsGCSURI(in) {
			continue
		}
		svc, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage service")
		}
		return app.TextSource{Storage: svc}, func() { _ = svc.Close() }
	}
	return app.TextSource{}, func() {}
}

func sourceName(input string) string {
	if gcsuploader.IsGCSURI(input) {
		return gcsuploader.ExtractFilenameFromGCSURI(input)
	}
	return filepath.Base(input)
}

func printJSON(log zerolog.Logger, v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}
