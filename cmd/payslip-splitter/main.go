package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Lllllllleong/payslipflow/internal/gcp"
	"github.com/Lllllllleong/payslipflow/internal/models"
	"github.com/Lllllllleong/payslipflow/internal/ocr"
	"github.com/Lllllllleong/payslipflow/internal/pdf"
	"github.com/Lllllllleong/payslipflow/internal/services"
)

func main() {
	var (
		input          = flag.String("input", "", "source PDF to split (required)")
		outDir         = flag.String("out-dir", gcp.GetEnv("OUT_DIR", ""), "deliver split payslips into this local directory")
		bucket         = flag.String("bucket", gcp.GetEnv("DELIVERY_BUCKET", ""), "deliver split payslips into this GCS bucket instead of a local directory")
		bucketPrefix   = flag.String("bucket-prefix", gcp.GetEnv("DELIVERY_PREFIX", "payslips"), "object prefix inside -bucket")
		ledgerPath     = flag.String("ledger", gcp.GetEnv("LEDGER_PATH", "uploaded_files.json"), "path of the delivery ledger file")
		tierName       = flag.String("tier", gcp.GetEnv("EXTRACTION_TIER", "Hybrid"), "extraction tier: Normal, Hybrid or \"Full OCR\"")
		template       = flag.String("template", gcp.GetEnv("NAMING_TEMPLATE", services.DefaultNamingTemplate), "display filename template")
		startMarker    = flag.String("start-marker", "", "override the group start marker")
		endMarker      = flag.String("end-marker", "", "override the group end marker")
		maxAttempts    = flag.Int("max-attempts", 0, "override total delivery attempts per document")
		workers        = flag.Int("workers", 1, "concurrent deliveries")
		deliverMissing = flag.Bool("deliver-missing", false, "also deliver documents whose details could not be extracted")
		retry          = flag.String("retry", "", "comma-separated canonical keys to re-deliver after the automatic pass")
		resetLedger    = flag.Bool("reset-ledger", false, "truncate the file ledger before processing")
		summaryPath    = flag.String("summary", "", "write the run summary JSON to this path")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Error: -input is required")
		os.Exit(1)
	}
	if *outDir == "" && *bucket == "" {
		fmt.Fprintln(os.Stderr, "Error: one of -out-dir or -bucket is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := services.DefaultProcessorConfig()
	tier, err := models.ParseTier(*tierName)
	if err != nil {
		logger.Error("Invalid extraction tier.", "tier", *tierName, "error", err)
		os.Exit(1)
	}
	cfg.Tier = tier
	cfg.NamingTemplate = *template
	if *startMarker != "" {
		cfg.Markers.Start = *startMarker
	}
	if *endMarker != "" {
		cfg.Markers.End = *endMarker
	}
	cfg.Extractor.Markers = cfg.Markers
	if *maxAttempts > 0 {
		cfg.Backoff.MaxAttempts = *maxAttempts
	}
	if *workers > 0 {
		cfg.DeliveryWorkers = *workers
	}
	cfg.DeliverMissing = *deliverMissing

	sink, store, err := buildSinkAndStore(ctx, *outDir, *bucket, *bucketPrefix, *ledgerPath, *resetLedger)
	if err != nil {
		logger.Error("Failed to set up delivery target.", "error", err)
		os.Exit(1)
	}

	ledger, err := services.NewLedger(ctx, store)
	if err != nil {
		logger.Error("Failed to load delivery ledger.", "error", err)
		os.Exit(1)
	}

	raw, err := os.ReadFile(*input)
	if err != nil {
		logger.Error("Failed to read source PDF.", "path", *input, "error", err)
		os.Exit(1)
	}
	src, err := pdf.Open(raw)
	if err != nil {
		logger.Error("Failed to open source PDF.", "path", *input, "error", err)
		os.Exit(1)
	}
	defer src.Close()

	engine := ocr.NewTesseract(nil, int(cfg.Extractor.DPI))
	processor := services.NewProcessor(cfg, engine, sink, ledger, logger)

	session, err := processor.Run(ctx, src)
	if err != nil {
		logger.Error("Processing run failed.", "error", err)
		os.Exit(1)
	}

	results := processor.DeliverAuto(ctx, session)
	if keys := splitKeys(*retry); len(keys) > 0 {
		results = append(results, processor.Retry(ctx, session, keys)...)
	}

	summary := session.Summary()
	if *summaryPath != "" {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err == nil {
			err = os.WriteFile(*summaryPath, data, 0644)
		}
		if err != nil {
			logger.Error("Failed to write run summary.", "path", *summaryPath, "error", err)
			os.Exit(1)
		}
	}

	printSummary(summary)

	var failed int
	for _, res := range results {
		if res.Outcome == services.OutcomeFailed {
			failed++
		}
	}
	logger.Info("Run complete.",
		"runId", summary.RunID,
		"pageCount", summary.PageCount,
		"documents", len(summary.Documents),
		"counts", summary.Counts,
		"deliveryFailures", failed,
	)
	if failed > 0 {
		os.Exit(1)
	}
}

func buildSinkAndStore(ctx context.Context, outDir, bucket, prefix, ledgerPath string, reset bool) (services.Sink, services.LedgerStore, error) {
	if bucket != "" {
		client, err := gcp.NewStorageClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		sink := gcp.NewStorageSink(client, bucket, prefix)
		store := gcp.NewStorageLedgerStore(client, bucket, ledgerPath)
		return sink, store, nil
	}

	sink, err := services.NewDirectorySink(outDir)
	if err != nil {
		return nil, nil, err
	}
	store := services.NewFileLedgerStore(ledgerPath)
	if reset {
		if err := store.Reset(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to reset ledger: %w", err)
		}
	}
	return sink, store, nil
}

func splitKeys(s string) []string {
	if s == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func printSummary(summary models.RunSummary) {
	fmt.Printf("Run %s: %d pages, %d documents\n", summary.RunID, summary.PageCount, len(summary.Documents))
	for _, doc := range summary.Documents {
		fmt.Printf("- %-16s %s (%s, %d pages, %d attempts)\n",
			doc.Status, doc.Key, doc.Filename, len(doc.Pages), doc.Attempts)
	}
	for status, n := range summary.Counts {
		fmt.Printf("  %s: %d\n", status, n)
	}
}
