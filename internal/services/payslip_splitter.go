package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/payslipflow/internal/gcp"
	"github.com/Lllllllleong/payslipflow/internal/models"
	"github.com/Lllllllleong/payslipflow/internal/ocr"
	"github.com/Lllllllleong/payslipflow/internal/pdf"
)

type PayslipSplitterConfig struct {
	ProjectID        string
	DeliveryBucket   string
	DeliveryPrefix   string
	LedgerCollection string
	Processor        ProcessorConfig
}

// PayslipSplitterFunction is the event-driven entrypoint wiring: a GCS sink,
// a Firestore-backed ledger and a processor, built once per instance.
type PayslipSplitterFunction struct {
	storageClient *storage.Client
	processor     *Processor
	config        PayslipSplitterConfig
}

type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func NewPayslipSplitter(ctx context.Context) (*PayslipSplitterFunction, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	config := PayslipSplitterConfig{
		ProjectID:        projectID,
		DeliveryBucket:   gcp.GetEnv("DELIVERY_BUCKET", ""),
		DeliveryPrefix:   gcp.GetEnv("DELIVERY_PREFIX", "payslips"),
		LedgerCollection: gcp.GetEnv("LEDGER_COLLECTION", "deliveredPayslips"),
	}
	if config.DeliveryBucket == "" {
		return nil, fmt.Errorf("DELIVERY_BUCKET environment variable must be set")
	}

	procCfg := DefaultProcessorConfig()
	tier, err := models.ParseTier(gcp.GetEnv("EXTRACTION_TIER", procCfg.Tier.String()))
	if err != nil {
		return nil, fmt.Errorf("invalid EXTRACTION_TIER: %w", err)
	}
	procCfg.Tier = tier
	procCfg.NamingTemplate = gcp.GetEnv("NAMING_TEMPLATE", procCfg.NamingTemplate)
	procCfg.Markers.Start = gcp.GetEnv("START_MARKER", procCfg.Markers.Start)
	procCfg.Markers.End = gcp.GetEnv("END_MARKER", procCfg.Markers.End)
	procCfg.Extractor.Markers = procCfg.Markers
	workers, err := strconv.Atoi(gcp.GetEnv("DELIVERY_WORKERS", strconv.Itoa(procCfg.DeliveryWorkers)))
	if err != nil || workers < 1 {
		return nil, fmt.Errorf("invalid DELIVERY_WORKERS: %q", gcp.GetEnv("DELIVERY_WORKERS", ""))
	}
	procCfg.DeliveryWorkers = workers
	config.Processor = procCfg

	storageClient, err := gcp.NewStorageClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	ledger, err := NewLedger(ctx, gcp.NewFirestoreLedgerStore(firestoreClient, config.LedgerCollection))
	if err != nil {
		return nil, err
	}

	sink := gcp.NewStorageSink(storageClient, config.DeliveryBucket, config.DeliveryPrefix)
	engine := ocr.NewTesseract(nil, int(procCfg.Extractor.DPI))
	processor := NewProcessor(procCfg, engine, sink, ledger, slog.Default())

	f := &PayslipSplitterFunction{
		storageClient: storageClient,
		processor:     processor,
		config:        config,
	}
	slog.Info("Payslip splitter logic initialized.",
		"deliveryBucket", config.DeliveryBucket,
		"ledgerCollection", config.LedgerCollection,
		"tier", procCfg.Tier.String(),
	)
	return f, nil
}

func (f *PayslipSplitterFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	logCtx.Info("Processing new GCS object.")

	raw, err := gcp.ReadObject(ctx, f.storageClient, e.Bucket, e.Name)
	if err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return err
	}

	src, err := pdf.Open(raw)
	if err != nil {
		logCtx.Error("Failed to open source PDF", "error", err)
		return fmt.Errorf("failed to open source PDF: %w", err)
	}
	defer src.Close()

	session, err := f.processor.Run(ctx, src)
	if err != nil {
		logCtx.Error("Processing run failed", "error", err)
		return err
	}
	logCtx = logCtx.With("runId", session.RunID)

	results := f.processor.DeliverAuto(ctx, session)
	var failed int
	for _, res := range results {
		if res.Outcome == OutcomeFailed {
			failed++
			logCtx.Error("Document delivery failed.", "key", res.Key, "attempts", res.Attempts, "error", res.Err)
		}
	}

	summary := session.Summary()
	logCtx.Info("Run complete.",
		"pageCount", summary.PageCount,
		"documents", len(summary.Documents),
		"counts", summary.Counts,
	)
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed delivery", failed, len(results))
	}
	return nil
}
