package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/payslipflow/internal/models"
	"github.com/Lllllllleong/payslipflow/internal/ocr"
	"github.com/google/uuid"
)

// Source is the full contract the processor needs from a source document.
type Source interface {
	PageSource
	PageCopier
}

// ProcessorConfig carries every per-run preference as an explicit value.
// Nothing here is ambient state; in particular the naming template can change
// between runs without affecting canonical keys.
type ProcessorConfig struct {
	Tier            models.Tier
	Markers         MarkerConfig
	NamingTemplate  string
	Extractor       ExtractorConfig
	Backoff         BackoffPolicy
	DeliveryWorkers int
	// DeliverMissing forces documents without extracted details into the
	// automatic delivery selection.
	DeliverMissing bool
}

func DefaultProcessorConfig() ProcessorConfig {
	cfg := ProcessorConfig{
		Tier:            models.TierHybridFallback,
		Markers:         DefaultMarkers(),
		NamingTemplate:  DefaultNamingTemplate,
		Extractor:       DefaultExtractorConfig(),
		Backoff:         DefaultBackoffPolicy(),
		DeliveryWorkers: 1,
	}
	cfg.Extractor.Markers = cfg.Markers
	return cfg
}

// Session holds the outcome of one processing run. Every document's terminal
// status is individually inspectable through Documents and Summary.
type Session struct {
	RunID     string
	StartedAt time.Time
	PageCount int
	Tier      models.Tier
	Documents []*models.ProcessedDocument
}

// Document returns the session document with the given canonical key.
func (s *Session) Document(key string) (*models.ProcessedDocument, bool) {
	for _, doc := range s.Documents {
		if doc.Key == key {
			return doc, true
		}
	}
	return nil, false
}

// Summary builds the run summary snapshot.
func (s *Session) Summary() models.RunSummary {
	counts := make(map[string]int)
	reports := make([]models.DocumentReport, 0, len(s.Documents))
	for _, doc := range s.Documents {
		counts[doc.Status.String()]++
		reports = append(reports, doc.Report())
	}
	return models.RunSummary{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: time.Now().UTC(),
		PageCount:  s.PageCount,
		Tier:       s.Tier.String(),
		Counts:     counts,
		Documents:  reports,
	}
}

// Processor wires the whole pipeline: text recovery, grouping, metadata
// extraction, assembly and delivery.
type Processor struct {
	cfg       ProcessorConfig
	engine    ocr.Engine
	deliverer *Deliverer
	logger    *slog.Logger
}

func NewProcessor(cfg ProcessorConfig, engine ocr.Engine, sink Sink, ledger *Ledger, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		cfg:       cfg,
		engine:    engine,
		deliverer: NewDeliverer(sink, ledger, cfg.Backoff, logger),
		logger:    logger,
	}
}

// Run executes extraction, grouping and assembly over the source document.
// Delivery is a separate step (DeliverAuto / Retry) so callers can inspect
// and re-select documents in between.
func (p *Processor) Run(ctx context.Context, src Source) (*Session, error) {
	runID := uuid.NewString()
	logCtx := p.logger.With("runId", runID, "pageCount", src.PageCount(), "tier", p.cfg.Tier.String())
	logCtx.Info("Processing source document.")

	extractor := NewTextExtractor(p.engine, p.cfg.Extractor, logCtx)
	pages, err := extractor.ExtractTexts(ctx, src, p.cfg.Tier)
	if err != nil {
		return nil, fmt.Errorf("text extraction aborted: %w", err)
	}

	groups := NewGrouper(p.cfg.Markers).Group(pages)
	logCtx.Info("Grouped pages into documents.", "groupCount", len(groups))

	assembler := NewAssembler(runID, p.cfg.NamingTemplate)
	session := &Session{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		PageCount: src.PageCount(),
		Tier:      p.cfg.Tier,
	}
	for i, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("processing cancelled: %w", err)
		}
		record := ExtractRecord(MergedText(pages, group))
		doc, err := assembler.Assemble(src, group, record, i+1)
		if err != nil {
			// Assembly only fails when the source structure is unreadable.
			return nil, err
		}
		session.Documents = append(session.Documents, doc)
		logCtx.Info("Assembled document.",
			"ordinal", doc.Ordinal,
			"key", doc.Key,
			"pages", len(group),
			"status", doc.Status.String(),
		)
	}

	logCtx.Info("Assembly complete.", "documents", len(session.Documents))
	return session, nil
}

// DeliverAuto delivers every automatically selected document: those with
// extracted details, plus the missing-details bucket when configured.
func (p *Processor) DeliverAuto(ctx context.Context, session *Session) []DeliveryResult {
	var selected []*models.ProcessedDocument
	for _, doc := range session.Documents {
		if doc.Deliverable() || (p.cfg.DeliverMissing && doc.Status == models.StatusDetailsMissing) {
			selected = append(selected, doc)
		}
	}
	return p.deliverer.DeliverAll(ctx, selected, p.cfg.DeliveryWorkers)
}

// Retry re-delivers explicitly re-selected documents by canonical key.
// A FailedFinal document re-enters the delivery state machine here; keys not
// present in the session are ignored.
func (p *Processor) Retry(ctx context.Context, session *Session, keys []string) []DeliveryResult {
	var selected []*models.ProcessedDocument
	for _, key := range keys {
		if doc, ok := session.Document(key); ok {
			selected = append(selected, doc)
		}
	}
	return p.deliverer.DeliverAll(ctx, selected, p.cfg.DeliveryWorkers)
}
