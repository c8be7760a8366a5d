package services

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Lllllllleong/payslipflow/internal/models"
	"github.com/Lllllllleong/payslipflow/internal/ocr"
)

// PageSource supplies per-page access to the source document.
type PageSource interface {
	PageCount() int
	PageText(i int) (string, error)
	RenderPagePNG(i int, dpi float64) ([]byte, error)
}

// MarkerConfig holds the textual boundary markers that delimit payslip
// documents. Matching is case-normalized containment.
type MarkerConfig struct {
	Start string
	End   string
}

// DefaultMarkers are the boundary strings found on the supported payslips.
func DefaultMarkers() MarkerConfig {
	return MarkerConfig{
		Start: "FEDERAL GOVERNMENT OF NIGERIA",
		End:   "TOTAL NET EARNINGS",
	}
}

// ExtractorConfig tunes the per-page fallback decision of the hybrid tier.
type ExtractorConfig struct {
	// MinEmbeddedTextLen is the minimum trimmed length at which embedded text
	// is considered usable without OCR.
	MinEmbeddedTextLen int
	// DPI used when rasterizing a page for OCR.
	DPI float64
	// Markers checked when judging whether embedded text looks structurally
	// plausible.
	Markers MarkerConfig
}

func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		MinEmbeddedTextLen: 80,
		DPI:                150,
		Markers:            DefaultMarkers(),
	}
}

// yearTokenRe matches a 4-digit year-like token ("20xx").
var yearTokenRe = regexp.MustCompile(`\b20\d{2}\b`)

// TextExtractor recovers one text string per source page according to the
// selected tier.
type TextExtractor struct {
	engine ocr.Engine
	cfg    ExtractorConfig
	logger *slog.Logger
}

func NewTextExtractor(engine ocr.Engine, cfg ExtractorConfig, logger *slog.Logger) *TextExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextExtractor{engine: engine, cfg: cfg, logger: logger}
}

// ExtractTexts returns exactly one Page per source page, in source order.
// Page-level render/recognition failures yield empty text and never abort the
// run; the only returned error is context cancellation.
func (e *TextExtractor) ExtractTexts(ctx context.Context, src PageSource, tier models.Tier) ([]models.Page, error) {
	n := src.PageCount()
	pages := make([]models.Page, 0, n)

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		var text string
		switch tier {
		case models.TierForcedOCR:
			text = e.ocrPage(ctx, src, i)
		case models.TierHybridFallback:
			embedded := e.embeddedPageText(src, i)
			text = e.hybridPageText(ctx, src, i, embedded)
		default:
			text = e.embeddedPageText(src, i)
		}
		pages = append(pages, models.Page{Index: i, Text: text})
	}
	return pages, nil
}

func (e *TextExtractor) embeddedPageText(src PageSource, i int) string {
	text, err := src.PageText(i)
	if err != nil {
		e.logger.Warn("Failed to read embedded text layer; treating page as empty.", "page", i, "error", err)
		return ""
	}
	return text
}

// ocrPage renders and recognizes one page. The rendered image is discarded
// before the next page is processed so only one rasterization is ever live.
func (e *TextExtractor) ocrPage(ctx context.Context, src PageSource, i int) string {
	img, err := src.RenderPagePNG(i, e.cfg.DPI)
	if err != nil {
		e.logger.Warn("Page rasterization failed; treating page as empty.", "page", i, "error", err)
		return ""
	}
	text, err := e.engine.Recognize(ctx, img)
	if err != nil {
		e.logger.Warn("OCR failed; treating page as empty.", "page", i, "error", err)
		return ""
	}
	return text
}

// hybridPageText keeps usable embedded text and falls back to OCR otherwise.
// Of the two candidates the longer one wins; a tie keeps the embedded text,
// which is cheaper and arrived first.
func (e *TextExtractor) hybridPageText(ctx context.Context, src PageSource, i int, embedded string) string {
	trimmed := strings.TrimSpace(embedded)
	if len(trimmed) >= e.cfg.MinEmbeddedTextLen && e.looksStructural(embedded) {
		return embedded
	}
	ocrText := e.ocrPage(ctx, src, i)
	if len(strings.TrimSpace(ocrText)) > len(trimmed) {
		e.logger.Info("Hybrid fallback used OCR text.", "page", i, "embeddedLen", len(trimmed), "ocrLen", len(ocrText))
		return ocrText
	}
	return embedded
}

// looksStructural reports whether the text carries any expected document
// marker or a year-like token.
func (e *TextExtractor) looksStructural(text string) bool {
	upper := strings.ToUpper(text)
	if e.cfg.Markers.Start != "" && strings.Contains(upper, strings.ToUpper(e.cfg.Markers.Start)) {
		return true
	}
	if e.cfg.Markers.End != "" && strings.Contains(upper, strings.ToUpper(e.cfg.Markers.End)) {
		return true
	}
	return yearTokenRe.MatchString(text)
}
