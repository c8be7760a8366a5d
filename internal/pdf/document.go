// Package pdf wraps read access to a source PDF: embedded text via MuPDF,
// single-page rasterization for OCR, and page-subset assembly via pdfcpu.
package pdf

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Document is a read handle over an in-memory source PDF. Pages are addressed
// by 0-based index throughout.
type Document struct {
	raw []byte
	doc *fitz.Document
}

// Open parses raw PDF bytes. A structurally unreadable PDF is a run-level
// failure for the caller.
func Open(raw []byte) (*Document, error) {
	doc, err := fitz.NewFromMemory(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to open source PDF: %w", err)
	}
	return &Document{raw: raw, doc: doc}, nil
}

func (d *Document) PageCount() int {
	return d.doc.NumPage()
}

// PageText returns the embedded text layer of one page. A page with no text
// layer yields an empty string, not an error.
func (d *Document) PageText(i int) (string, error) {
	text, err := d.doc.Text(i)
	if err != nil {
		return "", fmt.Errorf("failed to read text layer of page %d: %w", i, err)
	}
	return text, nil
}

// RenderPagePNG rasterizes a single page at the given DPI. Callers hold at
// most one rendered page at a time to bound peak memory.
func (d *Document) RenderPagePNG(i int, dpi float64) ([]byte, error) {
	img, err := d.doc.ImagePNG(i, dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", i, err)
	}
	return img, nil
}

// ExtractPages copies exactly the given pages, in order, into a standalone
// single-document PDF.
func (d *Document) ExtractPages(indices []int) ([]byte, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("no pages to extract")
	}
	selected := make([]string, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= d.PageCount() {
			return nil, fmt.Errorf("page index %d out of range [0, %d)", idx, d.PageCount())
		}
		selected[i] = strconv.Itoa(idx + 1) // pdfcpu page selection is 1-based
	}
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	var buf bytes.Buffer
	if err := api.Trim(bytes.NewReader(d.raw), &buf, selected, cfg); err != nil {
		return nil, fmt.Errorf("failed to extract pages %v: %w", indices, err)
	}
	return buf.Bytes(), nil
}

func (d *Document) Close() error {
	return d.doc.Close()
}
