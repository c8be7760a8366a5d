// Package ocr defines the optical character recognition contract used by the
// text extractor, plus the default Tesseract-backed engine.
package ocr

import "context"

// Engine recognizes text in a rendered page image. Implementations return an
// error on recognition failure; callers treat any failure as "no text found"
// and keep processing.
type Engine interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}
