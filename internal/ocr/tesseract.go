package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements Engine using the gosseract client. A fresh client is
// created per call; page images never outlive a single recognition.
type Tesseract struct {
	clientFactory func() *gosseract.Client
	languages     []string
	dpi           int
}

// NewTesseract constructs a Tesseract-backed OCR engine. With no languages
// configured the engine uses the tesseract default ("eng").
func NewTesseract(languages []string, dpi int) *Tesseract {
	return &Tesseract{
		clientFactory: gosseract.NewClient,
		languages:     languages,
		dpi:           dpi,
	}
}

// Recognize runs OCR on a single page image.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if len(t.languages) > 0 {
		if err := c.SetLanguage(t.languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if t.dpi > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(t.dpi)); err != nil {
			return "", fmt.Errorf("set dpi: %w", err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
