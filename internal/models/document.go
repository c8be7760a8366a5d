package models

import (
	"fmt"
	"strings"
	"time"
)

// Tier selects the text-recovery strategy for a processing session.
type Tier int

const (
	// TierEmbeddedOnly reads the PDF's embedded text layer and nothing else.
	TierEmbeddedOnly Tier = iota
	// TierHybridFallback starts from the embedded layer and falls back to OCR
	// page by page when the embedded text looks unusable.
	TierHybridFallback
	// TierForcedOCR rasterizes and recognizes every page regardless of the
	// embedded layer.
	TierForcedOCR
)

func (t Tier) String() string {
	switch t {
	case TierEmbeddedOnly:
		return "EmbeddedOnly"
	case TierHybridFallback:
		return "HybridFallback"
	case TierForcedOCR:
		return "ForcedOCR"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// ParseTier accepts the canonical tier names as well as the mode spellings
// used by earlier versions of the tool ("Normal", "Hybrid", "Full OCR").
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "embedded", "embeddedonly", "normal":
		return TierEmbeddedOnly, nil
	case "hybrid", "hybridfallback":
		return TierHybridFallback, nil
	case "ocr", "forcedocr", "full ocr", "full-ocr", "fullocr":
		return TierForcedOCR, nil
	default:
		return TierEmbeddedOnly, fmt.Errorf("unknown extraction tier %q", s)
	}
}

// Page is one input page with its recovered text. An empty Text is a valid
// "no text found" result.
type Page struct {
	Index int
	Text  string
}

// DocumentGroup is an ordered, contiguous run of 0-based page indices that
// together form one logical payslip document.
type DocumentGroup []int

// Contiguous reports whether the group is a non-empty ascending run of
// consecutive page indices.
func (g DocumentGroup) Contiguous() bool {
	if len(g) == 0 {
		return false
	}
	for i := 1; i < len(g); i++ {
		if g[i] != g[i-1]+1 {
			return false
		}
	}
	return true
}

// ExtractedRecord holds the structured fields recovered from a group's merged
// text. A record only exists when all three fields were found; partial
// records are represented by the absence of the record itself.
type ExtractedRecord struct {
	Year       string // 4-digit year
	Month      string // 2-digit zero-padded month code
	Identifier string // 6-digit IPPIS number
}

// LedgerEntry records one successful delivery, addressed by canonical key.
type LedgerEntry struct {
	Key         string    `json:"key"         firestore:"key"`
	RemoteID    string    `json:"remoteId"    firestore:"remoteId"`
	DeliveredAt time.Time `json:"deliveredAt" firestore:"deliveredAt"`
}
