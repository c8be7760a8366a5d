package services

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/payslipflow/internal/models"
)

// DefaultNamingTemplate renders "2023 10 123456.pdf". The template is purely
// cosmetic; canonical keys never depend on it.
const DefaultNamingTemplate = "{year} {month} {ippis}"

// PageCopier materializes a subset of source pages as a standalone PDF.
type PageCopier interface {
	ExtractPages(indices []int) ([]byte, error)
}

// Assembler turns document groups into deliverable ProcessedDocuments. The
// runID namespaces keys of documents whose details could not be extracted so
// they never collide with record-derived keys or with other runs.
type Assembler struct {
	runID    string
	template string
}

func NewAssembler(runID, template string) *Assembler {
	if template == "" {
		template = DefaultNamingTemplate
	}
	return &Assembler{runID: runID, template: template}
}

// Assemble copies the group's pages into a new binary and derives the
// document's canonical key and display filename. ordinal is 1-based.
func (a *Assembler) Assemble(src PageCopier, group models.DocumentGroup, record *models.ExtractedRecord, ordinal int) (*models.ProcessedDocument, error) {
	content, err := src.ExtractPages(group)
	if err != nil {
		return nil, fmt.Errorf("group %d: failed to assemble pages: %w", ordinal, err)
	}

	doc := &models.ProcessedDocument{
		Content: content,
		Record:  record,
		Group:   append(models.DocumentGroup(nil), group...),
		Ordinal: ordinal,
		Status:  models.StatusCreated,
	}

	if record != nil {
		doc.Key = fmt.Sprintf("%s_%s_%s_%d", record.Year, record.Month, record.Identifier, ordinal)
		doc.Filename = ensurePDFSuffix(renderTemplate(a.template, record))
		if err := doc.Transition(models.StatusDetailsExtracted); err != nil {
			return nil, err
		}
		return doc, nil
	}

	doc.Key = fmt.Sprintf("no_details_%s_group_%d", a.runID, ordinal)
	doc.Filename = fmt.Sprintf("Payslip_Group_%d_missing_details.pdf", ordinal)
	if err := doc.Transition(models.StatusDetailsMissing); err != nil {
		return nil, err
	}
	return doc, nil
}

func renderTemplate(template string, record *models.ExtractedRecord) string {
	return strings.NewReplacer(
		"{year}", record.Year,
		"{month}", record.Month,
		"{ippis}", record.Identifier,
	).Replace(template)
}

// ensurePDFSuffix appends ".pdf" exactly once, whatever the template supplied.
func ensurePDFSuffix(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return name
	}
	return name + ".pdf"
}
