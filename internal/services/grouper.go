package services

import (
	"strings"

	"github.com/Lllllllleong/payslipflow/internal/models"
)

// Grouper partitions the page sequence into logical payslip documents using
// the configured boundary markers.
type Grouper struct {
	start string // upper-cased start marker, "" disables
	end   string // upper-cased end marker, "" disables
}

func NewGrouper(markers MarkerConfig) *Grouper {
	return &Grouper{
		start: strings.ToUpper(markers.Start),
		end:   strings.ToUpper(markers.End),
	}
}

// Group scans the pages in order, maintaining one open group. A start marker
// closes the current non-empty group and opens a new one at that page; an end
// marker closes the group immediately after the page. The result is always a
// partition of [0, len(pages)): if no marker ever produced a boundary, the
// scan result is discarded in favor of one group per page.
func (g *Grouper) Group(pages []models.Page) []models.DocumentGroup {
	var groups []models.DocumentGroup
	var current models.DocumentGroup
	markerSeen := false

	for _, page := range pages {
		upper := strings.ToUpper(page.Text)

		if g.start != "" && strings.Contains(upper, g.start) {
			markerSeen = true
			// Closing an empty current group would emit a zero-page document;
			// a start marker on the very first page must not do that.
			if len(current) > 0 {
				groups = append(groups, current)
				current = nil
			}
		}
		current = append(current, page.Index)

		if g.end != "" && strings.Contains(upper, g.end) {
			markerSeen = true
			groups = append(groups, current)
			current = nil
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	// No recognizable boundaries: treat every page as its own document.
	if len(groups) == 0 || (!markerSeen && len(groups) == 1 && len(groups[0]) == len(pages)) {
		groups = make([]models.DocumentGroup, len(pages))
		for i := range pages {
			groups[i] = models.DocumentGroup{pages[i].Index}
		}
	}
	return groups
}

// MergedText concatenates the texts of a group's pages in order, separated by
// newlines, for metadata extraction.
func MergedText(pages []models.Page, group models.DocumentGroup) string {
	var b strings.Builder
	for _, idx := range group {
		if idx >= 0 && idx < len(pages) {
			b.WriteString(pages[idx].Text)
			b.WriteString("\n")
		}
	}
	return b.String()
}
