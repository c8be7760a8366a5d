package services

import (
	"testing"

	"github.com/Lllllllleong/payslipflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pagesFromTexts(texts ...string) []models.Page {
	pages := make([]models.Page, len(texts))
	for i, text := range texts {
		pages[i] = models.Page{Index: i, Text: text}
	}
	return pages
}

// assertPartition checks that the groups cover every page index exactly once,
// in order.
func assertPartition(t *testing.T, groups []models.DocumentGroup, pageCount int) {
	t.Helper()
	var flat []int
	for _, g := range groups {
		flat = append(flat, g...)
	}
	require.Len(t, flat, pageCount)
	for i, idx := range flat {
		assert.Equal(t, i, idx)
	}
}

func TestGrouperStartAndEndMarkers(t *testing.T) {
	g := NewGrouper(DefaultMarkers())
	pages := pagesFromTexts(
		"FEDERAL GOVERNMENT OF NIGERIA\npayslip header",
		"earnings detail",
		"TOTAL NET EARNINGS: 250,000",
		"FEDERAL GOVERNMENT OF NIGERIA\nsecond payslip",
		"TOTAL NET EARNINGS: 180,000",
	)

	groups := g.Group(pages)

	require.Len(t, groups, 2)
	assert.Equal(t, models.DocumentGroup{0, 1, 2}, groups[0])
	assert.Equal(t, models.DocumentGroup{3, 4}, groups[1])
	assertPartition(t, groups, len(pages))
}

func TestGrouperStartMarkerOnFirstPageOpensNoEmptyGroup(t *testing.T) {
	g := NewGrouper(DefaultMarkers())
	pages := pagesFromTexts(
		"FEDERAL GOVERNMENT OF NIGERIA",
		"more of the same document",
	)

	groups := g.Group(pages)

	require.Len(t, groups, 1)
	assert.Equal(t, models.DocumentGroup{0, 1}, groups[0])
}

func TestGrouperStartMarkerClosesPreviousGroup(t *testing.T) {
	g := NewGrouper(MarkerConfig{Start: "PAGE ONE OF"})
	pages := pagesFromTexts(
		"PAGE ONE OF payslip A",
		"tail of payslip A",
		"PAGE ONE OF payslip B",
	)

	groups := g.Group(pages)

	require.Len(t, groups, 2)
	assert.Equal(t, models.DocumentGroup{0, 1}, groups[0])
	assert.Equal(t, models.DocumentGroup{2}, groups[1])
}

func TestGrouperNoMarkersFallsBackToSinglePages(t *testing.T) {
	g := NewGrouper(DefaultMarkers())
	pages := pagesFromTexts("first", "second", "third")

	groups := g.Group(pages)

	require.Len(t, groups, 3)
	for i, group := range groups {
		assert.Equal(t, models.DocumentGroup{i}, group)
	}
}

func TestGrouperMarkedFullRangeGroupSurvives(t *testing.T) {
	// One document spanning every page, delimited by real markers, must not be
	// mistaken for the no-boundary case.
	g := NewGrouper(DefaultMarkers())
	pages := pagesFromTexts(
		"FEDERAL GOVERNMENT OF NIGERIA",
		"middle page",
		"TOTAL NET EARNINGS",
	)

	groups := g.Group(pages)

	require.Len(t, groups, 1)
	assert.Equal(t, models.DocumentGroup{0, 1, 2}, groups[0])
}

func TestGrouperMarkerMatchingIsCaseInsensitive(t *testing.T) {
	g := NewGrouper(MarkerConfig{End: "Total Net Earnings"})
	pages := pagesFromTexts("total net earnings here", "next document")

	groups := g.Group(pages)

	require.Len(t, groups, 2)
	assert.Equal(t, models.DocumentGroup{0}, groups[0])
	assert.Equal(t, models.DocumentGroup{1}, groups[1])
}

func TestGrouperEmptyInput(t *testing.T) {
	g := NewGrouper(DefaultMarkers())
	assert.Empty(t, g.Group(nil))
}

func TestMergedText(t *testing.T) {
	pages := pagesFromTexts("alpha", "beta", "gamma")

	merged := MergedText(pages, models.DocumentGroup{0, 2})

	assert.Equal(t, "alpha\ngamma\n", merged)
}
