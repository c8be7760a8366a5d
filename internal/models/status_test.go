package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusCreated.CanTransition(StatusDetailsExtracted))
	assert.True(t, StatusCreated.CanTransition(StatusDetailsMissing))
	assert.True(t, StatusDetailsExtracted.CanTransition(StatusDelivered))
	assert.True(t, StatusDetailsExtracted.CanTransition(StatusSkipped))
	assert.True(t, StatusDetailsMissing.CanTransition(StatusFailedFinal))

	// Explicit retry path.
	assert.True(t, StatusFailedFinal.CanTransition(StatusDelivered))
	assert.True(t, StatusFailedFinal.CanTransition(StatusSkipped))

	// Finished documents re-entering delivery land in Skipped.
	assert.True(t, StatusDelivered.CanTransition(StatusSkipped))
	assert.True(t, StatusSkipped.CanTransition(StatusSkipped))

	assert.False(t, StatusCreated.CanTransition(StatusDelivered))
	assert.False(t, StatusDelivered.CanTransition(StatusCreated))
	assert.False(t, StatusDelivered.CanTransition(StatusDelivered))
	assert.False(t, StatusSkipped.CanTransition(StatusDelivered))
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	doc := &ProcessedDocument{Key: "k", Status: StatusCreated}

	err := doc.Transition(StatusDelivered)

	require.Error(t, err)
	assert.Equal(t, StatusCreated, doc.Status)

	require.NoError(t, doc.Transition(StatusDetailsExtracted))
	require.NoError(t, doc.Transition(StatusDelivered))
	assert.Equal(t, StatusDelivered, doc.Status)
}

func TestReleaseContent(t *testing.T) {
	doc := &ProcessedDocument{Content: []byte("pdf")}
	doc.ReleaseContent()
	assert.Nil(t, doc.Content)
}

func TestDeliverable(t *testing.T) {
	assert.True(t, (&ProcessedDocument{Status: StatusDetailsExtracted}).Deliverable())
	assert.False(t, (&ProcessedDocument{Status: StatusDetailsMissing}).Deliverable())
	assert.False(t, (&ProcessedDocument{Status: StatusDelivered}).Deliverable())
}

func TestParseTier(t *testing.T) {
	cases := map[string]Tier{
		"Normal":         TierEmbeddedOnly,
		"embedded":       TierEmbeddedOnly,
		"Hybrid":         TierHybridFallback,
		"hybridfallback": TierHybridFallback,
		"Full OCR":       TierForcedOCR,
		"full-ocr":       TierForcedOCR,
		"ForcedOCR":      TierForcedOCR,
	}
	for in, want := range cases {
		got, err := ParseTier(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTier("telepathy")
	assert.Error(t, err)
}

func TestDocumentGroupContiguous(t *testing.T) {
	assert.True(t, DocumentGroup{3, 4, 5}.Contiguous())
	assert.True(t, DocumentGroup{0}.Contiguous())
	assert.False(t, DocumentGroup{}.Contiguous())
	assert.False(t, DocumentGroup{1, 3}.Contiguous())
	assert.False(t, DocumentGroup{2, 1}.Contiguous())
}
