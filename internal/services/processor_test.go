package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/Lllllllleong/payslipflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDocument is a full in-memory Source: page texts plus page copying.
type fakeDocument struct {
	fakeSource
	copier fakeCopier
}

func (d *fakeDocument) ExtractPages(indices []int) ([]byte, error) {
	return d.copier.ExtractPages(indices)
}

func newFakeDocument(texts ...string) *fakeDocument {
	return &fakeDocument{fakeSource: fakeSource{texts: texts}}
}

func testProcessorConfig() ProcessorConfig {
	cfg := DefaultProcessorConfig()
	cfg.Tier = models.TierEmbeddedOnly
	return cfg
}

func newTestProcessor(t *testing.T, cfg ProcessorConfig, sink Sink, store LedgerStore) *Processor {
	t.Helper()
	ledger, err := NewLedger(context.Background(), store)
	require.NoError(t, err)
	p := NewProcessor(cfg, &fakeEngine{}, sink, ledger, nil)
	p.deliverer.sleep = instantSleep
	return p
}

func TestProcessorEndToEnd(t *testing.T) {
	src := newFakeDocument(
		"FEDERAL GOVERNMENT OF NIGERIA\nPay period: JAN 2024\nIPPIS: 111111",
		"earnings and deductions detail",
		"TOTAL NET EARNINGS: 250,000",
	)
	sink := &countingSink{}
	store := NewMemoryLedgerStore()
	p := newTestProcessor(t, testProcessorConfig(), sink, store)

	session, err := p.Run(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, session.Documents, 1)
	doc := session.Documents[0]
	require.NotNil(t, doc.Record)
	assert.Equal(t, models.ExtractedRecord{Year: "2024", Month: "01", Identifier: "111111"}, *doc.Record)
	assert.Equal(t, "2024_01_111111_1", doc.Key)
	assert.Equal(t, "2024 01 111111.pdf", doc.Filename)
	assert.Equal(t, models.DocumentGroup{0, 1, 2}, doc.Group)
	assert.Equal(t, models.StatusDetailsExtracted, doc.Status)

	results := p.DeliverAuto(context.Background(), session)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeDelivered, results[0].Outcome)
	assert.Equal(t, 1, sink.puts)

	// A rerun over the same source, even with a different display template,
	// transfers nothing new.
	cfg2 := testProcessorConfig()
	cfg2.NamingTemplate = "Payslip-{ippis}-{month}-{year}"
	p2 := newTestProcessor(t, cfg2, sink, store)
	session2, err := p2.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, doc.Key, session2.Documents[0].Key)
	results = p2.DeliverAuto(context.Background(), session2)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeSkipped, results[0].Outcome)
	assert.Equal(t, 1, sink.puts)
	assert.Equal(t, models.StatusSkipped, session2.Documents[0].Status)
}

func TestProcessorMissingDetailsStayOutOfAutoDelivery(t *testing.T) {
	src := newFakeDocument(
		"FEDERAL GOVERNMENT OF NIGERIA\nOCT-2023 IPPIS 123456\nTOTAL NET EARNINGS",
		"FEDERAL GOVERNMENT OF NIGERIA\nno period, no identifier\nTOTAL NET EARNINGS",
	)
	sink := &countingSink{}
	p := newTestProcessor(t, testProcessorConfig(), sink, NewMemoryLedgerStore())

	session, err := p.Run(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, session.Documents, 2)
	assert.Equal(t, models.StatusDetailsMissing, session.Documents[1].Status)
	assert.Equal(t, "Payslip_Group_2_missing_details.pdf", session.Documents[1].Filename)

	results := p.DeliverAuto(context.Background(), session)

	require.Len(t, results, 1)
	assert.Equal(t, "2023_10_123456_1", results[0].Key)
	assert.Equal(t, 1, sink.puts)
}

func TestProcessorDeliverMissingForcesMissingDetailsBucket(t *testing.T) {
	src := newFakeDocument("no recognizable details on this page")
	sink := &countingSink{}
	cfg := testProcessorConfig()
	cfg.DeliverMissing = true
	p := newTestProcessor(t, cfg, sink, NewMemoryLedgerStore())

	session, err := p.Run(context.Background(), src)
	require.NoError(t, err)
	results := p.DeliverAuto(context.Background(), session)

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeDelivered, results[0].Outcome)
	assert.Contains(t, results[0].Key, "no_details_"+session.RunID)
}

func TestProcessorMissingDetailsKeysDifferAcrossRuns(t *testing.T) {
	src := newFakeDocument("nothing extractable")
	p := newTestProcessor(t, testProcessorConfig(), &countingSink{}, NewMemoryLedgerStore())

	s1, err := p.Run(context.Background(), src)
	require.NoError(t, err)
	s2, err := p.Run(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, s1.Documents, 1)
	require.Len(t, s2.Documents, 1)
	assert.NotEqual(t, s1.Documents[0].Key, s2.Documents[0].Key)
}

func TestProcessorRetryRedeliversFailedDocument(t *testing.T) {
	src := newFakeDocument("FEDERAL GOVERNMENT OF NIGERIA OCT-2023 IPPIS 123456 TOTAL NET EARNINGS")
	sink := &countingSink{failures: DefaultBackoffPolicy().MaxAttempts}
	p := newTestProcessor(t, testProcessorConfig(), sink, NewMemoryLedgerStore())

	session, err := p.Run(context.Background(), src)
	require.NoError(t, err)
	results := p.DeliverAuto(context.Background(), session)
	require.Len(t, results, 1)
	require.Equal(t, OutcomeFailed, results[0].Outcome)

	results = p.Retry(context.Background(), session, []string{results[0].Key, "unknown_key"})

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeDelivered, results[0].Outcome)
}

func TestProcessorSessionSummary(t *testing.T) {
	src := newFakeDocument(
		"FEDERAL GOVERNMENT OF NIGERIA OCT-2023 IPPIS 123456 TOTAL NET EARNINGS",
		"unmatched page",
	)
	p := newTestProcessor(t, testProcessorConfig(), &countingSink{}, NewMemoryLedgerStore())

	session, err := p.Run(context.Background(), src)
	require.NoError(t, err)
	p.DeliverAuto(context.Background(), session)

	summary := session.Summary()

	assert.Equal(t, session.RunID, summary.RunID)
	assert.Equal(t, 2, summary.PageCount)
	assert.Len(t, summary.Documents, 2)
	assert.Equal(t, 1, summary.Counts[models.StatusDelivered.String()])
	assert.Equal(t, 1, summary.Counts[models.StatusDetailsMissing.String()])

	delivered, ok := session.Document("2023_10_123456_1")
	require.True(t, ok)
	assert.Equal(t, models.StatusDelivered, delivered.Status)
}

func TestProcessorSequentialDeliveryOrder(t *testing.T) {
	texts := make([]string, 3)
	for i := range texts {
		texts[i] = fmt.Sprintf("FEDERAL GOVERNMENT OF NIGERIA OCT-2023 IPPIS 10%04d TOTAL NET EARNINGS", i)
	}
	src := newFakeDocument(texts...)
	sink := &orderedSink{}
	p := newTestProcessor(t, testProcessorConfig(), sink, NewMemoryLedgerStore())

	session, err := p.Run(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, session.Documents, 3)

	p.DeliverAuto(context.Background(), session)

	require.Len(t, sink.names, 3)
	for i, doc := range session.Documents {
		assert.Equal(t, doc.Filename, sink.names[i])
	}
}

type orderedSink struct{ names []string }

func (s *orderedSink) Put(_ context.Context, name string, _ []byte) (string, error) {
	s.names = append(s.names, name)
	return "sink://" + name, nil
}
