package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/payslipflow/internal/models"
	"golang.org/x/sync/errgroup"
)

// Sink is the remote store documents are delivered to. Put returns a remote
// identifier for the stored object.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// BackoffPolicy bounds the retry loop of a single delivery.
type BackoffPolicy struct {
	Initial     time.Duration // first wait between attempts
	Ceiling     time.Duration // waits never exceed this
	MaxAttempts int           // total transfer attempts per delivery
}

func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Initial:     1 * time.Second,
		Ceiling:     30 * time.Second,
		MaxAttempts: 4,
	}
}

// Delay returns the wait after the given 1-based failed attempt, doubling
// each time up to the ceiling.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	d := p.Initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.Ceiling {
			return p.Ceiling
		}
	}
	if d > p.Ceiling {
		return p.Ceiling
	}
	return d
}

// Sleeper waits for a backoff interval. Injected so retry logic is testable
// without wall-clock waits.
type Sleeper func(ctx context.Context, d time.Duration) error

func waitSleeper(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outcome classifies one delivery invocation.
type Outcome int

const (
	OutcomeDelivered Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "Delivered"
	case OutcomeSkipped:
		return "Skipped"
	case OutcomeFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// DeliveryResult reports what happened to one document.
type DeliveryResult struct {
	Key      string
	Outcome  Outcome
	RemoteID string
	Attempts int
	Err      error
}

// Deliverer pushes assembled documents to the sink with idempotent, bounded
// retry semantics backed by the ledger.
type Deliverer struct {
	sink   Sink
	ledger *Ledger
	policy BackoffPolicy
	sleep  Sleeper
	logger *slog.Logger
}

func NewDeliverer(sink Sink, ledger *Ledger, policy BackoffPolicy, logger *slog.Logger) *Deliverer {
	if policy.MaxAttempts <= 0 {
		policy = DefaultBackoffPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deliverer{
		sink:   sink,
		ledger: ledger,
		policy: policy,
		sleep:  waitSleeper,
		logger: logger,
	}
}

// Deliver runs the per-document delivery state machine: skip if the ledger
// already holds the key, otherwise attempt the transfer with exponential
// backoff up to the attempt ceiling. The ledger write after a success is
// durable before control returns, and it completes even when the caller's
// context was cancelled while the transfer was in flight.
func (d *Deliverer) Deliver(ctx context.Context, doc *models.ProcessedDocument) DeliveryResult {
	unlock := d.ledger.lockKey(doc.Key)
	defer unlock()

	logCtx := d.logger.With("key", doc.Key, "filename", doc.Filename)

	if entry, ok := d.ledger.Entry(doc.Key); ok {
		logCtx.Info("Skipping delivery; key already in ledger.", "remoteId", entry.RemoteID)
		_ = doc.Transition(models.StatusSkipped)
		doc.RemoteID = entry.RemoteID
		return DeliveryResult{Key: doc.Key, Outcome: OutcomeSkipped, RemoteID: entry.RemoteID}
	}

	var lastErr error
	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		doc.Attempts = attempt

		remoteID, err := d.sink.Put(ctx, doc.Filename, doc.Content)
		if err == nil {
			entry := models.LedgerEntry{Key: doc.Key, RemoteID: remoteID, DeliveredAt: time.Now().UTC()}
			// The transfer succeeded; the success record must land even if
			// the caller cancelled during the upload.
			if lerr := d.ledger.RecordSuccess(context.WithoutCancel(ctx), entry); lerr != nil {
				logCtx.Error("Transfer succeeded but ledger write failed; delivery reported as failed to avoid a silent duplicate.", "error", lerr)
				lastErr = lerr
				break
			}
			logCtx.Info("Delivered.", "remoteId", remoteID, "attempts", attempt)
			_ = doc.Transition(models.StatusDelivered)
			doc.RemoteID = remoteID
			doc.Err = nil
			doc.ReleaseContent()
			return DeliveryResult{Key: doc.Key, Outcome: OutcomeDelivered, RemoteID: remoteID, Attempts: attempt}
		}

		lastErr = err
		if models.IsFatal(err) {
			logCtx.Error("Delivery failed with a non-retryable error.", "attempt", attempt, "error", err)
			break
		}
		if attempt < d.policy.MaxAttempts {
			delay := d.policy.Delay(attempt)
			logCtx.Warn("Delivery failed, will retry.",
				"attempt", attempt,
				"maxAttempts", d.policy.MaxAttempts,
				"backoff", delay.String(),
				"error", err,
			)
			if serr := d.sleep(ctx, delay); serr != nil {
				lastErr = serr
				break
			}
		}
	}

	logCtx.Error("Delivery failed after all attempts.", "attempts", doc.Attempts, "error", lastErr)
	_ = doc.Transition(models.StatusFailedFinal)
	doc.Err = lastErr
	return DeliveryResult{Key: doc.Key, Outcome: OutcomeFailed, Attempts: doc.Attempts, Err: lastErr}
}

// DeliverAll pushes the given documents through a bounded worker pool.
// Ordering across distinct keys is unspecified; per-key exclusivity comes
// from the ledger's key locks. workers <= 1 degenerates to sequential
// delivery, the default resource model.
func (d *Deliverer) DeliverAll(ctx context.Context, docs []*models.ProcessedDocument, workers int) []DeliveryResult {
	if workers < 1 {
		workers = 1
	}
	results := make([]DeliveryResult, len(docs))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, doc := range docs {
		eg.Go(func() error {
			results[i] = d.Deliver(gctx, doc)
			return nil
		})
	}
	_ = eg.Wait()
	return results
}
