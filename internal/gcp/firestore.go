package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/payslipflow/internal/models"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
// It centralizes client creation for all services.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreLedgerStore keeps the delivery ledger as one Firestore document
// per canonical key. Create-only writes make each append naturally atomic
// and idempotent.
type FirestoreLedgerStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreLedgerStore(client *firestore.Client, collection string) *FirestoreLedgerStore {
	return &FirestoreLedgerStore{client: client, collection: collection}
}

func (s *FirestoreLedgerStore) Load(ctx context.Context) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	it := s.client.Collection(s.collection).Documents(ctx)
	defer it.Stop()
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger collection %s: %w", s.collection, err)
		}
		var entry models.LedgerEntry
		if err := doc.DataTo(&entry); err != nil {
			return nil, fmt.Errorf("failed to decode ledger entry %s: %w", doc.Ref.ID, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *FirestoreLedgerStore) Append(ctx context.Context, entry models.LedgerEntry) error {
	_, err := s.client.Collection(s.collection).Doc(entry.Key).Create(ctx, entry)
	if status.Code(err) == codes.AlreadyExists {
		// Another session already recorded this key; the set is unchanged.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to append ledger entry for %s: %w", entry.Key, err)
	}
	return nil
}
