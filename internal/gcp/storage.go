package gcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/payslipflow/internal/models"
	"google.golang.org/api/googleapi"
)

// NewStorageClient creates a Cloud Storage client. It centralizes client
// creation for all binaries.
func NewStorageClient(ctx context.Context) (*storage.Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	return client, nil
}

// ReadObject streams a GCS object fully into memory.
func ReadObject(ctx context.Context, client *storage.Client, bucket, object string) ([]byte, error) {
	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, object, err)
	}
	return data, nil
}

// StorageSink delivers documents into a GCS bucket, optionally under a
// prefix. Writes carry a DoesNotExist precondition: the ledger is the source
// of truth for dedup, but an object that already exists (412) is simply
// treated as stored rather than rewritten.
type StorageSink struct {
	client  *storage.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

func NewStorageSink(client *storage.Client, bucket, prefix string) *StorageSink {
	return &StorageSink{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		timeout: 50 * time.Second,
	}
}

func (s *StorageSink) objectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Put uploads one document. Non-retryable API failures (bad auth, missing
// bucket, invalid request) are wrapped as fatal so the deliverer stops
// retrying them immediately.
func (s *StorageSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	object := s.objectName(name)
	writeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	writer := s.client.Bucket(s.bucket).Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(writeCtx)
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return "", classifyStorageError(fmt.Errorf("failed to copy content to gs://%s/%s: %w", s.bucket, object, err))
	}
	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			slog.Info("Object already exists; treating as stored.", "gcsObject", object)
			return s.remoteID(object), nil
		}
		return "", classifyStorageError(fmt.Errorf("failed to finalize GCS write for %s: %w", object, err))
	}
	return s.remoteID(object), nil
}

func (s *StorageSink) remoteID(object string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, object)
}

// isPreconditionFailed reports whether err is a GCS 412, the rejection of a
// DoesNotExist or GenerationMatch write condition.
func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// classifyStorageError marks client-side API rejections as fatal; everything
// else stays retryable.
func classifyStorageError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return &models.FatalError{Err: err}
		}
	}
	return err
}

// StorageLedgerStore keeps the delivery ledger as a JSON-lines object on the
// same remote sink. Appends rewrite the object under a generation-match
// precondition, so concurrent readers see either the old or the new ledger,
// never a torn one.
type StorageLedgerStore struct {
	client *storage.Client
	bucket string
	object string
}

func NewStorageLedgerStore(client *storage.Client, bucket, object string) *StorageLedgerStore {
	return &StorageLedgerStore{client: client, bucket: bucket, object: object}
}

func (s *StorageLedgerStore) Load(ctx context.Context) ([]models.LedgerEntry, error) {
	data, _, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return decodeLedgerLines(data)
}

// Append rewrites the ledger object under its current generation. A 412 on
// finalize means another session appended first; the entry is reapplied on
// top of that session's write.
func (s *StorageLedgerStore) Append(ctx context.Context, entry models.LedgerEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode ledger entry: %w", err)
	}

	const maxAttempts = 5
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		data, generation, err := s.read(ctx)
		if err != nil {
			return err
		}
		data = append(data, append(line, '\n')...)

		object := s.client.Bucket(s.bucket).Object(s.object)
		var writer *storage.Writer
		if generation == 0 {
			writer = object.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
		} else {
			writer = object.If(storage.Conditions{GenerationMatch: generation}).NewWriter(ctx)
		}
		if _, err := writer.Write(data); err != nil {
			_ = writer.Close()
			return fmt.Errorf("failed to write ledger object: %w", err)
		}
		err = writer.Close()
		if err == nil {
			return nil
		}
		if !isPreconditionFailed(err) {
			return fmt.Errorf("failed to finalize ledger object write: %w", err)
		}
		lastErr = err
		slog.Info("Ledger object changed underneath append; reloading.",
			"gcsObject", s.object,
			"attempt", attempt,
		)
	}
	return fmt.Errorf("ledger append for %s lost the generation race %d times: %w", entry.Key, maxAttempts, lastErr)
}

func (s *StorageLedgerStore) read(ctx context.Context) ([]byte, int64, error) {
	reader, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open ledger object gs://%s/%s: %w", s.bucket, s.object, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read ledger object: %w", err)
	}
	return data, reader.Attrs.Generation, nil
}

func decodeLedgerLines(data []byte) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var entry models.LedgerEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			slog.Warn("Skipping unparseable ledger line.", "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan ledger data: %w", err)
	}
	return entries, nil
}
