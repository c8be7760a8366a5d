package services

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/Lllllllleong/payslipflow/internal/models"
)

// FileLedgerStore persists ledger entries as JSON lines in a local file.
// Every Append is fsynced before returning, so a crash immediately after a
// confirmed delivery cannot lose the success record.
type FileLedgerStore struct {
	path string
	mu   sync.Mutex
}

func NewFileLedgerStore(path string) *FileLedgerStore {
	return &FileLedgerStore{path: path}
}

func (s *FileLedgerStore) Load(_ context.Context) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger file %s: %w", s.path, err)
	}
	defer f.Close()

	var entries []models.LedgerEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var entry models.LedgerEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			// A torn trailing line from a crash mid-write is recoverable;
			// the entry it would have recorded was never confirmed.
			slog.Warn("Skipping unparseable ledger line.", "path", s.path, "line", line, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger file %s: %w", s.path, err)
	}
	return entries, nil
}

func (s *FileLedgerStore) Append(_ context.Context, entry models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger file %s for append: %w", s.path, err)
	}
	defer f.Close()

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode ledger entry: %w", err)
	}
	if _, err := f.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to flush ledger file: %w", err)
	}
	return nil
}

// Reset truncates the ledger file. Maintenance operation; every previously
// delivered key becomes deliverable again.
func (s *FileLedgerStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path, nil, 0o644); err != nil {
		return fmt.Errorf("failed to reset ledger file %s: %w", s.path, err)
	}
	return nil
}

// MemoryLedgerStore keeps entries in memory. It backs tests and dry runs;
// sharing one instance across sessions models a persisted ledger.
type MemoryLedgerStore struct {
	mu      sync.Mutex
	entries []models.LedgerEntry
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{}
}

func (s *MemoryLedgerStore) Load(_ context.Context) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LedgerEntry(nil), s.entries...), nil
}

func (s *MemoryLedgerStore) Append(_ context.Context, entry models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}
