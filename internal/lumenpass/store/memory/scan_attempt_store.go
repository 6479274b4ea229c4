package memory

import (
	"context"
	"sync"
	"time"

	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/store"
)

// ScanAttemptStore is an in-memory append-only audit log for tests and
// dev environments.
type ScanAttemptStore struct {
	mu       sync.Mutex
	nextSeq  int64
	attempts []store.ScanAttemptRecord
}

func NewScanAttemptStore() *ScanAttemptStore {
	return &ScanAttemptStore{nextSeq: 1}
}

func (s *ScanAttemptStore) Record(_ context.Context, rec store.ScanAttemptRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Seq = s.nextSeq
	s.nextSeq++
	s.attempts = append(s.attempts, rec)
	return rec.Seq, nil
}

func (s *ScanAttemptStore) List(_ context.Context, since *time.Time, limit int) ([]store.ScanAttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.ScanAttemptRecord, 0, len(s.attempts))
	for i := len(s.attempts) - 1; i >= 0; i-- {
		rec := s.attempts[i]
		if since != nil && rec.At.Before(*since) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Attempts returns a copy of all recorded attempts in insertion order.
// Test-only helper.
func (s *ScanAttemptStore) Attempts() []store.ScanAttemptRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.ScanAttemptRecord, len(s.attempts))
	copy(out, s.attempts)
	return out
}
