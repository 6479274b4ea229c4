package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/store"
)

// CredentialStore is an in-memory CredentialStore for tests and dev
// environments.  The mutex held across each check-and-set gives the same
// atomicity the sqlite store gets from its single-writer transaction.
type CredentialStore struct {
	mu    sync.Mutex
	creds map[string]store.CredentialRecord
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{creds: make(map[string]store.CredentialRecord)}
}

func (s *CredentialStore) Issue(_ context.Context, rec store.CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Status == "" {
		rec.Status = store.StatusUnused
	}
	s.creds[rec.ID] = rec
	return nil
}

func (s *CredentialStore) TryConsume(_ context.Context, id string, now time.Time) (store.ConsumeResult, store.CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.creds[id]
	if !ok {
		return store.ConsumeNotFound, store.CredentialRecord{}, nil
	}

	switch rec.Status {
	case store.StatusConsumed:
		return store.ConsumeAlreadyConsumed, rec, nil
	case store.StatusRevoked:
		return store.ConsumeRevoked, rec, nil
	}

	if !rec.ExpiresAt.After(now) {
		return store.ConsumeExpired, rec, nil
	}

	t := now.UTC()
	rec.Status = store.StatusConsumed
	rec.ConsumedAt = &t
	s.creds[id] = rec
	return store.ConsumeOK, rec, nil
}

func (s *CredentialStore) Revoke(_ context.Context, id string, now time.Time) (store.RevokeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.creds[id]
	if !ok {
		return store.RevokeNotFound, nil
	}

	switch rec.Status {
	case store.StatusRevoked:
		return store.RevokeAlreadyRevoked, nil
	case store.StatusConsumed:
		return store.RevokeAlreadyConsumed, nil
	}

	t := now.UTC()
	rec.Status = store.StatusRevoked
	rec.RevokedAt = &t
	s.creds[id] = rec
	return store.RevokeOK, nil
}

func (s *CredentialStore) Get(_ context.Context, id string) (store.CredentialRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.creds[id]
	return rec, ok, nil
}

func (s *CredentialStore) List(_ context.Context, limit int) ([]store.CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.CredentialRecord, 0, len(s.creds))
	for _, rec := range s.creds {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *CredentialStore) ArchiveExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	t := time.Now().UTC()
	for id, rec := range s.creds {
		if rec.ArchivedAt == nil && rec.ExpiresAt.Before(cutoff) {
			archived := t
			rec.ArchivedAt = &archived
			s.creds[id] = rec
			n++
		}
	}
	return n, nil
}
