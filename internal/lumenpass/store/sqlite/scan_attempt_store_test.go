package sqlite_test

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/store"
)

func TestScanAttemptStore_RecordAndList(t *testing.T) {
	_, attempts := newTestStores(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	id := "c1"
	hash := sha256.Sum256([]byte("payload"))

	seq, err := attempts.Record(ctx, store.ScanAttemptRecord{
		CredentialID: &id,
		Subject:      "alice",
		Source:       store.SourceMobileUpload,
		At:           base,
		Admitted:     true,
		PayloadHash:  hash[:],
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	seq, err = attempts.Record(ctx, store.ScanAttemptRecord{
		CredentialID: &id,
		Subject:      "alice",
		Source:       store.SourceLocalCamera,
		At:           base.Add(time.Minute),
		Admitted:     false,
		Reason:       "duplicate_scan",
		PayloadHash:  hash[:],
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	recs, err := attempts.List(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// Reverse chronological: the denial comes first.
	assert.Equal(t, int64(2), recs[0].Seq)
	assert.False(t, recs[0].Admitted)
	assert.Equal(t, "duplicate_scan", recs[0].Reason)
	assert.Equal(t, store.SourceLocalCamera, recs[0].Source)

	assert.Equal(t, int64(1), recs[1].Seq)
	assert.True(t, recs[1].Admitted)
	require.NotNil(t, recs[1].CredentialID)
	assert.Equal(t, "c1", *recs[1].CredentialID)
	assert.Equal(t, hash[:], recs[1].PayloadHash)
	assert.True(t, recs[1].At.Equal(base))
}

func TestScanAttemptStore_NilCredentialID(t *testing.T) {
	_, attempts := newTestStores(t)
	ctx := context.Background()

	// Undecodable payloads are recorded without a credential reference.
	_, err := attempts.Record(ctx, store.ScanAttemptRecord{
		Source:   store.SourceMobileUpload,
		At:       time.Now().UTC(),
		Admitted: false,
		Reason:   "malformed",
	})
	require.NoError(t, err)

	recs, err := attempts.List(ctx, nil, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Nil(t, recs[0].CredentialID)
	assert.Equal(t, "malformed", recs[0].Reason)
}

func TestScanAttemptStore_ListSinceAndLimit(t *testing.T) {
	_, attempts := newTestStores(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := attempts.Record(ctx, store.ScanAttemptRecord{
			Source: store.SourceMobileUpload,
			At:     base.Add(time.Duration(i) * time.Minute),
			Reason: "expired",
		})
		require.NoError(t, err)
	}

	since := base.Add(2 * time.Minute)
	recs, err := attempts.List(ctx, &since, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	recs, err = attempts.List(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(5), recs[0].Seq)
	assert.Equal(t, int64(4), recs[1].Seq)
}
