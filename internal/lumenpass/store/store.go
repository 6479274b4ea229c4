package store

import (
	"context"
	"time"
)

type CredentialStatus string

const (
	StatusUnused   CredentialStatus = "unused"
	StatusConsumed CredentialStatus = "consumed"
	StatusRevoked  CredentialStatus = "revoked"
)

// CredentialRecord is the durable state of one issued check-in right.
// Contact and purpose are sealed at rest; only the admin surface
// decrypts them for display.  Records are never deleted — the archiver
// stamps ArchivedAt on long-expired ones to keep audit history intact.
type CredentialRecord struct {
	ID         string
	Subject    string
	EncContact []byte
	EncPurpose []byte
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Status     CredentialStatus
	ConsumedAt *time.Time
	RevokedAt  *time.Time
	ArchivedAt *time.Time
}

// ConsumeResult is the outcome of the atomic check-and-set on one
// credential id.
type ConsumeResult int

const (
	ConsumeOK ConsumeResult = iota
	ConsumeAlreadyConsumed
	ConsumeRevoked
	ConsumeExpired
	ConsumeNotFound
)

type RevokeResult int

const (
	RevokeOK RevokeResult = iota
	RevokeAlreadyRevoked
	RevokeAlreadyConsumed
	RevokeNotFound
)

// CredentialStore owns credential records.  TryConsume is the single
// synchronization point of the whole system: the expiry comparison and
// the unused→consumed transition must happen as one indivisible step per
// id, so that two scans racing on the same payload cannot both admit and
// a credential expiring mid-request cannot slip through.
type CredentialStore interface {
	Issue(ctx context.Context, rec CredentialRecord) error

	// TryConsume attempts the unused→consumed transition at instant now.
	// The returned record is valid for every result except
	// ConsumeNotFound.
	TryConsume(ctx context.Context, id string, now time.Time) (ConsumeResult, CredentialRecord, error)

	// Revoke transitions unused→revoked.  Revoking an already revoked
	// credential reports RevokeAlreadyRevoked, a consumed one
	// RevokeAlreadyConsumed; neither has side effects.
	Revoke(ctx context.Context, id string, now time.Time) (RevokeResult, error)

	// Get is a read-only lookup for audit/display.
	Get(ctx context.Context, id string) (CredentialRecord, bool, error)

	// List returns the most recently issued credentials, newest first.
	List(ctx context.Context, limit int) ([]CredentialRecord, error)

	// ArchiveExpiredBefore stamps ArchivedAt on unarchived credentials
	// whose expiry is older than cutoff and reports how many it touched.
	ArchiveExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type ScanSource string

const (
	SourceLocalCamera  ScanSource = "local_camera"
	SourceMobileUpload ScanSource = "mobile_upload"
)

// ScanAttemptRecord captures one verification evaluation, admitted or
// denied.  CredentialID is nil when the payload could not be decoded.
// Records are immutable once written.
type ScanAttemptRecord struct {
	Seq          int64
	CredentialID *string
	Subject      string
	Source       ScanSource
	At           time.Time
	Admitted     bool
	Reason       string
	PayloadHash  []byte // SHA-256 of the raw submitted payload
}

// ScanAttemptStore persists verification attempts as an append-only
// audit log.  No mutation or deletion API exists by design.
type ScanAttemptStore interface {
	Record(ctx context.Context, rec ScanAttemptRecord) (int64, error)

	// List returns attempts newest first, optionally restricted to
	// those at or after since.
	List(ctx context.Context, since *time.Time, limit int) ([]ScanAttemptRecord, error)
}
