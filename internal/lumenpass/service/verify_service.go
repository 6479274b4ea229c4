package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/store"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/token"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/types"
)

const (
	OutcomeAdmitted = "admitted"
	OutcomeDenied   = "denied"
)

// Denial reason codes, stable across the API and the audit log.
const (
	ReasonMalformed         = "malformed"
	ReasonTagMismatch       = "tag_mismatch"
	ReasonUnsupported       = "unsupported"
	ReasonDuplicateScan     = "duplicate_scan"
	ReasonRevoked           = "revoked"
	ReasonExpired           = "expired"
	ReasonUnknownCredential = "unknown_credential"
)

// Submission is one candidate payload arriving from a scan adapter.
type Submission struct {
	Payload string
	Source  store.ScanSource
}

// VerifyService is the verification engine: decode, atomically consume,
// audit.  It takes no authentication context — a scan decision depends
// only on the payload and the store state.  Both ingestion adapters
// (camera loop and mobile upload) call Verify concurrently.
type VerifyService struct {
	codec    *token.Codec
	creds    store.CredentialStore
	attempts store.ScanAttemptStore
	logger   *log.Logger

	now func() time.Time
}

func NewVerifyService(codec *token.Codec, creds store.CredentialStore, attempts store.ScanAttemptStore, logger *log.Logger) *VerifyService {
	return &VerifyService{
		codec:    codec,
		creds:    creds,
		attempts: attempts,
		logger:   logger,
		now:      time.Now,
	}
}

// Verify evaluates one submission and returns the admit/deny outcome.
// Every evaluated submission produces exactly one scan attempt record.
// A returned error means the decision could not be evaluated or durably
// recorded (store unavailable) and is retryable; it is never a denial.
func (s *VerifyService) Verify(ctx context.Context, sub Submission) (types.ScanResponse, error) {
	now := s.now().UTC()
	hash := sha256.Sum256([]byte(sub.Payload))

	claims, err := s.codec.Decode(sub.Payload)
	if err != nil {
		reason := decodeReason(err)
		rec := store.ScanAttemptRecord{
			Source:      sub.Source,
			At:          now,
			Admitted:    false,
			Reason:      reason,
			PayloadHash: hash[:],
		}
		if _, err := s.attempts.Record(ctx, rec); err != nil {
			return types.ScanResponse{}, fmt.Errorf("record attempt: %w", err)
		}
		return deniedResponse(reason, now), nil
	}

	result, cred, err := s.creds.TryConsume(ctx, claims.CredentialID, now)
	if err != nil {
		return types.ScanResponse{}, fmt.Errorf("consume credential %s: %w", claims.CredentialID, err)
	}

	admitted, reason := consumeOutcome(result)

	rec := store.ScanAttemptRecord{
		CredentialID: &claims.CredentialID,
		Subject:      cred.Subject,
		Source:       sub.Source,
		At:           now,
		Admitted:     admitted,
		Reason:       reason,
		PayloadHash:  hash[:],
	}

	if _, recErr := s.attempts.Record(ctx, rec); recErr != nil {
		if admitted {
			// The consumption is already durable and irrevocable; do not
			// turn a successful admission into an error over a lost
			// audit row.
			s.logger.Printf("attempt record failed after admit of %s: %v", claims.CredentialID, recErr)
		} else {
			return types.ScanResponse{}, fmt.Errorf("record attempt: %w", recErr)
		}
	}

	if admitted {
		return types.ScanResponse{
			Outcome:   OutcomeAdmitted,
			Subject:   cred.Subject,
			ScannedAt: now.Format(time.RFC3339Nano),
		}, nil
	}
	return deniedResponse(reason, now), nil
}

func decodeReason(err error) string {
	switch {
	case errors.Is(err, token.ErrTagMismatch):
		return ReasonTagMismatch
	case errors.Is(err, token.ErrUnsupported):
		return ReasonUnsupported
	default:
		return ReasonMalformed
	}
}

func consumeOutcome(result store.ConsumeResult) (admitted bool, reason string) {
	switch result {
	case store.ConsumeOK:
		return true, ""
	case store.ConsumeAlreadyConsumed:
		return false, ReasonDuplicateScan
	case store.ConsumeRevoked:
		return false, ReasonRevoked
	case store.ConsumeExpired:
		return false, ReasonExpired
	default:
		return false, ReasonUnknownCredential
	}
}

func deniedResponse(reason string, now time.Time) types.ScanResponse {
	return types.ScanResponse{
		Outcome:   OutcomeDenied,
		Reason:    reason,
		ScannedAt: now.Format(time.RFC3339Nano),
	}
}
