package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/secure"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/store"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/token"
)

var (
	ErrInvalidSubject    = errors.New("subject is required")
	ErrUnknownCredential = errors.New("credential not found")
)

// decryptFailedPlaceholder is shown to admins when a sealed field cannot
// be opened (key rotated underneath existing rows, corrupted blob).
const decryptFailedPlaceholder = "[decryption error]"

// IssuePolicy bounds the lifetime an issuer may request.
type IssuePolicy struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
}

type IssueParams struct {
	Subject string
	Contact string
	Purpose string
	TTL     time.Duration
}

type IssuedCredential struct {
	Record  store.CredentialRecord
	Payload string
}

// IssuerService creates and revokes credentials and serves the admin
// read surface.  Visitor contact and purpose are sealed before they
// touch the store; the scan path never sees them.
type IssuerService struct {
	codec  *token.Codec
	sealer *secure.Sealer
	creds  store.CredentialStore
	policy IssuePolicy
	logger *log.Logger

	now func() time.Time
}

func NewIssuerService(codec *token.Codec, sealer *secure.Sealer, creds store.CredentialStore, policy IssuePolicy, logger *log.Logger) *IssuerService {
	if policy.DefaultTTL <= 0 {
		policy.DefaultTTL = time.Hour
	}
	if policy.MaxTTL <= 0 {
		policy.MaxTTL = 24 * time.Hour
	}
	return &IssuerService{
		codec:  codec,
		sealer: sealer,
		creds:  creds,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// Issue creates a new unused credential and returns it together with its
// encoded QR payload.  TTL is clamped to the policy bounds rather than
// rejected, so a sloppy client still gets a usable pass.
func (s *IssuerService) Issue(ctx context.Context, p IssueParams) (IssuedCredential, error) {
	subject := strings.TrimSpace(p.Subject)
	if subject == "" {
		return IssuedCredential{}, ErrInvalidSubject
	}

	ttl := p.TTL
	if ttl <= 0 {
		ttl = s.policy.DefaultTTL
	}
	if ttl > s.policy.MaxTTL {
		ttl = s.policy.MaxTTL
	}

	now := s.now().UTC()
	rec := store.CredentialRecord{
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		Status:    store.StatusUnused,
	}

	var err error
	if contact := strings.TrimSpace(p.Contact); contact != "" {
		if rec.EncContact, err = s.sealer.Seal(contact); err != nil {
			return IssuedCredential{}, fmt.Errorf("seal contact: %w", err)
		}
	}
	if purpose := strings.TrimSpace(p.Purpose); purpose != "" {
		if rec.EncPurpose, err = s.sealer.Seal(purpose); err != nil {
			return IssuedCredential{}, fmt.Errorf("seal purpose: %w", err)
		}
	}

	if err := s.creds.Issue(ctx, rec); err != nil {
		return IssuedCredential{}, fmt.Errorf("persist credential: %w", err)
	}

	payload, err := s.codec.Encode(rec.ID, rec.ExpiresAt)
	if err != nil {
		return IssuedCredential{}, fmt.Errorf("encode payload: %w", err)
	}

	s.logger.Printf("issued credential %s for %q, expires %s", rec.ID, subject, rec.ExpiresAt.Format(time.RFC3339))
	return IssuedCredential{Record: rec, Payload: payload}, nil
}

// Revoke transitions an unused credential to revoked.  It is idempotent:
// repeat calls report the current terminal state and create no audit
// side effects.
func (s *IssuerService) Revoke(ctx context.Context, id string) (store.RevokeResult, error) {
	result, err := s.creds.Revoke(ctx, strings.TrimSpace(id), s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("revoke credential %s: %w", id, err)
	}
	if result == store.RevokeOK {
		s.logger.Printf("revoked credential %s", id)
	}
	return result, nil
}

// QRImage renders the credential's payload as a PNG.  Encoding is
// deterministic, so the image can be re-rendered on demand instead of
// being stored at issuance time.
func (s *IssuerService) QRImage(ctx context.Context, id string, size int) ([]byte, error) {
	rec, ok, err := s.creds.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("get credential %s: %w", id, err)
	}
	if !ok {
		return nil, ErrUnknownCredential
	}

	payload, err := s.codec.Encode(rec.ID, rec.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return token.RenderPNG(payload, size)
}

// Credential returns the decrypted admin view of one credential.
func (s *IssuerService) Credential(ctx context.Context, id string) (store.CredentialRecord, string, string, error) {
	rec, ok, err := s.creds.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return store.CredentialRecord{}, "", "", fmt.Errorf("get credential %s: %w", id, err)
	}
	if !ok {
		return store.CredentialRecord{}, "", "", ErrUnknownCredential
	}

	contact, purpose := s.openFields(rec)
	return rec, contact, purpose, nil
}

// Credentials returns the newest credentials with decrypted fields for
// the admin dashboard.
func (s *IssuerService) Credentials(ctx context.Context, limit int) ([]store.CredentialRecord, []string, []string, error) {
	recs, err := s.creds.List(ctx, limit)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list credentials: %w", err)
	}

	contacts := make([]string, len(recs))
	purposes := make([]string, len(recs))
	for i, rec := range recs {
		contacts[i], purposes[i] = s.openFields(rec)
	}
	return recs, contacts, purposes, nil
}

func (s *IssuerService) openFields(rec store.CredentialRecord) (contact, purpose string) {
	var err error
	if len(rec.EncContact) > 0 {
		if contact, err = s.sealer.Open(rec.EncContact); err != nil {
			s.logger.Printf("decrypt contact for %s: %v", rec.ID, err)
			contact = decryptFailedPlaceholder
		}
	}
	if len(rec.EncPurpose) > 0 {
		if purpose, err = s.sealer.Open(rec.EncPurpose); err != nil {
			s.logger.Printf("decrypt purpose for %s: %v", rec.ID, err)
			purpose = decryptFailedPlaceholder
		}
	}
	return contact, purpose
}
