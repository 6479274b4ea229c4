package httpapi

import (
	"encoding/hex"
	"time"

	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/store"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/types"
)

func credentialView(rec store.CredentialRecord, contact, purpose string) types.CredentialView {
	return types.CredentialView{
		CredentialID: rec.ID,
		Subject:      rec.Subject,
		Contact:      contact,
		Purpose:      purpose,
		IssuedAt:     rec.IssuedAt.Format(time.RFC3339Nano),
		ExpiresAt:    rec.ExpiresAt.Format(time.RFC3339Nano),
		Status:       string(rec.Status),
		ConsumedAt:   optionalTime(rec.ConsumedAt),
		RevokedAt:    optionalTime(rec.RevokedAt),
		ArchivedAt:   optionalTime(rec.ArchivedAt),
	}
}

func attemptView(rec store.ScanAttemptRecord) types.AttemptView {
	v := types.AttemptView{
		Seq:         rec.Seq,
		Subject:     rec.Subject,
		Source:      string(rec.Source),
		At:          rec.At.Format(time.RFC3339Nano),
		Admitted:    rec.Admitted,
		Reason:      rec.Reason,
		PayloadHash: hex.EncodeToString(rec.PayloadHash),
	}
	if rec.CredentialID != nil {
		v.CredentialID = *rec.CredentialID
	}
	return v
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
