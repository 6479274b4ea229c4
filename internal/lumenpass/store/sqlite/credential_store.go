package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/AdityaRanjanp/LumenPass/internal/db"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/store"
)

type CredentialStore struct {
	conn   *sql.DB
	writer *dbpkg.Writer
}

func NewCredentialStore(conn *sql.DB, writer *dbpkg.Writer) *CredentialStore {
	return &CredentialStore{conn: conn, writer: writer}
}

func (s *CredentialStore) Issue(ctx context.Context, rec store.CredentialRecord) error {
	if rec.Status == "" {
		rec.Status = store.StatusUnused
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO credentials(
  id, subject, enc_contact, enc_purpose,
  issued_at_ms, expires_at_ms, status
) VALUES (?, ?, ?, ?, ?, ?, ?);
`,
			rec.ID, rec.Subject, rec.EncContact, rec.EncPurpose,
			rec.IssuedAt.UTC().UnixMilli(), rec.ExpiresAt.UTC().UnixMilli(), string(rec.Status),
		); err != nil {
			return fmt.Errorf("Issue insert: %w", err)
		}
		return nil
	})
}

// TryConsume performs the unused→consumed transition as a single UPDATE
// whose WHERE clause carries both the status check and the expiry
// comparison.  The statement runs on the single-writer goroutine, so two
// scans racing on the same id are serialized and at most one sees a row
// change; a credential expiring between request arrival and execution is
// caught by the same clause.  When no row changes, the credential is
// re-read inside the same transaction to classify the denial.
func (s *CredentialStore) TryConsume(ctx context.Context, id string, now time.Time) (store.ConsumeResult, store.CredentialRecord, error) {
	nowMs := now.UTC().UnixMilli()

	var result store.ConsumeResult
	var rec store.CredentialRecord

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE credentials
SET status = 'consumed', consumed_at_ms = ?
WHERE id = ? AND status = 'unused' AND expires_at_ms > ?;
`, nowMs, id, nowMs)
		if err != nil {
			return fmt.Errorf("TryConsume update: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("TryConsume rows affected: %w", err)
		}

		rec, err = scanCredentialTx(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			result = store.ConsumeNotFound
			return nil
		}
		if err != nil {
			return fmt.Errorf("TryConsume read back: %w", err)
		}

		if rows == 1 {
			result = store.ConsumeOK
			return nil
		}

		switch rec.Status {
		case store.StatusConsumed:
			result = store.ConsumeAlreadyConsumed
		case store.StatusRevoked:
			result = store.ConsumeRevoked
		default:
			result = store.ConsumeExpired
		}
		return nil
	})
	if err != nil {
		return 0, store.CredentialRecord{}, err
	}
	return result, rec, nil
}

func (s *CredentialStore) Revoke(ctx context.Context, id string, now time.Time) (store.RevokeResult, error) {
	nowMs := now.UTC().UnixMilli()

	var result store.RevokeResult
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE credentials
SET status = 'revoked', revoked_at_ms = ?
WHERE id = ? AND status = 'unused';
`, nowMs, id)
		if err != nil {
			return fmt.Errorf("Revoke update: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("Revoke rows affected: %w", err)
		}
		if rows == 1 {
			result = store.RevokeOK
			return nil
		}

		var status string
		err = tx.QueryRowContext(ctx,
			"SELECT status FROM credentials WHERE id = ?;", id,
		).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			result = store.RevokeNotFound
			return nil
		}
		if err != nil {
			return fmt.Errorf("Revoke read back: %w", err)
		}

		if status == string(store.StatusConsumed) {
			result = store.RevokeAlreadyConsumed
		} else {
			result = store.RevokeAlreadyRevoked
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}

func (s *CredentialStore) Get(ctx context.Context, id string) (store.CredentialRecord, bool, error) {
	rec, err := scanCredentialRow(s.conn.QueryRowContext(ctx, credentialSelect+" WHERE id = ?;", id))
	if errors.Is(err, sql.ErrNoRows) {
		return store.CredentialRecord{}, false, nil
	}
	if err != nil {
		return store.CredentialRecord{}, false, fmt.Errorf("Get query: %w", err)
	}
	return rec, true, nil
}

func (s *CredentialStore) List(ctx context.Context, limit int) ([]store.CredentialRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.conn.QueryContext(ctx,
		credentialSelect+" ORDER BY issued_at_ms DESC, id DESC LIMIT ?;", limit)
	if err != nil {
		return nil, fmt.Errorf("List query: %w", err)
	}
	defer rows.Close()

	var out []store.CredentialRecord
	for rows.Next() {
		rec, err := scanCredentialRow(rows)
		if err != nil {
			return nil, fmt.Errorf("List scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *CredentialStore) ArchiveExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()
	nowMs := time.Now().UTC().UnixMilli()

	var archived int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE credentials
SET archived_at_ms = ?
WHERE archived_at_ms IS NULL AND expires_at_ms < ?;
`, nowMs, cutoffMs)
		if err != nil {
			return fmt.Errorf("ArchiveExpiredBefore update: %w", err)
		}
		archived, err = res.RowsAffected()
		return err
	})
	return archived, err
}

const credentialSelect = `
SELECT id, subject, enc_contact, enc_purpose,
       issued_at_ms, expires_at_ms, status,
       consumed_at_ms, revoked_at_ms, archived_at_ms
FROM credentials`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredentialTx(ctx context.Context, tx *sql.Tx, id string) (store.CredentialRecord, error) {
	return scanCredentialRow(tx.QueryRowContext(ctx, credentialSelect+" WHERE id = ?;", id))
}

func scanCredentialRow(row rowScanner) (store.CredentialRecord, error) {
	var rec store.CredentialRecord
	var status string
	var issuedMs, expiresMs int64
	var consumedMs, revokedMs, archivedMs sql.NullInt64

	if err := row.Scan(
		&rec.ID, &rec.Subject, &rec.EncContact, &rec.EncPurpose,
		&issuedMs, &expiresMs, &status,
		&consumedMs, &revokedMs, &archivedMs,
	); err != nil {
		return store.CredentialRecord{}, err
	}

	rec.IssuedAt = time.UnixMilli(issuedMs).UTC()
	rec.ExpiresAt = time.UnixMilli(expiresMs).UTC()
	rec.Status = store.CredentialStatus(status)
	rec.ConsumedAt = nullTime(consumedMs)
	rec.RevokedAt = nullTime(revokedMs)
	rec.ArchivedAt = nullTime(archivedMs)
	return rec, nil
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
