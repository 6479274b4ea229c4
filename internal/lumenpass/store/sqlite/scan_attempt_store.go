package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/AdityaRanjanp/LumenPass/internal/db"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/store"
)

// ScanAttemptStore persists verification attempts.  Inserts go through
// the single writer; there is deliberately no update or delete path.
type ScanAttemptStore struct {
	conn   *sql.DB
	writer *dbpkg.Writer
}

func NewScanAttemptStore(conn *sql.DB, writer *dbpkg.Writer) *ScanAttemptStore {
	return &ScanAttemptStore{conn: conn, writer: writer}
}

func (s *ScanAttemptStore) Record(ctx context.Context, rec store.ScanAttemptRecord) (int64, error) {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}

	var credentialID any
	if rec.CredentialID != nil {
		credentialID = *rec.CredentialID
	}

	admitted := 0
	if rec.Admitted {
		admitted = 1
	}

	var seq int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO scan_attempts(
  credential_id, subject, source, at_ms, admitted, reason, payload_hash
) VALUES (?, ?, ?, ?, ?, ?, ?);
`,
			credentialID, rec.Subject, string(rec.Source),
			rec.At.UTC().UnixMilli(), admitted, rec.Reason, rec.PayloadHash,
		)
		if err != nil {
			return fmt.Errorf("Record insert: %w", err)
		}
		seq, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *ScanAttemptStore) List(ctx context.Context, since *time.Time, limit int) ([]store.ScanAttemptRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	q := `
SELECT seq, credential_id, subject, source, at_ms, admitted, reason, payload_hash
FROM scan_attempts`
	args := []any{}
	if since != nil {
		q += " WHERE at_ms >= ?"
		args = append(args, since.UTC().UnixMilli())
	}
	q += " ORDER BY seq DESC LIMIT ?;"
	args = append(args, limit)

	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("List query: %w", err)
	}
	defer rows.Close()

	var out []store.ScanAttemptRecord
	for rows.Next() {
		var rec store.ScanAttemptRecord
		var credentialID sql.NullString
		var atMs int64
		var admitted int
		var source string

		if err := rows.Scan(
			&rec.Seq, &credentialID, &rec.Subject, &source,
			&atMs, &admitted, &rec.Reason, &rec.PayloadHash,
		); err != nil {
			return nil, fmt.Errorf("List scan: %w", err)
		}

		if credentialID.Valid {
			id := credentialID.String
			rec.CredentialID = &id
		}
		rec.Source = store.ScanSource(source)
		rec.At = time.UnixMilli(atMs).UTC()
		rec.Admitted = admitted == 1
		out = append(out, rec)
	}
	return out, rows.Err()
}
