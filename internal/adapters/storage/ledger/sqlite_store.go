package ledger

import (
	"context"
	"fmt"
	"time"

	"certmailer/internal/adapters/storage"
	domain "certmailer/internal/domain/ledger"
)

// SQLiteStore implements the ledger Store interface using SQLite. Rows
// are insert-only; rowid order is the append order.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new SQLite ledger store.
// PRE: the ledger schema has been initialized via storage.InitDB
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load replays all entries in append (rowid) order.
func (s *SQLiteStore) Load(ctx context.Context) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, recipient, email, cc, attachment, status, detail
		 FROM ledger ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		var e domain.Entry
		var ts string
		if err := rows.Scan(&ts, &e.Recipient, &e.Email, &e.CC, &e.Attachment, &e.Status, &e.Detail); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		e.Timestamp, _ = time.Parse(dateLayout, ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Append inserts one entry; the transactional commit makes it durable
// before Append returns.
// PRE: e has been validated
func (s *SQLiteStore) Append(ctx context.Context, e domain.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger (timestamp, recipient, email, cc, attachment, status, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.Format(dateLayout), e.Recipient, domain.NormalizeKey(e.Email),
		e.CC, e.Attachment, e.Status, e.Detail)
	if err != nil {
		return fmt.Errorf("appending ledger entry: %w", err)
	}
	return nil
}

// Close is a no-op; the caller that opened the database owns it.
func (s *SQLiteStore) Close() error {
	return nil
}
