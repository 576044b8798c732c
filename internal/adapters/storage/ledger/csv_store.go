package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gofrs/flock"

	domain "certmailer/internal/domain/ledger"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

// csvHeader is the fixed column order of the human-inspectable log.
var csvHeader = []string{"timestamp", "recipient", "email", "cc", "attachment", "status", "detail"}

// CSVStore is an append-only CSV ledger. One run holds an exclusive
// advisory lock for its whole duration; appends are whole records flushed
// and fsynced before acknowledging.
type CSVStore struct {
	path   string
	lock   *flock.Flock
	file   *os.File
	writer *csv.Writer
}

// OpenCSVStore opens (creating if needed) the ledger at path and acquires
// its advisory lock without blocking.
// POST: Returns ErrLedgerLocked when another run already holds the ledger
func OpenCSVStore(path string) (*CSVStore, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking ledger: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLedgerLocked, path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	s := &CSVStore{path: path, lock: lock, file: f, writer: csv.NewWriter(f)}

	info, err := f.Stat()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("inspecting ledger: %w", err)
	}
	if info.Size() == 0 {
		if err := s.writeRow(csvHeader); err != nil {
			s.Close()
			return nil, fmt.Errorf("writing ledger header: %w", err)
		}
	}
	return s, nil
}

// Load replays all entries in append order from a fresh read handle.
// Rows with the wrong column count or an unparsable timestamp (a process
// killed mid-write leaves at most one such trailing row) are skipped;
// prior entries are never lost to them.
func (s *CSVStore) Load(_ context.Context) ([]domain.Entry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	var entries []domain.Entry
	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A torn trailing write can leave an unquotable fragment;
			// everything decoded so far is still valid.
			break
		}
		if first {
			first = false
			continue
		}
		if len(row) != len(csvHeader) {
			continue
		}
		ts, err := time.Parse(dateLayout, row[0])
		if err != nil {
			continue
		}
		entries = append(entries, domain.Entry{
			Timestamp:  ts,
			Recipient:  row[1],
			Email:      row[2],
			CC:         row[3],
			Attachment: row[4],
			Status:     row[5],
			Detail:     row[6],
		})
	}
	return entries, nil
}

// Append writes one whole CSV record and fsyncs before returning.
// PRE: e has been validated
// POST: The entry is durable on disk
func (s *CSVStore) Append(_ context.Context, e domain.Entry) error {
	row := []string{
		e.Timestamp.Format(dateLayout),
		e.Recipient,
		domain.NormalizeKey(e.Email),
		e.CC,
		e.Attachment,
		e.Status,
		e.Detail,
	}
	if err := s.writeRow(row); err != nil {
		return fmt.Errorf("appending ledger entry: %w", err)
	}
	return nil
}

// Close flushes, releases the advisory lock and closes the file.
func (s *CSVStore) Close() error {
	s.writer.Flush()
	err := s.writer.Error()
	if closeErr := s.file.Close(); err == nil {
		err = closeErr
	}
	if unlockErr := s.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}

// writeRow appends one record, flushes the csv writer and fsyncs the file.
func (s *CSVStore) writeRow(row []string) error {
	if err := s.writer.Write(row); err != nil {
		return err
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return err
	}
	return s.file.Sync()
}
