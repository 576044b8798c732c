package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	domain "certmailer/internal/domain/roster"
)

// Loader errors
var (
	ErrEmptyDataset           = errors.New("dataset has no header row")
	ErrMissingEmailColumn     = errors.New("dataset missing required column: email")
	ErrMissingRecipientColumn = errors.New("dataset missing required column: recipient")
)

// Load parses a CSV stream into a Dataset. The header row is required;
// email and recipient columns are matched case-insensitively. Any row
// whose column count differs from the header rejects the whole load, so
// malformed rows are discovered before dispatch begins, never mid-run.
// POST: Every returned record shares the header's column set
func Load(r io.Reader) (domain.Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return domain.Dataset{}, ErrEmptyDataset
	}
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("reading dataset header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(h))
	}

	if !hasColumn(columns, domain.ColumnEmail) {
		return domain.Dataset{}, ErrMissingEmailColumn
	}
	if !hasColumn(columns, domain.ColumnRecipient) {
		return domain.Dataset{}, ErrMissingRecipientColumn
	}

	ds := domain.Dataset{Columns: columns}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// csv.Reader enforces the header's field count; a mismatch
			// surfaces here and rejects the whole dataset.
			return domain.Dataset{}, fmt.Errorf("malformed dataset: %w", err)
		}

		values := make(map[string]string, len(columns))
		for i, col := range columns {
			values[col] = strings.TrimSpace(row[i])
		}
		ds.Records = append(ds.Records, domain.NewRecord(values))
	}

	return ds, nil
}

// hasColumn reports whether the normalized header contains the column.
func hasColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}
