// Package export serialises a user's ledger for download.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"finbot/internal/core"
)

// FileName is the attachment name used for exports.
const FileName = "finance_export.csv"

var ErrNothingToExport = errors.New("no transactions to export")

var header = []string{"Date", "Type", "Category", "Amount"}

// CSV renders rows, in the given order, as a CSV document with a header.
func CSV(rows []core.Transaction) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNothingToExport
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV streams rows to w. Zero rows still produce the header.
func WriteCSV(w io.Writer, rows []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, tx := range rows {
		rec := []string{
			tx.CreatedAt.UTC().Format(time.RFC3339),
			tx.Kind.Label(),
			tx.Category,
			tx.Amount.String(),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write transaction %d: %w", tx.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
