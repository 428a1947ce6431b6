// Package report writes bounce records as CSV: one row per record with the columns
// recipient, code and reason, and no header row.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"

	"github.io/infrasutra/bouncecsv/internal/bounce"
)

const (
	ContentType = "text/csv"
	Filename    = "bounces.csv"
)

func Write(w io.Writer, records []bounce.Record) error {
	cw := csv.NewWriter(w)
	for _, record := range records {
		if err := cw.Write(record.Fields()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// String returns the CSV content for records.
func String(records []bounce.Record) (string, error) {
	var buf bytes.Buffer
	if err := Write(&buf, records); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Serve sends records as a bounces.csv download.
func Serve(w http.ResponseWriter, records []bounce.Record) error {
	body, err := String(records)
	if err != nil {
		http.Error(w, "unable to build csv", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+Filename)
	w.WriteHeader(http.StatusOK)
	_, err = io.WriteString(w, body)
	return err
}
