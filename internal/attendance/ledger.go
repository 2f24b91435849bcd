package attendance

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const dateFormat = "2006-01-02"

// Ledger stores attendance records as one CSV file per day. Every mutation
// rewrites the day's file in full; the file on disk is the source of truth.
type Ledger struct {
	dir string
}

// NewLedger creates a ledger over the given directory.
func NewLedger(dir string) *Ledger {
	return &Ledger{dir: dir}
}

func (l *Ledger) filePath(date string) string {
	return filepath.Join(l.dir, fmt.Sprintf("attendance_%s.csv", date))
}

// Read returns all records for a date. A missing file is an empty day, not
// an error.
func (l *Ledger) Read(date string) ([]Record, error) {
	f, err := os.Open(l.filePath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open ledger for %s: %w", date, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger for %s: %w", date, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record, err := recordFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("bad row in ledger for %s: %w", date, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Write replaces the day's file with the given records.
func (l *Ledger) Write(date string, records []Record) error {
	if err := os.MkdirAll(l.dir, 0750); err != nil {
		return fmt.Errorf("failed to create attendance directory: %w", err)
	}

	f, err := os.Create(l.filePath(date))
	if err != nil {
		return fmt.Errorf("failed to create ledger for %s: %w", date, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write ledger header: %w", err)
	}
	for i := range records {
		if err := w.Write(records[i].toRow()); err != nil {
			return fmt.Errorf("failed to write ledger row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush ledger for %s: %w", date, err)
	}
	return nil
}

// Ensure creates the day's file with just the header when it does not exist
// yet, so status queries and exports always see a well formed file.
func (l *Ledger) Ensure(date string) error {
	if _, err := os.Stat(l.filePath(date)); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat ledger for %s: %w", date, err)
	}
	return l.Write(date, nil)
}

// Delete removes the day's file. Deleting a day that has no file is a no-op.
func (l *Ledger) Delete(date string) error {
	err := os.Remove(l.filePath(date))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete ledger for %s: %w", date, err)
	}
	return nil
}

// Dates lists every day that has a ledger file, sorted ascending.
func (l *Ledger) Dates() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list attendance directory: %w", err)
	}

	var dates []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "attendance_") || !strings.HasSuffix(name, ".csv") {
			continue
		}
		dates = append(dates, strings.TrimSuffix(strings.TrimPrefix(name, "attendance_"), ".csv"))
	}
	sort.Strings(dates)
	return dates, nil
}

// ReadAll returns the records of every day in date order.
func (l *Ledger) ReadAll() ([]Record, error) {
	dates, err := l.Dates()
	if err != nil {
		return nil, err
	}

	var all []Record
	for _, date := range dates {
		records, err := l.Read(date)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}
