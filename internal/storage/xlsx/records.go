package xlsx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/people-email-enricher/internal/enrich"
)

const reportSheet = "results"

// ReadRecords reads input records from the first sheet of the workbook at path.
// Columns are located by header name; rows with every field empty are skipped.
func ReadRecords(path string) ([]enrich.InputRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open input workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("input workbook %s has no sheets", path)
	}
	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read input sheet: %w", err)
	}
	if len(cells) == 0 {
		return []enrich.InputRecord{}, nil
	}

	index := make(map[string]int, len(cells[0]))
	for i, name := range cells[0] {
		index[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	for _, col := range enrich.InputColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("input sheet missing column %q", col)
		}
	}

	get := func(row []string, col string) string {
		i := index[col]
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	records := make([]enrich.InputRecord, 0, len(cells)-1)
	for _, row := range cells[1:] {
		rec := enrich.InputRecord{
			FirstName: get(row, "FIRST_NAME"),
			LastName:  get(row, "LAST_NAME"),
			Street:    get(row, "STREET"),
			ZIP:       get(row, "ZIP"),
		}
		if rec == (enrich.InputRecord{}) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteReport renders rows, already blanked for presentation, into a workbook on w.
func WriteReport(w io.Writer, rows []enrich.OutputRow) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	if err := f.SetSheetName(defaultSheet, reportSheet); err != nil {
		return fmt.Errorf("name report sheet: %w", err)
	}
	if err := setRow(f, reportSheet, 1, enrich.Columns); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(f, reportSheet, i+2, row.Values()); err != nil {
			return err
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// SaveReport writes the report workbook to path.
func SaveReport(path string, rows []enrich.OutputRow) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	out, err := os.Create(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close report file: %w", cerr)
		}
	}()
	return WriteReport(out, rows)
}
