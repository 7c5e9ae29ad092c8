// Package xlsx persists the output table and reads input records as Excel workbooks.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/people-email-enricher/internal/enrich"
)

const (
	rowsSheet    = "rows"
	defaultSheet = "Sheet1"
)

// Store appends output rows to a workbook on disk. Rows are stored exactly as
// produced; duplicate blanking is a presentation concern handled by the report.
type Store struct {
	path string
}

// NewStore creates a Store writing to path, creating the parent directory if needed.
func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	return &Store{path: path}, nil
}

// Path returns the workbook location.
func (s *Store) Path() string {
	return s.path
}

// Append writes rows after the last used row, creating the workbook on first use.
func (s *Store) Append(ctx context.Context, rows []enrich.OutputRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}

	f, err := s.openOrCreate()
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // read handle, save errors are reported below

	existing, err := f.GetRows(rowsSheet)
	if err != nil {
		return fmt.Errorf("read rows sheet: %w", err)
	}
	if len(existing) == 0 {
		if err := setRow(f, rowsSheet, 1, enrich.Columns); err != nil {
			return err
		}
		existing = [][]string{enrich.Columns}
	}
	next := len(existing) + 1
	for i, row := range rows {
		if err := setRow(f, rowsSheet, next+i, row.Values()); err != nil {
			return err
		}
	}
	return s.save(f)
}

// Load returns every persisted row in insertion order. A missing workbook is an empty table.
func (s *Store) Load(ctx context.Context) ([]enrich.OutputRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context canceled: %w", err)
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []enrich.OutputRow{}, nil
		}
		return nil, fmt.Errorf("open output workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	cells, err := f.GetRows(rowsSheet)
	if err != nil {
		return nil, fmt.Errorf("read rows sheet: %w", err)
	}
	if len(cells) == 0 {
		return []enrich.OutputRow{}, nil
	}
	if err := checkHeader(cells[0]); err != nil {
		return nil, err
	}
	rows := make([]enrich.OutputRow, 0, len(cells)-1)
	for _, values := range cells[1:] {
		rows = append(rows, enrich.RowFromValues(values))
	}
	return rows, nil
}

func (s *Store) openOrCreate() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		f = excelize.NewFile()
		if err := f.SetSheetName(defaultSheet, rowsSheet); err != nil {
			return nil, fmt.Errorf("name rows sheet: %w", err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("open output workbook: %w", err)
	}

	idx, err := f.GetSheetIndex(rowsSheet)
	if err != nil {
		return nil, fmt.Errorf("find rows sheet: %w", err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(rowsSheet); err != nil {
			return nil, fmt.Errorf("create rows sheet: %w", err)
		}
	}
	return f, nil
}

// save writes to a sibling temp file and renames it over the target.
func (s *Store) save(f *excelize.File) error {
	tmp := s.path + ".tmp"
	if err := f.SaveAs(tmp); err != nil {
		return fmt.Errorf("save output workbook: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace output workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name for row %d: %w", row, err)
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func checkHeader(header []string) error {
	for i, want := range enrich.Columns {
		if i >= len(header) || strings.TrimSpace(header[i]) != want {
			return fmt.Errorf("unexpected output header %v, want %v", header, enrich.Columns)
		}
	}
	return nil
}
