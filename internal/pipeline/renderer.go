package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/finstate/internal/extract"
	"github.com/ppiankov/finstate/internal/model"
)

// WorkbookName is the optional XLSX output holding every combined table
const WorkbookName = "combined_statements.xlsx"

// Renderer writes combined tables to the output directory
type Renderer struct {
	dir string
}

// NewRenderer creates a renderer for dir
func NewRenderer(dir string) *Renderer {
	if dir == "" {
		dir = "."
	}
	return &Renderer{dir: dir}
}

// CSVPath returns where the combined table of kind is written
func (r *Renderer) CSVPath(kind model.StatementKind) string {
	return filepath.Join(r.dir, kind.OutputName()+".csv")
}

// RenderCSV writes one combined table, replacing any previous file
func (r *Renderer) RenderCSV(table *extract.Table) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(table.Header()); err != nil {
		return "", fmt.Errorf("write CSV header: %w", err)
	}
	if err := w.WriteAll(table.Records()); err != nil {
		return "", fmt.Errorf("write CSV rows: %w", err)
	}

	path := r.CSVPath(table.Kind)
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}

// RenderWorkbook writes all combined tables into one workbook, a sheet per kind.
// Numeric cells are stored as numbers.
func (r *Renderer) RenderWorkbook(tables []*extract.Table) (string, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	first := true
	for _, table := range tables {
		sheet := sheetName(table.Kind)
		if first {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return "", fmt.Errorf("rename sheet: %w", err)
			}
			first = false
		} else if _, err := f.NewSheet(sheet); err != nil {
			return "", fmt.Errorf("create sheet %s: %w", sheet, err)
		}

		header := table.Header()
		for col, h := range header {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			_ = f.SetCellValue(sheet, cell, h)
		}

		for i, row := range table.Rows {
			excelRow := i + 2
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, excelRow)
				_ = f.SetCellValue(sheet, cell, v)
			}
			write(1, row.Label)
			for j, c := range row.Values {
				if !c.Present {
					continue
				}
				write(j+2, cellValue(c))
			}
			write(len(header), row.Source)
		}

		_ = f.SetColWidth(sheet, "A", "A", 60) // line items
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", fmt.Errorf("xlsx write: %w", err)
	}

	path := filepath.Join(r.dir, WorkbookName)
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}

func sheetName(kind model.StatementKind) string {
	switch kind {
	case model.StatementIncome:
		return "Income Statement"
	case model.StatementBalance:
		return "Balance Sheet"
	default:
		return "Cash Flow"
	}
}

func cellValue(c extract.Cell) any {
	if c.Numeric {
		if f, err := strconv.ParseFloat(c.Text, 64); err == nil {
			return f
		}
	}
	return c.Text
}

// writeFileAtomic replaces path with data in one rename
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
