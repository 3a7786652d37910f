package extract

import "github.com/ppiankov/finstate/internal/model"

// SourceColumn is the header of the trailing column naming each row's document
const SourceColumn = "source_file"

// LabelColumn is the header of the leading line-item column
const LabelColumn = "line_item"

// Cell is one (line item, period) value. Empty cells have Present == false.
type Cell struct {
	Text    string // Value as it appeared in the response
	Numeric bool   // Value was a JSON number
	Present bool
}

// Row is one line item from one source document
type Row struct {
	Label  string
	Values []Cell // Aligned with Table.Columns
	Source string
}

// Table is a statement table: rows by line item, columns by period or date.
// The source column is implicit and always last when rendered.
type Table struct {
	Kind    model.StatementKind
	Columns []string
	Rows    []Row
}

// Header returns the rendered header row
func (t *Table) Header() []string {
	header := make([]string, 0, len(t.Columns)+2)
	header = append(header, LabelColumn)
	header = append(header, t.Columns...)
	return append(header, SourceColumn)
}

// Records returns the rendered body rows, empty cells as ""
func (t *Table) Records() [][]string {
	records := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make([]string, 0, len(t.Columns)+2)
		rec = append(rec, row.Label)
		for _, c := range row.Values {
			rec = append(rec, c.Text)
		}
		records = append(records, append(rec, row.Source))
	}
	return records
}

// Combine concatenates tables of one kind row-wise. Rows are neither
// deduplicated nor reconciled; columns are the union in first-seen order.
// Returns nil when there is nothing to combine.
func Combine(kind model.StatementKind, tables []*Table) *Table {
	if len(tables) == 0 {
		return nil
	}

	combined := &Table{Kind: kind}
	colIndex := make(map[string]int)
	for _, t := range tables {
		for _, c := range t.Columns {
			if _, ok := colIndex[c]; !ok {
				colIndex[c] = len(combined.Columns)
				combined.Columns = append(combined.Columns, c)
			}
		}
	}

	for _, t := range tables {
		for _, row := range t.Rows {
			values := make([]Cell, len(combined.Columns))
			for i, c := range t.Columns {
				values[colIndex[c]] = row.Values[i]
			}
			combined.Rows = append(combined.Rows, Row{
				Label:  row.Label,
				Values: values,
				Source: row.Source,
			})
		}
	}

	return combined
}
