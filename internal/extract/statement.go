package extract

import (
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/ppiankov/finstate/internal/model"
)

// StatementExtractor reshapes statement sections of a conversion result
// into flat tables. It performs no I/O besides logging.
type StatementExtractor struct {
	log logrus.FieldLogger
}

// NewStatementExtractor creates an extractor logging to log (or the standard logger)
func NewStatementExtractor(log logrus.FieldLogger) *StatementExtractor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &StatementExtractor{log: log}
}

// Extract builds the table for one statement kind. It returns false when the
// result has no section for that kind; filings may legitimately omit one.
func (e *StatementExtractor) Extract(result *model.ConversionResult, kind model.StatementKind, source string) (*Table, bool) {
	if result == nil {
		return nil, false
	}

	section := gjson.GetBytes(result.Raw, gjson.Escape(kind.Key()))
	if !section.Exists() || !section.IsObject() {
		e.log.WithFields(logrus.Fields{
			"document":  source,
			"statement": kind.String(),
		}).Warn("statement not found")
		return nil, false
	}

	b := newBuilder(kind)
	field := kind.ColumnField()

	section.ForEach(func(label, observations gjson.Result) bool {
		item := label.String()
		b.row(item)
		observations.ForEach(func(_, obs gjson.Result) bool {
			column, ok := columnName(obs.Get(field))
			if !ok {
				e.log.WithFields(logrus.Fields{
					"document":  source,
					"statement": kind.String(),
					"item":      item,
				}).Debugf("observation without %s skipped", field)
				return true
			}
			b.set(item, column, cellFrom(obs.Get("value")))
			return true
		})
		return true
	})

	return b.table(source), true
}

// columnName renders an observation's period or date. Periods sometimes
// arrive as objects with startDate/endDate or instant.
func columnName(v gjson.Result) (string, bool) {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return "", false
	case v.IsObject():
		if instant := v.Get("instant"); instant.Exists() {
			return instant.String(), true
		}
		start, end := v.Get("startDate"), v.Get("endDate")
		switch {
		case start.Exists() && end.Exists():
			return start.String() + "/" + end.String(), true
		case end.Exists():
			return end.String(), true
		}
		return v.Raw, true
	default:
		return v.String(), true
	}
}

func cellFrom(v gjson.Result) Cell {
	switch v.Type {
	case gjson.Null:
		return Cell{}
	case gjson.Number:
		return Cell{Text: v.Raw, Numeric: true, Present: true}
	case gjson.String:
		return Cell{Text: v.Str, Present: true}
	case gjson.True, gjson.False:
		return Cell{Text: v.String(), Present: true}
	default:
		return Cell{Text: v.Raw, Present: true}
	}
}

// builder accumulates cells while columns are still being discovered
type builder struct {
	kind     model.StatementKind
	columns  []string
	colIndex map[string]int
	labels   []string
	rowIndex map[string]int
	cells    []map[int]Cell
}

func newBuilder(kind model.StatementKind) *builder {
	return &builder{
		kind:     kind,
		colIndex: make(map[string]int),
		rowIndex: make(map[string]int),
	}
}

func (b *builder) row(label string) int {
	if i, ok := b.rowIndex[label]; ok {
		return i
	}
	i := len(b.labels)
	b.rowIndex[label] = i
	b.labels = append(b.labels, label)
	b.cells = append(b.cells, make(map[int]Cell))
	return i
}

func (b *builder) set(label, column string, c Cell) {
	col, ok := b.colIndex[column]
	if !ok {
		col = len(b.columns)
		b.colIndex[column] = col
		b.columns = append(b.columns, column)
	}
	b.cells[b.row(label)][col] = c
}

func (b *builder) table(source string) *Table {
	t := &Table{
		Kind:    b.kind,
		Columns: b.columns,
		Rows:    make([]Row, len(b.labels)),
	}
	for i, label := range b.labels {
		values := make([]Cell, len(b.columns))
		for col, c := range b.cells[i] {
			values[col] = c
		}
		t.Rows[i] = Row{Label: label, Values: values, Source: source}
	}
	return t
}
