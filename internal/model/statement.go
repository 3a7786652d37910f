package model

import "fmt"

// StatementKind is one of the three recognized financial statement sections
type StatementKind int

const (
	StatementIncome   StatementKind = iota // Income statement
	StatementBalance                       // Balance sheet
	StatementCashFlow                      // Cash flow statement
)

// StatementKinds lists every kind in output order
var StatementKinds = []StatementKind{StatementIncome, StatementBalance, StatementCashFlow}

// Key returns the top-level section name in a conversion result
func (k StatementKind) Key() string {
	switch k {
	case StatementIncome:
		return "StatementsOfIncome"
	case StatementBalance:
		return "BalanceSheets"
	case StatementCashFlow:
		return "StatementsOfCashFlows"
	default:
		panic(fmt.Sprintf("unknown statement kind %d", int(k)))
	}
}

// ColumnField returns the observation field that names a column.
// Balance sheets are point-in-time and keyed by date; the others by period.
func (k StatementKind) ColumnField() string {
	if k == StatementBalance {
		return "date"
	}
	return "period"
}

// OutputName returns the base name of the combined output for this kind
func (k StatementKind) OutputName() string {
	switch k {
	case StatementIncome:
		return "combined_income_statement"
	case StatementBalance:
		return "combined_balance_sheet"
	case StatementCashFlow:
		return "combined_cash_flow"
	default:
		panic(fmt.Sprintf("unknown statement kind %d", int(k)))
	}
}

func (k StatementKind) String() string {
	switch k {
	case StatementIncome:
		return "income statement"
	case StatementBalance:
		return "balance sheet"
	case StatementCashFlow:
		return "cash flow statement"
	default:
		return "unknown"
	}
}

// ConversionResult is the JSON document returned by the conversion service.
// The raw bytes are kept so section and label order survive extraction.
type ConversionResult struct {
	Raw      []byte
	Strategy string // Strategy that produced the result ("reference" or "content")
}
