package models

import (
	"fmt"
	"sort"
	"time"
)

// StatementKind identifies one of the three reported financial statements
type StatementKind string

const (
	StatementCashFlow     StatementKind = "cashflow"
	StatementBalanceSheet StatementKind = "balance_sheet"
	StatementIncome       StatementKind = "income_statement"
)

// StatementKinds lists every statement a complete set carries
var StatementKinds = []StatementKind{StatementCashFlow, StatementBalanceSheet, StatementIncome}

// LineItem is a row label inside a statement (provider vocabulary)
type LineItem string

const (
	Revenue                LineItem = "Total Revenue"
	OperatingIncome        LineItem = "Operating Income"
	TaxProvision           LineItem = "Tax Provision"
	PretaxIncome           LineItem = "Pretax Income"
	Depreciation           LineItem = "Depreciation And Amortization"
	CapitalExpenditure     LineItem = "Capital Expenditure"
	TotalDebt              LineItem = "Total Debt"
	CashAndShortTerm       LineItem = "Cash Cash Equivalents And Short Term Investments"
	ChangeInWorkingCapital LineItem = "Change In Working Capital"
	FreeCashFlow           LineItem = "Free Cash Flow"
	EBITDA                 LineItem = "EBITDA"
	EBIT                   LineItem = "EBIT"
	NetIncome              LineItem = "Net Income"
	OperatingCashFlow      LineItem = "Operating Cash Flow"
	InterestExpense        LineItem = "Interest Expense"
	TaxesPaid              LineItem = "Income Tax Paid Supplemental Data"

	// Not a statement row; names the profile fact in errors
	SharesOutstandingKey LineItem = "sharesOutstanding"
)

// Statement is a time-indexed table: rows are line items, columns are
// reporting periods in increasing time order. A nil cell is undefined.
type Statement struct {
	Periods []time.Time
	Rows    map[LineItem][]*float64
}

// NewStatement builds a statement from sparse observations. Periods are the
// union of every observed date, sorted ascending; gaps become nil cells.
func NewStatement(observations map[LineItem]map[time.Time]*float64) *Statement {
	seen := make(map[time.Time]bool)
	for _, byPeriod := range observations {
		for p := range byPeriod {
			seen[p] = true
		}
	}

	periods := make([]time.Time, 0, len(seen))
	for p := range seen {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	rows := make(map[LineItem][]*float64, len(observations))
	for item, byPeriod := range observations {
		row := make([]*float64, len(periods))
		for i, p := range periods {
			if v, ok := byPeriod[p]; ok && v != nil {
				val := *v
				row[i] = &val
			}
		}
		rows[item] = row
	}

	return &Statement{Periods: periods, Rows: rows}
}

// Validate checks the column ordering and row widths
func (s *Statement) Validate() error {
	for i := 1; i < len(s.Periods); i++ {
		if !s.Periods[i-1].Before(s.Periods[i]) {
			return fmt.Errorf("periods not strictly ascending at column %d", i)
		}
	}
	for item, row := range s.Rows {
		if len(row) != len(s.Periods) {
			return fmt.Errorf("row %q has %d cells, want %d", item, len(row), len(s.Periods))
		}
	}
	return nil
}

// Point is one defined (period, value) observation
type Point struct {
	Period time.Time `json:"period"`
	Value  float64   `json:"value"`
}

// LineItemSeries is an ascending sequence of defined observations for one line item
type LineItemSeries []Point

// Values returns the bare values in period order
func (s LineItemSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Last returns the most recent value
func (s LineItemSeries) Last() (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1].Value, true
}

// Mean returns the arithmetic mean, false when the series is empty
func (s LineItemSeries) Mean() (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, p := range s {
		sum += p.Value
	}
	return sum / float64(len(s)), true
}

// FinancialStatementSet maps each statement kind to its table.
// Populated once by the data collaborator, read-only afterwards.
type FinancialStatementSet map[StatementKind]*Statement

// Series derives the defined observations of one line item. Missing
// statements, missing rows and nil cells all yield fewer (or zero) points.
func (fs FinancialStatementSet) Series(kind StatementKind, item LineItem) LineItemSeries {
	st, ok := fs[kind]
	if !ok || st == nil {
		return LineItemSeries{}
	}
	row, ok := st.Rows[item]
	if !ok {
		return LineItemSeries{}
	}

	series := make(LineItemSeries, 0, len(row))
	for i, v := range row {
		if v == nil || i >= len(st.Periods) {
			continue
		}
		series = append(series, Point{Period: st.Periods[i], Value: *v})
	}
	return series
}

// Latest returns the most recent defined value of a line item
func (fs FinancialStatementSet) Latest(kind StatementKind, item LineItem) (float64, bool) {
	return fs.Series(kind, item).Last()
}

// NewAnnualStatement lays out rows over fiscal year-ends ending at lastYear.
// Rows shorter than the widest row are aligned to the most recent period.
func NewAnnualStatement(lastYear int, rows map[LineItem][]float64) *Statement {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}

	obs := make(map[LineItem]map[time.Time]*float64, len(rows))
	for item, r := range rows {
		byPeriod := make(map[time.Time]*float64, len(r))
		offset := width - len(r)
		for i := range r {
			year := lastYear - width + 1 + offset + i
			byPeriod[time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)] = &r[i]
		}
		obs[item] = byPeriod
	}
	return NewStatement(obs)
}
