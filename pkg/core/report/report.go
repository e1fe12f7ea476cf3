// Package report renders a finished valuation as Markdown or HTML.
package report

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"dcf_valuation/pkg/core/valuation"
	"dcf_valuation/pkg/models"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Billion is the display scale for monetary amounts
const Billion = 1e9

// CoreMetrics are listed below the DCF table, in this order
var CoreMetrics = []struct {
	Kind models.StatementKind
	Item models.LineItem
}{
	{models.StatementIncome, models.Revenue},
	{models.StatementIncome, models.EBITDA},
	{models.StatementIncome, models.EBIT},
	{models.StatementIncome, models.OperatingIncome},
	{models.StatementIncome, models.NetIncome},
	{models.StatementCashFlow, models.TaxesPaid},
}

// Valuation bundles what a report shows. WACC is optional.
type Valuation struct {
	Company *models.Company
	Table   *valuation.DCFTable
	Result  *valuation.ValuationResult
	WACC    *valuation.WACCResult
}

// InBillions scales v and rounds to 2 decimals
func InBillions(v float64) float64 {
	return math.Round(v/Billion*100) / 100
}

// Markdown renders the valuation
func Markdown(v Valuation) string {
	var b strings.Builder
	c := v.Company

	title := c.Ticker
	if c.Profile.Name != "" {
		title = fmt.Sprintf("%s (%s)", c.Profile.Name, c.Ticker)
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if c.Profile.Sector != "" || c.Profile.Industry != "" {
		fmt.Fprintf(&b, "%s / %s\n\n", orDash(c.Profile.Sector), orDash(c.Profile.Industry))
	}

	fmt.Fprintf(&b, "## Discounted Cash Flow (%s)\n\n", v.Table.Strategy)
	fmt.Fprintf(&b, "Discount rate %.2f%%, terminal growth %.2f%%. Amounts in billions.\n\n",
		v.Table.DiscountRate*100, v.Table.TerminalGrowth*100)

	b.WriteString("| Period | Forecasted | Discounted |\n")
	b.WriteString("|---|---:|---:|\n")
	for _, r := range v.Table.Rows {
		fmt.Fprintf(&b, "| %s | %.2f | %.2f |\n", r.Period, InBillions(r.Forecasted), InBillions(r.Discounted))
	}
	fmt.Fprintf(&b, "| **Total** | | **%.2f** |\n\n", InBillions(v.Table.TotalDiscounted()))

	b.WriteString("## Valuation\n\n")
	b.WriteString("| | |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Cash | %s |\n", billionsOrNA(c.Cash))
	fmt.Fprintf(&b, "| Debt | %s |\n", billionsOrNA(c.Debt))
	fmt.Fprintf(&b, "| Equity value | %.2f |\n", InBillions(v.Result.EquityValue))
	fmt.Fprintf(&b, "| Shares outstanding | %s |\n", billionsOrNA(c.SharesOutstanding()))
	fmt.Fprintf(&b, "| Intrinsic share price | %.2f |\n", v.Result.IntrinsicSharePrice)
	b.WriteString("\n")

	if v.WACC != nil {
		b.WriteString("## Cost of Capital\n\n")
		b.WriteString("| | |\n|---|---:|\n")
		fmt.Fprintf(&b, "| Cost of equity | %.2f%% |\n", v.WACC.CostOfEquity*100)
		fmt.Fprintf(&b, "| Cost of debt (pre-tax) | %.2f%% |\n", v.WACC.CostOfDebt*100)
		fmt.Fprintf(&b, "| Equity weight | %.2f%% |\n", v.WACC.WeightEquity*100)
		fmt.Fprintf(&b, "| Debt weight | %.2f%% |\n", v.WACC.WeightDebt*100)
		fmt.Fprintf(&b, "| WACC | %.2f%% |\n", v.WACC.WACC*100)
		b.WriteString("\n")
	}

	writeCoreMetrics(&b, c.Financials)
	return b.String()
}

func writeCoreMetrics(b *strings.Builder, fs models.FinancialStatementSet) {
	var rows []string
	for _, m := range CoreMetrics {
		series := fs.Series(m.Kind, m.Item)
		if len(series) == 0 {
			continue
		}
		cells := make([]string, len(series))
		for i, p := range series {
			cells[i] = fmt.Sprintf("%d: %.2f", p.Period.Year(), InBillions(p.Value))
		}
		rows = append(rows, fmt.Sprintf("- **%s**: %s", m.Item, strings.Join(cells, ", ")))
	}
	if len(rows) == 0 {
		return
	}
	b.WriteString("## Core Metrics (billions)\n\n")
	b.WriteString(strings.Join(rows, "\n"))
	b.WriteString("\n")
}

// HTML converts the Markdown report, tables included
func HTML(v Valuation) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(v)), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

func billionsOrNA(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", InBillions(*v))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
