package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestNewStatement_SortsPeriodsAndDropsUndefined(t *testing.T) {
	y21 := time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC)
	y22 := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
	y23 := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)

	st := NewStatement(map[LineItem]map[time.Time]*float64{
		Revenue:   {y23: ptr(300), y21: ptr(100), y22: nil},
		NetIncome: {y22: ptr(20)},
	})
	require.NoError(t, st.Validate())
	assert.Equal(t, []time.Time{y21, y22, y23}, st.Periods)

	fs := FinancialStatementSet{StatementIncome: st}
	rev := fs.Series(StatementIncome, Revenue)
	assert.Equal(t, []float64{100, 300}, rev.Values())

	latest, ok := fs.Latest(StatementIncome, NetIncome)
	require.True(t, ok)
	assert.Equal(t, 20.0, latest)
}

func TestSeries_AbsentItemsAreEmpty(t *testing.T) {
	fs := FinancialStatementSet{}
	assert.Empty(t, fs.Series(StatementCashFlow, FreeCashFlow))

	_, ok := fs.Latest(StatementCashFlow, FreeCashFlow)
	assert.False(t, ok)

	_, ok = fs.Series(StatementCashFlow, FreeCashFlow).Mean()
	assert.False(t, ok)
}

func TestNewAnnualStatement_AlignsToLatest(t *testing.T) {
	st := NewAnnualStatement(2024, map[LineItem][]float64{
		Revenue:      {100, 110, 121},
		FreeCashFlow: {12},
	})
	require.Len(t, st.Periods, 3)
	assert.Equal(t, 2024, st.Periods[2].Year())

	fs := FinancialStatementSet{StatementIncome: st}
	fcf := fs.Series(StatementIncome, FreeCashFlow)
	require.Len(t, fcf, 1)
	assert.Equal(t, 2024, fcf[0].Period.Year())
}

func TestNewCompany_DerivesCashAndDebt(t *testing.T) {
	fs := FinancialStatementSet{
		StatementBalanceSheet: NewAnnualStatement(2024, map[LineItem][]float64{
			CashAndShortTerm: {40, 50},
			TotalDebt:        {90, 80},
		}),
	}
	c := NewCompany("ACME", CompanyProfile{SharesOutstanding: ptr(10)}, fs)
	assert.Equal(t, 50.0, c.CashOrZero())
	assert.Equal(t, 80.0, c.DebtOrZero())
	assert.Equal(t, 10.0, *c.SharesOutstanding())

	bare := NewCompany("NONE", CompanyProfile{}, FinancialStatementSet{})
	assert.Nil(t, bare.Cash)
	assert.Zero(t, bare.DebtOrZero())
	assert.Nil(t, bare.SharesOutstanding())
}

func TestInputError_NamesInput(t *testing.T) {
	err := NewInputError("ACME", StatementIncome, Revenue, ErrMissingLineItem)
	assert.Equal(t, "ACME: income_statement/Total Revenue: required line item missing", err.Error())
	assert.ErrorIs(t, err, ErrMissingLineItem)
}
