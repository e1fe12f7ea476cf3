package projection

import (
	"errors"
	"testing"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func company(income, cashflow map[models.LineItem][]float64) *models.Company {
	fs := models.FinancialStatementSet{
		models.StatementIncome:   models.NewAnnualStatement(2024, income),
		models.StatementCashFlow: models.NewAnnualStatement(2024, cashflow),
	}
	return models.NewCompany("ACME", models.CompanyProfile{}, fs)
}

func TestRevenueMargin_Scenario(t *testing.T) {
	// Revenue grows 5% a year to 1000; FCF margin is a steady 10%
	c := company(
		map[models.LineItem][]float64{models.Revenue: {1000 / 1.157625, 1000 / 1.1025, 1000 / 1.05, 1000}},
		map[models.LineItem][]float64{models.FreeCashFlow: {100, 100, 100, 100}},
	)

	got, err := RevenueMargin.Forecast(c, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.InDelta(t, 105.0, got[0], 1e-6)
	assert.InDelta(t, 110.25, got[1], 1e-6)
	assert.InDelta(t, 115.7625, got[2], 1e-6)
}

func TestRevenueMargin_NoFCFHistoryMeansZeroMargin(t *testing.T) {
	c := company(map[models.LineItem][]float64{models.Revenue: {800, 900, 1000}}, nil)

	got, err := RevenueMargin.Forecast(c, 2)
	require.NoError(t, err)
	assert.Equal(t, Schedule{0, 0}, got)
}

func TestNOPAT_Forecast(t *testing.T) {
	c := company(
		map[models.LineItem][]float64{
			models.Revenue:         {1000 / 1.331, 1000 / 1.21, 1000 / 1.1, 1000},
			models.OperatingIncome: {200},
			models.TaxProvision:    {21},
			models.PretaxIncome:    {100},
		},
		map[models.LineItem][]float64{
			models.Depreciation:       {50, 50},
			models.CapitalExpenditure: {-80, -80, -80, -80},
		},
	)

	got, err := NOPAT.Forecast(c, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// 1100×0.2×0.79 + 50 - 1100×0.08
	assert.InDelta(t, 135.8, got[0], 1e-6)
	// 1210×0.2×0.79 + 50 - 1210×0.08
	assert.InDelta(t, 144.38, got[1], 1e-6)
}

func TestNOPAT_WorkingCapitalTerm(t *testing.T) {
	c := company(
		map[models.LineItem][]float64{
			models.Revenue:         {1000 / 1.331, 1000 / 1.21, 1000 / 1.1, 1000},
			models.OperatingIncome: {200},
			models.TaxProvision:    {21},
			models.PretaxIncome:    {100},
		},
		map[models.LineItem][]float64{
			models.Depreciation:           {50, 50},
			models.CapitalExpenditure:     {-80, -80, -80, -80},
			models.ChangeInWorkingCapital: {10, 11, 12.1, 13.31},
		},
	)

	got, err := NOPAT.Forecast(c, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// ΔWC = mean(10, 11, 12.1, 13.31) × 1.1 = 12.76275 every year
	// 1100×0.2×0.79 + 50 - 1100×0.08 - 12.76275
	assert.InDelta(t, 123.03725, got[0], 1e-6)
	// 1210×0.2×0.79 + 50 - 1210×0.08 - 12.76275
	assert.InDelta(t, 131.61725, got[1], 1e-6)
}

func TestOperatingCashFlow_Forecast(t *testing.T) {
	c := company(
		map[models.LineItem][]float64{
			models.InterestExpense: {50},
			models.TaxProvision:    {21},
			models.PretaxIncome:    {100},
		},
		map[models.LineItem][]float64{
			models.OperatingCashFlow:  {1000 / 1.21, 1000 / 1.1, 1000},
			models.CapitalExpenditure: {-200, -200, -200},
		},
	)

	got, err := OperatingCashFlow.Forecast(c, 2)
	require.NoError(t, err)
	// 1100 + 55×0.79 - 200
	assert.InDelta(t, 943.45, got[0], 1e-6)
	// 1210 + 60.5×0.79 - 200
	assert.InDelta(t, 1057.795, got[1], 1e-6)
}

func TestOperatingCashFlow_NoCapexHistory(t *testing.T) {
	c := company(nil, map[models.LineItem][]float64{
		models.OperatingCashFlow: {1000 / 1.21, 1000 / 1.1, 1000},
	})

	got, err := OperatingCashFlow.Forecast(c, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1100.0, got[0], 1e-6)
}

func TestForecast_LengthMatchesHorizon(t *testing.T) {
	c := company(
		map[models.LineItem][]float64{models.Revenue: {900, 950, 1000, 1040}, models.OperatingIncome: {150}},
		map[models.LineItem][]float64{
			models.FreeCashFlow:      {80, 90, 95, 100},
			models.OperatingCashFlow: {120, 130, 135, 150},
		},
	)

	for _, kind := range Strategies {
		for n := 1; n <= 10; n++ {
			got, err := kind.Forecast(c, n)
			require.NoError(t, err, "%s/%d", kind, n)
			assert.Len(t, got, n, "%s/%d", kind, n)
		}
	}
}

func TestForecast_Deterministic(t *testing.T) {
	c := company(
		map[models.LineItem][]float64{models.Revenue: {900, 950, 1000, 1040}},
		map[models.LineItem][]float64{models.FreeCashFlow: {80, 90, 95, 100}},
	)
	a, err := RevenueMargin.Forecast(c, 5)
	require.NoError(t, err)
	b, err := RevenueMargin.Forecast(c, 5)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestForecast_MissingPrimaryIsHardError(t *testing.T) {
	c := company(nil, map[models.LineItem][]float64{models.FreeCashFlow: {1, 2, 3}})

	cases := map[StrategyKind]models.LineItem{
		RevenueMargin:     models.Revenue,
		NOPAT:             models.Revenue,
		OperatingCashFlow: models.OperatingCashFlow,
	}
	for kind, key := range cases {
		_, err := kind.Forecast(c, 3)
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrMissingLineItem)

		var inErr *models.InputError
		require.True(t, errors.As(err, &inErr))
		assert.Equal(t, key, inErr.Key)
		assert.Equal(t, "ACME", inErr.Ticker)
	}
}

func TestForecast_ShortSecondaryHistoryPropagates(t *testing.T) {
	c := company(
		map[models.LineItem][]float64{models.Revenue: {900, 950, 1000}},
		map[models.LineItem][]float64{models.CapitalExpenditure: {-10, -12}},
	)

	_, err := NOPAT.Forecast(c, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, assumption.ErrNoDataInRange)

	var inErr *models.InputError
	require.True(t, errors.As(err, &inErr))
	assert.Equal(t, models.CapitalExpenditure, inErr.Key)
}

func TestForecast_InvalidInputs(t *testing.T) {
	c := company(map[models.LineItem][]float64{models.Revenue: {900, 950, 1000}}, nil)

	_, err := RevenueMargin.Forecast(c, 0)
	assert.ErrorIs(t, err, ErrInvalidHorizon)

	_, err = FreeCashFlowToEquity.Forecast(c, 3)
	assert.ErrorIs(t, err, ErrStrategyNotImplemented)

	_, err = StrategyKind("dividends").Forecast(c, 3)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestParseStrategyKind(t *testing.T) {
	cases := map[string]StrategyKind{
		"nopat":                NOPAT,
		"Revenue-Margin":       RevenueMargin,
		" operating cash flow": OperatingCashFlow,
		"cfo":                  OperatingCashFlow,
		"fcfe":                 FreeCashFlowToEquity,
	}
	for in, want := range cases {
		got, err := ParseStrategyKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStrategyKind("ddm")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}
