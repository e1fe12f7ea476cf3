package models

// CompanyProfile holds the scalar facts a quote provider publishes
type CompanyProfile struct {
	Name              string   `json:"name"`
	Sector            string   `json:"sector"`
	Industry          string   `json:"industry"`
	Beta              *float64 `json:"beta,omitempty"`
	MarketCap         *float64 `json:"market_cap,omitempty"`
	EnterpriseValue   *float64 `json:"enterprise_value,omitempty"`
	SharesOutstanding *float64 `json:"shares_outstanding,omitempty"`
}

// Company is the read-only input of a valuation: profile facts plus statements
type Company struct {
	Ticker  string
	Profile CompanyProfile

	// Derived from the balance sheet at construction
	Cash *float64
	Debt *float64

	Financials FinancialStatementSet
}

// NewCompany assembles a company and derives its latest cash and debt
func NewCompany(ticker string, profile CompanyProfile, financials FinancialStatementSet) *Company {
	c := &Company{
		Ticker:     ticker,
		Profile:    profile,
		Financials: financials,
	}
	if v, ok := financials.Latest(StatementBalanceSheet, CashAndShortTerm); ok {
		c.Cash = &v
	}
	if v, ok := financials.Latest(StatementBalanceSheet, TotalDebt); ok {
		c.Debt = &v
	}
	return c
}

// SharesOutstanding returns the share count, nil when undefined
func (c *Company) SharesOutstanding() *float64 {
	return c.Profile.SharesOutstanding
}

// CashOrZero returns the latest cash balance, 0 when unavailable
func (c *Company) CashOrZero() float64 {
	if c.Cash == nil {
		return 0
	}
	return *c.Cash
}

// DebtOrZero returns the latest total debt, 0 when unavailable
func (c *Company) DebtOrZero() float64 {
	if c.Debt == nil {
		return 0
	}
	return *c.Debt
}
