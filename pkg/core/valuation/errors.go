package valuation

import "errors"

var (
	// ErrNoRateAvailable means no lookback window produced a risk-free close
	ErrNoRateAvailable = errors.New("no risk-free rate data available")
	// ErrInsufficientMarketHistory means the index history spans fewer than two calendar years
	ErrInsufficientMarketHistory = errors.New("insufficient market index history")
	// ErrInvalidDiscountRate means the discount rate does not exceed terminal growth
	ErrInvalidDiscountRate = errors.New("discount rate must exceed terminal growth rate")
	// ErrMissingShareCount means shares outstanding is undefined or zero
	ErrMissingShareCount = errors.New("shares outstanding undefined or zero")

	ErrDCFNotCalculated    = errors.New("DCF table is not calculated; run CalculateDCF first")
	ErrEquityNotCalculated = errors.New("equity value is not calculated; run CalculateEquityValue first")
)
