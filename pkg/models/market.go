package models

import "time"

// Window is a lookback period understood by price-history providers
type Window string

const (
	Window1Day    Window = "1d"
	Window5Days   Window = "5d"
	Window1Month  Window = "1mo"
	Window3Months Window = "3mo"
	WindowMax     Window = "max"
)

// PricePoint is one daily close
type PricePoint struct {
	Time  time.Time `json:"time"`
	Close float64   `json:"close"`
}
