package models

import (
	"errors"
	"fmt"
)

// ErrMissingLineItem means a primary figure a strategy cannot do without is absent
var ErrMissingLineItem = errors.New("required line item missing")

// InputError pins a failure to the ticker, statement and line item that caused it
type InputError struct {
	Ticker    string
	Statement StatementKind
	Key       LineItem
	Err       error
}

func (e *InputError) Error() string {
	switch {
	case e.Statement != "" && e.Key != "":
		return fmt.Sprintf("%s: %s/%s: %v", e.Ticker, e.Statement, e.Key, e.Err)
	case e.Key != "":
		return fmt.Sprintf("%s: %s: %v", e.Ticker, e.Key, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Ticker, e.Err)
	}
}

func (e *InputError) Unwrap() error { return e.Err }

// NewInputError wraps err with the identity of the offending input
func NewInputError(ticker string, statement StatementKind, key LineItem, err error) *InputError {
	return &InputError{Ticker: ticker, Statement: statement, Key: key, Err: err}
}
