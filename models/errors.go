package models

import "errors"

// Error taxonomy shared by every service. Ledger-mutating operations wrap
// these with fmt.Errorf("...: %w", Err...) so callers can errors.Is them.
var (
	ErrConfiguration         = errors.New("configuration error")
	ErrInvalidParameter      = errors.New("invalid parameter")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrLedgerSubmission      = errors.New("ledger submission failed")
	ErrNotFound              = errors.New("not found")
	ErrConcurrencyConflict   = errors.New("concurrent operation in progress")
)
