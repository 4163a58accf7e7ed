package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for structural failures. These are caller bugs or missing
// state, never retried with the same input.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session already finished")
	ErrNotPendingTurn  = errors.New("turn_n does not match the pending turn")
	ErrNoData          = errors.New("no price data available")
)

// ValidationKind identifies which allocation constraint was violated.
type ValidationKind string

const (
	ValidationEmpty         ValidationKind = "empty_allocation"
	ValidationDuplicate     ValidationKind = "duplicate_ticker"
	ValidationTooManyAssets ValidationKind = "too_many_assets"
	ValidationWeightRange   ValidationKind = "weight_out_of_range"
	ValidationWeightSum     ValidationKind = "weight_sum_exceeded"
)

// ValidationError reports a user-correctable allocation problem. The session
// is guaranteed untouched when one of these is returned.
type ValidationError struct {
	Kind   ValidationKind
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid allocation (%s): %s", e.Kind, e.Detail)
}

// NoHistoricalDataError lists tickers with no usable price series in the
// requested range. Recoverable: the caller fixes the allocation and retries.
type NoHistoricalDataError struct {
	Tickers []string
}

func (e *NoHistoricalDataError) Error() string {
	return fmt.Sprintf("no historical data for tickers: %s", strings.Join(e.Tickers, ", "))
}

// IsUserCorrectable reports whether err is one of the recoverable,
// non-mutating failures a player can fix and resubmit.
func IsUserCorrectable(err error) bool {
	var ve *ValidationError
	var ne *NoHistoricalDataError
	return errors.As(err, &ve) || errors.As(err, &ne) || errors.Is(err, ErrNotPendingTurn)
}
