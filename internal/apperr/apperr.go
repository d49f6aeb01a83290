// Package apperr defines the error taxonomy shared by the allocation engine.
//
// Every error returned by the ledger, settlement and line packages wraps one of
// the kind sentinels below, so callers classify failures with errors.Is:
//
//	errors.Is(err, apperr.ErrConflict)   // expected, recoverable race or state conflict
//	errors.Is(err, apperr.ErrStore)      // infrastructure failure, may be retried
//
// Concrete conflicts (ErrAuctionClosed, ErrEmptyQueue, ...) wrap their kind.
package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kinds.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrAuthorization   = errors.New("not authorized")
	ErrConflict        = errors.New("conflict")
	ErrExternalService = errors.New("external service failed")
	ErrStore           = errors.New("store failure")
)

// Conflicts.
var (
	ErrAuctionClosed     = fmt.Errorf("%w: auction closed", ErrConflict)
	ErrBidSuperseded     = fmt.Errorf("%w: bid superseded by a concurrent bid", ErrConflict)
	ErrAlreadyStarted    = fmt.Errorf("%w: line already started", ErrConflict)
	ErrInvalidTransition = fmt.Errorf("%w: invalid line entry transition", ErrConflict)
	ErrEmptyQueue        = fmt.Errorf("%w: no one is waiting in line", ErrConflict)
	ErrCallInProgress    = fmt.Errorf("%w: another shopper is currently called", ErrConflict)
)

// ErrInvalidBid is returned when a bid is below the item's minimum.
var ErrInvalidBid = fmt.Errorf("%w: bid below minimum", ErrValidation)

// BidRejectedError reports a rejected bid together with the minimum the
// caller has to beat on a retry.
type BidRejectedError struct {
	// Reason is ErrInvalidBid or ErrBidSuperseded.
	Reason  error
	Amount  decimal.Decimal
	Minimum decimal.Decimal
}

func (e *BidRejectedError) Error() string {
	return fmt.Sprintf("%v: bid %s, minimum is %s", e.Reason, e.Amount.StringFixed(2), e.Minimum.StringFixed(2))
}

func (e *BidRejectedError) Unwrap() error {
	return e.Reason
}

// NotFound wraps ErrNotFound with the kind of entity and its ID.
func NotFound(entity, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
}

// Validation wraps ErrValidation with a message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Store wraps an infrastructure error with the operation that failed.
// Errors that already carry a kind are returned unchanged.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsKnown(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// IsKnown reports whether err already wraps one of the kinds.
func IsKnown(err error) bool {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrAuthorization, ErrConflict, ErrExternalService, ErrStore} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
