package service

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/estatesale/internal/apperr"
)

// minimumBidHeader carries the minimum to beat on a rejected bid.
const minimumBidHeader = "Estatesale-Minimum-Bid"

// toConnectError maps the engine's error kinds to Connect codes.
func toConnectError(err error) *connect.Error {
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr
	}

	code := connect.CodeInternal
	switch {
	case errors.Is(err, apperr.ErrBidSuperseded):
		code = connect.CodeAborted
	case errors.Is(err, apperr.ErrValidation):
		code = connect.CodeInvalidArgument
	case errors.Is(err, apperr.ErrNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, apperr.ErrAuthorization):
		code = connect.CodePermissionDenied
	case errors.Is(err, apperr.ErrConflict):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, apperr.ErrExternalService):
		code = connect.CodeUnavailable
	}

	cerr = connect.NewError(code, err)
	var rejected *apperr.BidRejectedError
	if errors.As(err, &rejected) {
		cerr.Meta().Set(minimumBidHeader, rejected.Minimum.StringFixed(2))
	}
	return cerr
}
