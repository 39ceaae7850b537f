package apperrors

import (
	"errors"
)

var (
	ErrShutdown = errors.New("shutdown error")

	ErrMalformedWebhook = errors.New("malformed webhook request")
	ErrInvalidSignature = errors.New("invalid webhook signature")

	ErrStoreWrite = errors.New("record store write failed")
	ErrStoreRead  = errors.New("record store read failed")

	// ErrNoPendingRecord is the explicit "nothing to consume" outcome of an
	// oldest-unacknowledged query. It is not a failure.
	ErrNoPendingRecord = errors.New("no unacknowledged record")

	ErrScanInFlight = errors.New("scan cycle already in flight")

	ErrSinkDispatch = errors.New("chat push failed")

	ErrUnknownStoreBackend = errors.New("unknown store backend")
)
