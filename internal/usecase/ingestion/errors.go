package ingestion

import (
	"context"
	"errors"

	"github.com/andreyxaxa/catalog-ingest/pkg/types/errs"
)

// Failure kinds reported per item.
const (
	KindValidation    = "validation"
	KindDuplicate     = "duplicate"
	KindReference     = "reference"
	KindStorage       = "storage_transport"
	KindPartialUpload = "partial_upload"
	KindNoPrimary     = "no_primary_media"
	KindTimeout       = "timeout"
	KindInternal      = "internal"
)

// ItemError is the caller facing failure of one manifest item. Msg is what
// ends up in the report, Err keeps the chain for logs.
type ItemError struct {
	Kind string
	Msg  string
	Err  error
}

func (e *ItemError) Error() string {
	return e.Msg
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

func newItemError(kind, msg string, err error) *ItemError {
	return &ItemError{Kind: kind, Msg: msg, Err: err}
}

// classify turns an arbitrary step error into an ItemError.
func classify(err error) *ItemError {
	var itemErr *ItemError
	if errors.As(err, &itemErr) {
		return itemErr
	}

	switch {
	case errors.Is(err, errs.ErrValidation):
		return newItemError(KindValidation, err.Error(), err)
	case errors.Is(err, errs.ErrDuplicate):
		return newItemError(KindDuplicate, err.Error(), err)
	case errors.Is(err, errs.ErrReference):
		return newItemError(KindReference, err.Error(), err)
	case errors.Is(err, errs.ErrNoPrimaryMedia):
		return newItemError(KindNoPrimary, err.Error(), err)
	case errors.Is(err, errs.ErrPartialUpload):
		return newItemError(KindPartialUpload, err.Error(), err)
	case errors.Is(err, errs.ErrStorageTransport):
		return newItemError(KindStorage, err.Error(), err)
	case errors.Is(err, context.DeadlineExceeded):
		return newItemError(KindTimeout, "item processing timed out", err)
	default:
		return newItemError(KindInternal, "internal error", err)
	}
}
