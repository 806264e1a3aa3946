package errs

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")

	// ingestion taxonomy
	ErrValidation       = errors.New("validation error")
	ErrDuplicate        = errors.New("duplicate external id")
	ErrReference        = errors.New("unresolvable reference")
	ErrStorageTransport = errors.New("storage transport error")
	ErrPartialUpload    = errors.New("partial upload")
	ErrNoPrimaryMedia   = errors.New("no primary media")

	// publishing
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSweepInProgress   = errors.New("sweep already in progress")
	ErrUnknownCommand    = errors.New("unknown command")
)
