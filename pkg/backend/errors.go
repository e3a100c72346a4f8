package backend

import "errors"

var (
	ErrUnknownDriver = errors.New("backend.unknown_driver")
	ErrOpenFailed    = errors.New("backend.open_failed")
	ErrNotSupported  = errors.New("backend.not_supported")
)
