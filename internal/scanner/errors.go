package scanner

import "errors"

var (
	ErrUnknownFormat  = errors.New("unknown barcode format")
	ErrNoFormats      = errors.New("no barcode formats selected")
	ErrSessionActive  = errors.New("scan session already started")
	ErrSessionStopped = errors.New("scan session stopped")
)
