package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrNoRecords      = errors.New("no records")
	ErrEmptyArchive   = errors.New("archive has no file entries")
	ErrUnexpectedLine = errors.New("unexpected classifier output")
	ErrCommandFailed  = errors.New("external command failed")
	ErrStop           = errors.New("stopped by user")
)
