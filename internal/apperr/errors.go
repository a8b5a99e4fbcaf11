package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnknownDriver = errors.New("unknown driver")
	ErrLedgerWrite   = errors.New("failure ledger write failed")
)
