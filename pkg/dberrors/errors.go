package dberrors

import "errors"

var (
	ErrMalformedSnapshot = errors.New("pgdebugscan: malformed snapshot")
	ErrUnknownTable      = errors.New("pgdebugscan: unknown table")
	ErrDuplicateTable    = errors.New("pgdebugscan: table already exists")
	ErrUnknownRow        = errors.New("pgdebugscan: unknown row")
	ErrRowDeleted        = errors.New("pgdebugscan: row already deleted")
	ErrUnknownTxn        = errors.New("pgdebugscan: unknown transaction")
	ErrTxnFinished       = errors.New("pgdebugscan: transaction already finished")
	ErrInvalidArgument   = errors.New("pgdebugscan: invalid argument")
	ErrClosed            = errors.New("pgdebugscan: closed")
)
