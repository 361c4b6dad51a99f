// Package sentinel names the store outcomes the ledger translates into domain
// errors. Stores wrap them with context; the ledger matches with errors.Is.
package sentinel

import "errors"

var (
	// ErrNotFound: no row for the key.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyUsed: a unique key (profile, linkage, grant) is taken.
	ErrAlreadyUsed = errors.New("already used")
	// ErrInvalidState: the row exists but cannot make the requested move.
	ErrInvalidState = errors.New("invalid state")
)
