package mint

import (
	"errors"
	"fmt"
)

var (
	// session errors
	ErrNotConnected = errors.New("not connected")

	// precondition errors, checked before any gateway call
	ErrAlreadyMinting = errors.New("mint already active")
	ErrNoActiveMint   = errors.New("no active mint")
	ErrNotMatured     = errors.New("mint not matured")
	ErrClaimPending   = errors.New("claim already pending")
	ErrInvalidTerm    = errors.New("term must be at least 1")

	// refresh consistency
	ErrRankRegressed = errors.New("global rank decreased")

	// a claim was broadcast but no receipt arrived in time; it may still be mined
	ErrUnconfirmed = errors.New("transaction unconfirmed")
)

// ReadError reports which of the refresh queries failed.
type ReadError struct {
	Query string
	Err   error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Query, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
