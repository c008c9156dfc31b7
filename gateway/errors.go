package gateway

import (
	"fmt"

	"mint-dashboard/mint"

	"github.com/ethereum/go-ethereum/common"
)

// SubmissionError means the call was never broadcast: signing, gas
// estimation or the send itself failed.
type SubmissionError struct {
	Method string
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s: %v", e.Method, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// ConfirmationError means the transaction was included but reverted.
type ConfirmationError struct {
	Method      string
	TxHash      common.Hash
	BlockNumber uint64
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("%s reverted in tx %s (block %d)", e.Method, e.TxHash.Hex(), e.BlockNumber)
}

// UnconfirmedError means the transaction was broadcast but no receipt showed
// up within the confirm timeout. It may still be mined.
type UnconfirmedError struct {
	Method string
	TxHash common.Hash
	Err    error
}

func (e *UnconfirmedError) Error() string {
	return fmt.Sprintf("%s tx %s not confirmed: %v", e.Method, e.TxHash.Hex(), e.Err)
}

func (e *UnconfirmedError) Unwrap() error {
	return e.Err
}

func (e *UnconfirmedError) Is(target error) bool {
	return target == mint.ErrUnconfirmed
}
