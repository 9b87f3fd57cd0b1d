package lottery

import "errors"

var (
	// ErrValidation rejects bad input with no state change.
	ErrValidation     = errors.New("validation error")
	ErrRoundNotFound  = errors.New("round not found")
	ErrRoundNotOpen   = errors.New("round is not open for tickets")
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrContention is a lost allocation race; the allocator retries it.
	ErrContention          = errors.New("ticket number contention")
	ErrAllocationExhausted = errors.New("ticket allocation exhausted")

	ErrPaymentDeclined = errors.New("payment declined")
	ErrPaymentPending  = errors.New("payment pending confirmation")
	ErrGatewayTimeout  = errors.New("payment gateway timeout, retry with the same key")
	ErrRefundFailed    = errors.New("refund failed")

	// ErrStatusConflict is a lost compare-and-swap on round status. Benign: another
	// writer already moved the round.
	ErrStatusConflict    = errors.New("round status changed concurrently")
	ErrInvalidTransition = errors.New("invalid round status transition")

	ErrSettlementFailure = errors.New("settlement failed")
	ErrVoidConflict      = errors.New("round can no longer be voided")

	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrDuplicateEntry    = errors.New("duplicate ledger entry")
)
