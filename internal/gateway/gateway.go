// Package gateway adapts the external payment provider.
package gateway

import (
	"context"
	"errors"
)

type ChargeStatus string

const (
	StatusConfirmed ChargeStatus = "confirmed"
	StatusDeclined  ChargeStatus = "declined"
	StatusPending   ChargeStatus = "pending"
)

var (
	ErrUnavailable = errors.New("payment gateway unavailable")
	ErrRejected    = errors.New("payment gateway rejected request")
)

// Gateway charges and refunds users. Both calls are idempotent on key: the provider
// returns the original outcome for a repeated key.
type Gateway interface {
	Charge(ctx context.Context, key string, amount int64, userID string) (ChargeStatus, error)
	// Refund returns amount of the charge made under chargeKey.
	Refund(ctx context.Context, key, chargeKey string, amount int64) error
}

// RefundKey is the idempotency key of refunding ref: a ticket id, or the payment
// key of a charge that never became a ticket.
func RefundKey(ref string) string {
	return "refund:" + ref
}
