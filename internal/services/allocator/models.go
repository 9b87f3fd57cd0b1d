package allocator

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type PurchaseRequest struct {
	RoundID    string `json:"round_id" validate:"required,uuid"`
	UserID     string `json:"user_id" validate:"required,max=64,excludesall=0x7C"`
	PaymentRef string `json:"payment_ref" validate:"required,max=128"`
}

// PaymentKey is the idempotency key of a purchase. The same (round, user, payment
// reference) always maps to the same charge and at most one ticket.
func PaymentKey(roundID, userID, paymentRef string) string {
	sum := sha256.Sum256([]byte(roundID + "|" + userID + "|" + paymentRef))
	return hex.EncodeToString(sum[:])
}

type Options struct {
	GatewayTimeout time.Duration
	MaxAttempts    int
}

func (o Options) withDefaults() Options {
	if o.GatewayTimeout <= 0 {
		o.GatewayTimeout = 5 * time.Second
	}

	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}

	return o
}
