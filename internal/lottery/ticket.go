package lottery

import (
	"fmt"
	"time"
)

type Ticket struct {
	ID          string     `db:"id"`
	RoundID     string     `db:"round_id"`
	UserID      string     `db:"user_id"`
	Number      int64      `db:"number"`
	Price       int64      `db:"price"`
	PaymentKey  string     `db:"payment_key"`
	PaymentRef  string     `db:"payment_ref"`
	PurchasedAt time.Time  `db:"purchased_at"`
	RefundedAt  *time.Time `db:"refunded_at"`
}

// PendingPurchase is a charge the gateway reported as pending; the ticket is created
// once the gateway confirms it.
type PendingPurchase struct {
	PaymentKey string     `db:"payment_key"`
	RoundID    string     `db:"round_id"`
	UserID     string     `db:"user_id"`
	PaymentRef string     `db:"payment_ref"`
	Amount     int64      `db:"amount"`
	CreatedAt  time.Time  `db:"created_at"`
	ResolvedAt *time.Time `db:"resolved_at"`
}

// MatchRule is the consolation rule: a ticket qualifies when its number, written
// with Digits zero-padded digits, equals the winning number in at least
// MatchPositions positions.
type MatchRule struct {
	Digits         int
	MatchPositions int
}

// Capacity is the size of the ticket number space.
func (m MatchRule) Capacity() int64 {
	c := int64(1)
	for i := 0; i < m.Digits; i++ {
		c *= 10
	}

	return c
}

func (m MatchRule) Validate() error {
	if m.Digits < 1 || m.Digits > 18 {
		return fmt.Errorf("%w: number digits must be within 1..18, got %d", ErrValidation, m.Digits)
	}

	if m.MatchPositions < 1 || m.MatchPositions > m.Digits {
		return fmt.Errorf("%w: match positions must be within 1..%d, got %d", ErrValidation, m.Digits, m.MatchPositions)
	}

	return nil
}

// Matching counts the digit positions a and b share.
func (m MatchRule) Matching(a, b int64) int {
	n := 0
	for i := 0; i < m.Digits; i++ {
		if a%10 == b%10 {
			n++
		}

		a /= 10
		b /= 10
	}

	return n
}

// Qualifies reports whether number earns a consolation prize against winning.
func (m MatchRule) Qualifies(number, winning int64) bool {
	return m.Matching(number, winning) >= m.MatchPositions
}

// Format renders n zero-padded to the rule's width.
func (m MatchRule) Format(n int64) string {
	return fmt.Sprintf("%0*d", m.Digits, n)
}
