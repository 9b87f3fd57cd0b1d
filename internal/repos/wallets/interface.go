package wallets

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/lottery"
)

// Wallets stores balances. Apply is only meant to be called by the ledger service
// right after it appended the matching entry.
type Wallets interface {
	Ensure(ctx context.Context, q sqlx.ExtContext, userID string) error
	Exists(ctx context.Context, q sqlx.ExtContext, userID string) error
	Get(ctx context.Context, q sqlx.ExtContext, userID string) (lottery.Wallet, error)
	LockAndGet(ctx context.Context, q sqlx.ExtContext, userID string) (lottery.Wallet, error)
	// Apply adds amount (signed) to the balance and bumps the version. It fails with
	// lottery.ErrInsufficientFunds when the balance would go negative.
	Apply(ctx context.Context, q sqlx.ExtContext, userID string, amount int64) (lottery.Wallet, error)
}
