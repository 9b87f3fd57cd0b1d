package ledger

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/lottery"
)

type Entries interface {
	// Insert appends an entry; a reused idempotency key (or settlement leg) yields
	// lottery.ErrDuplicateEntry.
	Insert(ctx context.Context, q sqlx.ExtContext, e lottery.LedgerEntry) error
	ListByWallet(ctx context.Context, q sqlx.ExtContext, walletID string, limit int) ([]lottery.LedgerEntry, error)
	ListByRound(ctx context.Context, q sqlx.ExtContext, roundID string) ([]lottery.LedgerEntry, error)
	SumByWallet(ctx context.Context, q sqlx.ExtContext, walletID string) (int64, error)
	// SumByRound nets all entries of walletID that reference roundID.
	SumByRound(ctx context.Context, q sqlx.ExtContext, roundID, walletID string) (int64, error)
}
