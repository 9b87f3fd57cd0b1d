package ledger

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/infra/pgutils"
	"github.com/fastprodman/lottoengine/internal/lottery"
	"github.com/fastprodman/lottoengine/internal/repos/ledger"
)

var _ ledger.Entries = (*entriesRepo)(nil)

type entriesRepo struct{}

func New() *entriesRepo {
	return &entriesRepo{}
}

const entryColumns = `id, wallet_id, amount, kind, round_id, ticket_id, idempotency_key, created_at`

func (r *entriesRepo) Insert(ctx context.Context, q sqlx.ExtContext, e lottery.LedgerEntry) error {
	// ON CONFLICT keeps a caller's transaction usable after a replayed entry.
	res, err := q.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, wallet_id, amount, kind, round_id, ticket_id, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
	`, e.ID, e.WalletID, e.Amount, e.Kind, e.RoundID, e.TicketID, e.IdempotencyKey, e.CreatedAt)
	if err != nil {
		if pgutils.IsForeignKeyViolation(err) {
			return fmt.Errorf("insert entry for %s: %w", e.WalletID, lottery.ErrWalletNotFound)
		}

		return fmt.Errorf("insert ledger entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		return lottery.ErrDuplicateEntry
	}

	return nil
}

func (r *entriesRepo) ListByWallet(ctx context.Context, q sqlx.ExtContext, walletID string, limit int) ([]lottery.LedgerEntry, error) {
	var list []lottery.LedgerEntry

	err := sqlx.SelectContext(ctx, q, &list, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("list wallet entries: %w", err)
	}

	return list, nil
}

func (r *entriesRepo) ListByRound(ctx context.Context, q sqlx.ExtContext, roundID string) ([]lottery.LedgerEntry, error) {
	var list []lottery.LedgerEntry

	err := sqlx.SelectContext(ctx, q, &list, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE round_id = $1
		ORDER BY created_at, id
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("list round entries: %w", err)
	}

	return list, nil
}

func (r *entriesRepo) SumByWallet(ctx context.Context, q sqlx.ExtContext, walletID string) (int64, error) {
	var sum int64

	err := sqlx.GetContext(ctx, q, &sum, `
		SELECT COALESCE(SUM(amount), 0)::bigint FROM ledger_entries WHERE wallet_id = $1
	`, walletID)
	if err != nil {
		return 0, fmt.Errorf("sum wallet entries: %w", err)
	}

	return sum, nil
}

func (r *entriesRepo) SumByRound(ctx context.Context, q sqlx.ExtContext, roundID, walletID string) (int64, error) {
	var sum int64

	err := sqlx.GetContext(ctx, q, &sum, `
		SELECT COALESCE(SUM(amount), 0)::bigint
		FROM ledger_entries
		WHERE round_id = $1 AND wallet_id = $2
	`, roundID, walletID)
	if err != nil {
		return 0, fmt.Errorf("sum round entries: %w", err)
	}

	return sum, nil
}
