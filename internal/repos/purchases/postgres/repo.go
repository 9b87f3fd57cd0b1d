package purchases

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/lottery"
	"github.com/fastprodman/lottoengine/internal/repos/purchases"
)

var _ purchases.Purchases = (*purchasesRepo)(nil)

type purchasesRepo struct{}

func New() *purchasesRepo {
	return &purchasesRepo{}
}

func (r *purchasesRepo) Save(ctx context.Context, q sqlx.ExtContext, p lottery.PendingPurchase) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO pending_purchases (payment_key, round_id, user_id, payment_ref, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (payment_key) DO NOTHING
	`, p.PaymentKey, p.RoundID, p.UserID, p.PaymentRef, p.Amount, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("save pending purchase: %w", err)
	}

	return nil
}

func (r *purchasesRepo) Get(ctx context.Context, q sqlx.ExtContext, key string) (lottery.PendingPurchase, error) {
	var p lottery.PendingPurchase

	err := sqlx.GetContext(ctx, q, &p, `
		SELECT payment_key, round_id, user_id, payment_ref, amount, created_at, resolved_at
		FROM pending_purchases
		WHERE payment_key = $1
	`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lottery.PendingPurchase{}, lottery.ErrTicketNotFound
		}

		return lottery.PendingPurchase{}, fmt.Errorf("get pending purchase: %w", err)
	}

	return p, nil
}

func (r *purchasesRepo) Resolve(ctx context.Context, q sqlx.ExtContext, key string, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE pending_purchases
		SET resolved_at = $2
		WHERE payment_key = $1 AND resolved_at IS NULL
	`, key, at)
	if err != nil {
		return false, fmt.Errorf("resolve pending purchase: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}
