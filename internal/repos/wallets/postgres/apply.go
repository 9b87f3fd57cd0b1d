package wallets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/lottery"
)

func (r *walletsRepo) Apply(ctx context.Context, q sqlx.ExtContext, userID string, amount int64) (lottery.Wallet, error) {
	var w lottery.Wallet

	err := sqlx.GetContext(ctx, q, &w, `
		UPDATE wallets
		SET balance    = balance + $2,
		    version    = version + 1,
		    updated_at = now()
		WHERE user_id = $1
		  AND balance + $2 >= 0
		RETURNING user_id, balance, version, updated_at
	`, userID, amount)
	if err == nil {
		return w, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return lottery.Wallet{}, fmt.Errorf("apply to wallet: %w", err)
	}

	// no row: either the wallet is missing or the guard rejected the debit
	existsErr := r.Exists(ctx, q, userID)
	if existsErr != nil {
		return lottery.Wallet{}, existsErr
	}

	return lottery.Wallet{}, lottery.ErrInsufficientFunds
}
