package wallets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/lottery"
)

func (r *walletsRepo) Ensure(ctx context.Context, q sqlx.ExtContext, userID string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO wallets (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("ensure wallet: %w", err)
	}

	return nil
}

func (r *walletsRepo) Exists(ctx context.Context, q sqlx.ExtContext, userID string) error {
	var exists bool

	err := q.QueryRowxContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM wallets WHERE user_id = $1)
	`, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}

	if !exists {
		return lottery.ErrWalletNotFound
	}

	return nil
}

func (r *walletsRepo) Get(ctx context.Context, q sqlx.ExtContext, userID string) (lottery.Wallet, error) {
	return r.get(ctx, q, `
		SELECT user_id, balance, version, updated_at
		FROM wallets
		WHERE user_id = $1
	`, userID)
}

func (r *walletsRepo) LockAndGet(ctx context.Context, q sqlx.ExtContext, userID string) (lottery.Wallet, error) {
	return r.get(ctx, q, `
		SELECT user_id, balance, version, updated_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
}

func (r *walletsRepo) get(ctx context.Context, q sqlx.ExtContext, query, userID string) (lottery.Wallet, error) {
	var w lottery.Wallet

	err := sqlx.GetContext(ctx, q, &w, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lottery.Wallet{}, lottery.ErrWalletNotFound
		}

		return lottery.Wallet{}, fmt.Errorf("get wallet: %w", err)
	}

	return w, nil
}
