package winners

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/infra/pgutils"
	"github.com/fastprodman/lottoengine/internal/lottery"
	"github.com/fastprodman/lottoengine/internal/repos/winners"
)

var _ winners.Winners = (*winnersRepo)(nil)

type winnersRepo struct{}

func New() *winnersRepo {
	return &winnersRepo{}
}

func (r *winnersRepo) InsertSettlement(ctx context.Context, q sqlx.ExtContext, s lottery.Settlement) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO settlements (round_id, prize_pool, first_prize, consolation_pool, consolation_paid, platform_retention, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.RoundID, s.PrizePool, s.FirstPrize, s.ConsolationPool, s.ConsolationPaid, s.PlatformRetention, s.SettledAt)
	if err != nil {
		if pgutils.IsUniqueViolation(err, "settlements_pkey") {
			return winners.ErrAlreadySettled
		}

		return fmt.Errorf("insert settlement: %w", err)
	}

	return nil
}

func (r *winnersRepo) GetSettlement(ctx context.Context, q sqlx.ExtContext, roundID string) (lottery.Settlement, error) {
	var s lottery.Settlement

	err := sqlx.GetContext(ctx, q, &s, `
		SELECT round_id, prize_pool, first_prize, consolation_pool, consolation_paid, platform_retention, settled_at
		FROM settlements
		WHERE round_id = $1
	`, roundID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lottery.Settlement{}, lottery.ErrRoundNotFound
		}

		return lottery.Settlement{}, fmt.Errorf("get settlement: %w", err)
	}

	return s, nil
}

func (r *winnersRepo) InsertRecords(ctx context.Context, q sqlx.ExtContext, records []lottery.WinnerRecord) error {
	for _, w := range records {
		_, err := q.ExecContext(ctx, `
			INSERT INTO winner_records (round_id, ticket_id, rank, user_id, number, payout, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, w.RoundID, w.TicketID, w.Rank, w.UserID, w.Number, w.Payout, w.SettledAt)
		if err != nil {
			if pgutils.IsUniqueViolation(err, "") {
				return winners.ErrAlreadySettled
			}

			return fmt.Errorf("insert winner %s: %w", w.TicketID, err)
		}
	}

	return nil
}

func (r *winnersRepo) ListByRound(ctx context.Context, q sqlx.ExtContext, roundID string) ([]lottery.WinnerRecord, error) {
	var list []lottery.WinnerRecord

	err := sqlx.SelectContext(ctx, q, &list, `
		SELECT round_id, rank, ticket_id, user_id, number, payout, created_at
		FROM winner_records
		WHERE round_id = $1
		ORDER BY (rank = 'FIRST') DESC, ticket_id
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("list winners: %w", err)
	}

	return list, nil
}
