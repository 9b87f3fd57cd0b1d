package rounds

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/lottery"
)

func (r *roundsRepo) Get(ctx context.Context, q sqlx.ExtContext, id string) (lottery.Round, error) {
	var round lottery.Round

	// ids are uuids; anything else cannot name a round
	if uuid.Validate(id) != nil {
		return lottery.Round{}, lottery.ErrRoundNotFound
	}

	err := sqlx.GetContext(ctx, q, &round, `SELECT `+roundColumns+` FROM rounds WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lottery.Round{}, lottery.ErrRoundNotFound
		}

		return lottery.Round{}, fmt.Errorf("get round: %w", err)
	}

	return round, nil
}

func (r *roundsRepo) ListDue(ctx context.Context, q sqlx.ExtContext, now time.Time, limit int) ([]lottery.Round, error) {
	var list []lottery.Round

	err := sqlx.SelectContext(ctx, q, &list, `
		SELECT `+roundColumns+`
		FROM rounds
		WHERE status = 'OPEN' AND close_at <= $1
		ORDER BY close_at, id
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due rounds: %w", err)
	}

	return list, nil
}

func (r *roundsRepo) ListByStatus(ctx context.Context, q sqlx.ExtContext, status lottery.Status, limit int) ([]lottery.Round, error) {
	var list []lottery.Round

	// finished rounds are listed latest first
	order := "close_at, id"
	if status.Terminal() {
		order = "close_at DESC, id"
	}

	err := sqlx.SelectContext(ctx, q, &list, `
		SELECT `+roundColumns+`
		FROM rounds
		WHERE status = $1
		ORDER BY `+order+`
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s rounds: %w", status, err)
	}

	return list, nil
}

func (r *roundsRepo) ListPendingRefunds(ctx context.Context, q sqlx.ExtContext, limit int) ([]lottery.Round, error) {
	var list []lottery.Round

	err := sqlx.SelectContext(ctx, q, &list, `
		SELECT `+roundColumns+`
		FROM rounds r
		WHERE r.status = 'VOID'
		  AND EXISTS (SELECT 1 FROM tickets t WHERE t.round_id = r.id AND t.refunded_at IS NULL)
		ORDER BY r.updated_at, r.id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list rounds pending refunds: %w", err)
	}

	return list, nil
}

// ListCalendar returns the rounds of cadence whose window contains at.
func (r *roundsRepo) ListCalendar(ctx context.Context, q sqlx.ExtContext, cadence lottery.Cadence, at time.Time) ([]lottery.Round, error) {
	var list []lottery.Round

	err := sqlx.SelectContext(ctx, q, &list, `
		SELECT `+roundColumns+`
		FROM rounds
		WHERE cadence = $1 AND open_at <= $2 AND close_at > $2
		ORDER BY open_at
	`, cadence, at)
	if err != nil {
		return nil, fmt.Errorf("list calendar rounds: %w", err)
	}

	return list, nil
}
