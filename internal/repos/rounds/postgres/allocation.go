package rounds

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/lottery"
	"github.com/fastprodman/lottoengine/internal/repos/rounds"
)

func (r *roundsRepo) ReserveNumber(ctx context.Context, q sqlx.ExtContext, id string, now time.Time) (int64, error) {
	var number int64

	// the row update is atomic: two callers can never read the same counter value
	err := q.QueryRowxContext(ctx, `
		UPDATE rounds
		SET next_number = next_number + 1, updated_at = now()
		WHERE id = $1
		  AND status = 'OPEN'
		  AND close_at > $2
		  AND next_number < power(10::numeric, number_digits)
		RETURNING next_number - 1
	`, id, now).Scan(&number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, rounds.ErrNotReservable
		}

		return 0, fmt.Errorf("reserve number: %w", err)
	}

	return number, nil
}

func (r *roundsRepo) AddToPool(ctx context.Context, q sqlx.ExtContext, id string, amount int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE rounds
		SET prize_pool = prize_pool + $2, updated_at = now()
		WHERE id = $1
		  AND status = 'OPEN'
	`, id, amount)
	if err != nil {
		return fmt.Errorf("add to pool: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return lottery.ErrRoundNotOpen
	}

	return nil
}

func (r *roundsRepo) ReleaseFromPool(ctx context.Context, q sqlx.ExtContext, id string, amount int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE rounds
		SET prize_pool = prize_pool - $2, updated_at = now()
		WHERE id = $1
		  AND status = 'VOID'
		  AND prize_pool >= $2
	`, id, amount)
	if err != nil {
		return fmt.Errorf("release from pool: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: round %s is not void or pool too small", lottery.ErrStatusConflict, id)
	}

	return nil
}
