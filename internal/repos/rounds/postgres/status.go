package rounds

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/lottery"
)

func (r *roundsRepo) CompareAndSetStatus(
	ctx context.Context, q sqlx.ExtContext, id string, from, to lottery.Status, at time.Time,
) error {
	err := lottery.CheckTransition(from, to)
	if err != nil {
		return err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE rounds
		SET status     = $3,
		    updated_at = $4,
		    closed_at  = CASE WHEN $3 = 'CLOSED' THEN $4 ELSE closed_at END,
		    settled_at = CASE WHEN $3 = 'SETTLED' THEN $4 ELSE settled_at END
		WHERE id = $1
		  AND status = $2
	`, id, from, to, at)
	if err != nil {
		return fmt.Errorf("cas round status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: round %s is not %s", lottery.ErrStatusConflict, id, from)
	}

	return nil
}

func (r *roundsRepo) AssignSeed(ctx context.Context, q sqlx.ExtContext, id, seed string) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE rounds
		SET seed = $2, updated_at = now()
		WHERE id = $1
		  AND seed IS NULL
		  AND status = 'CLOSING'
	`, id, seed)
	if err != nil {
		return false, fmt.Errorf("assign seed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}
