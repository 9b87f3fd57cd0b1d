package rounds

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/infra/pgutils"
	"github.com/fastprodman/lottoengine/internal/lottery"
	"github.com/fastprodman/lottoengine/internal/repos/rounds"
)

func (r *roundsRepo) Create(ctx context.Context, q sqlx.ExtContext, round lottery.Round) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO rounds (id, cadence, status, open_at, close_at, ticket_price, number_digits, match_positions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, round.ID, round.Cadence, round.Status, round.OpenAt, round.CloseAt,
		round.TicketPrice, round.NumberDigits, round.MatchPositions)
	if err != nil {
		if pgutils.IsUniqueViolation(err, "rounds_calendar_key") {
			return rounds.ErrCalendarExists
		}

		if pgutils.IsCheckViolation(err) {
			return fmt.Errorf("%w: %v", lottery.ErrValidation, err)
		}

		return fmt.Errorf("insert round: %w", err)
	}

	return nil
}
