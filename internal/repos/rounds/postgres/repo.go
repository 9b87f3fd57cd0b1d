package rounds

import (
	"github.com/fastprodman/lottoengine/internal/repos/rounds"
)

var _ rounds.Rounds = (*roundsRepo)(nil)

type roundsRepo struct{}

func New() *roundsRepo {
	return &roundsRepo{}
}

const roundColumns = `
	id, cadence, status, open_at, close_at, ticket_price, prize_pool, next_number,
	number_digits, match_positions, seed, created_at, updated_at, closed_at, settled_at`
