package winners

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/lottery"
)

// ErrAlreadySettled means the round's settlement row exists.
var ErrAlreadySettled = errors.New("round already settled")

type Winners interface {
	InsertSettlement(ctx context.Context, q sqlx.ExtContext, s lottery.Settlement) error
	GetSettlement(ctx context.Context, q sqlx.ExtContext, roundID string) (lottery.Settlement, error)
	InsertRecords(ctx context.Context, q sqlx.ExtContext, records []lottery.WinnerRecord) error
	ListByRound(ctx context.Context, q sqlx.ExtContext, roundID string) ([]lottery.WinnerRecord, error)
}
