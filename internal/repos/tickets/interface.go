package tickets

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/lottery"
)

// ErrDuplicatePayment means a ticket already exists for the payment key.
var ErrDuplicatePayment = errors.New("ticket already issued for payment")

type Tickets interface {
	// Insert stores a ticket. A taken (round, number) pair yields
	// lottery.ErrContention; a reused payment key yields ErrDuplicatePayment.
	Insert(ctx context.Context, q sqlx.ExtContext, t lottery.Ticket) error
	GetByPaymentKey(ctx context.Context, q sqlx.ExtContext, key string) (lottery.Ticket, error)
	// ListByRound returns the round's tickets in draw order: (purchased_at, id).
	ListByRound(ctx context.Context, q sqlx.ExtContext, roundID string) ([]lottery.Ticket, error)
	CountByRound(ctx context.Context, q sqlx.ExtContext, roundID string) (int64, error)
	ListUnrefunded(ctx context.Context, q sqlx.ExtContext, roundID string) ([]lottery.Ticket, error)
	ListByUser(ctx context.Context, q sqlx.ExtContext, userID string, limit int) ([]lottery.Ticket, error)
	// MarkRefunded stamps refunded_at once; it reports whether this call did it.
	MarkRefunded(ctx context.Context, q sqlx.ExtContext, id string, at time.Time) (bool, error)
}
