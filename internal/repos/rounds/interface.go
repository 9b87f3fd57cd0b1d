package rounds

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/lottery"
)

var (
	// ErrNotReservable means no ticket number could be reserved: the round is missing,
	// not OPEN, past its deadline, or its number space is used up.
	ErrNotReservable = errors.New("no ticket number reservable")
	// ErrCalendarExists means a calendar round for the cadence and period already exists.
	ErrCalendarExists = errors.New("calendar round already exists")
)

// Rounds is the round registry. Every method runs on the given executor so callers
// can compose it into their own transaction.
type Rounds interface {
	Create(ctx context.Context, q sqlx.ExtContext, r lottery.Round) error
	Get(ctx context.Context, q sqlx.ExtContext, id string) (lottery.Round, error)
	ListDue(ctx context.Context, q sqlx.ExtContext, now time.Time, limit int) ([]lottery.Round, error)
	// ListByStatus orders by deadline: soonest first, latest first for SETTLED and VOID.
	ListByStatus(ctx context.Context, q sqlx.ExtContext, status lottery.Status, limit int) ([]lottery.Round, error)
	// ListPendingRefunds returns VOID rounds that still hold unrefunded tickets.
	ListPendingRefunds(ctx context.Context, q sqlx.ExtContext, limit int) ([]lottery.Round, error)
	ListCalendar(ctx context.Context, q sqlx.ExtContext, cadence lottery.Cadence, at time.Time) ([]lottery.Round, error)

	// CompareAndSetStatus moves the round from -> to; ErrStatusConflict when the
	// round is not in from anymore.
	CompareAndSetStatus(ctx context.Context, q sqlx.ExtContext, id string, from, to lottery.Status, at time.Time) error
	// AssignSeed stores seed only if none is recorded; it reports whether it did.
	AssignSeed(ctx context.Context, q sqlx.ExtContext, id, seed string) (bool, error)

	// ReserveNumber hands out the next ticket number of an OPEN round whose
	// deadline is after now.
	ReserveNumber(ctx context.Context, q sqlx.ExtContext, id string, now time.Time) (int64, error)
	// AddToPool credits ticket revenue; ErrRoundNotOpen unless the round is OPEN.
	AddToPool(ctx context.Context, q sqlx.ExtContext, id string, amount int64) error
	// ReleaseFromPool removes refunded revenue from a VOID round.
	ReleaseFromPool(ctx context.Context, q sqlx.ExtContext, id string, amount int64) error
}
