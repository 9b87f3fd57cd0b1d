package selector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/lottery"
	"github.com/fastprodman/lottoengine/internal/metrics"
	"github.com/fastprodman/lottoengine/internal/notify"
	"github.com/fastprodman/lottoengine/internal/repos/rounds"
	pgrounds "github.com/fastprodman/lottoengine/internal/repos/rounds/postgres"
	"github.com/fastprodman/lottoengine/internal/repos/tickets"
	pgtickets "github.com/fastprodman/lottoengine/internal/repos/tickets/postgres"
	"github.com/fastprodman/lottoengine/internal/seed"
)

// Service moves CLOSED rounds to SETTLING once their draw is fixed.
type Service struct {
	db       *sqlx.DB
	rounds   rounds.Rounds
	tickets  tickets.Tickets
	notifier notify.Notifier
	now      func() time.Time
}

func New(db *sqlx.DB, notifier notify.Notifier) *Service {
	return &Service{
		db:       db,
		rounds:   pgrounds.New(),
		tickets:  pgtickets.New(),
		notifier: notifier,
		now:      time.Now,
	}
}

// Draw loads the round's tickets and recorded seed and runs Select on them.
func Draw(ctx context.Context, q sqlx.ExtContext, ts tickets.Tickets, round lottery.Round) (Selection, error) {
	if round.Seed == nil {
		return Selection{}, fmt.Errorf("%w: round %s has no seed", lottery.ErrValidation, round.ID)
	}

	s, err := seed.Decode(*round.Seed)
	if err != nil {
		return Selection{}, fmt.Errorf("decode seed: %w", err)
	}

	list, err := ts.ListByRound(ctx, q, round.ID)
	if err != nil {
		return Selection{}, fmt.Errorf("list tickets: %w", err)
	}

	sel, err := Select(list, s, round.Rule())
	if err != nil {
		return Selection{}, fmt.Errorf("select: %w", err)
	}

	return sel, nil
}

// SelectRound draws a CLOSED round and moves it to SETTLING. Rounds already past
// CLOSED are a no-op. Nothing is paid here; settlement recomputes the same
// selection from the stored seed.
func (s *Service) SelectRound(ctx context.Context, roundID string) (Selection, error) {
	round, err := s.rounds.Get(ctx, s.db, roundID)
	if err != nil {
		return Selection{}, fmt.Errorf("get round: %w", err)
	}

	switch round.Status {
	case lottery.StatusClosed:
	case lottery.StatusSettling, lottery.StatusSettled:
		return Selection{}, nil
	default:
		return Selection{}, fmt.Errorf("%w: select round in status %s", lottery.ErrValidation, round.Status)
	}

	sel, err := Draw(ctx, s.db, s.tickets, round)
	if err != nil {
		return Selection{}, err
	}

	err = s.rounds.CompareAndSetStatus(ctx, s.db, roundID, lottery.StatusClosed, lottery.StatusSettling, s.now())
	if err != nil {
		return Selection{}, fmt.Errorf("mark settling: %w", err)
	}

	metrics.RecordTransition(string(lottery.StatusClosed), string(lottery.StatusSettling))

	slog.InfoContext(ctx, "winners selected",
		"round_id", roundID,
		"winning_ticket", sel.Winner.ID,
		"winning_number", round.Rule().Format(sel.Winner.Number),
		"consolation", len(sel.Consolation),
	)

	s.notifier.Notify(notify.Event{
		Type:    notify.WinnersSelected,
		RoundID: roundID,
		UserIDs: sel.UserIDs(),
	})

	return sel, nil
}
