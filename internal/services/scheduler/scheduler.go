package scheduler

import (
	"context"
	"errors"
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
	roundsvc "github.com/fastprodman/lottoengine/internal/services/rounds"
	"github.com/fastprodman/lottoengine/internal/services/selector"
	"github.com/fastprodman/lottoengine/internal/services/settlement"
)

// Service drives rounds through their lifecycle. Every step is a status
// compare-and-swap, so any number of replicas may tick concurrently.
type Service struct {
	db         *sqlx.DB
	rounds     rounds.Rounds
	tickets    tickets.Tickets
	seeds      seed.Source
	selector   *selector.Service
	settlement *settlement.Service
	admin      *roundsvc.Service
	notifier   notify.Notifier
	cfg        Config
	now        func() time.Time
}

func New(
	db *sqlx.DB,
	seeds seed.Source,
	sel *selector.Service,
	settle *settlement.Service,
	admin *roundsvc.Service,
	notifier notify.Notifier,
	cfg Config,
) *Service {
	if cfg.Batch <= 0 {
		cfg.Batch = 100
	}

	return &Service{
		db:         db,
		rounds:     pgrounds.New(),
		tickets:    pgtickets.New(),
		seeds:      seeds,
		selector:   sel,
		settlement: settle,
		admin:      admin,
		notifier:   notifier,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Run ticks every cfg.Tick until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	err := s.cfg.Validate()
	if err != nil {
		return fmt.Errorf("scheduler config: %w", err)
	}

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		err = s.Tick(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "scheduler tick", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick is one idempotent reconciliation pass:
//
// 1) Ensure the calendar rounds of the current periods exist.
// 2) OPEN rounds past their deadline -> CLOSING.
// 3) CLOSING rounds -> VOID when empty, else record the seed and -> CLOSED.
// 4) CLOSED rounds -> winner selection.
// 5) SETTLING rounds -> settlement.
// 6) VOID rounds -> retry outstanding refunds.
//
// A failing round is logged and skipped; the returned error only reports
// failures to list work.
func (s *Service) Tick(ctx context.Context) error {
	started := time.Now()
	defer metrics.RecordTick(started)

	var errs []error

	err := s.ensureCalendar(ctx)
	if err != nil {
		errs = append(errs, err)
	}

	steps := []struct {
		status lottery.Status
		fn     func(context.Context, lottery.Round) error
	}{
		{lottery.StatusOpen, s.closeDue},
		{lottery.StatusClosing, s.finishClosing},
		{lottery.StatusClosed, s.selectWinners},
		{lottery.StatusSettling, s.settle},
		{lottery.StatusVoid, s.refund},
	}

	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}

		list, err := s.list(ctx, step.status)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		for _, r := range list {
			err = step.fn(ctx, r)
			if err != nil {
				slog.ErrorContext(ctx, "reconcile round",
					"round_id", r.ID,
					"status", step.status,
					"error", err,
				)
			}
		}
	}

	return errors.Join(errs...)
}

func (s *Service) list(ctx context.Context, status lottery.Status) ([]lottery.Round, error) {
	switch status {
	case lottery.StatusOpen:
		return s.rounds.ListDue(ctx, s.db, s.now(), s.cfg.Batch)
	case lottery.StatusVoid:
		return s.rounds.ListPendingRefunds(ctx, s.db, s.cfg.Batch)
	}

	return s.rounds.ListByStatus(ctx, s.db, status, s.cfg.Batch)
}

func (s *Service) closeDue(ctx context.Context, r lottery.Round) error {
	err := s.rounds.CompareAndSetStatus(ctx, s.db, r.ID, lottery.StatusOpen, lottery.StatusClosing, s.now().UTC())
	if err != nil {
		if errors.Is(err, lottery.ErrStatusConflict) {
			return nil
		}

		return fmt.Errorf("mark closing: %w", err)
	}

	metrics.RecordTransition(string(lottery.StatusOpen), string(lottery.StatusClosing))

	return nil
}

// finishClosing also picks up rounds a crashed replica left in CLOSING.
func (s *Service) finishClosing(ctx context.Context, r lottery.Round) error {
	list, err := s.tickets.ListByRound(ctx, s.db, r.ID)
	if err != nil {
		return fmt.Errorf("list tickets: %w", err)
	}

	if len(list) == 0 {
		err = s.transition(ctx, r.ID, lottery.StatusClosing, lottery.StatusVoid)
		if err != nil {
			return err
		}

		slog.InfoContext(ctx, "round closed without tickets", "round_id", r.ID)
		s.notifier.Notify(notify.Event{Type: notify.RoundVoided, RoundID: r.ID})

		return nil
	}

	if r.Seed == nil {
		b, err := s.seeds.NextSeed(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("next seed: %w", err)
		}

		// a concurrent replica may have recorded its seed first; that one stands
		_, err = s.rounds.AssignSeed(ctx, s.db, r.ID, seed.Encode(b))
		if err != nil {
			return fmt.Errorf("record seed: %w", err)
		}
	}

	err = s.transition(ctx, r.ID, lottery.StatusClosing, lottery.StatusClosed)
	if err != nil {
		return err
	}

	users := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, t := range list {
		if _, ok := seen[t.UserID]; !ok {
			seen[t.UserID] = struct{}{}
			users = append(users, t.UserID)
		}
	}

	slog.InfoContext(ctx, "round closed", "round_id", r.ID, "tickets", len(list))
	s.notifier.Notify(notify.Event{Type: notify.RoundClosed, RoundID: r.ID, UserIDs: users})

	return nil
}

func (s *Service) transition(ctx context.Context, id string, from, to lottery.Status) error {
	err := s.rounds.CompareAndSetStatus(ctx, s.db, id, from, to, s.now().UTC())
	if err != nil {
		return fmt.Errorf("mark %s: %w", to, err)
	}

	metrics.RecordTransition(string(from), string(to))

	return nil
}

func (s *Service) selectWinners(ctx context.Context, r lottery.Round) error {
	_, err := s.selector.SelectRound(ctx, r.ID)
	if err != nil && !errors.Is(err, lottery.ErrStatusConflict) {
		return err
	}

	return nil
}

func (s *Service) settle(ctx context.Context, r lottery.Round) error {
	_, err := s.settlement.Settle(ctx, r.ID)
	return err
}

func (s *Service) refund(ctx context.Context, r lottery.Round) error {
	_, err := s.admin.RetryRefunds(ctx, r.ID)
	return err
}

func (s *Service) ensureCalendar(ctx context.Context) error {
	now := s.now().UTC()

	var errs []error

	for _, c := range s.cfg.Cadences {
		openAt, closeAt, err := c.Period(now)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		existing, err := s.rounds.ListCalendar(ctx, s.db, c, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if len(existing) > 0 {
			continue
		}

		_, err = s.admin.Create(ctx, lottery.NewRound{
			Cadence:        c,
			OpenAt:         openAt,
			CloseAt:        closeAt,
			TicketPrice:    s.cfg.TicketPrice,
			NumberDigits:   s.cfg.Rule.Digits,
			MatchPositions: s.cfg.Rule.MatchPositions,
		})
		if err != nil && !errors.Is(err, rounds.ErrCalendarExists) {
			errs = append(errs, fmt.Errorf("create %s round: %w", c, err))
		}
	}

	return errors.Join(errs...)
}
