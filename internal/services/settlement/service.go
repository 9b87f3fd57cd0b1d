package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/infra/pgutils"
	"github.com/fastprodman/lottoengine/internal/lottery"
	"github.com/fastprodman/lottoengine/internal/metrics"
	"github.com/fastprodman/lottoengine/internal/notify"
	"github.com/fastprodman/lottoengine/internal/repos/rounds"
	pgrounds "github.com/fastprodman/lottoengine/internal/repos/rounds/postgres"
	"github.com/fastprodman/lottoengine/internal/repos/tickets"
	pgtickets "github.com/fastprodman/lottoengine/internal/repos/tickets/postgres"
	"github.com/fastprodman/lottoengine/internal/repos/winners"
	pgwinners "github.com/fastprodman/lottoengine/internal/repos/winners/postgres"
	"github.com/fastprodman/lottoengine/internal/services/ledger"
	"github.com/fastprodman/lottoengine/internal/services/selector"
)

// ResultCache keeps finished round results for the audit view.
type ResultCache interface {
	Set(ctx context.Context, res lottery.RoundResult) error
}

// errSettled aborts the settlement transaction of a round somebody else settled.
var errSettled = errors.New("round settled concurrently")

type Service struct {
	db       *sqlx.DB
	shares   Shares
	rounds   rounds.Rounds
	tickets  tickets.Tickets
	winners  winners.Winners
	ledger   *ledger.Service
	cache    ResultCache
	notifier notify.Notifier
	now      func() time.Time
}

// New builds the settlement service; a nil cache disables result caching.
func New(db *sqlx.DB, shares Shares, cache ResultCache, notifier notify.Notifier) *Service {
	return &Service{
		db:       db,
		shares:   shares,
		rounds:   pgrounds.New(),
		tickets:  pgtickets.New(),
		winners:  pgwinners.New(),
		ledger:   ledger.New(db),
		cache:    cache,
		notifier: notifier,
		now:      time.Now,
	}
}

// Settle pays out a SETTLING round in a single DB transaction:
//
// 1) Recompute the draw from the recorded seed and split the pool.
// 2) Insert the settlement guard row (already there -> no-op).
// 3) Check escrow holds exactly the prize pool and store the winner records.
// 4) Append winner, consolation and platform credits plus matching escrow debits.
// 5) Move the round SETTLING -> SETTLED and read back the final result.
//
// A SETTLED round returns its stored settlement. Any failure rolls everything
// back and the scheduler retries later.
func (s *Service) Settle(ctx context.Context, roundID string) (lottery.Settlement, error) {
	round, err := s.rounds.Get(ctx, s.db, roundID)
	if err != nil {
		return lottery.Settlement{}, fmt.Errorf("get round: %w", err)
	}

	switch round.Status {
	case lottery.StatusSettling:
	case lottery.StatusSettled:
		return s.stored(ctx, roundID)
	default:
		return lottery.Settlement{}, fmt.Errorf("%w: settle round in status %s", lottery.ErrValidation, round.Status)
	}

	var (
		summary lottery.Settlement
		records []lottery.WinnerRecord
		result  lottery.RoundResult
	)

	at := s.now().UTC()

	err = pgutils.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		sel, err := selector.Draw(ctx, tx, s.tickets, round)
		if err != nil {
			return err
		}

		split, err := s.shares.Split(round.PrizePool, len(sel.Consolation))
		if err != nil {
			return err
		}

		summary = split.Settlement(roundID)
		summary.SettledAt = at

		err = s.winners.InsertSettlement(ctx, tx, summary)
		if err != nil {
			if errors.Is(err, winners.ErrAlreadySettled) {
				return errSettled
			}

			return fmt.Errorf("insert settlement: %w", err)
		}

		// checked behind the guard row so a concurrent settler sees errSettled
		held, err := s.ledger.Held(ctx, tx, roundID)
		if err != nil {
			return err
		}

		if held != round.PrizePool {
			return fmt.Errorf("escrow holds %d for a prize pool of %d", held, round.PrizePool)
		}

		records = winnerRecords(roundID, sel, split, at)

		err = s.winners.InsertRecords(ctx, tx, records)
		if err != nil {
			return fmt.Errorf("insert winners: %w", err)
		}

		for _, leg := range payoutLegs(roundID, records, split) {
			_, err = s.ledger.Append(ctx, tx, leg)
			if err != nil {
				return fmt.Errorf("append %s: %w", leg.IdempotencyKey, err)
			}
		}

		err = s.rounds.CompareAndSetStatus(ctx, tx, roundID, lottery.StatusSettling, lottery.StatusSettled, at)
		if err != nil {
			return fmt.Errorf("mark settled: %w", err)
		}

		result, err = s.result(ctx, tx, roundID, summary)

		return err
	})
	if err != nil {
		if errors.Is(err, errSettled) || errors.Is(err, lottery.ErrStatusConflict) {
			return s.stored(ctx, roundID)
		}

		return lottery.Settlement{}, fmt.Errorf("%w: round %s: %w", lottery.ErrSettlementFailure, roundID, err)
	}

	metrics.RecordTransition(string(lottery.StatusSettling), string(lottery.StatusSettled))
	metrics.RecordSettlement(summary.FirstPrize, summary.ConsolationPaid, summary.PlatformRetention)

	slog.InfoContext(ctx, "round settled",
		"round_id", roundID,
		"prize_pool", summary.PrizePool,
		"first_prize", summary.FirstPrize,
		"consolation_paid", summary.ConsolationPaid,
		"platform_retention", summary.PlatformRetention,
	)

	if s.cache != nil {
		err = s.cache.Set(ctx, result)
		if err != nil {
			slog.WarnContext(ctx, "cache round result", "round_id", roundID, "error", err)
		}
	}

	s.notifier.Notify(notify.Event{
		Type:    notify.PayoutSettled,
		RoundID: roundID,
		UserIDs: userIDs(records),
	})

	return summary, nil
}

// result reads the settled round back as the audit view serves it.
func (s *Service) result(ctx context.Context, tx *sqlx.Tx, roundID string, summary lottery.Settlement) (lottery.RoundResult, error) {
	round, err := s.rounds.Get(ctx, tx, roundID)
	if err != nil {
		return lottery.RoundResult{}, fmt.Errorf("reload round: %w", err)
	}

	res := lottery.RoundResult{Round: round, Settlement: &summary}

	res.Tickets, err = s.tickets.CountByRound(ctx, tx, roundID)
	if err != nil {
		return lottery.RoundResult{}, fmt.Errorf("count tickets: %w", err)
	}

	res.Winners, err = s.winners.ListByRound(ctx, tx, roundID)
	if err != nil {
		return lottery.RoundResult{}, fmt.Errorf("list winners: %w", err)
	}

	return res, nil
}

func (s *Service) stored(ctx context.Context, roundID string) (lottery.Settlement, error) {
	st, err := s.winners.GetSettlement(ctx, s.db, roundID)
	if err != nil {
		return lottery.Settlement{}, fmt.Errorf("get settlement: %w", err)
	}

	return st, nil
}

func winnerRecords(roundID string, sel selector.Selection, split Split, at time.Time) []lottery.WinnerRecord {
	out := make([]lottery.WinnerRecord, 0, 1+len(sel.Consolation))

	out = append(out, lottery.WinnerRecord{
		RoundID:   roundID,
		Rank:      lottery.RankFirst,
		TicketID:  sel.Winner.ID,
		UserID:    sel.Winner.UserID,
		Number:    sel.Winner.Number,
		Payout:    split.FirstPrize,
		SettledAt: at,
	})

	for _, t := range sel.Consolation {
		out = append(out, lottery.WinnerRecord{
			RoundID:   roundID,
			Rank:      lottery.RankConsolation,
			TicketID:  t.ID,
			UserID:    t.UserID,
			Number:    t.Number,
			Payout:    split.ConsolationEach,
			SettledAt: at,
		})
	}

	return out
}

// payoutLegs lists the ledger entries of a settlement. Each credit is paired with
// an escrow debit of the same kind; zero amounts produce no entries.
func payoutLegs(roundID string, records []lottery.WinnerRecord, split Split) []ledger.Entry {
	var legs []ledger.Entry

	pair := func(wallet string, amount int64, kind lottery.EntryKind, ticketID, key string) {
		if amount == 0 {
			return
		}

		legs = append(legs,
			ledger.Entry{
				WalletID: lottery.EscrowWallet, Amount: -amount, Kind: kind,
				RoundID: roundID, TicketID: ticketID, IdempotencyKey: key + ":escrow",
			},
			ledger.Entry{
				WalletID: wallet, Amount: amount, Kind: kind,
				RoundID: roundID, TicketID: ticketID, IdempotencyKey: key,
			},
		)
	}

	for _, r := range records {
		kind := lottery.KindConsolationPayout
		if r.Rank == lottery.RankFirst {
			kind = lottery.KindWinPayout
		}

		pair(r.UserID, r.Payout, kind, r.TicketID, fmt.Sprintf("settle:%s:%s", roundID, r.TicketID))
	}

	pair(lottery.PlatformWallet, split.PlatformRetention, lottery.KindPlatformRetention, "",
		fmt.Sprintf("settle:%s:platform", roundID))

	return legs
}

func userIDs(records []lottery.WinnerRecord) []string {
	seen := make(map[string]struct{}, len(records))
	ids := make([]string, 0, len(records))

	for _, r := range records {
		if _, ok := seen[r.UserID]; ok {
			continue
		}

		seen[r.UserID] = struct{}{}
		ids = append(ids, r.UserID)
	}

	return ids
}
