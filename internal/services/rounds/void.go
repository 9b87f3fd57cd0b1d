package rounds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/gateway"
	"github.com/fastprodman/lottoengine/internal/infra/pgutils"
	"github.com/fastprodman/lottoengine/internal/lottery"
	"github.com/fastprodman/lottoengine/internal/metrics"
	"github.com/fastprodman/lottoengine/internal/notify"
	"github.com/fastprodman/lottoengine/internal/services/ledger"
)

// RefundReport counts the outcome of one refund pass.
type RefundReport struct {
	Refunded int
	Failed   int
}

// Void cancels an OPEN round and refunds every ticket. Voiding a VOID round
// retries its outstanding refunds; any round past OPEN fails with ErrVoidConflict.
func (s *Service) Void(ctx context.Context, id string) (RefundReport, error) {
	round, err := s.rounds.Get(ctx, s.db, id)
	if err != nil {
		return RefundReport{}, fmt.Errorf("get round: %w", err)
	}

	switch round.Status {
	case lottery.StatusVoid:
		return s.RetryRefunds(ctx, id)
	case lottery.StatusOpen:
	default:
		return RefundReport{}, fmt.Errorf("%w: round %s is %s", lottery.ErrVoidConflict, id, round.Status)
	}

	err = s.rounds.CompareAndSetStatus(ctx, s.db, id, lottery.StatusOpen, lottery.StatusVoid, s.now().UTC())
	if err != nil {
		if !errors.Is(err, lottery.ErrStatusConflict) {
			return RefundReport{}, fmt.Errorf("void round: %w", err)
		}

		// lost the race: fine if another admin voided it, conflict if it closed
		round, err = s.rounds.Get(ctx, s.db, id)
		if err != nil {
			return RefundReport{}, fmt.Errorf("get round: %w", err)
		}

		if round.Status != lottery.StatusVoid {
			return RefundReport{}, fmt.Errorf("%w: round %s is %s", lottery.ErrVoidConflict, id, round.Status)
		}

		return s.RetryRefunds(ctx, id)
	}

	metrics.RecordTransition(string(lottery.StatusOpen), string(lottery.StatusVoid))
	slog.InfoContext(ctx, "round voided", "round_id", id)

	list, err := s.tickets.ListByRound(ctx, s.db, id)
	if err != nil {
		return RefundReport{}, fmt.Errorf("list tickets: %w", err)
	}

	s.notifier.Notify(notify.Event{
		Type:    notify.RoundVoided,
		RoundID: id,
		UserIDs: holders(list),
	})

	return s.RetryRefunds(ctx, id)
}

// RetryRefunds refunds every ticket of a VOID round that has not been refunded
// yet. Gateway failures are counted and left for the next pass.
func (s *Service) RetryRefunds(ctx context.Context, id string) (RefundReport, error) {
	var rep RefundReport

	list, err := s.tickets.ListUnrefunded(ctx, s.db, id)
	if err != nil {
		return rep, fmt.Errorf("list unrefunded: %w", err)
	}

	for _, t := range list {
		err = s.refundTicket(ctx, t)
		if err != nil {
			rep.Failed++
			metrics.RecordRefund(false)
			slog.ErrorContext(ctx, "refund ticket", "round_id", id, "ticket_id", t.ID, "error", err)

			continue
		}

		rep.Refunded++
		metrics.RecordRefund(true)
	}

	if rep.Failed > 0 {
		return rep, fmt.Errorf("%w: %d of %d tickets of round %s", lottery.ErrRefundFailed, rep.Failed, len(list), id)
	}

	return rep, nil
}

// refundTicket asks the gateway first, then books the refund. A crash in between
// is safe: the gateway dedups the refund key on the next pass.
func (s *Service) refundTicket(ctx context.Context, t lottery.Ticket) error {
	c, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.gateway.Refund(c, gateway.RefundKey(t.ID), t.PaymentKey, t.Price)
	if err != nil {
		return fmt.Errorf("gateway refund: %w", err)
	}

	err = pgutils.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		marked, err := s.tickets.MarkRefunded(ctx, tx, t.ID, s.now().UTC())
		if err != nil {
			return err
		}

		if !marked {
			return nil
		}

		err = s.rounds.ReleaseFromPool(ctx, tx, t.RoundID, t.Price)
		if err != nil {
			return err
		}

		_, err = s.ledger.Append(ctx, tx, ledger.Entry{
			WalletID:       lottery.EscrowWallet,
			Amount:         -t.Price,
			Kind:           lottery.KindRefund,
			RoundID:        t.RoundID,
			TicketID:       t.ID,
			IdempotencyKey: gateway.RefundKey(t.ID),
		})

		return err
	})
	if err != nil {
		return fmt.Errorf("book refund: %w", err)
	}

	return nil
}

func holders(list []lottery.Ticket) []string {
	seen := make(map[string]struct{}, len(list))
	ids := make([]string, 0, len(list))

	for _, t := range list {
		if _, ok := seen[t.UserID]; ok {
			continue
		}

		seen[t.UserID] = struct{}{}
		ids = append(ids, t.UserID)
	}

	return ids
}
