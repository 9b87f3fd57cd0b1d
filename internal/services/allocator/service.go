package allocator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/gateway"
	"github.com/fastprodman/lottoengine/internal/infra/pgutils"
	"github.com/fastprodman/lottoengine/internal/lottery"
	"github.com/fastprodman/lottoengine/internal/metrics"
	"github.com/fastprodman/lottoengine/internal/repos/purchases"
	pgpurchases "github.com/fastprodman/lottoengine/internal/repos/purchases/postgres"
	"github.com/fastprodman/lottoengine/internal/repos/rounds"
	pgrounds "github.com/fastprodman/lottoengine/internal/repos/rounds/postgres"
	"github.com/fastprodman/lottoengine/internal/repos/tickets"
	pgtickets "github.com/fastprodman/lottoengine/internal/repos/tickets/postgres"
	"github.com/fastprodman/lottoengine/internal/services/ledger"
)

// Service sells tickets: it charges the user, then reserves a unique number and
// commits the ticket together with its escrow entry in one transaction, so a
// failed payment never consumes a number.
type Service struct {
	db        *sqlx.DB
	rounds    rounds.Rounds
	tickets   tickets.Tickets
	purchases purchases.Purchases
	ledger    *ledger.Service
	gateway   gateway.Gateway
	validate  *validator.Validate
	opts      Options
	now       func() time.Time
}

func New(db *sqlx.DB, gw gateway.Gateway, opts Options) *Service {
	return &Service{
		db:        db,
		rounds:    pgrounds.New(),
		tickets:   pgtickets.New(),
		purchases: pgpurchases.New(),
		ledger:    ledger.New(db),
		gateway:   gw,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
}

// Purchase buys one ticket. Repeating a request returns the ticket issued for it.
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest) (lottery.Ticket, error) {
	started := time.Now()

	t, outcome, err := s.purchase(ctx, req)
	metrics.RecordPurchase(outcome, started)

	if err != nil {
		return lottery.Ticket{}, fmt.Errorf("purchase: %w", err)
	}

	return t, nil
}

func (s *Service) purchase(ctx context.Context, req PurchaseRequest) (lottery.Ticket, string, error) {
	err := s.validate.StructCtx(ctx, req)
	if err != nil {
		return lottery.Ticket{}, "invalid", fmt.Errorf("%w: %v", lottery.ErrValidation, err)
	}

	key := PaymentKey(req.RoundID, req.UserID, req.PaymentRef)

	existing, err := s.tickets.GetByPaymentKey(ctx, s.db, key)
	if err == nil {
		return existing, "duplicate", nil
	}

	if !errors.Is(err, lottery.ErrTicketNotFound) {
		return lottery.Ticket{}, "error", fmt.Errorf("lookup payment: %w", err)
	}

	round, err := s.rounds.Get(ctx, s.db, req.RoundID)
	if err != nil {
		return lottery.Ticket{}, "invalid", fmt.Errorf("get round: %w", err)
	}

	if !round.AcceptsTickets(s.now()) {
		return lottery.Ticket{}, "closed", fmt.Errorf("%w: round %s is %s", lottery.ErrRoundNotOpen, round.ID, round.Status)
	}

	if round.NextNumber >= round.Rule().Capacity() {
		return lottery.Ticket{}, "exhausted", fmt.Errorf("%w: round %s sold all %d numbers", lottery.ErrAllocationExhausted, round.ID, round.Rule().Capacity())
	}

	status, err := s.charge(ctx, key, round.TicketPrice, req.UserID)
	if err != nil {
		return lottery.Ticket{}, classify(err), err
	}

	switch status {
	case gateway.StatusDeclined:
		return lottery.Ticket{}, "declined", lottery.ErrPaymentDeclined
	case gateway.StatusPending:
		err = s.purchases.Save(ctx, s.db, lottery.PendingPurchase{
			PaymentKey: key,
			RoundID:    round.ID,
			UserID:     req.UserID,
			PaymentRef: req.PaymentRef,
			Amount:     round.TicketPrice,
			CreatedAt:  s.now().UTC(),
		})
		if err != nil {
			return lottery.Ticket{}, "error", fmt.Errorf("save pending purchase: %w", err)
		}

		return lottery.Ticket{}, "pending", lottery.ErrPaymentPending
	}

	t := lottery.Ticket{
		RoundID:    round.ID,
		UserID:     req.UserID,
		Price:      round.TicketPrice,
		PaymentKey: key,
		PaymentRef: req.PaymentRef,
	}

	t, err = s.commit(ctx, t, false)
	if err != nil {
		return lottery.Ticket{}, classify(err), err
	}

	return t, "ok", nil
}

// ConfirmCharge finalizes a purchase whose charge was pending. Unknown and already
// resolved keys are no-ops.
func (s *Service) ConfirmCharge(ctx context.Context, key string) (lottery.Ticket, error) {
	p, err := s.purchases.Get(ctx, s.db, key)
	if err != nil {
		if errors.Is(err, lottery.ErrTicketNotFound) {
			return lottery.Ticket{}, nil
		}

		return lottery.Ticket{}, fmt.Errorf("get pending purchase: %w", err)
	}

	existing, err := s.tickets.GetByPaymentKey(ctx, s.db, key)
	if err == nil {
		return existing, nil
	}

	if !errors.Is(err, lottery.ErrTicketNotFound) {
		return lottery.Ticket{}, fmt.Errorf("lookup payment: %w", err)
	}

	if p.ResolvedAt != nil {
		return lottery.Ticket{}, nil
	}

	t := lottery.Ticket{
		RoundID:    p.RoundID,
		UserID:     p.UserID,
		Price:      p.Amount,
		PaymentKey: p.PaymentKey,
		PaymentRef: p.PaymentRef,
	}

	t, err = s.commit(ctx, t, true)
	if err != nil {
		return lottery.Ticket{}, fmt.Errorf("confirm charge: %w", err)
	}

	slog.InfoContext(ctx, "pending purchase confirmed", "round_id", t.RoundID, "ticket_id", t.ID)

	return t, nil
}

// refusal explains why no number could be reserved for the round.
func (s *Service) refusal(ctx context.Context, roundID string) error {
	round, err := s.rounds.Get(ctx, s.db, roundID)
	if err != nil {
		return fmt.Errorf("get round: %w", err)
	}

	if !round.AcceptsTickets(s.now()) {
		return fmt.Errorf("%w: round %s is %s", lottery.ErrRoundNotOpen, round.ID, round.Status)
	}

	return fmt.Errorf("%w: round %s sold all %d numbers", lottery.ErrAllocationExhausted, round.ID, round.Rule().Capacity())
}

func (s *Service) charge(ctx context.Context, key string, amount int64, userID string) (gateway.ChargeStatus, error) {
	c, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()

	status, err := s.gateway.Charge(c, key, amount, userID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, gateway.ErrUnavailable) {
			return "", fmt.Errorf("%w: %v", lottery.ErrGatewayTimeout, err)
		}

		return "", fmt.Errorf("charge: %w", err)
	}

	return status, nil
}

// commit reserves a number, stores the ticket, grows the prize pool and books the
// charge into escrow in one transaction; a rolled back attempt hands its number
// back. A taken number is retried up to MaxAttempts times. Whenever the paid
// charge cannot become a ticket it is refunded.
func (s *Service) commit(ctx context.Context, t lottery.Ticket, resolve bool) (lottery.Ticket, error) {
	var err error

	for attempt := 1; ; attempt++ {
		t.ID = uuid.NewString()
		t.PurchasedAt = s.now().UTC()

		err = pgutils.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
			number, err := s.rounds.ReserveNumber(ctx, tx, t.RoundID, s.now())
			if err != nil {
				return err
			}

			t.Number = number

			err = s.tickets.Insert(ctx, tx, t)
			if err != nil {
				return err
			}

			err = s.rounds.AddToPool(ctx, tx, t.RoundID, t.Price)
			if err != nil {
				return err
			}

			_, err = s.ledger.Append(ctx, tx, ledger.Entry{
				WalletID:       lottery.EscrowWallet,
				Amount:         t.Price,
				Kind:           lottery.KindTicketCharge,
				RoundID:        t.RoundID,
				TicketID:       t.ID,
				IdempotencyKey: "charge:" + t.PaymentKey,
			})
			if err != nil {
				return fmt.Errorf("book charge: %w", err)
			}

			if resolve {
				_, err = s.purchases.Resolve(ctx, tx, t.PaymentKey, t.PurchasedAt)
				if err != nil {
					return err
				}
			}

			return nil
		})

		switch {
		case err == nil:
			return t, nil
		case errors.Is(err, tickets.ErrDuplicatePayment):
			// a concurrent request with the same key won
			return s.tickets.GetByPaymentKey(ctx, s.db, t.PaymentKey)
		case errors.Is(err, rounds.ErrNotReservable):
			return lottery.Ticket{}, s.refundCharge(ctx, t.PaymentKey, t.Price, resolve, s.refusal(ctx, t.RoundID))
		case errors.Is(err, lottery.ErrRoundNotOpen):
			return lottery.Ticket{}, s.refundCharge(ctx, t.PaymentKey, t.Price, resolve, err)
		case !errors.Is(err, lottery.ErrContention):
			return lottery.Ticket{}, fmt.Errorf("commit ticket: %w", err)
		}

		if attempt >= s.opts.MaxAttempts {
			err = fmt.Errorf("commit ticket after %d attempts: %w", attempt, err)
			return lottery.Ticket{}, s.refundCharge(ctx, t.PaymentKey, t.Price, resolve, err)
		}

		metrics.RecordAllocationRetry()
	}
}

// refundCharge returns a charge that could not become a ticket and reports cause.
func (s *Service) refundCharge(ctx context.Context, key string, amount int64, resolve bool, cause error) error {
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.GatewayTimeout)
	defer cancel()

	err := s.gateway.Refund(c, gateway.RefundKey(key), key, amount)
	if err != nil {
		slog.ErrorContext(ctx, "refund unused charge", "payment_key", key, "error", err)
		return fmt.Errorf("%w (refund failed: %w)", cause, lottery.ErrRefundFailed)
	}

	if resolve {
		_, err = s.purchases.Resolve(ctx, s.db, key, s.now().UTC())
		if err != nil {
			slog.ErrorContext(ctx, "resolve refunded purchase", "payment_key", key, "error", err)
		}
	}

	return cause
}

func classify(err error) string {
	switch {
	case errors.Is(err, lottery.ErrRoundNotOpen):
		return "closed"
	case errors.Is(err, lottery.ErrAllocationExhausted):
		return "exhausted"
	case errors.Is(err, lottery.ErrGatewayTimeout):
		return "timeout"
	case errors.Is(err, lottery.ErrContention):
		return "contention"
	default:
		return "error"
	}
}
