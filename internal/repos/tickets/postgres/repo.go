package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/infra/pgutils"
	"github.com/fastprodman/lottoengine/internal/lottery"
	"github.com/fastprodman/lottoengine/internal/repos/tickets"
)

var _ tickets.Tickets = (*ticketsRepo)(nil)

type ticketsRepo struct{}

func New() *ticketsRepo {
	return &ticketsRepo{}
}

const ticketColumns = `id, round_id, user_id, number, price, payment_key, payment_ref, purchased_at, refunded_at`

func (r *ticketsRepo) Insert(ctx context.Context, q sqlx.ExtContext, t lottery.Ticket) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO tickets (id, round_id, user_id, number, price, payment_key, payment_ref, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.RoundID, t.UserID, t.Number, t.Price, t.PaymentKey, t.PaymentRef, t.PurchasedAt)
	if err != nil {
		switch {
		case pgutils.IsUniqueViolation(err, "tickets_round_number_key"):
			return fmt.Errorf("%w: number %d in round %s", lottery.ErrContention, t.Number, t.RoundID)
		case pgutils.IsUniqueViolation(err, "tickets_payment_key_key"):
			return tickets.ErrDuplicatePayment
		case pgutils.IsForeignKeyViolation(err):
			return lottery.ErrRoundNotFound
		}

		return fmt.Errorf("insert ticket: %w", err)
	}

	return nil
}

func (r *ticketsRepo) GetByPaymentKey(ctx context.Context, q sqlx.ExtContext, key string) (lottery.Ticket, error) {
	var t lottery.Ticket

	err := sqlx.GetContext(ctx, q, &t, `SELECT `+ticketColumns+` FROM tickets WHERE payment_key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lottery.Ticket{}, lottery.ErrTicketNotFound
		}

		return lottery.Ticket{}, fmt.Errorf("get ticket by payment key: %w", err)
	}

	return t, nil
}

func (r *ticketsRepo) ListByRound(ctx context.Context, q sqlx.ExtContext, roundID string) ([]lottery.Ticket, error) {
	var list []lottery.Ticket

	err := sqlx.SelectContext(ctx, q, &list, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE round_id = $1
		ORDER BY purchased_at, id
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("list round tickets: %w", err)
	}

	return list, nil
}

func (r *ticketsRepo) CountByRound(ctx context.Context, q sqlx.ExtContext, roundID string) (int64, error) {
	var n int64

	err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM tickets WHERE round_id = $1`, roundID)
	if err != nil {
		return 0, fmt.Errorf("count round tickets: %w", err)
	}

	return n, nil
}

func (r *ticketsRepo) ListUnrefunded(ctx context.Context, q sqlx.ExtContext, roundID string) ([]lottery.Ticket, error) {
	var list []lottery.Ticket

	err := sqlx.SelectContext(ctx, q, &list, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE round_id = $1 AND refunded_at IS NULL
		ORDER BY purchased_at, id
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("list unrefunded tickets: %w", err)
	}

	return list, nil
}

func (r *ticketsRepo) ListByUser(ctx context.Context, q sqlx.ExtContext, userID string, limit int) ([]lottery.Ticket, error) {
	var list []lottery.Ticket

	err := sqlx.SelectContext(ctx, q, &list, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE user_id = $1
		ORDER BY purchased_at DESC, id
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list user tickets: %w", err)
	}

	return list, nil
}

func (r *ticketsRepo) MarkRefunded(ctx context.Context, q sqlx.ExtContext, id string, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE tickets
		SET refunded_at = $2
		WHERE id = $1 AND refunded_at IS NULL
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("mark refunded: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}
