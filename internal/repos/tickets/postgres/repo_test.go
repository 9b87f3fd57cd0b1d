package tickets

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/infra/pgtestutil"
	"github.com/fastprodman/lottoengine/internal/lottery"
	pgrounds "github.com/fastprodman/lottoengine/internal/repos/rounds/postgres"
	"github.com/fastprodman/lottoengine/internal/repos/tickets"
)

func seedRound(t *testing.T, db *sqlx.DB) string {
	t.Helper()

	now := time.Now().UTC()
	id := uuid.NewString()

	err := pgrounds.New().Create(t.Context(), db, lottery.Round{
		ID: id, Cadence: lottery.CadenceAdHoc, Status: lottery.StatusOpen,
		OpenAt: now.Add(-time.Hour), CloseAt: now.Add(time.Hour),
		TicketPrice: 100, NumberDigits: 3, MatchPositions: 1,
	})
	if err != nil {
		t.Fatalf("create round: %v", err)
	}

	return id
}

func ticket(roundID, user, key string, number int64, at time.Time) lottery.Ticket {
	return lottery.Ticket{
		ID: uuid.NewString(), RoundID: roundID, UserID: user, Number: number,
		Price: 100, PaymentKey: key, PaymentRef: key, PurchasedAt: at,
	}
}

func TestTickets_InsertConflicts(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	ctx := t.Context()
	repo := New()
	roundID := seedRound(t, db)
	now := time.Now().UTC()

	err := repo.Insert(ctx, db, ticket(roundID, "alice", "k1", 7, now))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	tests := []struct {
		name    string
		t       lottery.Ticket
		wantErr error
	}{
		{name: "number_taken", t: ticket(roundID, "bob", "k2", 7, now), wantErr: lottery.ErrContention},
		{name: "payment_reused", t: ticket(roundID, "alice", "k1", 8, now), wantErr: tickets.ErrDuplicatePayment},
		{name: "unknown_round", t: ticket(uuid.NewString(), "bob", "k3", 1, now), wantErr: lottery.ErrRoundNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Insert(ctx, db, tt.t)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}
		})
	}

	got, err := repo.GetByPaymentKey(ctx, db, "k1")
	if err != nil || got.Number != 7 || got.UserID != "alice" {
		t.Fatalf("get by payment key: %+v, %v", got, err)
	}

	_, err = repo.GetByPaymentKey(ctx, db, "missing")
	if !errors.Is(err, lottery.ErrTicketNotFound) {
		t.Fatalf("want ErrTicketNotFound, got %v", err)
	}
}

func TestTickets_OrderAndRefunds(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	ctx := t.Context()
	repo := New()
	roundID := seedRound(t, db)
	base := time.Now().UTC().Truncate(time.Microsecond)

	// inserted out of purchase order
	for i, at := range []time.Duration{2 * time.Second, 0, time.Second} {
		err := repo.Insert(ctx, db, ticket(roundID, "u", uuid.NewString(), int64(i), base.Add(at)))
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	list, err := repo.ListByRound(ctx, db, roundID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Number != 1 || list[1].Number != 2 || list[2].Number != 0 {
		t.Fatalf("draw order: %+v", list)
	}

	n, err := repo.CountByRound(ctx, db, roundID)
	if err != nil || n != 3 {
		t.Fatalf("count: %d, %v", n, err)
	}

	marked, err := repo.MarkRefunded(ctx, db, list[0].ID, base)
	if err != nil || !marked {
		t.Fatalf("mark refunded: %v, %v", marked, err)
	}

	marked, err = repo.MarkRefunded(ctx, db, list[0].ID, base)
	if err != nil || marked {
		t.Fatalf("second mark must be a no-op: %v, %v", marked, err)
	}

	left, err := repo.ListUnrefunded(ctx, db, roundID)
	if err != nil || len(left) != 2 {
		t.Fatalf("unrefunded: %d, %v", len(left), err)
	}

	mine, err := repo.ListByUser(ctx, db, "u", 2)
	if err != nil || len(mine) != 2 || mine[0].Number != 0 {
		t.Fatalf("by user, newest first: %+v, %v", mine, err)
	}
}
