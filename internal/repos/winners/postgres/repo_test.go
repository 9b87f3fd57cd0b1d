package winners

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/lottoengine/internal/infra/pgtestutil"
	"github.com/fastprodman/lottoengine/internal/lottery"
	pgrounds "github.com/fastprodman/lottoengine/internal/repos/rounds/postgres"
	pgtickets "github.com/fastprodman/lottoengine/internal/repos/tickets/postgres"
	"github.com/fastprodman/lottoengine/internal/repos/winners"
)

func TestWinners_SettlementOnce(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	ctx := t.Context()
	now := time.Now().UTC().Truncate(time.Microsecond)
	roundID := uuid.NewString()

	err := pgrounds.New().Create(ctx, db, lottery.Round{
		ID: roundID, Cadence: lottery.CadenceAdHoc, Status: lottery.StatusOpen,
		OpenAt: now.Add(-time.Hour), CloseAt: now.Add(time.Hour),
		TicketPrice: 100, NumberDigits: 2, MatchPositions: 1,
	})
	if err != nil {
		t.Fatalf("create round: %v", err)
	}

	tk := lottery.Ticket{
		ID: uuid.NewString(), RoundID: roundID, UserID: "alice", Number: 3,
		Price: 100, PaymentKey: "k", PaymentRef: "k", PurchasedAt: now,
	}

	err = pgtickets.New().Insert(ctx, db, tk)
	if err != nil {
		t.Fatalf("insert ticket: %v", err)
	}

	repo := New()

	_, err = repo.GetSettlement(ctx, db, roundID)
	if !errors.Is(err, lottery.ErrRoundNotFound) {
		t.Fatalf("want ErrRoundNotFound before settling, got %v", err)
	}

	st := lottery.Settlement{
		RoundID: roundID, PrizePool: 100, FirstPrize: 50, ConsolationPool: 10,
		ConsolationPaid: 0, PlatformRetention: 50, SettledAt: now,
	}

	err = repo.InsertSettlement(ctx, db, st)
	if err != nil {
		t.Fatalf("insert settlement: %v", err)
	}

	err = repo.InsertSettlement(ctx, db, st)
	if !errors.Is(err, winners.ErrAlreadySettled) {
		t.Fatalf("want ErrAlreadySettled, got %v", err)
	}

	rec := lottery.WinnerRecord{
		RoundID: roundID, Rank: lottery.RankFirst, TicketID: tk.ID,
		UserID: tk.UserID, Number: tk.Number, Payout: 50, SettledAt: now,
	}

	err = repo.InsertRecords(ctx, db, []lottery.WinnerRecord{rec})
	if err != nil {
		t.Fatalf("insert records: %v", err)
	}

	err = repo.InsertRecords(ctx, db, []lottery.WinnerRecord{rec})
	if !errors.Is(err, winners.ErrAlreadySettled) {
		t.Fatalf("want ErrAlreadySettled on replay, got %v", err)
	}

	got, err := repo.GetSettlement(ctx, db, roundID)
	if err != nil || got.FirstPrize != 50 || got.PlatformRetention != 50 {
		t.Fatalf("get settlement: %+v, %v", got, err)
	}

	list, err := repo.ListByRound(ctx, db, roundID)
	if err != nil || len(list) != 1 || list[0].Rank != lottery.RankFirst {
		t.Fatalf("list winners: %+v, %v", list, err)
	}
}
