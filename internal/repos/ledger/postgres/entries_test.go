package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/lottoengine/internal/infra/pgtestutil"
	"github.com/fastprodman/lottoengine/internal/lottery"
)

func TestEntries_InsertAndSum(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New()
	ctx := t.Context()

	entry := func(key string, amount int64) lottery.LedgerEntry {
		return lottery.LedgerEntry{
			ID:             uuid.NewString(),
			WalletID:       lottery.PlatformWallet,
			Amount:         amount,
			Kind:           lottery.KindPlatformRetention,
			IdempotencyKey: key,
			CreatedAt:      time.Now().UTC(),
		}
	}

	for i, amount := range []int64{100, 250, -50} {
		err := repo.Insert(ctx, db, entry(uuid.NewString(), amount))
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	sum, err := repo.SumByWallet(ctx, db, lottery.PlatformWallet)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != 300 {
		t.Fatalf("sum: want 300, got %d", sum)
	}

	list, err := repo.ListByWallet(ctx, db, lottery.PlatformWallet, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("list: want 3, got %d", len(list))
	}
}

func TestEntries_DuplicateKey(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New()
	ctx := t.Context()

	e := lottery.LedgerEntry{
		ID: uuid.NewString(), WalletID: lottery.EscrowWallet, Amount: 100,
		Kind: lottery.KindTicketCharge, IdempotencyKey: "charge:k1", CreatedAt: time.Now().UTC(),
	}

	err := repo.Insert(ctx, db, e)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}

	// the transaction stays usable after a replayed key
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	e.ID = uuid.NewString()
	err = repo.Insert(ctx, tx, e)
	if !errors.Is(err, lottery.ErrDuplicateEntry) {
		t.Fatalf("replay: want ErrDuplicateEntry, got %v", err)
	}

	_, err = repo.SumByWallet(ctx, tx, lottery.EscrowWallet)
	if err != nil {
		t.Fatalf("query after replay: %v", err)
	}
}

func TestEntries_UnknownWallet(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	err := New().Insert(t.Context(), db, lottery.LedgerEntry{
		ID: uuid.NewString(), WalletID: "ghost", Amount: 1,
		Kind: lottery.KindRefund, IdempotencyKey: "x", CreatedAt: time.Now().UTC(),
	})
	if !errors.Is(err, lottery.ErrWalletNotFound) {
		t.Fatalf("want ErrWalletNotFound, got %v", err)
	}
}
