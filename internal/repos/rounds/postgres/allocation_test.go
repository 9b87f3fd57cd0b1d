package rounds

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/infra/pgtestutil"
	"github.com/fastprodman/lottoengine/internal/lottery"
	"github.com/fastprodman/lottoengine/internal/repos/rounds"
)

func openRound(t *testing.T, db *sqlx.DB, digits int) lottery.Round {
	t.Helper()

	now := time.Now().UTC()
	r := lottery.Round{
		ID:             uuid.NewString(),
		Cadence:        lottery.CadenceAdHoc,
		Status:         lottery.StatusOpen,
		OpenAt:         now.Add(-time.Minute),
		CloseAt:        now.Add(time.Hour),
		TicketPrice:    100,
		NumberDigits:   digits,
		MatchPositions: 1,
	}

	err := New().Create(t.Context(), db, r)
	if err != nil {
		t.Fatalf("create round: %v", err)
	}

	return r
}

func TestRounds_ReserveNumber_ConcurrentUnique(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	r := openRound(t, db, 3)
	repo := New()

	ctx, cancel := context.WithTimeout(t.Context(), 15*time.Second)
	defer cancel()

	const workers = 50

	var (
		mu   sync.Mutex
		seen = make(map[int64]int, workers)
		wg   sync.WaitGroup
	)

	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			n, err := repo.ReserveNumber(ctx, db, r.ID, time.Now())
			if err != nil {
				errCh <- err
				return
			}

			mu.Lock()
			seen[n]++
			mu.Unlock()
		}()
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("reserve: %v", err)
	}

	if len(seen) != workers {
		t.Fatalf("want %d distinct numbers, got %d", workers, len(seen))
	}

	for n, c := range seen {
		if c != 1 || n < 0 || n >= workers {
			t.Fatalf("number %d handed out %d times", n, c)
		}
	}
}

func TestRounds_ReserveNumber_Refusals(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New()
	ctx := t.Context()

	// one digit: ten numbers, then exhausted
	r := openRound(t, db, 1)
	for i := 0; i < 10; i++ {
		_, err := repo.ReserveNumber(ctx, db, r.ID, time.Now())
		if err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
	}

	_, err := repo.ReserveNumber(ctx, db, r.ID, time.Now())
	if !errors.Is(err, rounds.ErrNotReservable) {
		t.Fatalf("exhausted: want ErrNotReservable, got %v", err)
	}

	// past the deadline
	r2 := openRound(t, db, 2)
	_, err = repo.ReserveNumber(ctx, db, r2.ID, time.Now().Add(2*time.Hour))
	if !errors.Is(err, rounds.ErrNotReservable) {
		t.Fatalf("late: want ErrNotReservable, got %v", err)
	}

	// not open
	err = repo.CompareAndSetStatus(ctx, db, r2.ID, lottery.StatusOpen, lottery.StatusVoid, time.Now())
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	_, err = repo.ReserveNumber(ctx, db, r2.ID, time.Now())
	if !errors.Is(err, rounds.ErrNotReservable) {
		t.Fatalf("void: want ErrNotReservable, got %v", err)
	}
}

func TestRounds_Pool(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New()
	ctx := t.Context()
	r := openRound(t, db, 2)

	err := repo.AddToPool(ctx, db, r.ID, 300)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	// only VOID rounds release
	err = repo.ReleaseFromPool(ctx, db, r.ID, 100)
	if !errors.Is(err, lottery.ErrStatusConflict) {
		t.Fatalf("release on open: want ErrStatusConflict, got %v", err)
	}

	err = repo.CompareAndSetStatus(ctx, db, r.ID, lottery.StatusOpen, lottery.StatusVoid, time.Now())
	if err != nil {
		t.Fatalf("void: %v", err)
	}

	err = repo.AddToPool(ctx, db, r.ID, 100)
	if !errors.Is(err, lottery.ErrRoundNotOpen) {
		t.Fatalf("add on void: want ErrRoundNotOpen, got %v", err)
	}

	err = repo.ReleaseFromPool(ctx, db, r.ID, 300)
	if err != nil {
		t.Fatalf("release: %v", err)
	}

	got, err := repo.Get(ctx, db, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PrizePool != 0 {
		t.Fatalf("pool: want 0, got %d", got.PrizePool)
	}
}
