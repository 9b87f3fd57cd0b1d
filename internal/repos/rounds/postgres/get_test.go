package rounds

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/lottoengine/internal/infra/pgtestutil"
	"github.com/fastprodman/lottoengine/internal/lottery"
)

func TestRounds_Get_UnknownIDs(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	for _, id := range []string{uuid.NewString(), "not-a-uuid", ""} {
		_, err := New().Get(t.Context(), db, id)
		if !errors.Is(err, lottery.ErrRoundNotFound) {
			t.Fatalf("%q: want ErrRoundNotFound, got %v", id, err)
		}
	}
}

func TestRounds_ListByStatus_Order(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	ctx := t.Context()
	repo := New()
	now := time.Now().UTC()

	ids := make([]string, 3)
	for i := range ids {
		r := lottery.Round{
			ID:             uuid.NewString(),
			Cadence:        lottery.CadenceAdHoc,
			Status:         lottery.StatusOpen,
			OpenAt:         now.Add(-time.Hour),
			CloseAt:        now.Add(time.Duration(i+1) * time.Hour),
			TicketPrice:    100,
			NumberDigits:   2,
			MatchPositions: 1,
		}

		err := repo.Create(ctx, db, r)
		if err != nil {
			t.Fatalf("create round %d: %v", i, err)
		}

		ids[i] = r.ID
	}

	open, err := repo.ListByStatus(ctx, db, lottery.StatusOpen, 10)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 3 || open[0].ID != ids[0] || open[2].ID != ids[2] {
		t.Fatalf("open rounds not soonest first: %v", open)
	}

	_, err = db.ExecContext(ctx, `UPDATE rounds SET status = 'VOID'`)
	if err != nil {
		t.Fatalf("void rounds: %v", err)
	}

	void, err := repo.ListByStatus(ctx, db, lottery.StatusVoid, 2)
	if err != nil {
		t.Fatalf("list void: %v", err)
	}
	if len(void) != 2 || void[0].ID != ids[2] || void[1].ID != ids[1] {
		t.Fatalf("void rounds not latest first: %v", void)
	}
}
