package selector

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/fastprodman/lottoengine/internal/lottery"
	"github.com/fastprodman/lottoengine/internal/seed"
)

func makeTickets(n int) []lottery.Ticket {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]lottery.Ticket, 0, n)

	for i := 0; i < n; i++ {
		out = append(out, lottery.Ticket{
			ID:          fmt.Sprintf("t-%03d", i),
			UserID:      fmt.Sprintf("u-%d", i%7),
			Number:      int64(i),
			PurchasedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	return out
}

func TestSelect_Deterministic(t *testing.T) {
	t.Parallel()

	tickets := makeTickets(50)
	s := bytes.Repeat([]byte{7}, seed.Size)
	rule := lottery.MatchRule{Digits: 4, MatchPositions: 3}

	first, err := Select(tickets, s, rule)
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	// input order must not matter
	shuffled := append([]lottery.Ticket(nil), tickets...)
	rand.New(rand.NewPCG(1, 2)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	for i := 0; i < 5; i++ {
		again, err := Select(shuffled, s, rule)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if again.Winner.ID != first.Winner.ID {
			t.Fatalf("winner changed: %s vs %s", first.Winner.ID, again.Winner.ID)
		}
		if len(again.Consolation) != len(first.Consolation) {
			t.Fatalf("consolation changed: %d vs %d", len(first.Consolation), len(again.Consolation))
		}
	}
}

func TestSelect_SeedChangesOutcome(t *testing.T) {
	t.Parallel()

	tickets := makeTickets(1000)
	rule := lottery.MatchRule{Digits: 4, MatchPositions: 4}

	winners := map[string]struct{}{}
	for b := byte(0); b < 8; b++ {
		sel, err := Select(tickets, bytes.Repeat([]byte{b}, seed.Size), rule)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		winners[sel.Winner.ID] = struct{}{}
	}

	if len(winners) < 2 {
		t.Fatalf("8 seeds over 1000 tickets produced %d distinct winners", len(winners))
	}
}

func TestSelect_Consolation(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tickets := []lottery.Ticket{
		{ID: "a", Number: 1234, PurchasedAt: now},
		{ID: "b", Number: 1234, PurchasedAt: now.Add(time.Second)},
	}

	rule := lottery.MatchRule{Digits: 4, MatchPositions: 3}
	sel, err := Select(tickets, make([]byte, seed.Size), rule)
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	if len(sel.Consolation) != 1 {
		t.Fatalf("consolation: want 1, got %d", len(sel.Consolation))
	}
	if sel.Consolation[0].ID == sel.Winner.ID {
		t.Fatalf("winner also listed as consolation")
	}

	for _, c := range sel.Consolation {
		if !rule.Qualifies(c.Number, sel.Winner.Number) {
			t.Fatalf("ticket %s does not qualify", c.ID)
		}
	}
}

func TestSelect_Errors(t *testing.T) {
	t.Parallel()

	rule := lottery.MatchRule{Digits: 4, MatchPositions: 3}

	_, err := Select(nil, make([]byte, seed.Size), rule)
	if !errors.Is(err, ErrNoTickets) {
		t.Fatalf("want ErrNoTickets, got %v", err)
	}

	_, err = Select(makeTickets(2), []byte{1, 2}, rule)
	if !errors.Is(err, seed.ErrBadSeed) {
		t.Fatalf("want ErrBadSeed, got %v", err)
	}
}

func TestSelection_UserIDs(t *testing.T) {
	t.Parallel()

	sel := Selection{
		Winner: lottery.Ticket{UserID: "alice"},
		Consolation: []lottery.Ticket{
			{UserID: "bob"}, {UserID: "alice"}, {UserID: "bob"}, {UserID: "carol"},
		},
	}

	got := sel.UserIDs()
	want := []string{"alice", "bob", "carol"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("user ids: want %v, got %v", want, got)
	}
}
