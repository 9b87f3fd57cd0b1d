package selector

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/fastprodman/lottoengine/internal/lottery"
	"github.com/fastprodman/lottoengine/internal/seed"
)

var ErrNoTickets = errors.New("no tickets to draw from")

// Selection is the outcome of a draw. Consolation keeps draw order.
type Selection struct {
	Winner      lottery.Ticket
	Consolation []lottery.Ticket
}

// UserIDs lists the distinct users holding a winning ticket.
func (s Selection) UserIDs() []string {
	seen := map[string]struct{}{s.Winner.UserID: {}}
	ids := []string{s.Winner.UserID}

	for _, t := range s.Consolation {
		if _, ok := seen[t.UserID]; ok {
			continue
		}

		seen[t.UserID] = struct{}{}
		ids = append(ids, t.UserID)
	}

	return ids
}

// Select draws the winner and the consolation tickets. It is a pure function of
// its inputs: tickets are put in (purchased_at, id) order, a ChaCha8 generator
// keyed with seed picks the first-place index, and every other ticket matching
// the winning number in at least rule.MatchPositions digits is a consolation
// winner.
func Select(tickets []lottery.Ticket, s []byte, rule lottery.MatchRule) (Selection, error) {
	if len(tickets) == 0 {
		return Selection{}, ErrNoTickets
	}

	if len(s) != seed.Size {
		return Selection{}, fmt.Errorf("%w: got %d bytes", seed.ErrBadSeed, len(s))
	}

	ordered := slices.Clone(tickets)
	slices.SortFunc(ordered, func(a, b lottery.Ticket) int {
		if c := a.PurchasedAt.Compare(b.PurchasedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	rng := rand.New(rand.NewChaCha8([seed.Size]byte(s)))
	idx := rng.IntN(len(ordered))
	winner := ordered[idx]

	sel := Selection{Winner: winner}
	for i, t := range ordered {
		if i == idx {
			continue
		}

		if rule.Qualifies(t.Number, winner.Number) {
			sel.Consolation = append(sel.Consolation, t)
		}
	}

	return sel, nil
}
