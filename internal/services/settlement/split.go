package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fastprodman/lottoengine/internal/lottery"
)

// Shares are the fractions of the prize pool paid to first place and to the
// consolation pool. The rest is platform retention.
type Shares struct {
	First       decimal.Decimal
	Consolation decimal.Decimal
}

// DefaultShares is the 50 / 10 / 40 split.
var DefaultShares = Shares{
	First:       decimal.RequireFromString("0.50"),
	Consolation: decimal.RequireFromString("0.10"),
}

func ParseShares(first, consolation string) (Shares, error) {
	f, err := decimal.NewFromString(first)
	if err != nil {
		return Shares{}, fmt.Errorf("%w: first prize share %q: %v", lottery.ErrValidation, first, err)
	}

	c, err := decimal.NewFromString(consolation)
	if err != nil {
		return Shares{}, fmt.Errorf("%w: consolation share %q: %v", lottery.ErrValidation, consolation, err)
	}

	sh := Shares{First: f, Consolation: c}

	err = sh.Validate()
	if err != nil {
		return Shares{}, err
	}

	return sh, nil
}

func (sh Shares) Validate() error {
	if sh.First.IsNegative() || sh.Consolation.IsNegative() {
		return fmt.Errorf("%w: shares must not be negative", lottery.ErrValidation)
	}

	if sh.First.Add(sh.Consolation).GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: shares exceed the prize pool", lottery.ErrValidation)
	}

	return nil
}

// Split is the distribution of one prize pool.
type Split struct {
	PrizePool         int64
	FirstPrize        int64
	ConsolationPool   int64
	ConsolationEach   int64
	ConsolationPaid   int64
	PlatformRetention int64
}

// Split divides pool between first place, n consolation winners and the platform.
// Every share is floored to minor units; whatever rounding leaves over, and the
// whole consolation pool when n is 0, is platform retention. The parts always sum
// to pool.
func (sh Shares) Split(pool int64, n int) (Split, error) {
	if pool < 0 || n < 0 {
		return Split{}, fmt.Errorf("%w: negative pool or winner count", lottery.ErrValidation)
	}

	p := decimal.NewFromInt(pool)

	sp := Split{
		PrizePool:       pool,
		FirstPrize:      p.Mul(sh.First).Floor().IntPart(),
		ConsolationPool: p.Mul(sh.Consolation).Floor().IntPart(),
	}

	if n > 0 {
		sp.ConsolationEach = sp.ConsolationPool / int64(n)
		sp.ConsolationPaid = sp.ConsolationEach * int64(n)
	}

	sp.PlatformRetention = pool - sp.FirstPrize - sp.ConsolationPaid

	return sp, nil
}

// Settlement converts the split into the persisted summary row.
func (sp Split) Settlement(roundID string) lottery.Settlement {
	return lottery.Settlement{
		RoundID:           roundID,
		PrizePool:         sp.PrizePool,
		FirstPrize:        sp.FirstPrize,
		ConsolationPool:   sp.ConsolationPool,
		ConsolationPaid:   sp.ConsolationPaid,
		PlatformRetention: sp.PlatformRetention,
	}
}
