package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/fastprodman/lottoengine/internal/lottery"
)

type Config struct {
	Tick  time.Duration
	Batch int

	// Calendar rounds created automatically, one per cadence and period.
	Cadences    []lottery.Cadence
	TicketPrice int64
	Rule        lottery.MatchRule
}

// Validate rejects settings the scheduler cannot run with.
func (c Config) Validate() error {
	if c.Tick <= 0 {
		return fmt.Errorf("%w: tick must be positive, got %s", lottery.ErrValidation, c.Tick)
	}

	if c.Batch < 0 {
		return fmt.Errorf("%w: batch must not be negative, got %d", lottery.ErrValidation, c.Batch)
	}

	if len(c.Cadences) == 0 {
		return nil
	}

	if c.TicketPrice <= 0 {
		return fmt.Errorf("%w: calendar ticket price must be positive, got %d", lottery.ErrValidation, c.TicketPrice)
	}

	return c.Rule.Validate()
}

// ParseCadences reads a comma separated cadence list such as "DAILY,WEEKLY".
// ADHOC rounds are never scheduled.
func ParseCadences(s string) ([]lottery.Cadence, error) {
	var out []lottery.Cadence

	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" {
			continue
		}

		c, err := lottery.ParseCadence(part)
		if err != nil {
			return nil, err
		}

		if c == lottery.CadenceAdHoc {
			return nil, fmt.Errorf("%w: %s rounds are not scheduled", lottery.ErrValidation, c)
		}

		out = append(out, c)
	}

	return out, nil
}
