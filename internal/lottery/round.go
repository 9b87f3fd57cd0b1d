package lottery

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusClosing  Status = "CLOSING"
	StatusClosed   Status = "CLOSED"
	StatusSettling Status = "SETTLING"
	StatusSettled  Status = "SETTLED"
	StatusVoid     Status = "VOID"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusClosing, StatusClosed, StatusSettling, StatusSettled, StatusVoid:
		return true
	default:
		return false
	}
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusSettled || s == StatusVoid
}

// transitions lists every legal edge of the round lifecycle. CLOSING->VOID is only
// taken by the scheduler for rounds that close with no tickets.
var transitions = map[Status][]Status{
	StatusOpen:     {StatusClosing, StatusVoid},
	StatusClosing:  {StatusClosed, StatusVoid},
	StatusClosed:   {StatusSettling},
	StatusSettling: {StatusSettled},
}

// CanTransition reports whether from->to is a legal lifecycle edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

// CheckTransition is CanTransition returning ErrInvalidTransition.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	return nil
}

type Cadence string

const (
	CadenceDaily   Cadence = "DAILY"
	CadenceWeekly  Cadence = "WEEKLY"
	CadenceMonthly Cadence = "MONTHLY"
	CadenceAdHoc   Cadence = "ADHOC"
)

func ParseCadence(s string) (Cadence, error) {
	switch c := Cadence(s); c {
	case CadenceDaily, CadenceWeekly, CadenceMonthly, CadenceAdHoc:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown cadence %q", ErrValidation, s)
	}
}

// Period returns the [open, close) window of the calendar period containing now.
// Weeks start on Monday. All computations are in UTC.
func (c Cadence) Period(now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch c {
	case CadenceDaily:
		return day, day.AddDate(0, 0, 1), nil
	case CadenceWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)

		return start, start.AddDate(0, 0, 7), nil
	case CadenceMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

		return start, start.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: cadence %q has no calendar period", ErrValidation, c)
	}
}

type Round struct {
	ID             string     `db:"id"`
	Cadence        Cadence    `db:"cadence"`
	Status         Status     `db:"status"`
	OpenAt         time.Time  `db:"open_at"`
	CloseAt        time.Time  `db:"close_at"`
	TicketPrice    int64      `db:"ticket_price"`
	PrizePool      int64      `db:"prize_pool"`
	NextNumber     int64      `db:"next_number"`
	NumberDigits   int        `db:"number_digits"`
	MatchPositions int        `db:"match_positions"`
	Seed           *string    `db:"seed"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
	ClosedAt       *time.Time `db:"closed_at"`
	SettledAt      *time.Time `db:"settled_at"`
}

// Rule returns the round's partial-match configuration.
func (r Round) Rule() MatchRule {
	return MatchRule{Digits: r.NumberDigits, MatchPositions: r.MatchPositions}
}

// AcceptsTickets reports whether a purchase may be committed at now.
func (r Round) AcceptsTickets(now time.Time) bool {
	return r.Status == StatusOpen && now.Before(r.CloseAt)
}

// NewRound is the input for registering a round.
type NewRound struct {
	Cadence        Cadence   `validate:"required,oneof=DAILY WEEKLY MONTHLY ADHOC"`
	OpenAt         time.Time `validate:"required"`
	CloseAt        time.Time `validate:"required,gtfield=OpenAt"`
	TicketPrice    int64     `validate:"gt=0"`
	NumberDigits   int       `validate:"min=1,max=18"`
	MatchPositions int       `validate:"min=1,ltefield=NumberDigits"`
}
