// Package notify fans round lifecycle events out to subscribers. Delivery is best
// effort: events are dropped when the queue is full.
package notify

import (
	"context"
	"time"
)

type EventType string

const (
	RoundClosed     EventType = "ROUND_CLOSED"
	WinnersSelected EventType = "WINNERS_SELECTED"
	PayoutSettled   EventType = "PAYOUT_SETTLED"
	RoundVoided     EventType = "ROUND_VOIDED"
)

type Event struct {
	Type       EventType `json:"type"`
	RoundID    string    `json:"round_id"`
	UserIDs    []string  `json:"user_ids"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier accepts events without blocking.
type Notifier interface {
	Notify(ev Event)
}

// Publisher delivers a single event downstream.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Notify(Event) {}
