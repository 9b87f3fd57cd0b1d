package gateway

import (
	"context"
	"errors"
	"sync"
)

var ErrUnknownCharge = errors.New("unknown charge")

// Memory is an in-process gateway for dev runs and tests. Charges are confirmed
// unless scripted otherwise per user.
type Memory struct {
	mu       sync.Mutex
	charges  map[string]ChargeStatus
	amounts  map[string]int64
	refunds  map[string]int64
	outcomes map[string]ChargeStatus
	stalls   map[string]int
	failRef  bool
	charged  int
	refunded int
}

func NewMemory() *Memory {
	return &Memory{
		charges:  make(map[string]ChargeStatus),
		amounts:  make(map[string]int64),
		refunds:  make(map[string]int64),
		outcomes: make(map[string]ChargeStatus),
		stalls:   make(map[string]int),
	}
}

// Script makes every new charge of userID end in status.
func (m *Memory) Script(userID string, status ChargeStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.outcomes[userID] = status
}

// Stall makes the next n new charges of userID execute but never answer: the call
// blocks until its context is done, like a provider whose response is lost.
func (m *Memory) Stall(userID string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stalls[userID] = n
}

// FailRefunds makes Refund return ErrUnavailable while on is true.
func (m *Memory) FailRefunds(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failRef = on
}

// Confirm turns a pending charge into a confirmed one.
func (m *Memory) Confirm(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.charges[key]; !ok {
		return ErrUnknownCharge
	}

	m.charges[key] = StatusConfirmed

	return nil
}

func (m *Memory) Charge(ctx context.Context, key string, amount int64, userID string) (ChargeStatus, error) {
	err := ctx.Err()
	if err != nil {
		return "", err
	}

	st, stalled := m.record(key, amount, userID)
	if stalled {
		<-ctx.Done()
		return "", ctx.Err()
	}

	return st, nil
}

func (m *Memory) record(key string, amount int64, userID string) (ChargeStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.charges[key]; ok {
		return st, false
	}

	st, ok := m.outcomes[userID]
	if !ok {
		st = StatusConfirmed
	}

	m.charges[key] = st
	m.amounts[key] = amount
	m.charged++

	if m.stalls[userID] > 0 {
		m.stalls[userID]--
		return st, true
	}

	return st, false
}

func (m *Memory) Refund(ctx context.Context, key, chargeKey string, amount int64) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failRef {
		return ErrUnavailable
	}

	if _, ok := m.refunds[key]; ok {
		return nil
	}

	if m.charges[chargeKey] != StatusConfirmed || m.amounts[chargeKey] < amount {
		return ErrUnknownCharge
	}

	m.refunds[key] = amount
	m.refunded++

	return nil
}

// Stats returns how many distinct charges and refunds were executed.
func (m *Memory) Stats() (charges, refunds int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.charged, m.refunded
}

// RefundedTotal sums all executed refunds.
func (m *Memory) RefundedTotal() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sum int64
	for _, v := range m.refunds {
		sum += v
	}

	return sum
}
