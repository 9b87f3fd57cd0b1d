package rounds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/gateway"
	"github.com/fastprodman/lottoengine/internal/infra/redis"
	"github.com/fastprodman/lottoengine/internal/lottery"
	"github.com/fastprodman/lottoengine/internal/notify"
	roundrepo "github.com/fastprodman/lottoengine/internal/repos/rounds"
	pgrounds "github.com/fastprodman/lottoengine/internal/repos/rounds/postgres"
	"github.com/fastprodman/lottoengine/internal/repos/tickets"
	pgtickets "github.com/fastprodman/lottoengine/internal/repos/tickets/postgres"
	"github.com/fastprodman/lottoengine/internal/repos/winners"
	pgwinners "github.com/fastprodman/lottoengine/internal/repos/winners/postgres"
	"github.com/fastprodman/lottoengine/internal/services/ledger"
)

// ResultCache keeps final round results. Get reports a miss with
// redis.ErrCacheMiss.
type ResultCache interface {
	Get(ctx context.Context, roundID string) (lottery.RoundResult, error)
	Set(ctx context.Context, res lottery.RoundResult) error
}

// Service administers rounds: registration, audit views, voiding and refunds.
type Service struct {
	db       *sqlx.DB
	rounds   roundrepo.Rounds
	tickets  tickets.Tickets
	winners  winners.Winners
	ledger   *ledger.Service
	gateway  gateway.Gateway
	cache    ResultCache
	notifier notify.Notifier
	validate *validator.Validate
	timeout  time.Duration
	now      func() time.Time
}

func New(
	db *sqlx.DB, gw gateway.Gateway, cache ResultCache, notifier notify.Notifier, gatewayTimeout time.Duration,
) *Service {
	return &Service{
		db:       db,
		rounds:   pgrounds.New(),
		tickets:  pgtickets.New(),
		winners:  pgwinners.New(),
		ledger:   ledger.New(db),
		gateway:  gw,
		cache:    cache,
		notifier: notifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		timeout:  gatewayTimeout,
		now:      time.Now,
	}
}

// Create registers an OPEN round. A second calendar round for the same cadence
// and period fails with roundrepo.ErrCalendarExists.
func (s *Service) Create(ctx context.Context, in lottery.NewRound) (lottery.Round, error) {
	err := s.validate.StructCtx(ctx, in)
	if err != nil {
		return lottery.Round{}, fmt.Errorf("%w: %v", lottery.ErrValidation, err)
	}

	now := s.now().UTC()
	r := lottery.Round{
		ID:             uuid.NewString(),
		Cadence:        in.Cadence,
		Status:         lottery.StatusOpen,
		OpenAt:         in.OpenAt.UTC(),
		CloseAt:        in.CloseAt.UTC(),
		TicketPrice:    in.TicketPrice,
		NumberDigits:   in.NumberDigits,
		MatchPositions: in.MatchPositions,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.rounds.Create(ctx, s.db, r)
	if err != nil {
		return lottery.Round{}, fmt.Errorf("create round: %w", err)
	}

	slog.InfoContext(ctx, "round created",
		"round_id", r.ID,
		"cadence", r.Cadence,
		"close_at", r.CloseAt,
	)

	return r, nil
}

func (s *Service) Get(ctx context.Context, id string) (lottery.Round, error) {
	r, err := s.rounds.Get(ctx, s.db, id)
	if err != nil {
		return lottery.Round{}, fmt.Errorf("get round: %w", err)
	}

	return r, nil
}

// Result is the audit view of a round. Final results are read through the cache.
func (s *Service) Result(ctx context.Context, id string) (lottery.RoundResult, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		if err == nil {
			return cached, nil
		}

		if !errors.Is(err, redis.ErrCacheMiss) {
			slog.WarnContext(ctx, "read cached result", "round_id", id, "error", err)
		}
	}

	round, err := s.rounds.Get(ctx, s.db, id)
	if err != nil {
		return lottery.RoundResult{}, fmt.Errorf("get round: %w", err)
	}

	res := lottery.RoundResult{Round: round, Winners: []lottery.WinnerRecord{}}

	res.Tickets, err = s.tickets.CountByRound(ctx, s.db, id)
	if err != nil {
		return lottery.RoundResult{}, fmt.Errorf("count tickets: %w", err)
	}

	if round.Status == lottery.StatusSettled {
		st, err := s.winners.GetSettlement(ctx, s.db, id)
		if err != nil {
			return lottery.RoundResult{}, fmt.Errorf("get settlement: %w", err)
		}

		res.Settlement = &st

		res.Winners, err = s.winners.ListByRound(ctx, s.db, id)
		if err != nil {
			return lottery.RoundResult{}, fmt.Errorf("list winners: %w", err)
		}

		if s.cache != nil {
			err = s.cache.Set(ctx, res)
			if err != nil {
				slog.WarnContext(ctx, "cache round result", "round_id", id, "error", err)
			}
		}
	}

	return res, nil
}

// List returns up to limit rounds in status: open work soonest deadline first,
// finished rounds latest first.
func (s *Service) List(ctx context.Context, status lottery.Status, limit int) ([]lottery.Round, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown round status %q", lottery.ErrValidation, status)
	}

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	list, err := s.rounds.ListByStatus(ctx, s.db, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}

	return list, nil
}

// RoundTickets lists every ticket of the round in draw order.
func (s *Service) RoundTickets(ctx context.Context, roundID string) ([]lottery.Ticket, error) {
	_, err := s.rounds.Get(ctx, s.db, roundID)
	if err != nil {
		return nil, fmt.Errorf("get round: %w", err)
	}

	list, err := s.tickets.ListByRound(ctx, s.db, roundID)
	if err != nil {
		return nil, fmt.Errorf("list round tickets: %w", err)
	}

	return list, nil
}

// Tickets lists the user's latest tickets across rounds.
func (s *Service) Tickets(ctx context.Context, userID string, limit int) ([]lottery.Ticket, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	list, err := s.tickets.ListByUser(ctx, s.db, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list user tickets: %w", err)
	}

	return list, nil
}
