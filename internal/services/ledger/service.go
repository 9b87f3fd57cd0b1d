package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/lottery"
	ledgerrepo "github.com/fastprodman/lottoengine/internal/repos/ledger"
	pgledger "github.com/fastprodman/lottoengine/internal/repos/ledger/postgres"
	"github.com/fastprodman/lottoengine/internal/repos/wallets"
	pgwallets "github.com/fastprodman/lottoengine/internal/repos/wallets/postgres"
)

// Service is the only writer of wallet balances. Every balance change goes through
// Append so that a wallet always equals the sum of its entries.
type Service struct {
	db      *sqlx.DB
	wallets wallets.Wallets
	entries ledgerrepo.Entries
	now     func() time.Time
}

func New(db *sqlx.DB) *Service {
	return &Service{
		db:      db,
		wallets: pgwallets.New(),
		entries: pgledger.New(),
		now:     time.Now,
	}
}

// Entry is the input of Append. IdempotencyKey must identify the economic event,
// replays with the same key are ignored.
type Entry struct {
	WalletID       string
	Amount         int64
	Kind           lottery.EntryKind
	RoundID        string
	TicketID       string
	IdempotencyKey string
}

// Append runs inside the caller's transaction:
//
// 1) Ensure the wallet row exists.
// 2) Insert the entry (replayed key -> applied=false, nothing else happens).
// 3) Apply the amount to the balance and bump the version.
func (s *Service) Append(ctx context.Context, tx sqlx.ExtContext, e Entry) (bool, error) {
	if e.Amount == 0 {
		return false, fmt.Errorf("%w: zero amount entry %s", lottery.ErrValidation, e.IdempotencyKey)
	}

	if e.WalletID == "" || e.IdempotencyKey == "" {
		return false, fmt.Errorf("%w: wallet and idempotency key are required", lottery.ErrValidation)
	}

	err := s.wallets.Ensure(ctx, tx, e.WalletID)
	if err != nil {
		return false, fmt.Errorf("ensure wallet: %w", err)
	}

	entry := lottery.LedgerEntry{
		ID:             uuid.NewString(),
		WalletID:       e.WalletID,
		Amount:         e.Amount,
		Kind:           e.Kind,
		RoundID:        optional(e.RoundID),
		TicketID:       optional(e.TicketID),
		IdempotencyKey: e.IdempotencyKey,
		CreatedAt:      s.now().UTC(),
	}

	err = s.entries.Insert(ctx, tx, entry)
	if err != nil {
		if errors.Is(err, lottery.ErrDuplicateEntry) {
			return false, nil
		}

		return false, fmt.Errorf("insert entry: %w", err)
	}

	_, err = s.wallets.Apply(ctx, tx, e.WalletID, e.Amount)
	if err != nil {
		return false, fmt.Errorf("apply %s to %s: %w", e.Kind, e.WalletID, err)
	}

	return true, nil
}

// Balance returns the wallet's balance (no locks; suitable for the GET endpoint).
func (s *Service) Balance(ctx context.Context, walletID string) (lottery.Wallet, error) {
	w, err := s.wallets.Get(ctx, s.db, walletID)
	if err != nil {
		return lottery.Wallet{}, fmt.Errorf("get balance: %w", err)
	}

	return w, nil
}

// History lists the wallet's latest entries, newest first.
func (s *Service) History(ctx context.Context, walletID string, limit int) ([]lottery.LedgerEntry, error) {
	list, err := s.entries.ListByWallet(ctx, s.db, walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("wallet history: %w", err)
	}

	return list, nil
}

// Held nets the escrow entries of a round: what escrow still holds for it.
func (s *Service) Held(ctx context.Context, q sqlx.ExtContext, roundID string) (int64, error) {
	held, err := s.entries.SumByRound(ctx, q, roundID, lottery.EscrowWallet)
	if err != nil {
		return 0, fmt.Errorf("escrow held for round: %w", err)
	}

	return held, nil
}

// ErrDrift means a wallet balance differs from the sum of its entries.
var ErrDrift = errors.New("wallet balance drifted from ledger")

// Verify checks balance == sum(entries) under a row lock.
func (s *Service) Verify(ctx context.Context, walletID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	w, err := s.wallets.LockAndGet(ctx, tx, walletID)
	if err != nil {
		return fmt.Errorf("lock wallet: %w", err)
	}

	sum, err := s.entries.SumByWallet(ctx, tx, walletID)
	if err != nil {
		return fmt.Errorf("sum entries: %w", err)
	}

	if sum != w.Balance {
		return fmt.Errorf("%w: %s balance %d, entries %d", ErrDrift, walletID, w.Balance, sum)
	}

	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
