package lottery

import "time"

type EntryKind string

const (
	KindTicketCharge      EntryKind = "TICKET_CHARGE"
	KindWinPayout         EntryKind = "WIN_PAYOUT"
	KindConsolationPayout EntryKind = "CONSOLATION_PAYOUT"
	KindPlatformRetention EntryKind = "PLATFORM_RETENTION"
	KindRefund            EntryKind = "REFUND"
)

// System wallets. PlatformWallet collects retention; EscrowWallet holds prize pools
// between purchase and settlement or refund.
const (
	PlatformWallet = "platform"
	EscrowWallet   = "escrow"
)

type Wallet struct {
	UserID    string    `db:"user_id"`
	Balance   int64     `db:"balance"`
	Version   int64     `db:"version"`
	UpdatedAt time.Time `db:"updated_at"`
}

type LedgerEntry struct {
	ID             string    `db:"id"`
	WalletID       string    `db:"wallet_id"`
	Amount         int64     `db:"amount"`
	Kind           EntryKind `db:"kind"`
	RoundID        *string   `db:"round_id"`
	TicketID       *string   `db:"ticket_id"`
	IdempotencyKey string    `db:"idempotency_key"`
	CreatedAt      time.Time `db:"created_at"`
}

type Rank string

const (
	RankFirst       Rank = "FIRST"
	RankConsolation Rank = "CONSOLATION"
)

type WinnerRecord struct {
	RoundID   string    `db:"round_id"`
	Rank      Rank      `db:"rank"`
	TicketID  string    `db:"ticket_id"`
	UserID    string    `db:"user_id"`
	Number    int64     `db:"number"`
	Payout    int64     `db:"payout"`
	SettledAt time.Time `db:"created_at"`
}

// Settlement is the per-round summary written once by the settlement transaction.
type Settlement struct {
	RoundID           string    `db:"round_id"`
	PrizePool         int64     `db:"prize_pool"`
	FirstPrize        int64     `db:"first_prize"`
	ConsolationPool   int64     `db:"consolation_pool"`
	ConsolationPaid   int64     `db:"consolation_paid"`
	PlatformRetention int64     `db:"platform_retention"`
	SettledAt         time.Time `db:"settled_at"`
}
