package purchases

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fastprodman/lottoengine/internal/lottery"
)

// Purchases records charges the gateway reported as pending.
type Purchases interface {
	// Save is idempotent on the payment key.
	Save(ctx context.Context, q sqlx.ExtContext, p lottery.PendingPurchase) error
	Get(ctx context.Context, q sqlx.ExtContext, key string) (lottery.PendingPurchase, error)
	// Resolve marks the purchase finished; it reports whether this call did it.
	Resolve(ctx context.Context, q sqlx.ExtContext, key string, at time.Time) (bool, error)
}
