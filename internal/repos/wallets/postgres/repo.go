package wallets

import (
	"github.com/fastprodman/lottoengine/internal/repos/wallets"
)

var _ wallets.Wallets = (*walletsRepo)(nil)

type walletsRepo struct{}

func New() *walletsRepo {
	return &walletsRepo{}
}
