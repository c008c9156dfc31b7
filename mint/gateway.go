package mint

import (
	"context"
	"math/big"

	"mint-dashboard/models"

	"github.com/ethereum/go-ethereum/common"
)

// Gateway is the contract surface the synchronizer depends on.
// ClaimRank and ClaimMintReward return once the transaction is included.
type Gateway interface {
	GlobalRank(ctx context.Context) (*big.Int, error)
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	UserMints(ctx context.Context, owner common.Address) (*models.MintRecord, error)
	ClaimRank(ctx context.Context, term uint64) (*models.Receipt, error)
	ClaimMintReward(ctx context.Context) (*models.Receipt, error)
}
