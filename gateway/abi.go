package gateway

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// DefaultContractAddress is the deployed mint contract the dashboard targets.
const DefaultContractAddress = "0x9d0bc975e1cb8895249ba11c03c08c79d158b11d"

// MintContractABI covers the five calls the synchronizer issues.
const MintContractABI = `[
	{"type":"function","name":"claimRank","stateMutability":"nonpayable",
	 "inputs":[{"name":"term","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"claimMintReward","stateMutability":"nonpayable",
	 "inputs":[],"outputs":[]},
	{"type":"function","name":"userMints","stateMutability":"view",
	 "inputs":[{"name":"","type":"address"}],
	 "outputs":[{"name":"term","type":"uint256"},{"name":"maturityTs","type":"uint256"},{"name":"rank","type":"uint256"}]},
	{"type":"function","name":"globalRank","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const (
	methodClaimRank       = "claimRank"
	methodClaimMintReward = "claimMintReward"
	methodUserMints       = "userMints"
	methodGlobalRank      = "globalRank"
	methodBalanceOf       = "balanceOf"
)

// ParseABI parses MintContractABI.
func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(MintContractABI))
}
