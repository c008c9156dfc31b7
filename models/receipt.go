package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Receipt is the confirmed outcome of a mutating contract call.
type Receipt struct {
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	GasUsed     uint64      `json:"gas_used"`
	Status      uint64      `json:"status"`
}

// ActivityAction names the claim a journal entry belongs to.
type ActivityAction string

const (
	ActionClaimRank   ActivityAction = "claim_rank"
	ActionClaimReward ActivityAction = "claim_reward"
)

// ActivityStatus is the lifecycle step of a claim.
type ActivityStatus string

const (
	ActivitySubmitted   ActivityStatus = "submitted"
	ActivityConfirmed   ActivityStatus = "confirmed"
	ActivityFailed      ActivityStatus = "failed"
	ActivityUnconfirmed ActivityStatus = "unconfirmed"
)

// Activity is one session journal entry
type Activity struct {
	Address   common.Address `json:"address"`
	Action    ActivityAction `json:"action"`
	Status    ActivityStatus `json:"status"`
	Term      uint64         `json:"term,omitempty"`
	TxHash    string         `json:"tx_hash,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
