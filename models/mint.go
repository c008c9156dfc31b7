package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MintRecord mirrors the contract's userMints(address) entry.
// A zero Rank means the address has no active mint.
type MintRecord struct {
	Term       uint64   `json:"term"`        // mint duration unit chosen at claim time
	Rank       *big.Int `json:"rank"`        // global rank snapshot at claim time
	MaturityTs int64    `json:"maturity_ts"` // unix seconds after which the reward is claimable
}

// Active reports whether the record describes a running mint.
func (m *MintRecord) Active() bool {
	return m != nil && m.Rank != nil && m.Rank.Sign() > 0
}

// GlobalState is the result of one full refresh.
type GlobalState struct {
	GlobalRank *big.Int    `json:"global_rank"`
	Balance    *big.Int    `json:"balance"`
	Mint       *MintRecord `json:"mint"` // nil when no active mint
	SyncedAt   time.Time   `json:"synced_at"`
}

// MintState is the per-address state machine position.
type MintState string

const (
	StateNoMint     MintState = "no_mint"
	StateMintActive MintState = "mint_active"
	StateMintMature MintState = "mint_mature"
	StatePending    MintState = "pending"
)

// View is the derived, presentation-ready state. Never persisted.
type View struct {
	Address        common.Address `json:"address"`
	State          MintState      `json:"state"`
	Pending        bool           `json:"pending"`
	Synced         bool           `json:"synced"`
	SyncedAt       *time.Time     `json:"synced_at,omitempty"`
	GlobalRank     *big.Int       `json:"global_rank,omitempty"`
	Balance        *big.Int       `json:"balance,omitempty"`
	BalanceDisplay string         `json:"balance_display,omitempty"`
	Mint           *MintRecord    `json:"mint"`
	TimeRemaining  int64          `json:"time_remaining"`
	Countdown      string         `json:"countdown,omitempty"`
	IsMature       bool           `json:"is_mature"`
	MaturesAt      string         `json:"matures_at,omitempty"`
	RewardEstimate *big.Int       `json:"reward_estimate,omitempty"`
}
