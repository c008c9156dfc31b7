package mint_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"

	"mint-dashboard/models"
)

const secondsPerTerm = 86400

// fakeContract simulates the mint contract for a single caller.
type fakeContract struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	caller  common.Address
	rank    *big.Int
	balance map[common.Address]*big.Int
	mints   map[common.Address]models.MintRecord
	reward  *big.Int

	rankErr    error
	balanceErr error
	mintsErr   error
	claimErr   error

	// blockClaim, when set, holds write calls until it is closed
	blockClaim chan struct{}
	claimStart chan struct{}

	// holdRead, when set, holds the next userMints read after it has taken
	// its snapshot; readTaken is signalled at that point
	holdRead  chan struct{}
	readTaken chan struct{}

	writes atomic.Int32
	txSeq  int64
}

func newFakeContract(clock clockwork.Clock, caller common.Address) *fakeContract {
	return &fakeContract{
		clock:   clock,
		caller:  caller,
		rank:    big.NewInt(0),
		balance: map[common.Address]*big.Int{},
		mints:   map[common.Address]models.MintRecord{},
		reward:  big.NewInt(1_000_000_000_000_000_000),
	}
}

func (f *fakeContract) GlobalRank(ctx context.Context) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rankErr != nil {
		return nil, f.rankErr
	}
	return new(big.Int).Set(f.rank), nil
}

func (f *fakeContract) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	if b, ok := f.balance[owner]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeContract) UserMints(ctx context.Context, owner common.Address) (*models.MintRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	if f.mintsErr != nil {
		f.mu.Unlock()
		return nil, f.mintsErr
	}
	// the contract returns a zero-valued struct, not "absent"
	out := &models.MintRecord{Term: 0, Rank: big.NewInt(0), MaturityTs: 0}
	if m, ok := f.mints[owner]; ok {
		out = &m
	}
	hold, taken := f.holdRead, f.readTaken
	f.holdRead, f.readTaken = nil, nil
	f.mu.Unlock()

	if hold != nil {
		taken <- struct{}{}
		<-hold
	}
	return out, nil
}

func (f *fakeContract) ClaimRank(ctx context.Context, term uint64) (*models.Receipt, error) {
	f.writes.Add(1)
	f.waitIfBlocked()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if _, ok := f.mints[f.caller]; ok {
		return nil, errors.New("execution reverted: mint in progress")
	}
	f.rank.Add(f.rank, big.NewInt(1))
	f.mints[f.caller] = models.MintRecord{
		Term:       term,
		Rank:       new(big.Int).Set(f.rank),
		MaturityTs: f.clock.Now().Unix() + int64(term)*secondsPerTerm,
	}
	return f.receipt(), nil
}

func (f *fakeContract) ClaimMintReward(ctx context.Context) (*models.Receipt, error) {
	f.writes.Add(1)
	f.waitIfBlocked()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	m, ok := f.mints[f.caller]
	if !ok {
		return nil, errors.New("execution reverted: no mint")
	}
	if f.clock.Now().Unix() < m.MaturityTs {
		return nil, errors.New("execution reverted: not matured")
	}
	delete(f.mints, f.caller)
	b, ok := f.balance[f.caller]
	if !ok {
		b = big.NewInt(0)
	}
	f.balance[f.caller] = new(big.Int).Add(b, f.reward)
	return f.receipt(), nil
}

func (f *fakeContract) setMint(m models.MintRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mints[f.caller] = m
}

// holdNextRead parks the next userMints read once it has seen the chain.
func (f *fakeContract) holdNextRead() (taken <-chan struct{}, release chan<- struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, r := make(chan struct{}, 1), make(chan struct{})
	f.holdRead, f.readTaken = r, t
	return t, r
}

func (f *fakeContract) setRank(r int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rank = big.NewInt(r)
}

func (f *fakeContract) waitIfBlocked() {
	if f.claimStart != nil {
		f.claimStart <- struct{}{}
	}
	if f.blockClaim != nil {
		<-f.blockClaim
	}
}

func (f *fakeContract) receipt() *models.Receipt {
	f.txSeq++
	return &models.Receipt{
		TxHash:      common.BigToHash(big.NewInt(f.txSeq)),
		BlockNumber: uint64(100 + f.txSeq),
		GasUsed:     21000,
		Status:      1,
	}
}
