package mint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mint-dashboard/logger"
	"mint-dashboard/metrics"
	"mint-dashboard/models"
	"mint-dashboard/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDecimals = 18

	// bound on the refresh that follows a claim, which runs detached from the caller
	postClaimRefreshTimeout = 30 * time.Second
)

type Config struct {
	Address  common.Address
	Gateway  Gateway
	Journal  repository.ActivityRepositoryInterface // optional
	Clock    clockwork.Clock
	Decimals int
}

func (cfg *Config) Validate() error {
	if cfg.Gateway == nil {
		return errors.New("gateway is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Decimals <= 0 {
		cfg.Decimals = defaultDecimals
	}
	return nil
}

// Synchronizer mirrors one address' mint state and the global rank, and
// mediates the two claims. The lock is never held across gateway calls.
type Synchronizer struct {
	cfg Config

	mu       sync.RWMutex
	state    *models.GlobalState // nil until the first successful refresh
	pending  bool
	lastTick models.MintState
	seq      uint64 // last refresh sequence handed out
	applied  uint64 // reads started at or before this sequence are stale

	journalMu sync.Mutex
	closed    bool
}

func NewSynchronizer(cfg Config) (*Synchronizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Synchronizer{cfg: cfg, lastTick: models.StateNoMint}, nil
}

// Address returns the account this synchronizer mirrors.
func (s *Synchronizer) Address() common.Address {
	return s.cfg.Address
}

// Refresh reads global rank, balance and the mint record concurrently and
// replaces the cached state. On any failure the cache is left as it was.
// A refresh overtaken by a newer one, or by a confirmed claim, returns the
// cached state without storing its own reads.
func (s *Synchronizer) Refresh(ctx context.Context) (models.GlobalState, error) {
	if s.cfg.Address == (common.Address{}) {
		return models.GlobalState{}, ErrNotConnected
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	start := time.Now()
	next, err := s.read(ctx)
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		logger.Logger.Warn("Refresh failed", zap.String("address", s.cfg.Address.Hex()), zap.Error(err))
		return models.GlobalState{}, err
	}

	s.mu.Lock()
	if seq <= s.applied {
		var cached models.GlobalState
		if s.state != nil {
			cached = *s.state
		}
		s.mu.Unlock()
		metrics.RefreshTotal.WithLabelValues("superseded").Inc()
		logger.Logger.Debug("Discarding refresh overtaken by a newer one",
			zap.String("address", s.cfg.Address.Hex()), zap.Uint64("seq", seq))
		return cached, nil
	}
	if s.state != nil && next.GlobalRank.Cmp(s.state.GlobalRank) < 0 {
		cached := s.state.GlobalRank.String()
		s.mu.Unlock()
		metrics.RefreshTotal.WithLabelValues("inconsistent").Inc()
		logger.Logger.Warn("Global rank went backwards, keeping cached state",
			zap.String("cached", cached), zap.String("read", next.GlobalRank.String()))
		return models.GlobalState{}, &ReadError{
			Query: "globalRank",
			Err:   fmt.Errorf("%w: cached %s, read %s", ErrRankRegressed, cached, next.GlobalRank),
		}
	}
	s.state = &next
	s.applied = seq
	s.mu.Unlock()

	metrics.RefreshTotal.WithLabelValues("ok").Inc()
	if f, _ := next.GlobalRank.Float64(); f > 0 {
		metrics.GlobalRank.Set(f)
	}
	logger.Logger.Debug("Refreshed mint state",
		zap.String("address", s.cfg.Address.Hex()),
		zap.String("global_rank", next.GlobalRank.String()),
		zap.Bool("minting", next.Mint != nil))
	return next, nil
}

func (s *Synchronizer) read(ctx context.Context) (models.GlobalState, error) {
	var next models.GlobalState
	var record *models.MintRecord

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rank, err := s.cfg.Gateway.GlobalRank(gctx)
		if err == nil && rank == nil {
			err = errors.New("empty result")
		}
		if err != nil {
			return &ReadError{Query: "globalRank", Err: err}
		}
		next.GlobalRank = rank
		return nil
	})
	g.Go(func() error {
		balance, err := s.cfg.Gateway.BalanceOf(gctx, s.cfg.Address)
		if err == nil && balance == nil {
			err = errors.New("empty result")
		}
		if err != nil {
			return &ReadError{Query: "balanceOf", Err: err}
		}
		next.Balance = balance
		return nil
	})
	g.Go(func() error {
		m, err := s.cfg.Gateway.UserMints(gctx, s.cfg.Address)
		if err != nil {
			return &ReadError{Query: "userMints", Err: err}
		}
		record = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.GlobalState{}, err
	}

	// rank 0 is the contract's "no mint" sentinel
	if record.Active() {
		m := *record
		next.Mint = &m
	}
	next.SyncedAt = s.cfg.Clock.Now()
	return next, nil
}

// ClaimRank registers a new mint of the given term. It refuses locally when a
// mint is already mirrored or another claim is in flight.
func (s *Synchronizer) ClaimRank(ctx context.Context, term uint64) (*models.Receipt, error) {
	if s.cfg.Address == (common.Address{}) {
		return nil, ErrNotConnected
	}
	if term < 1 {
		return nil, ErrInvalidTerm
	}
	if err := s.ensureSynced(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.isClosed() {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	if s.pending {
		s.mu.Unlock()
		return nil, ErrClaimPending
	}
	if s.state != nil && s.state.Mint != nil {
		s.mu.Unlock()
		return nil, ErrAlreadyMinting
	}
	s.pending = true
	s.mu.Unlock()
	defer s.clearPending()

	return s.submit(ctx, models.ActionClaimRank, term, func(ctx context.Context) (*models.Receipt, error) {
		return s.cfg.Gateway.ClaimRank(ctx, term)
	})
}

// ClaimReward finalizes a matured mint.
func (s *Synchronizer) ClaimReward(ctx context.Context) (*models.Receipt, error) {
	if s.cfg.Address == (common.Address{}) {
		return nil, ErrNotConnected
	}
	if err := s.ensureSynced(ctx); err != nil {
		return nil, err
	}
	now := s.cfg.Clock.Now().Unix()

	s.mu.Lock()
	if s.isClosed() {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	if s.pending {
		s.mu.Unlock()
		return nil, ErrClaimPending
	}
	if s.state == nil || s.state.Mint == nil {
		s.mu.Unlock()
		return nil, ErrNoActiveMint
	}
	if remaining := TimeRemaining(now, s.state.Mint.MaturityTs); remaining > 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s remaining", ErrNotMatured, FormatCountdown(remaining))
	}
	s.pending = true
	s.mu.Unlock()
	defer s.clearPending()

	return s.submit(ctx, models.ActionClaimReward, 0, s.cfg.Gateway.ClaimMintReward)
}

// ensureSynced refreshes once when nothing has been read yet, so the claim
// preconditions are never checked against an empty cache.
func (s *Synchronizer) ensureSynced(ctx context.Context) error {
	s.mu.RLock()
	synced := s.state != nil
	s.mu.RUnlock()
	if synced {
		return nil
	}
	_, err := s.Refresh(ctx)
	return err
}

// submit runs a claim call with journaling; pending stays set until the
// follow-up refresh has landed so the state moves straight out of Pending.
// Once the gateway returns, the follow-up refresh no longer depends on the
// caller's context: the transaction is on chain whether or not anyone waits.
func (s *Synchronizer) submit(ctx context.Context, action models.ActivityAction, term uint64, call func(context.Context) (*models.Receipt, error)) (*models.Receipt, error) {
	log := logger.Logger.With(zap.String("address", s.cfg.Address.Hex()), zap.String("action", string(action)))
	s.record(action, models.ActivitySubmitted, term, "", nil)
	log.Info("Submitting claim", zap.Uint64("term", term))

	receipt, err := call(ctx)
	if errors.Is(err, ErrUnconfirmed) {
		metrics.ClaimTotal.WithLabelValues(string(action), "unconfirmed").Inc()
		s.record(action, models.ActivityUnconfirmed, term, "", err)
		log.Warn("Claim broadcast but not confirmed", zap.Error(err))
		s.refreshAfterClaim(ctx, log)
		return nil, err
	}
	if err != nil {
		metrics.ClaimTotal.WithLabelValues(string(action), "error").Inc()
		s.record(action, models.ActivityFailed, term, "", err)
		log.Error("Claim failed", zap.Error(err))
		return nil, err
	}

	metrics.ClaimTotal.WithLabelValues(string(action), "ok").Inc()
	s.record(action, models.ActivityConfirmed, term, receipt.TxHash.Hex(), nil)
	log.Info("Claim confirmed", zap.String("tx_hash", receipt.TxHash.Hex()), zap.Uint64("block", receipt.BlockNumber))

	// reads that started before the receipt cannot reflect it
	s.mu.Lock()
	s.seq++
	s.applied = s.seq
	s.mu.Unlock()

	s.refreshAfterClaim(ctx, log)
	return receipt, nil
}

func (s *Synchronizer) refreshAfterClaim(ctx context.Context, log *zap.Logger) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postClaimRefreshTimeout)
	defer cancel()
	if _, err := s.Refresh(rctx); err != nil {
		log.Warn("Refresh after claim failed, keeping cached state", zap.Error(err))
	}
}

// Close stops the synchronizer from accepting claims or writing to the
// journal. A claim already in flight finishes without journaling its outcome.
func (s *Synchronizer) Close() {
	s.journalMu.Lock()
	s.closed = true
	s.journalMu.Unlock()
}

func (s *Synchronizer) isClosed() bool {
	s.journalMu.Lock()
	defer s.journalMu.Unlock()
	return s.closed
}

func (s *Synchronizer) record(action models.ActivityAction, status models.ActivityStatus, term uint64, txHash string, cause error) {
	if s.cfg.Journal == nil {
		return
	}
	entry := &models.Activity{
		Address:   s.cfg.Address,
		Action:    action,
		Status:    status,
		Term:      term,
		TxHash:    txHash,
		CreatedAt: s.cfg.Clock.Now(),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	s.journalMu.Lock()
	defer s.journalMu.Unlock()
	if s.closed {
		return
	}
	if err := s.cfg.Journal.Append(entry); err != nil {
		logger.Logger.Warn("Failed to journal claim activity", zap.String("status", string(status)), zap.Error(err))
	}
}

func (s *Synchronizer) clearPending() {
	s.mu.Lock()
	s.pending = false
	s.mu.Unlock()
}

// State returns the current state machine position.
func (s *Synchronizer) State() models.MintState {
	now := s.cfg.Clock.Now().Unix()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked(now)
}

// View derives the presentation state from the cache and the clock.
func (s *Synchronizer) View() models.View {
	now := s.cfg.Clock.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked(now)
}

// Tick recomputes the view for a clock tick and reports maturity once.
func (s *Synchronizer) Tick() models.View {
	now := s.cfg.Clock.Now()
	s.mu.Lock()
	v := s.viewLocked(now)
	prev := s.lastTick
	if v.State != models.StatePending {
		s.lastTick = v.State
	}
	s.mu.Unlock()

	if prev == models.StateMintActive && v.State == models.StateMintMature {
		logger.Logger.Info("Mint matured, reward claimable",
			zap.String("address", s.cfg.Address.Hex()), zap.Int64("maturity_ts", v.Mint.MaturityTs))
	}
	return v
}

func (s *Synchronizer) stateLocked(now int64) models.MintState {
	if s.pending {
		return models.StatePending
	}
	if s.state == nil || s.state.Mint == nil {
		return models.StateNoMint
	}
	if TimeRemaining(now, s.state.Mint.MaturityTs) == 0 {
		return models.StateMintMature
	}
	return models.StateMintActive
}

func (s *Synchronizer) viewLocked(now time.Time) models.View {
	v := models.View{
		Address: s.cfg.Address,
		State:   s.stateLocked(now.Unix()),
		Pending: s.pending,
	}
	if s.state == nil {
		return v
	}

	syncedAt := s.state.SyncedAt
	v.Synced = true
	v.SyncedAt = &syncedAt
	v.GlobalRank = s.state.GlobalRank
	v.Balance = s.state.Balance
	v.BalanceDisplay = FormatUnits(s.state.Balance, s.cfg.Decimals)

	if m := s.state.Mint; m != nil {
		v.Mint = m
		v.TimeRemaining = TimeRemaining(now.Unix(), m.MaturityTs)
		v.Countdown = FormatCountdown(v.TimeRemaining)
		v.IsMature = v.TimeRemaining == 0
		v.MaturesAt = time.Unix(m.MaturityTs, 0).UTC().Format(time.RFC3339)
		v.RewardEstimate = RewardEstimate(s.state.GlobalRank, m)
	}
	return v
}
