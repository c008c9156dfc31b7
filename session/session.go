package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"mint-dashboard/logger"
	"mint-dashboard/metrics"
	"mint-dashboard/mint"
	"mint-dashboard/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const defaultTickInterval = time.Second

// Wallet is a gateway that knows which account it signs for.
type Wallet interface {
	mint.Gateway
	Account() common.Address
}

type Config struct {
	Wallet       Wallet
	Journal      repository.ActivityRepositoryInterface // optional
	Clock        clockwork.Clock
	TickInterval time.Duration
	PollInterval time.Duration // 0 disables background refresh
	Decimals     int
}

func (cfg *Config) Validate() error {
	if cfg.Wallet == nil {
		return errors.New("wallet is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.PollInterval < 0 {
		return errors.New("poll interval must not be negative")
	}
	return nil
}

// Session is the lifetime of one connected address: its synchronizer and
// the tasks driving it. It is never shared across addresses.
type Session struct {
	synchronizer *mint.Synchronizer
	connectedAt  time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	ticks    uint64
	lastTick time.Time
}

func (s *Session) Address() common.Address { return s.synchronizer.Address() }

func (s *Session) Synchronizer() *mint.Synchronizer { return s.synchronizer }

func (s *Session) ConnectedAt() time.Time { return s.connectedAt }

// Ticks reports how many clock ticks have run and when the last one fired.
func (s *Session) Ticks() (uint64, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticks, s.lastTick
}

func (s *Session) tickLoop(ctx context.Context, clock clockwork.Clock, interval time.Duration) {
	defer s.wg.Done()
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.synchronizer.Tick()
			s.mu.Lock()
			s.ticks++
			s.lastTick = clock.Now()
			s.mu.Unlock()
		}
	}
}

func (s *Session) pollLoop(ctx context.Context, clock clockwork.Clock, interval time.Duration) {
	defer s.wg.Done()
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			// failures are logged by the synchronizer and leave the cache intact
			_, _ = s.synchronizer.Refresh(ctx)
		}
	}
}

func (s *Session) stop() {
	s.cancel()
	s.wg.Wait()
}

// Manager owns at most one session, for the wallet's account.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	current *Session
}

func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg}, nil
}

// Connect opens a session for the wallet's account, or returns the open one.
// The initial refresh is best effort: a read failure leaves the session
// connected but unsynced.
func (m *Manager) Connect(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.current != nil {
		s := m.current
		m.mu.Unlock()
		return s, nil
	}

	address := m.cfg.Wallet.Account()
	if address == (common.Address{}) {
		m.mu.Unlock()
		return nil, mint.ErrNotConnected
	}

	synchronizer, err := mint.NewSynchronizer(mint.Config{
		Address:  address,
		Gateway:  m.cfg.Wallet,
		Journal:  m.cfg.Journal,
		Clock:    m.cfg.Clock,
		Decimals: m.cfg.Decimals,
	})
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	// entries left behind by a process that exited without disconnecting
	m.purge(address)

	taskCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		synchronizer: synchronizer,
		connectedAt:  m.cfg.Clock.Now(),
		cancel:       cancel,
	}
	s.wg.Add(1)
	go s.tickLoop(taskCtx, m.cfg.Clock, m.cfg.TickInterval)
	if m.cfg.PollInterval > 0 {
		s.wg.Add(1)
		go s.pollLoop(taskCtx, m.cfg.Clock, m.cfg.PollInterval)
	}
	m.current = s
	m.mu.Unlock()

	metrics.SessionsActive.Inc()
	logger.Logger.Info("Session connected",
		zap.String("address", address.Hex()),
		zap.Duration("tick_interval", m.cfg.TickInterval),
		zap.Duration("poll_interval", m.cfg.PollInterval))

	if _, err := synchronizer.Refresh(ctx); err != nil {
		logger.Logger.Warn("Initial refresh failed", zap.String("address", address.Hex()), zap.Error(err))
	}
	return s, nil
}

// Disconnect stops the session's tasks and drops its journal.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()

	if s == nil {
		return mint.ErrNotConnected
	}
	s.stop()
	s.synchronizer.Close()
	metrics.SessionsActive.Dec()

	m.purge(s.Address())
	logger.Logger.Info("Session disconnected", zap.String("address", s.Address().Hex()))
	return nil
}

func (m *Manager) purge(address common.Address) {
	if m.cfg.Journal == nil {
		return
	}
	n, err := m.cfg.Journal.Purge(address)
	if err != nil {
		logger.Logger.Warn("Failed to purge session activity", zap.String("address", address.Hex()), zap.Error(err))
		return
	}
	if n > 0 {
		logger.Logger.Debug("Purged session activity", zap.String("address", address.Hex()), zap.Int("entries", n))
	}
}

// Current returns the open session or ErrNotConnected.
func (m *Manager) Current() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, mint.ErrNotConnected
	}
	return m.current, nil
}

// Close disconnects if a session is open.
func (m *Manager) Close(ctx context.Context) {
	if err := m.Disconnect(ctx); err != nil && !errors.Is(err, mint.ErrNotConnected) {
		logger.Logger.Warn("Close failed", zap.Error(err))
	}
}
