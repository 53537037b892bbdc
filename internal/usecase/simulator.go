package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc"

	"github.com/herdsearch/herd-search/internal/domain/geo"
	"github.com/herdsearch/herd-search/internal/domain/user"
	"github.com/herdsearch/herd-search/internal/platform/logging"
)

// DefaultSimTickInterval matches the cadence of a phone reporting GPS.
const DefaultSimTickInterval = 2 * time.Second

const defaultSimPoolSize = 64

// Simulator drives fake position fixes for users who keep simulated GPS
// enabled. Each started user gets a ticker goroutine; the position writes
// themselves run on a shared worker pool so a slow store write on one user
// does not stall another user's ticker.
type Simulator struct {
	locations *LocationService
	userRepo  user.Repository
	interval  time.Duration
	logger    *logging.Logger
	pool      *ants.Pool

	mu       sync.Mutex
	sessions map[string]context.CancelFunc
	wg       conc.WaitGroup
	closed   bool
}

func NewSimulator(
	locations *LocationService,
	userRepo user.Repository,
	interval time.Duration,
	logger *logging.Logger,
) (*Simulator, error) {
	if interval <= 0 {
		interval = DefaultSimTickInterval
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	pool, err := ants.NewPool(defaultSimPoolSize, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("new simulator pool: %w", err)
	}

	return &Simulator{
		locations: locations,
		userRepo:  userRepo,
		interval:  interval,
		logger:    logger,
		pool:      pool,
		sessions:  make(map[string]context.CancelFunc),
	}, nil
}

// Start begins the simulated feed for a user. Starting an already-running
// user is a no-op.
func (s *Simulator) Start(ctx context.Context, userID string) error {
	ctx, span := startSpan(ctx, "Simulator.Start")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	_, exists, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: user=%s", ErrNotFound, userID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("simulator is shut down")
	}
	if _, running := s.sessions[userID]; running {
		return nil
	}

	// The session outlives the request that started it; the ticker runs on
	// its own context until Stop or Shutdown.
	sessionCtx, cancel := context.WithCancel(context.Background())
	s.sessions[userID] = cancel

	s.wg.Go(func() {
		s.run(sessionCtx, userID)
	})

	s.logger.InfoContext(ctx, "simulator started", "userId", userID)

	return nil
}

// Stop ends the simulated feed for a user. Stopping a user that is not
// running is a no-op.
func (s *Simulator) Stop(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, running := s.sessions[userID]; running {
		cancel()
		delete(s.sessions, userID)
	}
}

// Running reports whether a user currently has a simulated feed.
func (s *Simulator) Running(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, running := s.sessions[userID]
	return running
}

// Shutdown stops every session and waits for the ticker goroutines to
// drain. The simulator cannot be restarted afterwards.
func (s *Simulator) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for userID, cancel := range s.sessions {
		cancel()
		delete(s.sessions, userID)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.pool.Release()
}

func (s *Simulator) run(ctx context.Context, userID string) {
	started := time.Now()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(started)
			if err := s.pool.Submit(func() {
				s.tick(ctx, userID, elapsed)
			}); err != nil {
				s.logger.Warn("simulator tick rejected", "userId", userID, "error", err)
			}
		}
	}
}

func (s *Simulator) tick(ctx context.Context, userID string, elapsed time.Duration) {
	if ctx.Err() != nil {
		return
	}

	u, exists, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "simulator read failed", "userId", userID, "error", err)
		return
	}
	if !exists {
		s.Stop(userID)
		return
	}
	if !u.UseGPS {
		// Leave the session ticking so re-enabling GPS resumes the feed
		// without a new start call.
		return
	}

	if _, err := s.locations.UpdatePosition(ctx, userID, geo.SimulatePosition(elapsed)); err != nil {
		s.logger.WarnContext(ctx, "simulator update failed", "userId", userID, "error", err)
	}
}
