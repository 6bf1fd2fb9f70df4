package room

import (
	"context"
	"log"
	"sync"
	"time"
)

// TokenSweeper is the slice of the auth service the sweeper needs.
type TokenSweeper interface {
	SweepExpired(now time.Time) int
}

// Sweeper periodically removes inactive rooms and expired tokens.
// ARCHITECTURAL DISCOVERY: Expiry is a first-class scheduled task, not an
// afterthought - it takes the same locks as foreground handlers through the
// store's own methods
type Sweeper struct {
	store    *Store
	tokens   TokenSweeper
	interval time.Duration
	timeout  time.Duration

	shutdownChannel chan struct{}
	running         bool
	mu              sync.Mutex
}

// NewSweeper creates a sweeper; tokens may be nil when no token service is
// wired.
func NewSweeper(store *Store, tokens TokenSweeper, interval, timeout time.Duration) *Sweeper {
	return &Sweeper{
		store:           store,
		tokens:          tokens,
		interval:        interval,
		timeout:         timeout,
		shutdownChannel: make(chan struct{}),
	}
}

// Start begins the sweep loop in its own goroutine. A stopped sweeper can be
// started again; each run gets a fresh shutdown channel.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.shutdownChannel = make(chan struct{})
	shutdown := s.shutdownChannel
	s.mu.Unlock()

	log.Printf("Starting expiry sweeper: interval=%v timeout=%v", s.interval, s.timeout)
	go s.run(ctx, shutdown)
}

// Stop signals the sweep loop to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false

	// TECHNICAL DISCOVERY: Safe channel close using select to prevent panic
	select {
	case <-s.shutdownChannel:
	default:
		close(s.shutdownChannel)
	}
}

func (s *Sweeper) run(ctx context.Context, shutdown <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer log.Println("Expiry sweeper stopped")

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(time.Now())
		case <-shutdown:
			return
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce runs a single sweep pass. Exposed so tests and the run loop
// share one code path.
func (s *Sweeper) SweepOnce(now time.Time) {
	deleted := s.store.SweepInactive(now, s.timeout)
	for _, code := range deleted {
		log.Printf("Swept inactive room: code=%s", code)
	}

	if s.tokens != nil {
		if n := s.tokens.SweepExpired(now); n > 0 {
			log.Printf("Swept %d expired tokens", n)
		}
	}
}
