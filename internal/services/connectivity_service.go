package services

import (
	"context"
	"sync"
	"time"

	"github.com/surveysync/agent/internal/observability"
)

// Prober answers whether the remote backend is reachable right now
type Prober interface {
	Probe(ctx context.Context) bool
}

// ProberFunc adapts a function to the Prober interface
type ProberFunc func(ctx context.Context) bool

func (f ProberFunc) Probe(ctx context.Context) bool {
	return f(ctx)
}

// ConnectivityService watches remote reachability and publishes
// online/offline transitions to registered callbacks
type ConnectivityService struct {
	prober   Prober
	interval time.Duration

	mu       sync.RWMutex
	online   bool
	ticker   *time.Ticker
	stopChan chan struct{}
	onChange []func(online bool)
}

// NewConnectivityService creates a new ConnectivityService
func NewConnectivityService(prober Prober, interval time.Duration) *ConnectivityService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ConnectivityService{
		prober:   prober,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// OnChange registers a callback fired on every online/offline transition.
// Register before Start; callbacks run outside the service lock.
func (s *ConnectivityService) OnChange(fn func(online bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Start begins the background probe loop
func (s *ConnectivityService) Start() {
	s.mu.Lock()
	if s.ticker != nil {
		s.mu.Unlock()
		return // Already started
	}
	s.stopChan = make(chan struct{})
	s.ticker = time.NewTicker(s.interval)
	s.mu.Unlock()

	observability.Infof("Connectivity monitor started (probes every %s)", s.interval)

	go func() {
		// Initial probe so startup state doesn't wait a full interval
		s.CheckNow(context.Background())
		for {
			select {
			case <-s.ticker.C:
				s.CheckNow(context.Background())
			case <-s.stopChan:
				s.mu.Lock()
				s.ticker.Stop()
				s.ticker = nil
				s.mu.Unlock()
				observability.Info("Connectivity monitor stopped")
				return
			}
		}
	}()
}

// Stop stops the probe loop
func (s *ConnectivityService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return // Already stopped
	}
	close(s.stopChan)
}

// IsOnline reports the last observed reachability state
func (s *ConnectivityService) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

// CheckNow runs one probe immediately and returns the resulting state
func (s *ConnectivityService) CheckNow(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	online := s.prober.Probe(probeCtx)
	s.SetOnline(online)
	return online
}

// SetOnline records a reachability state, firing callbacks when it is a
// transition. Exposed so callers can force offline (airplane-mode style)
// without waiting for a probe.
func (s *ConnectivityService) SetOnline(online bool) {
	s.mu.Lock()
	changed := s.online != online
	s.online = online
	callbacks := s.onChange
	s.mu.Unlock()

	if !changed {
		return
	}

	if online {
		observability.Info("Connectivity regained")
	} else {
		observability.Warn("Connectivity lost")
	}

	for _, fn := range callbacks {
		fn(online)
	}
}
