package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"brood/internal/logger"
	"brood/internal/pkg/circuit"
)

type SnapshotterOptions struct {
	Timeout          time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Snapshotter wraps a Source and always hands out a snapshot: the fresh one
// when the fetch works, otherwise the last good one (possibly empty).
type Snapshotter struct {
	source  Source
	breaker *circuit.Breaker
	timeout time.Duration

	mu       sync.RWMutex
	last     []Observation
	lastAt   time.Time
	lastErr  error
	fetches  int
	failures int
}

func NewSnapshotter(source Source, opts SnapshotterOptions) (*Snapshotter, error) {
	if source == nil {
		return nil, fmt.Errorf("market source is required")
	}
	if opts.BreakerThreshold <= 0 {
		opts.BreakerThreshold = 3
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = time.Minute
	}
	return &Snapshotter{
		source:  source,
		breaker: circuit.New("market:"+source.Name(), opts.BreakerThreshold, opts.BreakerCooldown),
		timeout: opts.Timeout,
	}, nil
}

// Breaker exposes the fetch breaker; tests use it to inject a clock.
func (s *Snapshotter) Breaker() *circuit.Breaker {
	return s.breaker
}

// Refresh fetches a new snapshot. The returned slice is never shared with the
// snapshotter; the error, if any, is informational.
func (s *Snapshotter) Refresh(ctx context.Context) ([]Observation, error) {
	var fresh []Observation
	err := s.breaker.Do(func() error {
		fetchCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		obs, err := s.source.FetchSnapshot(fetchCtx)
		if err != nil {
			return err
		}
		obs = Dedupe(obs)
		if len(obs) == 0 {
			return ErrEmptySnapshot
		}
		fresh = obs
		return nil
	})
	if errors.Is(err, circuit.ErrOpen) {
		err = ErrCircuitOpen
	}

	s.mu.Lock()
	s.fetches++
	if err == nil {
		s.last = fresh
		s.lastAt = time.Now()
	} else {
		s.failures++
	}
	s.lastErr = err
	out := append([]Observation(nil), s.last...)
	s.mu.Unlock()

	if err != nil {
		logger.Warnf("market %s fetch failed, reusing %d cached observations: %v", s.source.Name(), len(out), err)
		return out, err
	}
	logger.Debugf("market %s snapshot: %d tokens", s.source.Name(), len(out))
	return out, nil
}

// Last returns a copy of the last good snapshot and when it was taken.
func (s *Snapshotter) Last() ([]Observation, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Observation(nil), s.last...), s.lastAt
}

type SnapshotterStats struct {
	Source    string    `json:"source"`
	Fetches   int       `json:"fetches"`
	Failures  int       `json:"failures"`
	Tokens    int       `json:"tokens"`
	LastAt    time.Time `json:"lastAt"`
	LastError string    `json:"lastError,omitempty"`
	Breaker   string    `json:"breaker"`
}

func (s *Snapshotter) Stats() SnapshotterStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := SnapshotterStats{
		Source:   s.source.Name(),
		Fetches:  s.fetches,
		Failures: s.failures,
		Tokens:   len(s.last),
		LastAt:   s.lastAt,
		Breaker:  s.breaker.State().String(),
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
