package market

import (
	"context"
	"sync"
)

// StaticSource replays fixed frames, one per fetch, then keeps returning the
// final frame. Used for offline runs and tests.
type StaticSource struct {
	mu     sync.Mutex
	frames [][]Observation
	next   int
	err    error
}

func NewStaticSource(frames ...[]Observation) *StaticSource {
	return &StaticSource{frames: frames}
}

func (s *StaticSource) Name() string { return "static" }

// FailWith makes every subsequent fetch return err (nil restores frames).
func (s *StaticSource) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *StaticSource) FetchSnapshot(ctx context.Context) ([]Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if len(s.frames) == 0 {
		return nil, nil
	}
	idx := s.next
	if idx >= len(s.frames) {
		idx = len(s.frames) - 1
	} else {
		s.next++
	}
	return append([]Observation(nil), s.frames[idx]...), nil
}
