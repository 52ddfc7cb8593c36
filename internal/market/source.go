package market

import (
	"context"
	"errors"
)

var (
	// ErrEmptySnapshot marks a fetch that succeeded but returned no usable rows.
	ErrEmptySnapshot = errors.New("market: empty snapshot")
	// ErrCircuitOpen is returned while the fetch breaker is open.
	ErrCircuitOpen = errors.New("market: circuit open")
)

// Source fetches the current market snapshot from some upstream.
type Source interface {
	Name() string
	FetchSnapshot(ctx context.Context) ([]Observation, error)
}
