package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromCoins(t *testing.T) {
	assert.Equal(t, int64(350_000), FromCoins(0.0001+0.0001+0.00005+0.0001))
	assert.Equal(t, int64(100_000_000), FromCoins(0.1))
	assert.Equal(t, int64(0), FromCoins(0))
}

func TestToCoinsAndFormat(t *testing.T) {
	assert.InDelta(t, 0.1, ToCoins(100_000_000), 1e-12)
	assert.Equal(t, "0.000350000", Format(350_000))
}

func TestScale(t *testing.T) {
	assert.Equal(t, int64(15_000_000), Scale(100_000_000, 0.15))
	assert.Equal(t, int64(-2_500_000), Scale(10_000_000, -0.25))
}
