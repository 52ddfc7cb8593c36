package strategy

import (
	"fmt"
	"math"

	"brood/internal/genome"
	"brood/internal/market"
)

const (
	momentumVolumeFloor = 100_000.0
	dipVolumeBase       = 500_000.0
	rugMoveFloor        = 50.0
	rugLiquidityCeiling = 20_000.0
	trendScale          = 20.0
	whaleVolumeFactor   = 100.0
)

// EvaluateSkill scores one skill against one observation. Disabled skills and
// checks whose configured divisor is zero contribute no signal.
func EvaluateSkill(skill genome.Skill, obs market.Observation) (float64, string) {
	if !skill.Enabled {
		return 0, ""
	}
	p := skill.Params
	chg := obs.PriceChange24h
	vol := obs.Volume24h
	liq := obs.Liquidity

	switch skill.ID {
	case genome.MomentumRider:
		minMomentum := p["minMomentum"]
		if chg < minMomentum {
			return 0, ""
		}
		strength := math.Min(1, 0.5+(chg-minMomentum)/20)
		signal := p["weight"] * strength
		if p["volumeConfirmation"] > 0.5 && vol < momentumVolumeFloor {
			signal /= 2
			return signal, fmt.Sprintf("momentum %+.1f%% (unconfirmed volume)", chg)
		}
		return signal, fmt.Sprintf("momentum %+.1f%% >= %.1f%%", chg, minMomentum)

	case genome.DipBuyer:
		threshold := -math.Abs(p["dipThreshold"])
		if threshold == 0 || chg > threshold {
			return 0, ""
		}
		if spike := p["volumeSpike"]; spike != 0 && vol/dipVolumeBase < spike {
			return 0, ""
		}
		strength := math.Min(1, 0.5+(threshold-chg)/20)
		return p["weight"] * strength, fmt.Sprintf("dip %+.1f%% <= %.1f%%", chg, threshold)

	case genome.VolumeSurge:
		minVolume := p["minVolume"]
		if minVolume <= 0 {
			return 0, ""
		}
		ratio := vol / minVolume
		mult := p["surgeMultiplier"]
		if ratio < mult {
			return 0, ""
		}
		strength := math.Min(1, 0.5+(ratio-mult)/10)
		return p["weight"] * strength, fmt.Sprintf("volume %.1fx of %.0f", ratio, minVolume)

	case genome.LiquidityGuard:
		minLiquidity := p["minLiquidity"]
		if liq >= minLiquidity {
			return 0, ""
		}
		return p["penaltyWeight"], fmt.Sprintf("liquidity %.0f < %.0f", liq, minLiquidity)

	case genome.RugDetector:
		if math.Abs(chg) <= rugMoveFloor || liq >= rugLiquidityCeiling {
			return 0, ""
		}
		return p["penaltyWeight"], fmt.Sprintf("rug risk: %+.1f%% on %.0f liquidity", chg, liq)

	case genome.TrendFollower:
		trend := math.Abs(chg) / trendScale
		if chg <= 0 || trend < p["minTrend"] {
			return 0, ""
		}
		return p["weight"] * math.Min(1, trend), fmt.Sprintf("uptrend strength %.2f", trend)

	case genome.MeanReversion:
		limit := p["deviationThreshold"] * 10
		if limit <= 0 || math.Abs(chg) <= limit {
			return 0, ""
		}
		strength := math.Min(1, 0.5+(math.Abs(chg)-limit)/20)
		// contrarian: fade the observed move
		if chg > 0 {
			return -p["weight"] * strength, fmt.Sprintf("overextended %+.1f%%, fade", chg)
		}
		return p["weight"] * strength, fmt.Sprintf("oversold %+.1f%%, revert", chg)

	case genome.VolatilityHunter:
		v := math.Abs(chg) / 100
		if v < p["minVolatility"] || v > p["maxVolatility"] {
			return 0, ""
		}
		return p["weight"], fmt.Sprintf("volatility %.2f in band", v)

	case genome.WhaleTracker:
		floor := p["whaleThreshold"] * whaleVolumeFactor
		if floor <= 0 || vol <= floor {
			return 0, ""
		}
		strength := math.Min(1, 0.5+(vol/floor-1)/10)
		return p["weight"] * strength, fmt.Sprintf("whale activity %.0f > %.0f", vol, floor)

	case genome.TimeDecayExit:
		// exit-only skill
		return 0, ""
	}
	return 0, ""
}
