// Package bias implements the five independent bias scorers of spec.md
// §4.C. Each scorer is a pure function over a Session and a UserBaseline; it
// produces a 0-100 score, an audit trail of metrics, and the documented
// constant thresholds that triggered. The five are composed as a fixed
// slice, never a polymorphic registry, per spec.md §9.
package bias

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dawgsrlife/temper-core/pkg/types"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// clamp bounds x to [lo, hi].
func clamp(x, lo, hi decimal.Decimal) decimal.Decimal {
	if x.LessThan(lo) {
		return lo
	}
	if x.GreaterThan(hi) {
		return hi
	}
	return x
}

// Scores runs all five scorers over session against baseline and assembles
// the weighted aggregate bias score.
func Scores(session types.Session, baseline types.UserBaseline) types.BiasScores {
	overtrading := Overtrading(session, baseline)
	revenge := RevengeTrading(session, baseline)
	lossAversion := LossAversion(session, baseline)
	fomo := FOMO(session, baseline)
	greed := Greed(session, baseline)

	details := map[types.BiasType]types.BiasDetail{
		types.BiasOvertrading:    overtrading,
		types.BiasRevengeTrading: revenge,
		types.BiasLossAversion:   lossAversion,
		types.BiasFOMO:           fomo,
		types.BiasGreed:          greed,
	}

	weighted := overtrading.Score.Mul(decimal.NewFromFloat(0.25)).
		Add(revenge.Score.Mul(decimal.NewFromFloat(0.25))).
		Add(lossAversion.Score.Mul(decimal.NewFromFloat(0.20))).
		Add(fomo.Score.Mul(decimal.NewFromFloat(0.15))).
		Add(greed.Score.Mul(decimal.NewFromFloat(0.15)))
	// Weights already sum to 1; dividing by Σw is a no-op but kept explicit
	// to mirror the documented formula.
	sumWeights := decimal.NewFromFloat(1.0)
	aggregate := weighted.Div(sumWeights).Round(0)

	return types.BiasScores{
		Overtrading:    overtrading.Score,
		RevengeTrading: revenge.Score,
		LossAversion:   lossAversion.Score,
		FOMO:           fomo.Score,
		Greed:          greed.Score,
		Aggregate:      clamp(aggregate, zero, hundred),
		Details:        details,
	}
}

// Overtrading scores trade frequency against the user's baseline cadence,
// with a bonus for rapid-fire consecutive entries.
func Overtrading(s types.Session, b types.UserBaseline) types.BiasDetail {
	avgPerDay := b.AvgTradesPerDay
	if avgPerDay.LessThan(decimal.NewFromInt(1)) {
		avgPerDay = decimal.NewFromInt(1)
	}
	r := decimal.NewFromInt(int64(s.TradeCount)).Div(avgPerDay)

	// 0 at r=1.0, 100 at r=3.0, clamped.
	score := r.Sub(decimal.NewFromInt(1)).Div(decimal.NewFromInt(2)).Mul(hundred)
	score = clamp(score, zero, hundred)

	var rules []string
	if r.GreaterThanOrEqual(decimal.NewFromInt(3)) {
		rules = append(rules, "OVERTRADING_RATIO_MAX")
	} else if r.GreaterThan(decimal.NewFromInt(1)) {
		rules = append(rules, "OVERTRADING_RATIO_SCALED")
	}

	rapidPairs, totalPairs := rapidFirePairs(s.Trades)
	var fraction decimal.Decimal
	if totalPairs > 0 {
		fraction = decimal.NewFromInt(int64(rapidPairs)).Div(decimal.NewFromInt(int64(totalPairs)))
	}
	if fraction.GreaterThan(decimal.NewFromFloat(0.3)) {
		span := decimal.NewFromFloat(0.7) // 1.0 - 0.3
		bonus := fraction.Sub(decimal.NewFromFloat(0.3)).Div(span).Mul(decimal.NewFromInt(25))
		bonus = clamp(bonus, zero, decimal.NewFromInt(25))
		score = clamp(score.Add(bonus), zero, hundred)
		rules = append(rules, "OVERTRADING_RAPID_FIRE_BONUS")
	}

	return types.BiasDetail{
		Type:  types.BiasOvertrading,
		Score: score,
		Metrics: map[string]decimal.Decimal{
			"tradeCount":      decimal.NewFromInt(int64(s.TradeCount)),
			"avgTradesPerDay": avgPerDay,
			"ratio":           r,
			"rapidFraction":   fraction,
		},
		TriggeredRules: rules,
	}
}

func rapidFirePairs(trades []types.Trade) (rapid, total int) {
	threshold := int64(120 * 1000)
	for _, t := range trades {
		if t.TimeSinceLastTradeMs == nil {
			continue
		}
		total++
		if *t.TimeSinceLastTradeMs < threshold {
			rapid++
		}
	}
	return rapid, total
}

// RevengeTrading detects oversized retaliatory entries following a big
// loss, plus rapid back-to-back losses that compound drawdown.
func RevengeTrading(s types.Session, b types.UserBaseline) types.BiasDetail {
	bigLossThreshold := decimal.Max(decimal.NewFromInt(400), b.AvgLoss.Mul(decimal.NewFromInt(2)))
	revengeWindowMs := int64(15 * 60 * 1000)

	var rules []string
	eventCount := 0

	for i, t := range s.Trades {
		if !t.PnL.LessThan(zero) {
			continue
		}
		if t.PnL.Abs().LessThan(bigLossThreshold) {
			continue
		}
		for j := i + 1; j < len(s.Trades); j++ {
			gapMs := s.Trades[j].TimestampMs - t.TimestampMs
			if gapMs > revengeWindowMs {
				break
			}
			if s.Trades[j].SizeRelativeToBaseline.GreaterThanOrEqual(decimal.NewFromFloat(2.5)) {
				eventCount++
				rules = append(rules, fmt.Sprintf("REVENGE_SIZE_SPIKE_AFTER_LOSS_%d", i))
				break
			}
		}
	}

	score := clamp(decimal.NewFromInt(int64(25*eventCount)), zero, hundred)

	// Back-to-back losses within 60s whose combined drawdown exceeds
	// 1.5x avgLoss add a fixed bonus per occurrence.
	comboThreshold := b.AvgLoss.Mul(decimal.NewFromFloat(1.5))
	comboCount := 0
	for i := 1; i < len(s.Trades); i++ {
		prev, cur := s.Trades[i-1], s.Trades[i]
		if prev.PnL.GreaterThanOrEqual(zero) || cur.PnL.GreaterThanOrEqual(zero) {
			continue
		}
		if cur.TimeSinceLastTradeMs == nil || *cur.TimeSinceLastTradeMs >= 60*1000 {
			continue
		}
		combined := prev.PnL.Add(cur.PnL).Abs()
		if combined.GreaterThan(comboThreshold) {
			comboCount++
			rules = append(rules, fmt.Sprintf("REVENGE_BACK_TO_BACK_LOSS_%d", i))
		}
	}
	if comboCount > 0 {
		score = clamp(score.Add(decimal.NewFromInt(int64(10*comboCount))), zero, hundred)
	}

	return types.BiasDetail{
		Type:  types.BiasRevengeTrading,
		Score: score,
		Metrics: map[string]decimal.Decimal{
			"bigLossThreshold": bigLossThreshold,
			"eventCount":       decimal.NewFromInt(int64(eventCount)),
			"comboCount":       decimal.NewFromInt(int64(comboCount)),
		},
		TriggeredRules: rules,
	}
}

// LossAversion detects holding losers longer than winners, and cutting size
// defensively right after a loss.
func LossAversion(s types.Session, b types.UserBaseline) types.BiasDetail {
	_ = b
	winHolding := s.AvgWinHoldingMs
	if winHolding.LessThanOrEqual(zero) {
		winHolding = decimal.NewFromInt(1)
	}
	ratio := s.AvgLossHoldingMs.Div(winHolding)

	// 0 at ratio<=1, 100 at ratio>=4, clamped.
	score := ratio.Sub(decimal.NewFromInt(1)).Div(decimal.NewFromInt(3)).Mul(hundred)
	score = clamp(score, zero, hundred)

	var rules []string
	if ratio.GreaterThan(decimal.NewFromInt(1)) {
		rules = append(rules, "LOSS_HOLDING_TIME_ASYMMETRY")
	}

	sizeCutCount := 0
	for i := 1; i < len(s.Trades); i++ {
		prev, cur := s.Trades[i-1], s.Trades[i]
		if prev.PnL.GreaterThanOrEqual(zero) {
			continue
		}
		threshold := prev.Quantity.Mul(decimal.NewFromFloat(0.7))
		if cur.Quantity.LessThan(threshold) {
			sizeCutCount++
		}
	}
	if sizeCutCount > 0 {
		bonus := decimal.NewFromInt(int64(5 * sizeCutCount))
		score = clamp(score.Add(bonus), zero, hundred)
		rules = append(rules, "LOSS_AVERSION_SIZE_CUT")
	}

	return types.BiasDetail{
		Type:  types.BiasLossAversion,
		Score: score,
		Metrics: map[string]decimal.Decimal{
			"ratio":        ratio,
			"sizeCutCount": decimal.NewFromInt(int64(sizeCutCount)),
		},
		TriggeredRules: rules,
	}
}

// FOMO detects rushed, oversized entries chasing the prior trade's
// direction.
func FOMO(s types.Session, b types.UserBaseline) types.BiasDetail {
	_ = b
	count := 0
	var rules []string
	for i := 1; i < len(s.Trades); i++ {
		prev, cur := s.Trades[i-1], s.Trades[i]
		if cur.TimeSinceLastTradeMs == nil || *cur.TimeSinceLastTradeMs >= 30*1000 {
			continue
		}
		if cur.SizeRelativeToBaseline.LessThanOrEqual(decimal.NewFromFloat(1.5)) {
			continue
		}
		if cur.Side != prev.Side {
			continue
		}
		count++
		rules = append(rules, fmt.Sprintf("FOMO_LATE_ENTRY_%d", i))
	}

	score := clamp(decimal.NewFromInt(int64(20*count)), zero, hundred)

	return types.BiasDetail{
		Type:  types.BiasFOMO,
		Score: score,
		Metrics: map[string]decimal.Decimal{
			"count": decimal.NewFromInt(int64(count)),
		},
		TriggeredRules: rules,
	}
}

// Greed detects oversized entries chasing a freshly set session peak, and
// trading on past a sound session rather than locking in a lopsided runup.
func Greed(s types.Session, b types.UserBaseline) types.BiasDetail {
	score := zero
	var rules []string

	for i := 0; i < len(s.Trades)-1; i++ {
		if !s.Trades[i].RunningPnL.Equal(s.Trades[i].PeakPnlAtTrade) {
			continue
		}
		if i > 0 && s.Trades[i].PeakPnlAtTrade.Equal(s.Trades[i-1].PeakPnlAtTrade) {
			continue // not a *new* peak
		}
		next := s.Trades[i+1]
		if next.SizeRelativeToBaseline.GreaterThan(decimal.NewFromFloat(1.5)) {
			score = score.Add(decimal.NewFromInt(20))
			rules = append(rules, fmt.Sprintf("GREED_SIZE_AFTER_PEAK_%d", i))
		}
	}

	avgPerDay := b.AvgTradesPerDay
	if s.MaxDrawdown.Abs().GreaterThan(zero) &&
		s.MaxRunup.GreaterThanOrEqual(s.MaxDrawdown.Abs().Mul(decimal.NewFromInt(2))) &&
		decimal.NewFromInt(int64(s.TradeCount)).GreaterThan(avgPerDay) {
		score = score.Add(decimal.NewFromInt(15))
		rules = append(rules, "GREED_OVEREXTENDED_RUNUP")
	}

	score = clamp(score, zero, hundred)

	return types.BiasDetail{
		Type:  types.BiasGreed,
		Score: score,
		Metrics: map[string]decimal.Decimal{
			"maxRunup":    s.MaxRunup,
			"maxDrawdown": s.MaxDrawdown,
		},
		TriggeredRules: rules,
	}
}
