// Package baseline maintains each user's rolling per-user averages,
// updated after every session via an exponential moving average per
// spec.md §4.J.
package baseline

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/dawgsrlife/temper-core/pkg/types"
)

// Update folds sessions, in order, into previous one at a time, using an
// EMA whose weight decreases as the user accumulates more trading history:
// alpha = min(0.3, 2/(sessionsCount+1)).
func Update(previous types.UserBaseline, sessions []types.Session) types.UserBaseline {
	current := previous
	for _, s := range sessions {
		current = foldSession(current, s)
	}
	return current
}

func foldSession(b types.UserBaseline, s types.Session) types.UserBaseline {
	alpha := ema(b.SessionsCount)

	b.AvgTradesPerDay = blend(b.AvgTradesPerDay, decimal.NewFromInt(int64(s.TradeCount)), alpha)
	b.AvgDailyPnL = blend(b.AvgDailyPnL, s.TotalPnL, alpha)

	if s.TradeCount > 0 {
		b.AvgPositionSize = blend(b.AvgPositionSize, s.AvgPositionSize, alpha)
		b.WinRate = blend(b.WinRate, s.WinRate, alpha)
	}
	if !s.AvgHoldingTimeMs.IsZero() {
		b.AvgHoldingTimeMs = blend(b.AvgHoldingTimeMs, s.AvgHoldingTimeMs, alpha)
	}
	if !s.AvgWinHoldingMs.IsZero() {
		b.AvgWinHoldingTimeMs = blend(b.AvgWinHoldingTimeMs, s.AvgWinHoldingMs, alpha)
	}
	if !s.AvgLossHoldingMs.IsZero() {
		b.AvgLossHoldingTimeMs = blend(b.AvgLossHoldingTimeMs, s.AvgLossHoldingMs, alpha)
	}
	if s.WinCount > 0 {
		b.AvgWin = blend(b.AvgWin, s.AvgWin, alpha)
	}
	if s.LossCount > 0 {
		b.AvgLoss = blend(b.AvgLoss, s.AvgLoss.Abs(), alpha)
	}

	b.SessionsCount++
	return b
}

func ema(sessionsCount int) decimal.Decimal {
	alpha := 2.0 / (float64(sessionsCount) + 1.0)
	alpha = math.Min(0.3, alpha)
	return decimal.NewFromFloat(alpha)
}

func blend(old, next, alpha decimal.Decimal) decimal.Decimal {
	return old.Mul(decimal.NewFromInt(1).Sub(alpha)).Add(next.Mul(alpha))
}
