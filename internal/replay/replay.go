// Package replay implements the disciplined counterfactual replay of
// spec.md §4.F: a deterministic single pass that keeps or skips each trade
// against an explicit rule set, carrying running state forward only from
// the trades it kept.
package replay

import (
	"github.com/shopspring/decimal"

	"github.com/dawgsrlife/temper-core/pkg/types"
)

// Run replays session's trades against rules and returns the counterfactual
// outcome. Checks are evaluated in the documented order; the first matching
// check skips the trade.
func Run(session types.Session, rules types.ReplayRules) types.DisciplinedSessionResult {
	var sessionStartMs int64
	if len(session.Trades) > 0 {
		sessionStartMs = session.Trades[0].TimestampMs
	}

	runningPnl := decimal.Zero
	tradesTaken := 0
	var lastLossTimestampMs *int64

	kept := make([]types.Trade, 0, len(session.Trades))
	removedIDs := make([]string, 0)
	removedReasons := make(map[string]types.ReasonCode)

	for _, t := range session.Trades {
		reason, skip := evaluate(t, rules, runningPnl, tradesTaken, lastLossTimestampMs, sessionStartMs)
		if skip {
			removedIDs = append(removedIDs, t.ID)
			removedReasons[t.ID] = reason
			continue
		}

		kept = append(kept, t)
		runningPnl = runningPnl.Add(t.PnL)
		tradesTaken++
		if t.PnL.LessThanOrEqual(decimal.Zero) {
			ts := t.TimestampMs
			lastLossTimestampMs = &ts
		}
	}

	originalPnl := session.TotalPnL
	disciplinedPnl := decimal.Zero
	for _, t := range kept {
		disciplinedPnl = disciplinedPnl.Add(t.PnL)
	}

	return types.DisciplinedSessionResult{
		OriginalPnL:       originalPnl,
		DisciplinedPnL:    disciplinedPnl,
		TradesKept:        len(kept),
		TradesRemoved:     len(removedIDs),
		RemovedTradeIDs:   removedIDs,
		RemovedReasons:    removedReasons,
		DisciplinedTrades: kept,
		Savings:           disciplinedPnl.Sub(originalPnl),
	}
}

func evaluate(
	t types.Trade,
	rules types.ReplayRules,
	runningPnl decimal.Decimal,
	tradesTaken int,
	lastLossTimestampMs *int64,
	sessionStartMs int64,
) (types.ReasonCode, bool) {
	if runningPnl.LessThanOrEqual(rules.MaxDailyLossAbsolute) {
		return types.ReasonMaxLossBreach, true
	}
	if tradesTaken >= rules.MaxTradesPerDay {
		return types.ReasonOvertradeCluster, true
	}
	if lastLossTimestampMs != nil && t.TimestampMs-*lastLossTimestampMs < rules.RevengeWindowMs {
		return types.ReasonRevengeAfterBigLoss, true
	}
	if t.SizeRelativeToBaseline.GreaterThan(rules.MaxPositionSizeMultiple) {
		return types.ReasonSizeSpikeAfterStreak, true
	}
	if rules.NoEntryAfterTimeMs != nil && t.TimestampMs-sessionStartMs > *rules.NoEntryAfterTimeMs {
		return types.ReasonFOMOLateEntry, true
	}
	return "", false
}
