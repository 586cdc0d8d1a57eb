// Package session reconstructs day-sessions from a sorted stream of raw
// trades, deriving per-trade running state and session-level aggregates in
// two linear passes. No pass revisits an earlier trade.
package session

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dawgsrlife/temper-core/internal/idgen"
	"github.com/dawgsrlife/temper-core/pkg/errs"
	"github.com/dawgsrlife/temper-core/pkg/types"
)

// sizeEpsilon guards sizeRelativeToBaseline against division by a
// zero-valued baseline average position size.
var sizeEpsilon = decimal.NewFromFloat(0.0000001)

// Reconstruct groups sorted raw trades into chronological day-sessions for
// userID, deriving every per-trade and per-session field documented in
// spec.md §4.B. trades must already be sorted by timestamp ascending (the
// parser guarantees this); Reconstruct does not re-sort across session
// boundaries, only within a session's own slice preserves input order.
func Reconstruct(userID string, trades []types.RawTrade, baseline types.UserBaseline) ([]types.Session, error) {
	if len(trades) == 0 {
		return nil, &errs.EmptyInputError{TotalRows: 0}
	}

	groups := groupByUTCDate(trades)

	sessions := make([]types.Session, 0, len(groups))
	for _, g := range groups {
		s, err := buildSession(userID, g.date, g.trades, baseline)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

type dateGroup struct {
	date   string
	trades []types.RawTrade
}

func groupByUTCDate(trades []types.RawTrade) []dateGroup {
	order := make([]string, 0)
	byDate := make(map[string][]types.RawTrade)

	for _, t := range trades {
		date := t.Timestamp.UTC().Format("2006-01-02")
		if _, ok := byDate[date]; !ok {
			order = append(order, date)
		}
		byDate[date] = append(byDate[date], t)
	}

	// trades arrive already sorted ascending by timestamp, so first-seen
	// order of a date is chronological; sort defensively anyway since the
	// contract only promises sorted input, not sorted-by-caller grouping.
	sort.Strings(order)

	groups := make([]dateGroup, 0, len(order))
	for _, date := range order {
		groups = append(groups, dateGroup{date: date, trades: byDate[date]})
	}
	return groups
}

func buildSession(userID, date string, raw []types.RawTrade, baseline types.UserBaseline) (types.Session, error) {
	sessionID := idgen.SessionID(userID, date)

	avgPositionSizeBaseline := baseline.AvgPositionSize
	if avgPositionSizeBaseline.LessThanOrEqual(decimal.Zero) {
		avgPositionSizeBaseline = sizeEpsilon
	}

	trades := make([]types.Trade, 0, len(raw))

	runningPnl := decimal.Zero
	peak := decimal.Zero
	var lastTimestampMs *int64

	for i, rt := range raw {
		runningPnl = runningPnl.Add(rt.PnL)
		if i == 0 {
			peak = runningPnl
		} else if runningPnl.GreaterThan(peak) {
			peak = runningPnl
		}

		drawdown := runningPnl.Sub(peak)

		tsMs := rt.Timestamp.UnixMilli()
		var sinceLast *int64
		if lastTimestampMs != nil {
			gap := tsMs - *lastTimestampMs
			sinceLast = &gap
		}
		lastTimestampMs = &tsMs

		sizeRel := rt.Quantity.Div(avgPositionSizeBaseline)

		trade := types.Trade{
			RawTrade:               rt,
			Index:                  i,
			TimestampMs:            tsMs,
			RunningPnL:             runningPnl,
			RunningTradeCount:      i + 1,
			PeakPnlAtTrade:         peak,
			DrawdownFromPeak:       drawdown,
			TimeSinceLastTradeMs:   sinceLast,
			SizeRelativeToBaseline: sizeRel,
			IsWin:                  rt.PnL.GreaterThan(decimal.Zero),
		}
		trade.ID = idgen.TradeID(sessionID, i)
		trades = append(trades, trade)
	}

	if err := verifyRunningSums(trades); err != nil {
		return types.Session{}, err
	}

	s := types.Session{
		ID:     sessionID,
		UserID: userID,
		Date:   date,
		Trades: trades,
	}
	computeAggregates(&s)
	return s, nil
}

// verifyRunningSums enforces the §8 running-sum law as a ContractError
// assertion: this can only fail if buildSession's own accumulation above is
// broken, never from bad input (input is already validated by the parser).
func verifyRunningSums(trades []types.Trade) error {
	running := decimal.Zero
	peak := decimal.Zero
	for i, t := range trades {
		running = running.Add(t.PnL)
		if !running.Equal(t.RunningPnL) {
			return &errs.ContractError{Invariant: "runningPnl", Detail: "cumulative sum mismatch"}
		}
		if i == 0 || running.GreaterThan(peak) {
			peak = running
		}
		if !peak.Equal(t.PeakPnlAtTrade) {
			return &errs.ContractError{Invariant: "peakPnlAtTrade", Detail: "non-decreasing peak mismatch"}
		}
	}
	return nil
}

func computeAggregates(s *types.Session) {
	trades := s.Trades
	if len(trades) == 0 {
		return
	}

	var totalWins, totalLosses decimal.Decimal
	var largestWin, largestLoss decimal.Decimal
	var winCount, lossCount int
	var totalQty decimal.Decimal
	var totalGap decimal.Decimal
	var gapCount int
	var totalWinGap, totalLossGap decimal.Decimal
	var winGapCount, lossGapCount int
	symbolSet := make(map[string]bool)

	peak := decimal.Zero
	trough := decimal.Zero
	maxDrawdown := decimal.Zero
	maxRunup := decimal.Zero

	for i, t := range trades {
		if i == 0 {
			peak = t.RunningPnL
			trough = t.RunningPnL
		} else {
			if t.RunningPnL.GreaterThan(peak) {
				peak = t.RunningPnL
			}
			if t.RunningPnL.LessThan(trough) {
				trough = t.RunningPnL
			}
		}
		drawdown := t.RunningPnL.Sub(peak) // <= 0
		runup := t.RunningPnL.Sub(trough)  // >= 0
		if drawdown.LessThan(maxDrawdown) {
			maxDrawdown = drawdown
		}
		if runup.GreaterThan(maxRunup) {
			maxRunup = runup
		}

		if t.PnL.GreaterThan(decimal.Zero) {
			winCount++
			totalWins = totalWins.Add(t.PnL)
			if t.PnL.GreaterThan(largestWin) {
				largestWin = t.PnL
			}
		} else if t.PnL.LessThan(decimal.Zero) {
			lossCount++
			totalLosses = totalLosses.Add(t.PnL.Abs())
			if t.PnL.LessThan(largestLoss) {
				largestLoss = t.PnL
			}
		}

		totalQty = totalQty.Add(t.Quantity)
		symbolSet[t.Symbol] = true

		if t.TimeSinceLastTradeMs != nil {
			gap := decimal.NewFromInt(*t.TimeSinceLastTradeMs)
			totalGap = totalGap.Add(gap)
			gapCount++
			if t.IsWin {
				totalWinGap = totalWinGap.Add(gap)
				winGapCount++
			} else if t.PnL.LessThan(decimal.Zero) {
				totalLossGap = totalLossGap.Add(gap)
				lossGapCount++
			}
		}
	}

	tradeCount := len(trades)
	s.TradeCount = tradeCount
	s.WinCount = winCount
	s.LossCount = lossCount
	s.TotalPnL = trades[tradeCount-1].RunningPnL
	s.MaxDrawdown = maxDrawdown
	s.MaxRunup = maxRunup
	s.PeakPnL = peak

	if tradeCount > 0 {
		s.WinRate = decimal.NewFromInt(int64(winCount)).Div(decimal.NewFromInt(int64(tradeCount)))
		s.AvgPositionSize = totalQty.Div(decimal.NewFromInt(int64(tradeCount)))
	}
	if winCount > 0 {
		s.AvgWin = totalWins.Div(decimal.NewFromInt(int64(winCount)))
		s.LargestWin = largestWin
	}
	if lossCount > 0 {
		s.AvgLoss = totalLosses.Div(decimal.NewFromInt(int64(lossCount))).Neg()
		s.LargestLoss = largestLoss
	}
	if !totalLosses.IsZero() {
		pf := totalWins.Div(totalLosses)
		s.ProfitFactor = &pf
	} else {
		s.ProfitFactor = nil // +Inf sentinel: no losing trades this session
	}
	if gapCount > 0 {
		s.AvgHoldingTimeMs = totalGap.Div(decimal.NewFromInt(int64(gapCount)))
	}
	if winGapCount > 0 {
		s.AvgWinHoldingMs = totalWinGap.Div(decimal.NewFromInt(int64(winGapCount)))
	}
	if lossGapCount > 0 {
		s.AvgLossHoldingMs = totalLossGap.Div(decimal.NewFromInt(int64(lossGapCount)))
	}

	symbols := make([]string, 0, len(symbolSet))
	for sym := range symbolSet {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	s.Symbols = symbols

	s.DurationMs = trades[tradeCount-1].TimestampMs - trades[0].TimestampMs
}
