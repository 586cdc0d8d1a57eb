package replay_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dawgsrlife/temper-core/internal/replay"
	"github.com/dawgsrlife/temper-core/internal/session"
	"github.com/dawgsrlife/temper-core/pkg/types"
)

func mkRaw(minutesOffset int, qty, pnl int64) types.RawTrade {
	base := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	return types.RawTrade{
		Timestamp: base.Add(time.Duration(minutesOffset) * time.Minute),
		Symbol:    "AAPL",
		Side:      types.SideLong,
		Quantity:  decimal.NewFromInt(qty),
		Price:     decimal.NewFromInt(100),
		PnL:       decimal.NewFromInt(pnl),
	}
}

func buildSession(t *testing.T, raw []types.RawTrade) types.Session {
	t.Helper()
	sessions, err := session.Reconstruct("user-1", raw, types.DefaultUserBaseline("user-1"))
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	return sessions[0]
}

func TestRunKeepsAllTradesWhenNoRuleViolated(t *testing.T) {
	raw := []types.RawTrade{mkRaw(0, 10, 10), mkRaw(60, 10, 20)}
	s := buildSession(t, raw)
	rules := types.DefaultReplayRules()

	result := replay.Run(s, rules)
	if result.TradesKept != 2 || result.TradesRemoved != 0 {
		t.Fatalf("kept=%d removed=%d, want kept=2 removed=0", result.TradesKept, result.TradesRemoved)
	}
	if !result.DisciplinedPnL.Equal(result.OriginalPnL) {
		t.Errorf("DisciplinedPnL = %s, want equal to OriginalPnL %s", result.DisciplinedPnL, result.OriginalPnL)
	}
}

func TestRunSkipsTradeAfterMaxDailyLossBreached(t *testing.T) {
	raw := []types.RawTrade{mkRaw(0, 10, -600), mkRaw(1, 10, 50)}
	s := buildSession(t, raw)
	rules := types.DefaultReplayRules() // MaxDailyLossAbsolute = -500

	result := replay.Run(s, rules)
	if result.TradesRemoved != 1 {
		t.Fatalf("TradesRemoved = %d, want 1", result.TradesRemoved)
	}
	if result.RemovedReasons[s.Trades[1].ID] != types.ReasonMaxLossBreach {
		t.Errorf("removed reason = %s, want MAX_LOSS_BREACH", result.RemovedReasons[s.Trades[1].ID])
	}
}

func TestRunSkipsTradeBeyondMaxTradesPerDay(t *testing.T) {
	rules := types.DefaultReplayRules()
	rules.MaxTradesPerDay = 2

	raw := []types.RawTrade{mkRaw(0, 10, 5), mkRaw(10, 10, 5), mkRaw(20, 10, 5)}
	s := buildSession(t, raw)

	result := replay.Run(s, rules)
	if result.TradesKept != 2 || result.TradesRemoved != 1 {
		t.Fatalf("kept=%d removed=%d, want kept=2 removed=1", result.TradesKept, result.TradesRemoved)
	}
}

func TestRunSkipsTradeWithinRevengeWindowAfterLoss(t *testing.T) {
	rules := types.DefaultReplayRules() // RevengeWindowMs = 15min
	raw := []types.RawTrade{mkRaw(0, 10, -10), mkRaw(5, 10, 20)}
	s := buildSession(t, raw)

	result := replay.Run(s, rules)
	if result.TradesRemoved != 1 {
		t.Fatalf("TradesRemoved = %d, want 1", result.TradesRemoved)
	}
	if result.RemovedReasons[s.Trades[1].ID] != types.ReasonRevengeAfterBigLoss {
		t.Errorf("removed reason = %s, want REVENGE_AFTER_BIG_LOSS", result.RemovedReasons[s.Trades[1].ID])
	}
}

func TestRunSkipsOversizedTrade(t *testing.T) {
	rules := types.DefaultReplayRules() // MaxPositionSizeMultiple = 1.5, AvgPositionSize baseline = 100
	raw := []types.RawTrade{mkRaw(0, 10, 5), mkRaw(30, 200, 5)}
	s := buildSession(t, raw)

	result := replay.Run(s, rules)
	if result.TradesRemoved != 1 {
		t.Fatalf("TradesRemoved = %d, want 1", result.TradesRemoved)
	}
	if result.RemovedReasons[s.Trades[1].ID] != types.ReasonSizeSpikeAfterStreak {
		t.Errorf("removed reason = %s, want SIZE_SPIKE_AFTER_STREAK", result.RemovedReasons[s.Trades[1].ID])
	}
}

func TestRunOnlyCountsKeptTradesTowardRunningPnl(t *testing.T) {
	rules := types.DefaultReplayRules()
	rules.MaxTradesPerDay = 1

	raw := []types.RawTrade{mkRaw(0, 10, 100), mkRaw(10, 10, -900)}
	s := buildSession(t, raw)

	result := replay.Run(s, rules)
	if !result.DisciplinedPnL.Equal(decimal.NewFromInt(100)) {
		t.Errorf("DisciplinedPnL = %s, want 100 (only the kept trade)", result.DisciplinedPnL)
	}
	if !result.OriginalPnL.Equal(decimal.NewFromInt(-800)) {
		t.Errorf("OriginalPnL = %s, want -800", result.OriginalPnL)
	}
}

func TestRunSavingsIsDisciplinedMinusOriginal(t *testing.T) {
	rules := types.DefaultReplayRules()
	rules.MaxTradesPerDay = 1
	raw := []types.RawTrade{mkRaw(0, 10, 100), mkRaw(10, 10, -900)}
	s := buildSession(t, raw)

	result := replay.Run(s, rules)
	want := result.DisciplinedPnL.Sub(result.OriginalPnL)
	if !result.Savings.Equal(want) {
		t.Errorf("Savings = %s, want %s", result.Savings, want)
	}
}

func TestRunDeterministic(t *testing.T) {
	raw := []types.RawTrade{mkRaw(0, 10, -600), mkRaw(1, 10, 50), mkRaw(2, 300, 10)}
	s := buildSession(t, raw)
	rules := types.DefaultReplayRules()

	a := replay.Run(s, rules)
	b := replay.Run(s, rules)
	if a.TradesKept != b.TradesKept || !a.DisciplinedPnL.Equal(b.DisciplinedPnL) {
		t.Error("Run is not deterministic across identical calls")
	}
}
