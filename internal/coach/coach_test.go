package coach_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dawgsrlife/temper-core/internal/bias"
	"github.com/dawgsrlife/temper-core/internal/coach"
	"github.com/dawgsrlife/temper-core/internal/labeler"
	"github.com/dawgsrlife/temper-core/internal/session"
	"github.com/dawgsrlife/temper-core/internal/temper"
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

func buildReport(t *testing.T, raw []types.RawTrade) types.TemperReport {
	t.Helper()
	baseline := types.DefaultUserBaseline("user-1")
	sessions, err := session.Reconstruct("user-1", raw, baseline)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	s := sessions[0]
	scores, tags := bias.Analyze(s, baseline)
	decisions := labeler.Label(s, baseline, tags)
	score := temper.Compute(decisions, scores)

	return types.TemperReport{
		ID:        "report-1",
		Session:   s,
		Biases:    scores,
		Decisions: decisions,
		Score:     score,
		EloBefore: types.DefaultDecisionEloState(),
		EloAfter:  types.DefaultDecisionEloState(),
		EloDelta:  decimal.Zero,
	}
}

func TestBuildOverviewReflectsSessionAndScore(t *testing.T) {
	raw := []types.RawTrade{mkRaw(0, 10, 10), mkRaw(1, 10, -10)}
	report := buildReport(t, raw)
	payload := coach.Build(report)

	if payload.Overview.Date != report.Session.Date {
		t.Errorf("Overview.Date = %s, want %s", payload.Overview.Date, report.Session.Date)
	}
	if payload.Overview.TradeCount != report.Session.TradeCount {
		t.Errorf("Overview.TradeCount = %d, want %d", payload.Overview.TradeCount, report.Session.TradeCount)
	}
	if payload.Overview.TemperScore != report.Score.Value {
		t.Errorf("Overview.TemperScore = %d, want %d", payload.Overview.TemperScore, report.Score.Value)
	}
}

func TestBuildKeyEventsAlwaysIncludesExtremeLabels(t *testing.T) {
	raw := []types.RawTrade{
		mkRaw(0, 10, 10),
		mkRaw(10, 10, 250), // brilliant candidate
	}
	report := buildReport(t, raw)
	payload := coach.Build(report)

	foundBrilliant := false
	for _, e := range payload.KeyEvents {
		if e.Label == types.LabelBrilliant {
			foundBrilliant = true
		}
	}
	if !foundBrilliant {
		t.Error("expected a BRILLIANT trade to appear in KeyEvents")
	}
}

func TestBuildKeyEventsAreSortedByTradeIndex(t *testing.T) {
	raw := []types.RawTrade{mkRaw(0, 10, 500), mkRaw(1, 10, -500), mkRaw(2, 10, 300)}
	report := buildReport(t, raw)
	payload := coach.Build(report)

	for i := 1; i < len(payload.KeyEvents); i++ {
		if payload.KeyEvents[i].TradeIndex < payload.KeyEvents[i-1].TradeIndex {
			t.Errorf("KeyEvents not sorted by TradeIndex at position %d", i)
		}
	}
}

func TestBuildKeyEventsHasNoDuplicateTradeIndices(t *testing.T) {
	raw := []types.RawTrade{mkRaw(0, 10, 900), mkRaw(1, 10, -900), mkRaw(2, 10, 50)}
	report := buildReport(t, raw)
	payload := coach.Build(report)

	seen := make(map[int]bool)
	for _, e := range payload.KeyEvents {
		if seen[e.TradeIndex] {
			t.Errorf("duplicate KeyEvent for trade index %d", e.TradeIndex)
		}
		seen[e.TradeIndex] = true
	}
}

func TestBuildTiltSequencesMatchDetectTiltClusters(t *testing.T) {
	raw := []types.RawTrade{
		mkRaw(0, 200, -10), mkRaw(1, 200, -10), mkRaw(2, 200, -10),
	}
	report := buildReport(t, raw)
	payload := coach.Build(report)

	clusters := bias.DetectTiltClusters(report.Session)
	if len(payload.TiltSequences) != len(clusters) {
		t.Fatalf("len(TiltSequences) = %d, want %d", len(payload.TiltSequences), len(clusters))
	}
	if len(payload.TiltSequences) > 0 {
		seq := payload.TiltSequences[0]
		if seq.StartIndex != clusters[0].StartIndex || seq.EndIndex != clusters[0].EndIndex {
			t.Errorf("TiltSequence bounds = [%d,%d], want [%d,%d]", seq.StartIndex, seq.EndIndex, clusters[0].StartIndex, clusters[0].EndIndex)
		}
	}
}

func TestBuildContainsNoRawTrades(t *testing.T) {
	raw := []types.RawTrade{mkRaw(0, 10, 10), mkRaw(1, 10, -10)}
	report := buildReport(t, raw)
	payload := coach.Build(report)

	// CoachFactsPayload's type alone enforces this: KeyEvents carries only
	// index/symbol/label/pnl/explanation, never a full Trade.
	for _, e := range payload.KeyEvents {
		if e.Symbol == "" {
			t.Error("KeyEvent missing symbol")
		}
	}
}

func TestBuildReplaySummaryMirrorsReplayResult(t *testing.T) {
	raw := []types.RawTrade{mkRaw(0, 10, 10), mkRaw(1, 10, -10)}
	report := buildReport(t, raw)
	report.Replay = types.DisciplinedSessionResult{
		OriginalPnL: decimal.NewFromInt(0), DisciplinedPnL: decimal.NewFromInt(10),
		TradesKept: 1, TradesRemoved: 1, Savings: decimal.NewFromInt(10),
	}
	payload := coach.Build(report)

	if payload.DisciplinedReplay.TradesKept != 1 || payload.DisciplinedReplay.TradesRemoved != 1 {
		t.Errorf("DisciplinedReplay = %+v, want kept=1 removed=1", payload.DisciplinedReplay)
	}
	if !payload.DisciplinedReplay.Savings.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Savings = %s, want 10", payload.DisciplinedReplay.Savings)
	}
}

func TestBuildStreaksFindsBestAndWorstRuns(t *testing.T) {
	decisions := []types.DecisionEvent{
		{EloValue: decimal.NewFromFloat(0.9)},
		{EloValue: decimal.NewFromFloat(0.95)},
		{EloValue: decimal.NewFromFloat(0.1)},
		{EloValue: decimal.NewFromFloat(0.2)},
		{EloValue: decimal.NewFromFloat(0.15)},
	}
	report := types.TemperReport{
		Session:   types.Session{Date: "2026-01-05"},
		Decisions: decisions,
		Score:     types.TemperScore{LabelDistribution: map[types.DecisionLabel]int{}},
		Biases:    types.BiasScores{},
		EloAfter:  types.DefaultDecisionEloState(),
	}
	payload := coach.Build(report)

	if payload.Streaks.BestStreakLength != 2 || payload.Streaks.BestStreakStart != 0 {
		t.Errorf("best streak = len %d start %d, want len 2 start 0", payload.Streaks.BestStreakLength, payload.Streaks.BestStreakStart)
	}
	if payload.Streaks.WorstStreakLength != 3 || payload.Streaks.WorstStreakStart != 2 {
		t.Errorf("worst streak = len %d start %d, want len 3 start 2", payload.Streaks.WorstStreakLength, payload.Streaks.WorstStreakStart)
	}
}
