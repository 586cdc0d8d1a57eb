package bias_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dawgsrlife/temper-core/internal/bias"
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

func buildSession(t *testing.T, raw []types.RawTrade, baseline types.UserBaseline) types.Session {
	t.Helper()
	sessions, err := session.Reconstruct("user-1", raw, baseline)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	return sessions[0]
}

func TestScoresAreBounded0To100(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1")
	raw := []types.RawTrade{
		mkRaw(0, 10, 10), mkRaw(1, 10, -400), mkRaw(2, 30, -50),
		mkRaw(3, 10, 20), mkRaw(4, 10, -10), mkRaw(5, 40, -30),
	}
	s := buildSession(t, raw, baseline)
	scores := bias.Scores(s, baseline)

	for _, v := range []struct {
		name  string
		score decimal.Decimal
	}{
		{"overtrading", scores.Overtrading},
		{"lossAversion", scores.LossAversion},
		{"revengeTrading", scores.RevengeTrading},
		{"fomo", scores.FOMO},
		{"greed", scores.Greed},
		{"aggregate", scores.Aggregate},
	} {
		if v.score.LessThan(decimal.Zero) || v.score.GreaterThan(decimal.NewFromInt(100)) {
			t.Errorf("%s score = %s, want within [0,100]", v.name, v.score)
		}
	}
	if len(scores.Details) != 5 {
		t.Errorf("len(Details) = %d, want 5", len(scores.Details))
	}
}

func TestOvertradingScoresZeroAtBaselineCadence(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1") // AvgTradesPerDay = 5
	raw := []types.RawTrade{
		mkRaw(0, 10, 10), mkRaw(60, 10, 10), mkRaw(120, 10, 10),
		mkRaw(180, 10, 10), mkRaw(240, 10, 10),
	}
	s := buildSession(t, raw, baseline)
	detail := bias.Overtrading(s, baseline)
	if !detail.Score.Equal(decimal.Zero) {
		t.Errorf("Overtrading score = %s, want 0 at ratio=1.0", detail.Score)
	}
}

func TestOvertradingRapidFireBonus(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1")
	raw := []types.RawTrade{
		mkRaw(0, 10, 10), mkRaw(1, 10, 10), mkRaw(2, 10, 10), mkRaw(3, 10, 10),
	}
	s := buildSession(t, raw, baseline)
	detail := bias.Overtrading(s, baseline)

	found := false
	for _, r := range detail.TriggeredRules {
		if r == "OVERTRADING_RAPID_FIRE_BONUS" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected OVERTRADING_RAPID_FIRE_BONUS among rules, got %v", detail.TriggeredRules)
	}
}

func TestRevengeTradingDetectsSizeSpikeAfterBigLoss(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1") // AvgLoss=100, AvgPositionSize=100
	raw := []types.RawTrade{
		mkRaw(0, 10, -500), // big loss, triggers threshold max(400, 200)=400
		mkRaw(1, 300, 20),  // size 3x baseline, within 15min window
	}
	s := buildSession(t, raw, baseline)
	detail := bias.RevengeTrading(s, baseline)
	if detail.Score.LessThanOrEqual(decimal.Zero) {
		t.Errorf("RevengeTrading score = %s, want > 0", detail.Score)
	}
	if len(detail.TriggeredRules) == 0 {
		t.Error("expected at least one triggered rule")
	}
}

func TestRevengeTradingNoEventWhenNoBigLoss(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1")
	raw := []types.RawTrade{
		mkRaw(0, 10, -10), mkRaw(1, 300, 20),
	}
	s := buildSession(t, raw, baseline)
	detail := bias.RevengeTrading(s, baseline)
	if !detail.Score.Equal(decimal.Zero) {
		t.Errorf("RevengeTrading score = %s, want 0 when no qualifying big loss", detail.Score)
	}
}

func TestLossAversionDetectsHoldingAsymmetry(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1")
	// Wins exit quickly (1 min gap), losses held much longer (10 min gap).
	raw := []types.RawTrade{
		mkRaw(0, 10, 10),
		mkRaw(1, 10, 10),
		mkRaw(11, 10, -10),
		mkRaw(21, 10, -10),
	}
	s := buildSession(t, raw, baseline)
	detail := bias.LossAversion(s, baseline)
	if detail.Score.LessThanOrEqual(decimal.Zero) {
		t.Errorf("LossAversion score = %s, want > 0", detail.Score)
	}
}

func TestFOMODetectsLateDirectionChasingEntry(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1") // AvgPositionSize = 100
	raw := []types.RawTrade{
		mkRaw(0, 10, 10),
		{
			Timestamp: time.Date(2026, 1, 5, 9, 30, 10, 0, time.UTC), // 10s gap
			Symbol:    "AAPL", Side: types.SideLong,
			Quantity: decimal.NewFromInt(200), Price: decimal.NewFromInt(100), PnL: decimal.NewFromInt(10),
		},
	}
	s := buildSession(t, raw, baseline)
	detail := bias.FOMO(s, baseline)
	if detail.Score.LessThanOrEqual(decimal.Zero) {
		t.Errorf("FOMO score = %s, want > 0", detail.Score)
	}
}

func TestFOMONoTriggerOnOppositeSide(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1")
	raw := []types.RawTrade{
		mkRaw(0, 10, 10),
		{
			Timestamp: time.Date(2026, 1, 5, 9, 30, 10, 0, time.UTC),
			Symbol:    "AAPL", Side: types.SideShort,
			Quantity: decimal.NewFromInt(200), Price: decimal.NewFromInt(100), PnL: decimal.NewFromInt(10),
		},
	}
	s := buildSession(t, raw, baseline)
	detail := bias.FOMO(s, baseline)
	if !detail.Score.Equal(decimal.Zero) {
		t.Errorf("FOMO score = %s, want 0 when direction flips", detail.Score)
	}
}

func TestGreedDetectsSizeChaseAfterFreshPeak(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1")
	raw := []types.RawTrade{
		mkRaw(0, 10, 50),  // sets a new peak
		mkRaw(1, 300, 10), // oversized entry right after
	}
	s := buildSession(t, raw, baseline)
	detail := bias.Greed(s, baseline)
	if detail.Score.LessThanOrEqual(decimal.Zero) {
		t.Errorf("Greed score = %s, want > 0", detail.Score)
	}
}

func TestBiasScoresDeterministic(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1")
	raw := []types.RawTrade{
		mkRaw(0, 10, 10), mkRaw(1, 10, -400), mkRaw(2, 300, 20),
	}
	s := buildSession(t, raw, baseline)
	a := bias.Scores(s, baseline)
	b := bias.Scores(s, baseline)

	if !a.Aggregate.Equal(b.Aggregate) {
		t.Errorf("Aggregate not deterministic: %s vs %s", a.Aggregate, b.Aggregate)
	}
	if !a.Overtrading.Equal(b.Overtrading) || !a.RevengeTrading.Equal(b.RevengeTrading) {
		t.Error("individual scores not deterministic across identical calls")
	}
}

func TestDetectTiltClustersFindsRunOfThreeOversizedLosers(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1") // AvgPositionSize=100
	raw := []types.RawTrade{
		mkRaw(0, 200, -10),
		mkRaw(1, 200, -10),
		mkRaw(2, 200, -10),
	}
	s := buildSession(t, raw, baseline)
	clusters := bias.DetectTiltClusters(s)
	if len(clusters) != 1 {
		t.Fatalf("len(clusters) = %d, want 1", len(clusters))
	}
	if clusters[0].StartIndex != 0 || clusters[0].EndIndex != 2 {
		t.Errorf("cluster = [%d,%d], want [0,2]", clusters[0].StartIndex, clusters[0].EndIndex)
	}
}

func TestDetectTiltClustersIgnoresShortRuns(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1")
	raw := []types.RawTrade{
		mkRaw(0, 200, -10),
		mkRaw(1, 200, -10),
	}
	s := buildSession(t, raw, baseline)
	clusters := bias.DetectTiltClusters(s)
	if len(clusters) != 0 {
		t.Errorf("len(clusters) = %d, want 0 for a run of only 2", len(clusters))
	}
}

func TestAnalyzeTagsAgreeWithScores(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1")
	raw := []types.RawTrade{
		mkRaw(0, 10, -500), mkRaw(1, 300, 20),
	}
	s := buildSession(t, raw, baseline)
	scores, tags := bias.Analyze(s, baseline)

	if scores.RevengeTrading.GreaterThan(decimal.Zero) && len(tags.Revenge) == 0 {
		t.Error("RevengeTrading score > 0 but no trade tagged as revenge")
	}
}
