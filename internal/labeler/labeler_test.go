package labeler_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dawgsrlife/temper-core/internal/bias"
	"github.com/dawgsrlife/temper-core/internal/labeler"
	"github.com/dawgsrlife/temper-core/internal/session"
	"github.com/dawgsrlife/temper-core/pkg/types"
)

func mkRaw(minutesOffset int, qty, pnl int64, tags ...string) types.RawTrade {
	base := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	return types.RawTrade{
		Timestamp: base.Add(time.Duration(minutesOffset) * time.Minute),
		Symbol:    "AAPL",
		Side:      types.SideLong,
		Quantity:  decimal.NewFromInt(qty),
		Price:     decimal.NewFromInt(100),
		PnL:       decimal.NewFromInt(pnl),
		Tags:      tags,
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

func TestLabelOrdinaryWinnerIsGood(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1")
	raw := []types.RawTrade{mkRaw(0, 10, 50)}
	s := buildSession(t, raw, baseline)
	_, tags := bias.Analyze(s, baseline)
	events := labeler.Label(s, baseline, tags)

	if events[0].Label != types.LabelGood {
		t.Errorf("Label = %s, want GOOD", events[0].Label)
	}
}

func TestLabelWinWithPlanTagIsExcellent(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1")
	raw := []types.RawTrade{mkRaw(0, 10, 50, "plan")}
	s := buildSession(t, raw, baseline)
	_, tags := bias.Analyze(s, baseline)
	events := labeler.Label(s, baseline, tags)

	if events[0].Label != types.LabelExcellent {
		t.Errorf("Label = %s, want EXCELLENT", events[0].Label)
	}
}

func TestLabelBrilliantWinIsPatientWellSizedAndBig(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1") // AvgWin=100, AvgPositionSize=100
	raw := []types.RawTrade{
		mkRaw(0, 10, 10),
		mkRaw(10, 10, 250), // 2x avgWin, 10min gap, normal size
	}
	s := buildSession(t, raw, baseline)
	_, tags := bias.Analyze(s, baseline)
	events := labeler.Label(s, baseline, tags)

	if events[1].Label != types.LabelBrilliant {
		t.Errorf("Label = %s, want BRILLIANT", events[1].Label)
	}
}

func TestLabelSmallDisciplinedLossIsBook(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1") // AvgLoss=100
	raw := []types.RawTrade{mkRaw(0, 10, -20)}
	s := buildSession(t, raw, baseline)
	_, tags := bias.Analyze(s, baseline)
	events := labeler.Label(s, baseline, tags)

	if events[0].Label != types.LabelBook {
		t.Errorf("Label = %s, want BOOK", events[0].Label)
	}
}

func TestLabelLargeUndisciplinedLossIsForced(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1")
	raw := []types.RawTrade{mkRaw(0, 300, -900)}
	s := buildSession(t, raw, baseline)
	_, tags := bias.Analyze(s, baseline)
	events := labeler.Label(s, baseline, tags)

	if events[0].Label != types.LabelForced {
		t.Errorf("Label = %s, want FORCED", events[0].Label)
	}
}

func TestLabelTiltClusterProducesBlunderOrMegablunder(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1")
	raw := []types.RawTrade{
		mkRaw(0, 200, -10),
		mkRaw(1, 200, -10),
		mkRaw(2, 200, -300), // below -2*avgLoss(100) => megablunder
	}
	s := buildSession(t, raw, baseline)
	_, tags := bias.Analyze(s, baseline)
	events := labeler.Label(s, baseline, tags)

	if events[0].Label != types.LabelBlunder {
		t.Errorf("events[0].Label = %s, want BLUNDER", events[0].Label)
	}
	if events[2].Label != types.LabelMegablunder {
		t.Errorf("events[2].Label = %s, want MEGABLUNDER", events[2].Label)
	}
	for _, e := range events {
		if len(e.Reasons) == 0 || e.Reasons[0] != types.ReasonOvertradeCluster {
			t.Errorf("expected ReasonOvertradeCluster for tilt-cluster trade %d, got %v", e.TradeIndex, e.Reasons)
		}
	}
}

func TestLabelEveryTradeGetsAnEvent(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1")
	raw := []types.RawTrade{mkRaw(0, 10, 10), mkRaw(1, 10, -10), mkRaw(2, 10, 30)}
	s := buildSession(t, raw, baseline)
	_, tags := bias.Analyze(s, baseline)
	events := labeler.Label(s, baseline, tags)

	if len(events) != len(raw) {
		t.Fatalf("len(events) = %d, want %d", len(events), len(raw))
	}
	for i, e := range events {
		if e.TradeIndex != i {
			t.Errorf("events[%d].TradeIndex = %d, want %d", i, e.TradeIndex, i)
		}
	}
}

func TestLabelScoreAndEloValuesAreBounded(t *testing.T) {
	baseline := types.DefaultUserBaseline("user-1")
	raw := []types.RawTrade{mkRaw(0, 10, 10), mkRaw(1, 10, -10)}
	s := buildSession(t, raw, baseline)
	_, tags := bias.Analyze(s, baseline)
	events := labeler.Label(s, baseline, tags)

	for _, e := range events {
		if e.ScoreContribution.LessThan(decimal.Zero) || e.ScoreContribution.GreaterThan(decimal.NewFromInt(10)) {
			t.Errorf("ScoreContribution = %s out of [0,10]", e.ScoreContribution)
		}
		if e.EloValue.LessThan(decimal.Zero) || e.EloValue.GreaterThan(decimal.NewFromInt(1)) {
			t.Errorf("EloValue = %s out of [0,1]", e.EloValue)
		}
	}
}
