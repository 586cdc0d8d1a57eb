// Package labeler assigns one chess-style DecisionLabel to every trade in a
// session, evaluating the fixed rule chain of spec.md §4.D in order and
// stopping at the first match.
package labeler

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dawgsrlife/temper-core/internal/bias"
	"github.com/dawgsrlife/temper-core/pkg/types"
)

// scoreContribution and eloValue are the documented per-label weight
// tables (spec.md §4.D's Open Question: exact weights are left to the
// implementer). Ordered by desirability; BRILLIANT earns full marks,
// MEGABLUNDER earns none.
var scoreContribution = map[types.DecisionLabel]decimal.Decimal{
	types.LabelBrilliant:   decimal.NewFromFloat(10.0),
	types.LabelGreat:       decimal.NewFromFloat(9.0),
	types.LabelBest:        decimal.NewFromFloat(8.5),
	types.LabelExcellent:   decimal.NewFromFloat(8.0),
	types.LabelGood:        decimal.NewFromFloat(6.5),
	types.LabelBook:        decimal.NewFromFloat(6.0),
	types.LabelForced:      decimal.NewFromFloat(5.0),
	types.LabelInteresting: decimal.NewFromFloat(5.5),
	types.LabelInaccuracy:  decimal.NewFromFloat(4.0),
	types.LabelMiss:        decimal.NewFromFloat(3.0),
	types.LabelMistake:     decimal.NewFromFloat(2.5),
	types.LabelBlunder:     decimal.NewFromFloat(1.0),
	types.LabelMegablunder: decimal.Zero,
}

var eloValue = map[types.DecisionLabel]decimal.Decimal{
	types.LabelBrilliant:   decimal.NewFromFloat(1.0),
	types.LabelGreat:       decimal.NewFromFloat(0.95),
	types.LabelBest:        decimal.NewFromFloat(0.9),
	types.LabelExcellent:   decimal.NewFromFloat(0.85),
	types.LabelGood:        decimal.NewFromFloat(0.7),
	types.LabelBook:        decimal.NewFromFloat(0.65),
	types.LabelForced:      decimal.NewFromFloat(0.5),
	types.LabelInteresting: decimal.NewFromFloat(0.55),
	types.LabelInaccuracy:  decimal.NewFromFloat(0.35),
	types.LabelMiss:        decimal.NewFromFloat(0.25),
	types.LabelMistake:     decimal.NewFromFloat(0.2),
	types.LabelBlunder:     decimal.NewFromFloat(0.1),
	types.LabelMegablunder: decimal.Zero,
}

// Label assigns a DecisionEvent to every trade in s, using tags computed by
// bias.Analyze to consult bias membership.
func Label(s types.Session, b types.UserBaseline, tags bias.Tags) []types.DecisionEvent {
	events := make([]types.DecisionEvent, 0, len(s.Trades))
	for _, t := range s.Trades {
		events = append(events, labelTrade(t, b, tags))
	}
	return events
}

func labelTrade(t types.Trade, b types.UserBaseline, tags bias.Tags) types.DecisionEvent {
	var label types.DecisionLabel
	var reasons []types.ReasonCode
	var explanation string

	switch {
	case isTiltTrade(t, tags):
		if t.PnL.LessThanOrEqual(b.AvgLoss.Mul(decimal.NewFromInt(-2))) {
			label = types.LabelMegablunder
		} else {
			label = types.LabelBlunder
		}
		reasons = []types.ReasonCode{types.ReasonOvertradeCluster}
		explanation = "part of a tilt cluster of consecutive oversized losers"

	case tags.Revenge[t.Index]:
		if t.PnL.LessThan(decimal.Zero) {
			label = types.LabelBlunder
		} else {
			label = types.LabelMistake
		}
		reasons = []types.ReasonCode{types.ReasonRevengeAfterBigLoss}
		explanation = "oversized entry chasing a prior big loss within the revenge window"

	case tags.Overtrading[t.Index]:
		if t.PnL.LessThan(decimal.Zero) {
			label = types.LabelMistake
		} else {
			label = types.LabelInaccuracy
		}
		reasons = []types.ReasonCode{types.ReasonOvertradeCluster}
		explanation = "trade count or pace exceeded the normal cadence for this trader"

	case tags.FOMO[t.Index]:
		if t.PnL.LessThan(decimal.Zero) {
			label = types.LabelMistake
		} else {
			label = types.LabelInaccuracy
		}
		reasons = []types.ReasonCode{types.ReasonFOMOLateEntry}
		explanation = "rushed, oversized entry chasing the prior trade's direction"

	case tags.LossAversion[t.Index]:
		label = types.LabelMiss
		reasons = []types.ReasonCode{types.ReasonLossHeldTooLong}
		explanation = "losing position held well past the trader's typical winner exit time"

	case isBrilliant(t, b):
		label = types.LabelBrilliant
		reasons = []types.ReasonCode{types.ReasonDisciplinedExit}
		explanation = "large, patient, well-sized winner unconnected to any bias pattern"

	case t.IsWin && hasPlanTag(t):
		label = types.LabelExcellent
		reasons = []types.ReasonCode{types.ReasonFollowedPlan}
		explanation = "winning trade taken against a stated plan or setup"

	case t.IsWin:
		label = types.LabelGood
		reasons = nil
		explanation = "ordinary winning trade"

	case isSmallDisciplinedLoss(t, b):
		label = types.LabelBook
		reasons = []types.ReasonCode{types.ReasonDisciplinedExit}
		explanation = "small, properly sized loss within the trader's normal range"

	default:
		label = types.LabelForced
		reasons = nil
		explanation = "loss outside any detected bias pattern or disciplined-loss range"
	}

	return types.DecisionEvent{
		TradeID:           t.ID,
		TradeIndex:        t.Index,
		Label:             label,
		Symbol:            t.Symbol,
		Reasons:           reasons,
		ScoreContribution: scoreContribution[label],
		EloValue:          eloValue[label],
		Explanation:       fmt.Sprintf("[%s] %s", label, explanation),
	}
}

func isTiltTrade(t types.Trade, tags bias.Tags) bool {
	_, ok := tags.InCluster(t.Index)
	return ok
}

func isBrilliant(t types.Trade, b types.UserBaseline) bool {
	if !t.PnL.GreaterThanOrEqual(b.AvgWin.Mul(decimal.NewFromInt(2))) {
		return false
	}
	if t.TimeSinceLastTradeMs == nil || *t.TimeSinceLastTradeMs < 5*60*1000 {
		return false
	}
	return t.SizeRelativeToBaseline.LessThanOrEqual(decimal.NewFromFloat(1.25))
}

func hasPlanTag(t types.Trade) bool {
	for _, tag := range t.Tags {
		if tag == "plan" || tag == "setup" {
			return true
		}
	}
	return false
}

func isSmallDisciplinedLoss(t types.Trade, b types.UserBaseline) bool {
	if !t.PnL.LessThan(decimal.Zero) {
		return false
	}
	if t.PnL.Abs().GreaterThan(b.AvgLoss) {
		return false
	}
	return t.SizeRelativeToBaseline.LessThanOrEqual(decimal.NewFromFloat(1.25))
}
