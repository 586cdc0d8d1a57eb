// Package temper computes the 0-100 Temper Score: a label-weighted mean of
// trade quality minus a bias penalty, per spec.md §4.E.
package temper

import (
	"github.com/shopspring/decimal"

	"github.com/dawgsrlife/temper-core/pkg/types"
)

// Compute derives the TemperScore from a session's decision events and its
// bias scores.
func Compute(decisions []types.DecisionEvent, biases types.BiasScores) types.TemperScore {
	tradeScoreAvg := decimal.NewFromInt(5)
	if len(decisions) > 0 {
		sum := decimal.Zero
		for _, d := range decisions {
			sum = sum.Add(d.ScoreContribution)
		}
		tradeScoreAvg = sum.Div(decimal.NewFromInt(int64(len(decisions))))
	}

	rawScore := tradeScoreAvg.Mul(decimal.NewFromInt(10))

	biasSum := biases.Overtrading.
		Add(biases.LossAversion).
		Add(biases.RevengeTrading).
		Add(biases.FOMO).
		Add(biases.Greed)
	biasPenalty := biasSum.Div(decimal.NewFromInt(500)).Mul(decimal.NewFromInt(20))
	if biasPenalty.LessThan(decimal.Zero) {
		biasPenalty = decimal.Zero
	}
	if biasPenalty.GreaterThan(decimal.NewFromInt(20)) {
		biasPenalty = decimal.NewFromInt(20)
	}

	value := rawScore.Sub(biasPenalty).Round(0)
	if value.LessThan(decimal.Zero) {
		value = decimal.Zero
	}
	if value.GreaterThan(decimal.NewFromInt(100)) {
		value = decimal.NewFromInt(100)
	}

	distribution := make(map[types.DecisionLabel]int, len(types.AllTradeLabels))
	for _, label := range types.AllTradeLabels {
		distribution[label] = 0
	}
	for _, d := range decisions {
		distribution[d.Label]++
	}

	return types.TemperScore{
		Value:             int(value.IntPart()),
		RawScore:          rawScore,
		BiasPenalty:       biasPenalty,
		TradeScoreAvg:     tradeScoreAvg,
		LabelDistribution: distribution,
	}
}
