// Package elo implements the decision-quality Elo-like rating update of
// spec.md §4.G: an expected-vs-actual performance update against a fixed
// anchor rating, with K-factor decay as a trader accumulates sessions.
package elo

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/dawgsrlife/temper-core/pkg/types"
)

// anchorRating is the fixed reference rating decision quality is measured
// against, independent of the trader's own current rating.
const anchorRating = 1500.0

// kFloor is the minimum K-factor a sufficiently experienced trader decays to.
const kFloor = 16.0

// kBase and kDecayPerSession parameterize K = max(kFloor, kBase -
// sessionsPlayed*kDecayPerSession).
const kBase = 40.0
const kDecayPerSession = 0.8

// Update produces the next Elo state from a session's decision events,
// evaluated against the previous state. date is the session's calendar
// date (YYYY-MM-DD), recorded in the history entry.
func Update(previous types.DecisionEloState, decisions []types.DecisionEvent, date string) types.DecisionEloState {
	ratingFloat, _ := previous.Rating.Float64()

	k := math.Max(kFloor, kBase-float64(previous.SessionsPlayed)*kDecayPerSession)
	expected := 1.0 / (1.0 + math.Pow(10, (anchorRating-ratingFloat)/400.0))

	performance := 0.5
	if len(decisions) > 0 {
		sum := decimal.Zero
		for _, d := range decisions {
			sum = sum.Add(d.EloValue)
		}
		performanceDecimal := sum.Div(decimal.NewFromInt(int64(len(decisions))))
		performance, _ = performanceDecimal.Float64()
	}

	delta := k * (performance - expected)
	newRating := ratingFloat + delta

	next := types.DecisionEloState{
		Rating:                 decimal.NewFromFloat(newRating),
		PeakRating:             decimal.NewFromFloat(math.Max(peakFloat(previous), newRating)),
		SessionsPlayed:         previous.SessionsPlayed + 1,
		KFactor:                decimal.NewFromFloat(k),
		LastSessionDelta:       decimal.NewFromFloat(delta),
		LastSessionPerformance: decimal.NewFromFloat(performance),
		LastSessionExpected:    decimal.NewFromFloat(expected),
		History: append(append([]types.EloHistoryEntry{}, previous.History...), types.EloHistoryEntry{
			Date:   date,
			Rating: decimal.NewFromFloat(newRating),
			Delta:  decimal.NewFromFloat(delta),
		}),
	}
	return next
}

func peakFloat(s types.DecisionEloState) float64 {
	f, _ := s.PeakRating.Float64()
	return f
}
