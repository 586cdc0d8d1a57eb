// Package coach projects a frozen TemperReport into the strict
// CoachFactsPayload schema consumed by the downstream coaching narrative
// layer, per spec.md §4.H. The projection contains no raw trades, no PII,
// and no free text beyond the engine-authored explanation strings already
// present on each DecisionEvent.
package coach

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dawgsrlife/temper-core/internal/bias"
	"github.com/dawgsrlife/temper-core/pkg/types"
)

const maxKeyEventsByMagnitude = 5

// Build assembles a CoachFactsPayload from report.
func Build(report types.TemperReport) types.CoachFactsPayload {
	return types.CoachFactsPayload{
		Overview:          buildOverview(report),
		Biases:            report.Biases,
		LabelSummary:      types.LabelSummary(report.Score.LabelDistribution),
		KeyEvents:         buildKeyEvents(report),
		TiltSequences:     buildTiltSequences(report),
		DisciplinedReplay: buildReplaySummary(report.Replay),
		Streaks:           buildStreaks(report.Decisions),
	}
}

func buildOverview(report types.TemperReport) types.CoachFactsOverview {
	return types.CoachFactsOverview{
		Date:        report.Session.Date,
		TradeCount:  report.Session.TradeCount,
		TotalPnL:    report.Session.TotalPnL,
		TemperScore: report.Score.Value,
		EloRating:   report.EloAfter.Rating,
		EloDelta:    report.EloDelta,
	}
}

func buildKeyEvents(report types.TemperReport) []types.KeyEvent {
	byIndex := make(map[int]types.Trade, len(report.Session.Trades))
	for _, t := range report.Session.Trades {
		byIndex[t.Index] = t
	}

	selected := make(map[int]bool)
	events := make([]types.KeyEvent, 0)

	appendEvent := func(d types.DecisionEvent) {
		if selected[d.TradeIndex] {
			return
		}
		selected[d.TradeIndex] = true
		events = append(events, types.KeyEvent{
			TradeIndex:  d.TradeIndex,
			Symbol:      d.Symbol,
			Label:       d.Label,
			PnL:         byIndex[d.TradeIndex].PnL,
			Explanation: d.Explanation,
		})
	}

	for _, d := range report.Decisions {
		if d.Label == types.LabelBrilliant || d.Label == types.LabelBlunder || d.Label == types.LabelMegablunder {
			appendEvent(d)
		}
	}

	byMagnitude := append([]types.DecisionEvent{}, report.Decisions...)
	sort.SliceStable(byMagnitude, func(i, j int) bool {
		return byIndex[byMagnitude[i].TradeIndex].PnL.Abs().GreaterThan(byIndex[byMagnitude[j].TradeIndex].PnL.Abs())
	})
	added := 0
	for _, d := range byMagnitude {
		if added >= maxKeyEventsByMagnitude {
			break
		}
		if selected[d.TradeIndex] {
			continue
		}
		appendEvent(d)
		added++
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].TradeIndex < events[j].TradeIndex })
	return events
}

func buildTiltSequences(report types.TemperReport) []types.TiltSequence {
	clusters := bias.DetectTiltClusters(report.Session)
	sequences := make([]types.TiltSequence, 0, len(clusters))

	for _, c := range clusters {
		aggregatePnl := decimal.Zero
		for i := c.StartIndex; i <= c.EndIndex; i++ {
			aggregatePnl = aggregatePnl.Add(report.Session.Trades[i].PnL)
		}
		durationMs := report.Session.Trades[c.EndIndex].TimestampMs - report.Session.Trades[c.StartIndex].TimestampMs

		sequences = append(sequences, types.TiltSequence{
			StartIndex:          c.StartIndex,
			EndIndex:            c.EndIndex,
			DurationDescription: formatDuration(durationMs),
			AggregatePnL:        aggregatePnl,
			DominantBias:        dominantBiasFor(report.Session, c),
		})
	}
	return sequences
}

// dominantBiasFor heuristically attributes a tilt cluster to the bias most
// likely driving it: when every gap inside the cluster is under 60s it
// points to overtrading, otherwise to revenge trading. Prior losses outside
// the cluster are not examined.
func dominantBiasFor(s types.Session, c bias.TiltCluster) types.BiasType {
	rapidCount := 0
	span := c.EndIndex - c.StartIndex
	if span == 0 {
		span = 1
	}
	for i := c.StartIndex + 1; i <= c.EndIndex; i++ {
		if s.Trades[i].TimeSinceLastTradeMs != nil && *s.Trades[i].TimeSinceLastTradeMs < 60*1000 {
			rapidCount++
		}
	}
	if rapidCount >= span {
		return types.BiasOvertrading
	}
	return types.BiasRevengeTrading
}

func formatDuration(ms int64) string {
	seconds := ms / 1000
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	return fmt.Sprintf("%dm%ds", minutes, seconds%60)
}

func buildReplaySummary(r types.DisciplinedSessionResult) types.DisciplinedReplaySummary {
	return types.DisciplinedReplaySummary{
		OriginalPnL:    r.OriginalPnL,
		DisciplinedPnL: r.DisciplinedPnL,
		Savings:        r.Savings,
		TradesKept:     r.TradesKept,
		TradesRemoved:  r.TradesRemoved,
	}
}

func buildStreaks(decisions []types.DecisionEvent) types.StreakSummary {
	best := decimal.NewFromFloat(0.75)
	worst := decimal.NewFromFloat(0.3)

	var summary types.StreakSummary
	curBestLen, curBestStart := 0, 0
	curWorstLen, curWorstStart := 0, 0

	for i, d := range decisions {
		if d.EloValue.GreaterThanOrEqual(best) {
			if curBestLen == 0 {
				curBestStart = i
			}
			curBestLen++
		} else {
			curBestLen = 0
		}
		if curBestLen > summary.BestStreakLength {
			summary.BestStreakLength = curBestLen
			summary.BestStreakStart = curBestStart
		}

		if d.EloValue.LessThanOrEqual(worst) {
			if curWorstLen == 0 {
				curWorstStart = i
			}
			curWorstLen++
		} else {
			curWorstLen = 0
		}
		if curWorstLen > summary.WorstStreakLength {
			summary.WorstStreakLength = curWorstLen
			summary.WorstStreakStart = curWorstStart
		}
	}
	return summary
}
