package bias

import (
	"github.com/shopspring/decimal"

	"github.com/dawgsrlife/temper-core/pkg/types"
)

// Tags records, per trade index, which biases a trade participates in. The
// Labeler consults these sets (spec.md §4.D: "labels consult bias
// membership") rather than re-deriving bias logic itself.
type Tags struct {
	Overtrading  map[int]bool
	Revenge      map[int]bool
	FOMO         map[int]bool
	LossAversion map[int]bool
	TiltClusters []TiltCluster
}

// TiltCluster is a maximal run of >=3 consecutive losers, each within 5
// minutes of the one before, with sizeRelativeToBaseline > 1.5 — the predicate spec.md §4.D rule 1 and
// the coach-facts tilt-sequence projection both key off of.
type TiltCluster struct {
	StartIndex int
	EndIndex   int
}

// DetectTiltClusters finds the maximal tilt-cluster runs in s using only the
// session's own trade fields — no baseline is needed for this predicate, so
// it can be recomputed later (e.g. by the coach-facts builder) from a
// session alone.
func DetectTiltClusters(s types.Session) []TiltCluster {
	tags := newTags()
	tagTiltClusters(s, &tags)
	return tags.TiltClusters
}

func newTags() Tags {
	return Tags{
		Overtrading:  map[int]bool{},
		Revenge:      map[int]bool{},
		FOMO:         map[int]bool{},
		LossAversion: map[int]bool{},
	}
}

// InCluster reports whether tradeIndex falls within any tilt cluster.
func (t Tags) InCluster(tradeIndex int) (TiltCluster, bool) {
	for _, c := range t.TiltClusters {
		if tradeIndex >= c.StartIndex && tradeIndex <= c.EndIndex {
			return c, true
		}
	}
	return TiltCluster{}, false
}

// Analyze runs the five scorers and derives the per-trade tag membership in
// one coherent pass, so the Labeler and the coach-facts tilt-sequence
// projection see exactly the trades the scores were computed from.
func Analyze(s types.Session, b types.UserBaseline) (types.BiasScores, Tags) {
	scores := Scores(s, b)
	tags := newTags()

	tagOvertrading(s, b, &tags)
	tagRevenge(s, b, &tags)
	tagFOMO(s, &tags)
	tagLossAversion(s, &tags)
	tagTiltClusters(s, &tags)

	return scores, tags
}

// tagOvertrading marks trades beyond the user's normal daily cadence, and
// trades placed less than 120s after the previous trade, as overtrading
// membership — the same signal the Overtrading scorer itself measures.
func tagOvertrading(s types.Session, b types.UserBaseline, tags *Tags) {
	avgPerDay := b.AvgTradesPerDay
	if avgPerDay.LessThan(decimal.NewFromInt(1)) {
		avgPerDay = decimal.NewFromInt(1)
	}
	cutoff, _ := avgPerDay.Float64()
	for _, t := range s.Trades {
		if float64(t.Index) >= cutoff {
			tags.Overtrading[t.Index] = true
		}
		if t.TimeSinceLastTradeMs != nil && *t.TimeSinceLastTradeMs < 120*1000 {
			tags.Overtrading[t.Index] = true
		}
	}
}

// tagRevenge marks the oversized retaliatory trade that follows a big loss
// within the revenge window — the same trades RevengeTrading's scan counts.
func tagRevenge(s types.Session, b types.UserBaseline, tags *Tags) {
	bigLossThreshold := decimal.Max(decimal.NewFromInt(400), b.AvgLoss.Mul(decimal.NewFromInt(2)))
	revengeWindowMs := int64(15 * 60 * 1000)

	for i, t := range s.Trades {
		if !t.PnL.LessThan(zero) || t.PnL.Abs().LessThan(bigLossThreshold) {
			continue
		}
		for j := i + 1; j < len(s.Trades); j++ {
			gapMs := s.Trades[j].TimestampMs - t.TimestampMs
			if gapMs > revengeWindowMs {
				break
			}
			if s.Trades[j].SizeRelativeToBaseline.GreaterThanOrEqual(decimal.NewFromFloat(2.5)) {
				tags.Revenge[s.Trades[j].Index] = true
				break
			}
		}
	}
}

// tagFOMO marks the hasty, oversized, direction-chasing entries.
func tagFOMO(s types.Session, tags *Tags) {
	for i := 1; i < len(s.Trades); i++ {
		prev, cur := s.Trades[i-1], s.Trades[i]
		if cur.TimeSinceLastTradeMs == nil || *cur.TimeSinceLastTradeMs >= 30*1000 {
			continue
		}
		if cur.SizeRelativeToBaseline.LessThanOrEqual(decimal.NewFromFloat(1.5)) {
			continue
		}
		if cur.Side != prev.Side {
			continue
		}
		tags.FOMO[cur.Index] = true
	}
}

// tagLossAversion marks losing trades whose holding-time gap into the next
// trade exceeds the session's average win holding time — held too long
// relative to how quickly winners are typically exited.
func tagLossAversion(s types.Session, tags *Tags) {
	winHolding := s.AvgWinHoldingMs
	if winHolding.LessThanOrEqual(zero) {
		winHolding = decimal.NewFromInt(1)
	}
	for i, t := range s.Trades {
		if !t.PnL.LessThan(zero) {
			continue
		}
		if i+1 >= len(s.Trades) {
			continue
		}
		next := s.Trades[i+1]
		if next.TimeSinceLastTradeMs != nil && decimal.NewFromInt(*next.TimeSinceLastTradeMs).GreaterThan(winHolding) {
			tags.LossAversion[t.Index] = true
		}
	}
}

// tagTiltClusters finds maximal runs of >=3 consecutive losers, each placed
// at most 5 minutes after the previous one, where each loser's size exceeds
// 1.5x baseline. The run's total span is not bounded.
func tagTiltClusters(s types.Session, tags *Tags) {
	trades := s.Trades
	i := 0
	for i < len(trades) {
		if !isTiltCandidate(trades[i]) {
			i++
			continue
		}
		j := i
		for j+1 < len(trades) && isTiltCandidate(trades[j+1]) &&
			trades[j+1].TimeSinceLastTradeMs != nil &&
			*trades[j+1].TimeSinceLastTradeMs <= 5*60*1000 {
			j++
		}
		if j-i+1 >= 3 {
			tags.TiltClusters = append(tags.TiltClusters, TiltCluster{StartIndex: i, EndIndex: j})
		}
		i = j + 1
	}
}

func isTiltCandidate(t types.Trade) bool {
	return t.PnL.LessThan(zero) && t.SizeRelativeToBaseline.GreaterThan(decimal.NewFromFloat(1.5))
}
