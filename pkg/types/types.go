// Package types provides the shared data model for the Temper analysis core:
// raw and enriched trades, sessions, baselines, bias scores, decision events,
// the Temper Score, Elo rating state, disciplined replay results, and the
// frozen report bundle that wraps them all.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is a normalized trade direction. Aliases (BUY/SELL) are resolved to
// LONG/SHORT by the parser before a RawTrade is constructed.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// RawTrade is a single parsed and validated execution row.
type RawTrade struct {
	Timestamp time.Time       `json:"timestamp"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	PnL       decimal.Decimal `json:"pnl"`
	Tags      []string        `json:"tags"`
}

// Trade is a RawTrade enriched with deterministic derived fields computed
// during session reconstruction. All fields below RawTrade's are pure
// functions of the trade's position within its session.
type Trade struct {
	RawTrade

	ID                     string          `json:"id"`
	Index                  int             `json:"index"`
	TimestampMs            int64           `json:"timestampMs"`
	RunningPnL             decimal.Decimal `json:"runningPnl"`
	RunningTradeCount      int             `json:"runningTradeCount"`
	PeakPnlAtTrade         decimal.Decimal `json:"peakPnlAtTrade"`
	DrawdownFromPeak       decimal.Decimal `json:"drawdownFromPeak"`
	TimeSinceLastTradeMs   *int64          `json:"timeSinceLastTradeMs"`
	SizeRelativeToBaseline decimal.Decimal `json:"sizeRelativeToBaseline"`
	IsWin                  bool            `json:"isWin"`
	RMultiple              *decimal.Decimal `json:"rMultiple,omitempty"`
}

// UserBaseline holds rolling per-user averages used as the reference point
// for "relative to normal" comparisons by the bias scorers.
type UserBaseline struct {
	UserID                string          `json:"userId"`
	AvgTradesPerDay       decimal.Decimal `json:"avgTradesPerDay"`
	AvgPositionSize       decimal.Decimal `json:"avgPositionSize"`
	AvgDailyPnL           decimal.Decimal `json:"avgDailyPnl"`
	WinRate               decimal.Decimal `json:"winRate"`
	AvgHoldingTimeMs      decimal.Decimal `json:"avgHoldingTimeMs"`
	AvgWinHoldingTimeMs   decimal.Decimal `json:"avgWinHoldingTimeMs"`
	AvgLossHoldingTimeMs  decimal.Decimal `json:"avgLossHoldingTimeMs"`
	AvgLoss               decimal.Decimal `json:"avgLoss"`
	AvgWin                decimal.Decimal `json:"avgWin"`
	SessionsCount         int             `json:"sessionsCount"`
}

// DefaultUserBaseline returns the documented defaults for a user with no
// trading history.
func DefaultUserBaseline(userID string) UserBaseline {
	return UserBaseline{
		UserID:               userID,
		AvgTradesPerDay:      decimal.NewFromInt(5),
		AvgPositionSize:      decimal.NewFromInt(100),
		AvgDailyPnL:          decimal.Zero,
		WinRate:              decimal.NewFromFloat(0.5),
		AvgHoldingTimeMs:     decimal.NewFromInt(int64(10 * time.Minute / time.Millisecond)),
		AvgWinHoldingTimeMs:  decimal.NewFromInt(int64(10 * time.Minute / time.Millisecond)),
		AvgLossHoldingTimeMs: decimal.NewFromInt(int64(10 * time.Minute / time.Millisecond)),
		AvgLoss:              decimal.NewFromInt(100),
		AvgWin:               decimal.NewFromInt(100),
		SessionsCount:        0,
	}
}

// Session is an ordered group of Trades sharing a calendar date.
type Session struct {
	ID       string  `json:"id"`
	UserID   string  `json:"userId"`
	Date     string  `json:"date"` // YYYY-MM-DD, UTC
	Trades   []Trade `json:"trades"`

	TotalPnL         decimal.Decimal `json:"totalPnl"`
	MaxDrawdown      decimal.Decimal `json:"maxDrawdown"` // <= 0
	MaxRunup         decimal.Decimal `json:"maxRunup"`    // >= 0
	TradeCount       int             `json:"tradeCount"`
	WinCount         int             `json:"winCount"`
	LossCount        int             `json:"lossCount"`
	WinRate          decimal.Decimal `json:"winRate"`
	AvgWin           decimal.Decimal `json:"avgWin"`
	AvgLoss          decimal.Decimal `json:"avgLoss"` // <= 0
	ProfitFactor     *decimal.Decimal `json:"profitFactor"` // nil == +Inf sentinel
	LargestWin       decimal.Decimal `json:"largestWin"`
	LargestLoss      decimal.Decimal `json:"largestLoss"` // <= 0
	AvgHoldingTimeMs decimal.Decimal `json:"avgHoldingTimeMs"`
	AvgWinHoldingMs  decimal.Decimal `json:"avgWinHoldingTimeMs"`
	AvgLossHoldingMs decimal.Decimal `json:"avgLossHoldingTimeMs"`
	PeakPnL          decimal.Decimal `json:"peakPnl"`
	Symbols          []string        `json:"symbols"`
	DurationMs       int64           `json:"durationMs"`
	AvgPositionSize  decimal.Decimal `json:"avgPositionSize"`
}

// BiasType identifies one of the five bias scorers.
type BiasType string

const (
	BiasOvertrading    BiasType = "OVERTRADING"
	BiasLossAversion   BiasType = "LOSS_AVERSION"
	BiasRevengeTrading BiasType = "REVENGE_TRADING"
	BiasFOMO           BiasType = "FOMO"
	BiasGreed          BiasType = "GREED"
)

// BiasDetail is one scorer's full output: a score plus its audit trail.
type BiasDetail struct {
	Type            BiasType           `json:"type"`
	Score           decimal.Decimal    `json:"score"` // 0..100
	Metrics         map[string]decimal.Decimal `json:"metrics"`
	TriggeredRules  []string           `json:"triggeredRules"`
}

// BiasScores bundles the five scores and the weighted aggregate.
type BiasScores struct {
	Overtrading    decimal.Decimal `json:"overtrading"`
	LossAversion   decimal.Decimal `json:"lossAversion"`
	RevengeTrading decimal.Decimal `json:"revengeTrading"`
	FOMO           decimal.Decimal `json:"fomo"`
	Greed          decimal.Decimal `json:"greed"`
	Aggregate      decimal.Decimal `json:"aggregate"`

	Details map[BiasType]BiasDetail `json:"details"`
}

// DecisionLabel is the closed set of chess-style per-trade grades plus the
// session-result labels. Ordered here by desirability, most desirable first.
type DecisionLabel string

const (
	LabelBrilliant   DecisionLabel = "BRILLIANT"
	LabelGreat       DecisionLabel = "GREAT"
	LabelBest        DecisionLabel = "BEST"
	LabelExcellent   DecisionLabel = "EXCELLENT"
	LabelGood        DecisionLabel = "GOOD"
	LabelBook        DecisionLabel = "BOOK"
	LabelForced      DecisionLabel = "FORCED"
	LabelInteresting DecisionLabel = "INTERESTING"
	LabelInaccuracy  DecisionLabel = "INACCURACY"
	LabelMistake     DecisionLabel = "MISTAKE"
	LabelMiss        DecisionLabel = "MISS"
	LabelBlunder     DecisionLabel = "BLUNDER"
	LabelMegablunder DecisionLabel = "MEGABLUNDER"

	// Session-result labels, assigned at the session level rather than per-trade.
	LabelWinner     DecisionLabel = "WINNER"
	LabelDraw       DecisionLabel = "DRAW"
	LabelResign     DecisionLabel = "RESIGN"
	LabelCheckmated DecisionLabel = "CHECKMATED"
)

// AllTradeLabels lists the per-trade labels the Labeler can assign, most
// desirable first. The Temper Score's label distribution has one entry per
// label here (including zero counts); as a map it carries no order.
var AllTradeLabels = []DecisionLabel{
	LabelBrilliant, LabelGreat, LabelBest, LabelExcellent, LabelGood,
	LabelBook, LabelForced, LabelInteresting, LabelInaccuracy,
	LabelMistake, LabelMiss, LabelBlunder, LabelMegablunder,
}

// ReasonCode is a closed set of deterministic reasons attached to decision
// events and replay skips.
type ReasonCode string

const (
	ReasonOvertradeCluster     ReasonCode = "OVERTRADE_CLUSTER"
	ReasonRevengeAfterBigLoss  ReasonCode = "REVENGE_AFTER_BIG_LOSS"
	ReasonFOMOLateEntry        ReasonCode = "FOMO_LATE_ENTRY"
	ReasonLossHeldTooLong      ReasonCode = "LOSS_HELD_TOO_LONG"
	ReasonDisciplinedExit      ReasonCode = "DISCIPLINED_EXIT"
	ReasonFollowedPlan         ReasonCode = "FOLLOWED_PLAN"
	ReasonMaxLossBreach        ReasonCode = "MAX_LOSS_BREACH"
	ReasonSizeSpikeAfterStreak ReasonCode = "SIZE_SPIKE_AFTER_STREAK"
)

// DecisionEvent is the Labeler's output for a single trade.
type DecisionEvent struct {
	TradeID           string          `json:"tradeId"`
	TradeIndex        int             `json:"tradeIndex"`
	Label             DecisionLabel   `json:"label"`
	Symbol            string          `json:"symbol"`
	Reasons           []ReasonCode    `json:"reasons"`
	ScoreContribution decimal.Decimal `json:"scoreContribution"` // 0..10
	EloValue          decimal.Decimal `json:"eloValue"`          // 0..1
	Explanation       string          `json:"explanation"`
}

// TemperScore is the 0-100 composite day-discipline score.
type TemperScore struct {
	Value            int                       `json:"value"` // 0..100
	RawScore         decimal.Decimal           `json:"rawScore"`
	BiasPenalty      decimal.Decimal           `json:"biasPenalty"` // 0..20
	TradeScoreAvg    decimal.Decimal           `json:"tradeScoreAvg"` // 0..10
	LabelDistribution map[DecisionLabel]int    `json:"labelDistribution"`
}

// EloHistoryEntry is one session's contribution to the rating history.
type EloHistoryEntry struct {
	Date   string          `json:"date"`
	Rating decimal.Decimal `json:"rating"`
	Delta  decimal.Decimal `json:"delta"`
}

// DecisionEloState is the accumulating decision-quality rating.
type DecisionEloState struct {
	Rating               decimal.Decimal   `json:"rating"`
	PeakRating           decimal.Decimal   `json:"peakRating"`
	SessionsPlayed       int               `json:"sessionsPlayed"`
	KFactor              decimal.Decimal   `json:"kFactor"`
	LastSessionDelta     decimal.Decimal   `json:"lastSessionDelta"`
	LastSessionPerformance decimal.Decimal `json:"lastSessionPerformance"`
	LastSessionExpected  decimal.Decimal   `json:"lastSessionExpected"`
	History              []EloHistoryEntry `json:"history"`
}

// DefaultDecisionEloState returns the starting Elo state for a new user.
func DefaultDecisionEloState() DecisionEloState {
	return DecisionEloState{
		Rating:         decimal.NewFromInt(1200),
		PeakRating:     decimal.NewFromInt(1200),
		SessionsPlayed: 0,
		KFactor:        decimal.NewFromInt(40),
		History:        []EloHistoryEntry{},
	}
}

// ReplayAction is the closed set of disciplined-replay per-trade actions.
// Only KEEP and SKIP are exercised by the base contract; RESCALE and
// LOSS_CAP are reserved for a future feature-flagged extension (spec open
// question) and are never produced today.
type ReplayAction string

const (
	ReplayActionKeep     ReplayAction = "KEEP"
	ReplayActionSkip     ReplayAction = "SKIP"
	ReplayActionRescale  ReplayAction = "RESCALE"
	ReplayActionLossCap  ReplayAction = "LOSS_CAP"
)

// ReplayRules parameterizes the disciplined replay filter.
type ReplayRules struct {
	MaxDailyLossAbsolute    decimal.Decimal `json:"maxDailyLossAbsolute"`
	MaxTradesPerDay         int             `json:"maxTradesPerDay"`
	RevengeWindowMs         int64           `json:"revengeWindowMs"`
	MaxPositionSizeMultiple decimal.Decimal `json:"maxPositionSizeMultiple"`
	NoEntryAfterTimeMs      *int64          `json:"noEntryAfterTimeMs"`
}

// DefaultReplayRules returns the documented default rule set.
func DefaultReplayRules() ReplayRules {
	return ReplayRules{
		MaxDailyLossAbsolute:    decimal.NewFromInt(-500),
		MaxTradesPerDay:         10,
		RevengeWindowMs:         15 * 60 * 1000,
		MaxPositionSizeMultiple: decimal.NewFromFloat(1.5),
		NoEntryAfterTimeMs:      nil,
	}
}

// DisciplinedSessionResult is the counterfactual replay outcome.
type DisciplinedSessionResult struct {
	OriginalPnL      decimal.Decimal          `json:"originalPnl"`
	DisciplinedPnL   decimal.Decimal          `json:"disciplinedPnl"`
	TradesKept       int                      `json:"tradesKept"`
	TradesRemoved    int                      `json:"tradesRemoved"`
	RemovedTradeIDs  []string                 `json:"removedTradeIds"`
	RemovedReasons   map[string]ReasonCode    `json:"removedReasons"` // keyed by tradeId
	DisciplinedTrades []Trade                 `json:"disciplinedTrades"`
	Savings          decimal.Decimal          `json:"savings"`
}

// TemperReport is the frozen bundle of a session and all of its analyses.
type TemperReport struct {
	ID      string  `json:"id"`
	Session Session `json:"session"`

	Biases    BiasScores      `json:"biases"`
	Decisions []DecisionEvent `json:"decisions"`
	Score     TemperScore     `json:"score"`
	Replay    DisciplinedSessionResult `json:"replay"`

	EloBefore DecisionEloState `json:"eloBefore"`
	EloAfter  DecisionEloState `json:"eloAfter"`
	EloDelta  decimal.Decimal  `json:"eloDelta"`
}

// KeyEvent is a notable trade surfaced to the coach-facts payload.
type KeyEvent struct {
	TradeIndex  int             `json:"tradeIndex"`
	Symbol      string          `json:"symbol"`
	Label       DecisionLabel   `json:"label"`
	PnL         decimal.Decimal `json:"pnl"`
	Explanation string          `json:"explanation"`
}

// TiltSequence is a maximal run of adjacent bias-clustered trades.
type TiltSequence struct {
	StartIndex          int             `json:"startIndex"`
	EndIndex            int             `json:"endIndex"`
	DurationDescription string          `json:"durationDescription"`
	AggregatePnL        decimal.Decimal `json:"aggregatePnl"`
	DominantBias        BiasType        `json:"dominantBias"`
}

// StreakSummary reports the session's best and worst label-quality runs.
type StreakSummary struct {
	BestStreakLength  int `json:"bestStreakLength"`
	BestStreakStart   int `json:"bestStreakStart"`
	WorstStreakLength int `json:"worstStreakLength"`
	WorstStreakStart  int `json:"worstStreakStart"`
}

// CoachFactsOverview is the summary block of the coach-facts payload.
type CoachFactsOverview struct {
	Date          string          `json:"date"`
	TradeCount    int             `json:"tradeCount"`
	TotalPnL      decimal.Decimal `json:"totalPnl"`
	TemperScore   int             `json:"temperScore"`
	EloRating     decimal.Decimal `json:"eloRating"`
	EloDelta      decimal.Decimal `json:"eloDelta"`
}

// LabelSummary is the label distribution, restated for the coach layer.
type LabelSummary map[DecisionLabel]int

// CoachFactsPayload is the strict, PII-free projection of a TemperReport fed
// to the downstream coaching narrative layer.
type CoachFactsPayload struct {
	Overview          CoachFactsOverview       `json:"overview"`
	Biases            BiasScores               `json:"biases"`
	LabelSummary      LabelSummary             `json:"labelSummary"`
	KeyEvents         []KeyEvent               `json:"keyEvents"`
	TiltSequences     []TiltSequence           `json:"tiltSequences"`
	DisciplinedReplay DisciplinedReplaySummary `json:"disciplinedReplay"`
	Streaks           StreakSummary            `json:"streaks"`
}

// DisciplinedReplaySummary is the coach-facing projection of a replay
// result: aggregate numbers only, no raw trades.
type DisciplinedReplaySummary struct {
	OriginalPnL    decimal.Decimal `json:"originalPnl"`
	DisciplinedPnL decimal.Decimal `json:"disciplinedPnl"`
	Savings        decimal.Decimal `json:"savings"`
	TradesKept     int             `json:"tradesKept"`
	TradesRemoved  int             `json:"tradesRemoved"`
}
