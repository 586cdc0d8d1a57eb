// Package orchestrator wires the pure analysis stages together: parse,
// reconstruct sessions, score biases, label trades, compute the Temper
// Score, replay disciplined counterfactuals, update the Elo rating, and
// assemble the frozen TemperReport. Every function here is synchronous and
// side-effect free; it is a pure function of its inputs per spec.md §5.
package orchestrator

import (
	"github.com/dawgsrlife/temper-core/internal/baseline"
	"github.com/dawgsrlife/temper-core/internal/bias"
	"github.com/dawgsrlife/temper-core/internal/coach"
	"github.com/dawgsrlife/temper-core/internal/elo"
	"github.com/dawgsrlife/temper-core/internal/idgen"
	"github.com/dawgsrlife/temper-core/internal/labeler"
	"github.com/dawgsrlife/temper-core/internal/parser"
	"github.com/dawgsrlife/temper-core/internal/replay"
	"github.com/dawgsrlife/temper-core/internal/session"
	"github.com/dawgsrlife/temper-core/internal/temper"
	"github.com/dawgsrlife/temper-core/pkg/errs"
	"github.com/dawgsrlife/temper-core/pkg/types"
)

// Parse is the §6 `parse(csv) -> ParseResult` entry point.
func Parse(csvBytes []byte) (*parser.ParseResult, error) {
	return parser.Parse(csvBytes)
}

// ReconstructSessions is the §6 `reconstructSessions(userId, trades,
// baseline) -> Sessions` entry point.
func ReconstructSessions(userID string, trades []types.RawTrade, baseline types.UserBaseline) ([]types.Session, error) {
	return session.Reconstruct(userID, trades, baseline)
}

// AnalyzeInput bundles the parameters the §6
// `analyzeSession({session, baseline, previousElo, rules}) -> {report,
// newElo}` entry point takes.
type AnalyzeInput struct {
	Session     types.Session
	Baseline    types.UserBaseline
	PreviousElo types.DecisionEloState
	Rules       types.ReplayRules
}

// AnalyzeResult is the `{report, newElo}` pair the entry point returns.
type AnalyzeResult struct {
	Report types.TemperReport
	NewElo types.DecisionEloState
}

// AnalyzeSession runs C (bias scoring), D (labeling), E (Temper Score), F
// (disciplined replay), and G (Elo update) over a single session, evaluated
// against the previous Elo state, and assembles the frozen TemperReport.
// Bias scoring runs before labeling because labels consult bias membership,
// per spec.md §5's documented ordering.
func AnalyzeSession(in AnalyzeInput) (AnalyzeResult, error) {
	if err := validateRules(in.Rules); err != nil {
		return AnalyzeResult{}, err
	}

	biasScores, tags := bias.Analyze(in.Session, in.Baseline)
	decisions := labeler.Label(in.Session, in.Baseline, tags)
	score := temper.Compute(decisions, biasScores)
	replayResult := replay.Run(in.Session, in.Rules)
	newElo := elo.Update(in.PreviousElo, decisions, in.Session.Date)

	report := types.TemperReport{
		ID:        idgen.ReportID(in.Session.ID, in.Session.Date),
		Session:   in.Session,
		Biases:    biasScores,
		Decisions: decisions,
		Score:     score,
		Replay:    replayResult,
		EloBefore: in.PreviousElo,
		EloAfter:  newElo,
		EloDelta:  newElo.LastSessionDelta,
	}

	return AnalyzeResult{Report: report, NewElo: newElo}, nil
}

// BuildCoachFacts is the §6 `buildCoachFacts(report) -> CoachFactsPayload`
// entry point.
func BuildCoachFacts(report types.TemperReport) types.CoachFactsPayload {
	return coach.Build(report)
}

// UpdateBaseline is the §6 `updateBaseline(previous, sessions) ->
// UserBaseline` entry point.
func UpdateBaseline(previous types.UserBaseline, sessions []types.Session) types.UserBaseline {
	return baseline.Update(previous, sessions)
}

func validateRules(rules types.ReplayRules) error {
	if rules.MaxTradesPerDay < 0 {
		return &errs.RuleError{Field: "maxTradesPerDay", Message: "must be non-negative"}
	}
	if rules.RevengeWindowMs < 0 {
		return &errs.RuleError{Field: "revengeWindowMs", Message: "must be non-negative"}
	}
	if rules.MaxPositionSizeMultiple.IsNegative() {
		return &errs.RuleError{Field: "maxPositionSizeMultiple", Message: "must be non-negative"}
	}
	if rules.NoEntryAfterTimeMs != nil && *rules.NoEntryAfterTimeMs < 0 {
		return &errs.RuleError{Field: "noEntryAfterTimeMs", Message: "must be non-negative"}
	}
	return nil
}

// AnalyzeAllResult is what AnalyzeAll returns.
type AnalyzeAllResult struct {
	ParseResult  *parser.ParseResult
	Sessions     []types.Session
	Reports      []types.TemperReport
	FinalElo     types.DecisionEloState
	NewBaseline  types.UserBaseline
}

// AnalyzeAll runs the pipeline over a raw CSV payload for one user: parse,
// reconstruct every session, analyze each in chronological order (each
// session's Elo state feeds the next), and fold the processed sessions into
// an updated baseline. Coach facts are not built here; BuildCoachFacts
// projects a single report on request. It is the one-shot convenience
// surface cmd/analyze and the HTTP "analyze" handler use.
func AnalyzeAll(userID string, csvBytes []byte, userBaseline types.UserBaseline, previousElo types.DecisionEloState, rules types.ReplayRules) (*AnalyzeAllResult, error) {
	parsed, err := Parse(csvBytes)
	if err != nil {
		return nil, err
	}
	if parsed.ValidRows == 0 {
		return nil, &errs.EmptyInputError{TotalRows: parsed.TotalRows}
	}

	sessions, err := ReconstructSessions(userID, parsed.Trades, userBaseline)
	if err != nil {
		return nil, err
	}

	reports := make([]types.TemperReport, 0, len(sessions))
	currentElo := previousElo
	for _, s := range sessions {
		result, err := AnalyzeSession(AnalyzeInput{
			Session:     s,
			Baseline:    userBaseline,
			PreviousElo: currentElo,
			Rules:       rules,
		})
		if err != nil {
			return nil, err
		}
		reports = append(reports, result.Report)
		currentElo = result.NewElo
	}

	newBaseline := UpdateBaseline(userBaseline, sessions)

	return &AnalyzeAllResult{
		ParseResult: parsed,
		Sessions:    sessions,
		Reports:     reports,
		FinalElo:    currentElo,
		NewBaseline: newBaseline,
	}, nil
}
