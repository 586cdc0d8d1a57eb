// Package main provides a small CLI that runs the deterministic analysis
// pipeline over a local CSV file and prints the resulting TemperReport(s)
// as JSON to stdout. Useful for generating byte-identical test fixtures
// without standing up the HTTP server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dawgsrlife/temper-core/internal/orchestrator"
	"github.com/dawgsrlife/temper-core/pkg/types"
)

func main() {
	userID := flag.String("user", "", "user id the trades belong to")
	csvPath := flag.String("csv", "", "path to the trade CSV file")
	flag.Parse()

	if *userID == "" || *csvPath == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze -user <userId> -csv <path>")
		os.Exit(2)
	}

	csvBytes, err := os.ReadFile(*csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read csv: %v\n", err)
		os.Exit(1)
	}

	baseline := types.DefaultUserBaseline(*userID)
	previousElo := types.DefaultDecisionEloState()
	rules := types.DefaultReplayRules()

	result, err := orchestrator.AnalyzeAll(*userID, csvBytes, baseline, previousElo, rules)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(1)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result.Reports); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode reports: %v\n", err)
		os.Exit(1)
	}
}
