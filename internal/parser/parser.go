// Package parser turns a raw CSV byte sequence into a canonical, validated
// list of RawTrade rows. It never fails wholesale on a single bad row: rows
// that cannot be validated are collected as errors and skipped, and parsing
// only stops early when the header itself cannot be resolved.
package parser

import (
	"encoding/csv"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dawgsrlife/temper-core/pkg/errs"
	"github.com/dawgsrlife/temper-core/pkg/types"
)

// RowIssue is one accumulated parse error, keyed by its original row index.
type RowIssue struct {
	RowIndex int    `json:"rowIndex"`
	Message  string `json:"message"`
}

// ParseResult is the parser's full output: the trades that survived
// validation plus a structured error log for every row that did not.
type ParseResult struct {
	Trades    []types.RawTrade `json:"trades"`
	TotalRows int              `json:"totalRows"`
	ValidRows int              `json:"validRows"`
	Errors    []RowIssue       `json:"errors"`
}

// requiredColumns maps each canonical column name to its accepted header
// aliases (case-insensitive). Every key must resolve to some header or the
// parser records a SchemaError message in Errors and returns no trades.
var requiredColumns = map[string][]string{
	"timestamp": {"timestamp", "time"},
	"symbol":    {"symbol", "ticker", "asset"},
	"side":      {"side", "direction"},
	"quantity":  {"quantity", "qty", "shares", "size"},
	"price":     {"price", "entry_price"},
	"pnl":       {"pnl", "profit", "profit_loss"},
}

var optionalColumns = map[string][]string{
	"tags":       {"tags"},
	"exit_price": {"exit_price"},
	"balance":    {"balance"},
}

// Parse parses a UTF-8 CSV byte sequence into a ParseResult. It never
// returns a Go error for malformed data; schema failures and row failures
// are both reported through ParseResult.Errors.
func Parse(csvBytes []byte) (*ParseResult, error) {
	reader := csv.NewReader(strings.NewReader(string(csvBytes)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	if len(records) == 0 {
		return &ParseResult{Errors: []RowIssue{{RowIndex: -1, Message: "empty file: no header row"}}}, nil
	}

	header := records[0]
	colIndex, missing := resolveColumns(header)
	if missing != "" {
		schemaErr := &errs.SchemaError{MissingColumn: missing}
		return &ParseResult{
			Errors: []RowIssue{{RowIndex: -1, Message: schemaErr.Error()}},
		}, nil
	}

	result := &ParseResult{
		TotalRows: len(records) - 1,
	}

	type ordered struct {
		trade    types.RawTrade
		rowIndex int
	}
	var parsed []ordered

	for i := 1; i < len(records); i++ {
		rowIndex := i - 1
		row := records[i]

		trade, err := parseRow(row, colIndex)
		if err != nil {
			result.Errors = append(result.Errors, RowIssue{RowIndex: rowIndex, Message: err.Error()})
			continue
		}
		parsed = append(parsed, ordered{trade: trade, rowIndex: rowIndex})
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		ti, tj := parsed[i].trade.Timestamp, parsed[j].trade.Timestamp
		if ti.Equal(tj) {
			return parsed[i].rowIndex < parsed[j].rowIndex
		}
		return ti.Before(tj)
	})

	result.Trades = make([]types.RawTrade, 0, len(parsed))
	for _, p := range parsed {
		result.Trades = append(result.Trades, p.trade)
	}
	result.ValidRows = len(result.Trades)

	return result, nil
}

// resolveColumns maps each required/optional canonical name to the header's
// column index. missing is the first required canonical name with no
// matching alias, or "" if the header is complete.
func resolveColumns(header []string) (map[string]int, string) {
	lower := make([]string, len(header))
	for i, h := range header {
		lower[i] = strings.ToLower(strings.TrimSpace(h))
	}

	colIndex := make(map[string]int)
	findAlias := func(aliases []string) (int, bool) {
		for _, alias := range aliases {
			for i, h := range lower {
				if h == alias {
					return i, true
				}
			}
		}
		return 0, false
	}

	// A fixed iteration order keeps the "first missing column" error deterministic.
	order := []string{"timestamp", "symbol", "side", "quantity", "price", "pnl"}
	for _, canonical := range order {
		idx, ok := findAlias(requiredColumns[canonical])
		if !ok {
			return nil, canonical
		}
		colIndex[canonical] = idx
	}
	for canonical, aliases := range optionalColumns {
		if idx, ok := findAlias(aliases); ok {
			colIndex[canonical] = idx
		}
	}
	return colIndex, ""
}

func parseRow(row []string, colIndex map[string]int) (types.RawTrade, error) {
	get := func(canonical string) (string, bool) {
		idx, ok := colIndex[canonical]
		if !ok || idx >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[idx]), true
	}

	tsRaw, _ := get("timestamp")
	ts, err := parseTimestamp(tsRaw)
	if err != nil {
		return types.RawTrade{}, fmt.Errorf("unparseable timestamp %q", tsRaw)
	}

	symbol, _ := get("symbol")
	if symbol == "" {
		return types.RawTrade{}, fmt.Errorf("missing symbol")
	}

	sideRaw, _ := get("side")
	side, err := normalizeSide(sideRaw)
	if err != nil {
		return types.RawTrade{}, err
	}

	qtyRaw, _ := get("quantity")
	qty, err := decimal.NewFromString(qtyRaw)
	if err != nil || !qty.IsPositive() {
		return types.RawTrade{}, fmt.Errorf("non-positive or unparseable quantity %q", qtyRaw)
	}

	priceRaw, _ := get("price")
	price, err := decimal.NewFromString(priceRaw)
	if err != nil {
		return types.RawTrade{}, fmt.Errorf("unparseable price %q", priceRaw)
	}
	if priceFloat, _ := price.Float64(); math.IsNaN(priceFloat) || math.IsInf(priceFloat, 0) {
		return types.RawTrade{}, fmt.Errorf("non-finite price %q", priceRaw)
	}

	pnlRaw, ok := get("pnl")
	if !ok || pnlRaw == "" {
		return types.RawTrade{}, fmt.Errorf("missing pnl")
	}
	pnl, err := decimal.NewFromString(pnlRaw)
	if err != nil {
		return types.RawTrade{}, fmt.Errorf("unparseable pnl %q", pnlRaw)
	}

	tagsRaw, _ := get("tags")
	tags := parseTags(tagsRaw)

	return types.RawTrade{
		Timestamp: ts,
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Price:     price,
		PnL:       pnl,
		Tags:      tags,
	}, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	// No timezone present: treat as UTC per §6.
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", raw, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", raw, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}

func normalizeSide(raw string) (types.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUY", "LONG":
		return types.SideLong, nil
	case "SELL", "SHORT":
		return types.SideShort, nil
	default:
		return "", fmt.Errorf("unrecognized side %q", raw)
	}
}

// parseTags splits on comma, strips surrounding quotes and whitespace from
// each tag, preserves order, and drops empties.
func parseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `"'`)
		p = strings.TrimSpace(p)
		if p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
