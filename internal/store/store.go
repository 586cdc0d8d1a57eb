// Package store persists the per-user state spec.md §6 describes: the
// current UserBaseline, the current DecisionEloState, and an append-mostly
// log of TemperReports keyed by session id. Reports are immutable once
// written. Layout and constructor shape are grounded on the teacher's
// internal/data.Store, generalized from OHLCV candle files to per-user
// baseline/elo/report JSON files under one data directory.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/dawgsrlife/temper-core/pkg/types"
)

// Store provides access to persisted per-user analysis state.
type Store struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	dataDir string

	baselines map[string]types.UserBaseline
	elos      map[string]types.DecisionEloState
	reports   map[string][]types.TemperReport
}

// NewStore creates a Store rooted at dataDir, creating the directory tree
// if it does not already exist.
func NewStore(logger *zap.Logger, dataDir string) (*Store, error) {
	s := &Store{
		logger:    logger,
		dataDir:   dataDir,
		baselines: make(map[string]types.UserBaseline),
		elos:      make(map[string]types.DecisionEloState),
		reports:   make(map[string][]types.TemperReport),
	}

	for _, sub := range []string{"baselines", "elo", "reports"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return s, nil
}

// GetBaseline returns userID's baseline, falling back to disk on a cache
// miss, and finally to spec.md's documented defaults for a new user.
func (s *Store) GetBaseline(userID string) (types.UserBaseline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.baselines[userID]; ok {
		return b, nil
	}

	path := s.baselinePath(userID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			b := types.DefaultUserBaseline(userID)
			s.baselines[userID] = b
			return b, nil
		}
		return types.UserBaseline{}, fmt.Errorf("failed to read baseline: %w", err)
	}

	var b types.UserBaseline
	if err := json.Unmarshal(data, &b); err != nil {
		return types.UserBaseline{}, fmt.Errorf("failed to parse baseline: %w", err)
	}
	s.baselines[userID] = b
	return b, nil
}

// SaveBaseline writes userID's updated baseline to disk and cache.
func (s *Store) SaveBaseline(b types.UserBaseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}
	if err := os.WriteFile(s.baselinePath(b.UserID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write baseline: %w", err)
	}
	s.baselines[b.UserID] = b
	s.logger.Debug("baseline saved", zap.String("userId", b.UserID))
	return nil
}

// GetElo returns userID's current Elo state, falling back to spec.md's
// documented starting state for a new user.
func (s *Store) GetElo(userID string) (types.DecisionEloState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.elos[userID]; ok {
		return e, nil
	}

	path := s.eloPath(userID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			e := types.DefaultDecisionEloState()
			s.elos[userID] = e
			return e, nil
		}
		return types.DecisionEloState{}, fmt.Errorf("failed to read elo state: %w", err)
	}

	var e types.DecisionEloState
	if err := json.Unmarshal(data, &e); err != nil {
		return types.DecisionEloState{}, fmt.Errorf("failed to parse elo state: %w", err)
	}
	s.elos[userID] = e
	return e, nil
}

// SaveElo writes userID's updated Elo state to disk and cache.
func (s *Store) SaveElo(userID string, e types.DecisionEloState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal elo state: %w", err)
	}
	if err := os.WriteFile(s.eloPath(userID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write elo state: %w", err)
	}
	s.elos[userID] = e
	s.logger.Debug("elo state saved", zap.String("userId", userID), zap.String("rating", e.Rating.String()))
	return nil
}

// AppendReport adds report to userID's immutable report log and persists
// it. A report with an id already present in the log is rejected: reports
// are immutable once written, per spec.md §6.
func (s *Store) AppendReport(userID string, report types.TemperReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadReportsLocked(userID)
	if err != nil {
		return err
	}
	for _, r := range existing {
		if r.ID == report.ID {
			return fmt.Errorf("report %s already exists for user %s", report.ID, userID)
		}
	}

	updated := append(existing, report)
	data, err := json.MarshalIndent(updated, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal reports: %w", err)
	}
	if err := os.WriteFile(s.reportsPath(userID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write reports: %w", err)
	}
	s.reports[userID] = updated
	s.logger.Debug("report appended", zap.String("userId", userID), zap.String("reportId", report.ID))
	return nil
}

// GetReports returns userID's full report log, oldest first.
func (s *Store) GetReports(userID string) ([]types.TemperReport, error) {
	s.mu.RLock()
	if r, ok := s.reports[userID]; ok {
		defer s.mu.RUnlock()
		return append([]types.TemperReport{}, r...), nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadReportsLocked(userID)
}

// GetReport returns a single report by id from userID's log.
func (s *Store) GetReport(userID, reportID string) (types.TemperReport, bool, error) {
	reports, err := s.GetReports(userID)
	if err != nil {
		return types.TemperReport{}, false, err
	}
	for _, r := range reports {
		if r.ID == reportID {
			return r, true, nil
		}
	}
	return types.TemperReport{}, false, nil
}

func (s *Store) loadReportsLocked(userID string) ([]types.TemperReport, error) {
	if r, ok := s.reports[userID]; ok {
		return r, nil
	}

	data, err := os.ReadFile(s.reportsPath(userID))
	if err != nil {
		if os.IsNotExist(err) {
			s.reports[userID] = nil
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read reports: %w", err)
	}

	var reports []types.TemperReport
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("failed to parse reports: %w", err)
	}
	s.reports[userID] = reports
	return reports, nil
}

func (s *Store) baselinePath(userID string) string {
	return filepath.Join(s.dataDir, "baselines", userID+".json")
}

func (s *Store) eloPath(userID string) string {
	return filepath.Join(s.dataDir, "elo", userID+".json")
}

func (s *Store) reportsPath(userID string) string {
	return filepath.Join(s.dataDir, "reports", userID+".json")
}
