// Package report collects validation results for downstream reporting.
package report

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/gardentiller/tiller/internal/core/domain"
)

// Sink receives validation results as the orchestrator produces them.
// Host results are delivered incrementally so an interrupted run still
// leaves its partial results behind.
type Sink interface {
	SaveRun(ctx context.Context, run *domain.ValidationRun) error
	SaveHostResult(ctx context.Context, runID string, res *domain.HostResult) error
}

// MemorySink keeps results in memory. Always wired so a run's outcome
// is reportable even with no external storage configured.
type MemorySink struct {
	mu      sync.Mutex
	run     *domain.ValidationRun
	results map[string]*domain.HostResult
}

func NewMemorySink() *MemorySink {
	return &MemorySink{results: make(map[string]*domain.HostResult)}
}

func (s *MemorySink) SaveRun(ctx context.Context, run *domain.ValidationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = run
	return nil
}

func (s *MemorySink) SaveHostResult(ctx context.Context, runID string, res *domain.HostResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.Host] = res
	return nil
}

// Run returns the last saved run record.
func (s *MemorySink) Run() *domain.ValidationRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// Results returns host results sorted by hostname.
func (s *MemorySink) Results() []*domain.HostResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.HostResult, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out
}

// MultiSink fans results out to several sinks. Errors are collected so
// a failing external store does not hide results from the others.
type MultiSink []Sink

func (m MultiSink) SaveRun(ctx context.Context, run *domain.ValidationRun) error {
	var errs []error
	for _, s := range m {
		if err := s.SaveRun(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) SaveHostResult(ctx context.Context, runID string, res *domain.HostResult) error {
	var errs []error
	for _, s := range m {
		if err := s.SaveHostResult(ctx, runID, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
