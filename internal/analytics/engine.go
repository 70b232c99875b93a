// Package analytics implements the five district scoring stages: service
// composition, pressure scoring, typology, spike detection and recommendations.
package analytics

import "go.uber.org/zap"

// Engine runs the analytics stages with a bounded per-district fan-out.
// Stage methods are pure transformations of their inputs.
type Engine struct {
	workers int
}

// NewEngine creates an Engine that fans per-district work out over at most
// workers goroutines.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Engine{workers: workers}
}

// Workers returns the configured fan-out.
func (e *Engine) Workers() int {
	return e.workers
}

// collect flattens per-index slots into rows and diagnostics, preserving index order.
func collect[T any](stage string, rows []*T, excluded []*ZeroDenominatorError, warnings []*InsufficientDataWarning) *Output[T] {
	out := &Output[T]{Rows: make([]T, 0, len(rows))}
	for i, r := range rows {
		if r != nil {
			out.Rows = append(out.Rows, *r)
		}
		if excluded != nil && excluded[i] != nil {
			out.Excluded = append(out.Excluded, excluded[i])
		}
		if warnings != nil && warnings[i] != nil {
			out.Warnings = append(out.Warnings, warnings[i])
		}
	}
	log := zap.L().With(zap.String("stage", stage))
	for _, ex := range out.Excluded {
		log.Debug("analytics: district excluded",
			zap.String("state", ex.Key.State),
			zap.String("district", ex.Key.District),
			zap.String("field", ex.Field),
		)
	}
	for _, w := range out.Warnings {
		log.Debug("analytics: fallback applied",
			zap.String("state", w.Key.State),
			zap.String("district", w.Key.District),
			zap.String("reason", w.Reason),
		)
	}
	return out
}
