package incremental

import "sort"

// Per-row cost constants (milliseconds) for the estimate formulas.
const (
	appendMSPerRow   = 0.1
	upsertMSPerRow   = 0.2
	snapshotMSPerRow = 0.3
	cdcMSPerRow      = 0.4

	// minMemoryMB floors every estimate at a fixed working set.
	minMemoryMB = 64.0

	// memoryMBPerRow approximates per-row buffering cost.
	memoryMBPerRow = 0.0001
)

// estimate is the shared linear cost formula: time scales with row count
// at a strategy-specific per-row constant, memory has a fixed floor.
func estimate(strategy LoadStrategy, rows int64, msPerRow float64, cpu, ioPattern string) PerformanceEstimate {
	memory := float64(rows) * memoryMBPerRow
	if memory < minMemoryMB {
		memory = minMemoryMB
	}
	return PerformanceEstimate{
		Strategy:        strategy,
		EstimatedTimeMS: float64(rows) * msPerRow,
		MemoryMB:        memory,
		CPUIntensity:    cpu,
		IOPattern:       ioPattern,
	}
}

// PerformanceOptimizer compares strategy cost estimates for a pattern.
// Diagnostics only; selection is driven by CanHandle and weights.
type PerformanceOptimizer struct {
	strategies []Strategy
}

// NewPerformanceOptimizer creates an optimizer over the given strategies.
func NewPerformanceOptimizer(strategies []Strategy) *PerformanceOptimizer {
	return &PerformanceOptimizer{strategies: strategies}
}

// CompareStrategies returns each strategy's estimate for the pattern,
// cheapest first.
func (o *PerformanceOptimizer) CompareStrategies(pattern LoadPattern) []PerformanceEstimate {
	estimates := make([]PerformanceEstimate, 0, len(o.strategies))
	for _, s := range o.strategies {
		estimates = append(estimates, s.EstimatePerformance(pattern))
	}
	sort.SliceStable(estimates, func(i, j int) bool {
		return estimates[i].EstimatedTimeMS < estimates[j].EstimatedTimeMS
	})
	return estimates
}

// CheapestViable returns the lowest-cost strategy whose CanHandle
// accepts the pattern, with ok=false when none qualifies.
func (o *PerformanceOptimizer) CheapestViable(pattern LoadPattern) (PerformanceEstimate, bool) {
	var best PerformanceEstimate
	found := false
	for _, s := range o.strategies {
		if !s.CanHandle(pattern) {
			continue
		}
		est := s.EstimatePerformance(pattern)
		if !found || est.EstimatedTimeMS < best.EstimatedTimeMS {
			best = est
			found = true
		}
	}
	return best, found
}
