// SPDX-License-Identifier: MIT
package analysis

import (
	"shaker/pkg/bitint"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// DefaultStatsCapacity is the number of accepted periods kept by default.
const DefaultStatsCapacity = 32

// PeriodSummary describes the recently accepted periods (ms).
type PeriodSummary struct {
	Count  int
	Mean   float64
	StdDev float64
	Median float64
}

// PeriodStats keeps a ring of the most recently accepted periods. Capacity
// is rounded up to a power of two so indices wrap with a mask.
type PeriodStats struct {
	ring   []float64
	mask   int
	next   int
	count  int
	sorted []float64 // Scratch buffer for the median.
}

// NewPeriodStats creates a PeriodStats holding at least capacity periods.
func NewPeriodStats(capacity int) *PeriodStats {
	if capacity <= 0 {
		capacity = DefaultStatsCapacity
	}
	size := bitint.NextPowerOfTwo(capacity)
	return &PeriodStats{
		ring:   make([]float64, size),
		mask:   bitint.Mask(size),
		sorted: make([]float64, 0, size),
	}
}

// Add records an accepted period. InfinitePeriod and non-positive values
// are ignored.
func (p *PeriodStats) Add(period float64) {
	if period <= 0 || period >= InfinitePeriod || !isFinite(period) {
		return
	}
	p.ring[p.next] = period
	p.next = (p.next + 1) & p.mask
	if p.count < len(p.ring) {
		p.count++
	}
}

// Reset forgets all recorded periods.
func (p *PeriodStats) Reset() {
	p.next = 0
	p.count = 0
}

// Len returns the number of periods currently held.
func (p *PeriodStats) Len() int {
	return p.count
}

// Cap returns the ring capacity.
func (p *PeriodStats) Cap() int {
	return len(p.ring)
}

// Summary computes mean, sample standard deviation and median of the held
// periods. A single period has zero deviation.
func (p *PeriodStats) Summary() PeriodSummary {
	if p.count == 0 {
		return PeriodSummary{}
	}

	p.sorted = append(p.sorted[:0], p.ring[:p.count]...)
	slices.Sort(p.sorted)

	summary := PeriodSummary{Count: p.count}
	if p.count == 1 {
		summary.Mean = p.sorted[0]
		summary.Median = p.sorted[0]
		return summary
	}

	summary.Mean, summary.StdDev = stat.MeanStdDev(p.sorted, nil)
	summary.Median = stat.Quantile(0.5, stat.Empirical, p.sorted, nil)
	return summary
}
