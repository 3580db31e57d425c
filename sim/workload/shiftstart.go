// Synthetic driver shift-start sampler: a Gaussian kernel density estimate
// over a representative distribution of daily shift-start times. Human
// driver entry events are drawn from it instead of replaying a roster.

package workload

import (
	"math/rand"
	"sort"
)

// ShiftKernel is one KDE component: a Gaussian centred on an observed
// shift-start time with the estimator bandwidth as its deviation, weighted
// by how often that start time occurs.
type ShiftKernel struct {
	Center int64   // seconds from simulation start
	Weight float64 // relative mass, need not be normalised
}

// ShiftStartSampler draws shift-start times from a Gaussian mixture KDE.
type ShiftStartSampler struct {
	kernels   []ShiftKernel
	cumWeight []float64
	bandwidth float64
	maxTime   int64
}

// DefaultShiftKernels approximates a two-peaked urban driving day: a morning
// wave around 06:30 and an afternoon wave around 15:00, with a thinner
// midday plateau.
func DefaultShiftKernels() []ShiftKernel {
	return []ShiftKernel{
		{Center: 23400, Weight: 3.0}, // 06:30
		{Center: 30600, Weight: 2.0}, // 08:30
		{Center: 41400, Weight: 1.0}, // 11:30
		{Center: 54000, Weight: 2.5}, // 15:00
		{Center: 63000, Weight: 1.5}, // 17:30
	}
}

// NewShiftStartSampler builds a sampler over the given kernels. Samples are
// clamped to [0, maxTime].
func NewShiftStartSampler(kernels []ShiftKernel, bandwidth float64, maxTime int64) *ShiftStartSampler {
	cum := make([]float64, len(kernels))
	total := 0.0
	for i, k := range kernels {
		total += k.Weight
		cum[i] = total
	}
	return &ShiftStartSampler{
		kernels:   kernels,
		cumWeight: cum,
		bandwidth: bandwidth,
		maxTime:   maxTime,
	}
}

// Sample draws one shift-start time: pick a kernel proportionally to its
// weight, then draw from its Gaussian, clamped to the valid range.
func (s *ShiftStartSampler) Sample(rng *rand.Rand) int64 {
	total := s.cumWeight[len(s.cumWeight)-1]
	u := rng.Float64() * total
	idx := sort.SearchFloat64s(s.cumWeight, u)
	if idx >= len(s.kernels) {
		idx = len(s.kernels) - 1
	}
	k := s.kernels[idx]

	t := int64(rng.NormFloat64()*s.bandwidth) + k.Center
	if t < 0 {
		t = 0
	}
	if t > s.maxTime {
		t = s.maxTime
	}
	return t
}

// SampleN draws n shift-start times sorted ascending, so entry events can be
// scheduled in order.
func (s *ShiftStartSampler) SampleN(rng *rand.Rand, n int) []int64 {
	times := make([]int64, n)
	for i := range times {
		times[i] = s.Sample(rng)
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times
}
