// Binned exogenous series and empirical duration sampling for the MPC:
// per-step demand and human-driver supply counts, and infinite sampling
// streams over observed pickup/dropoff durations.

package workload

import (
	"math/rand"
	"sort"
)

// BinnedSeries counts events per fixed-width time bin. The MPC reads it as
// an exogenous per-step series.
type BinnedSeries struct {
	binWidth int64
	counts   map[int64]float64
}

// NewBinnedSeries creates an empty series with the given bin width in
// seconds.
func NewBinnedSeries(binWidth int64) *BinnedSeries {
	return &BinnedSeries{
		binWidth: binWidth,
		counts:   make(map[int64]float64),
	}
}

// Add records one event at time t.
func (b *BinnedSeries) Add(t int64) {
	b.counts[t/b.binWidth]++
}

// At returns the count in the bin containing time t.
func (b *BinnedSeries) At(t int64) float64 {
	return b.counts[t/b.binWidth]
}

// Window returns per-bin counts for n consecutive bins starting at the bin
// containing from.
func (b *BinnedSeries) Window(from int64, n int) []float64 {
	out := make([]float64, n)
	start := from / b.binWidth
	for i := range out {
		out[i] = b.counts[start+int64(i)]
	}
	return out
}

// BinDemand bins passenger request times into a BinnedSeries.
func BinDemand(records []PassengerRecord, binWidth int64) *BinnedSeries {
	s := NewBinnedSeries(binWidth)
	for _, r := range records {
		s.Add(r.Time)
	}
	return s
}

// BinSupply bins human-driver shift-start times into a BinnedSeries.
func BinSupply(startTimes []int64, binWidth int64) *BinnedSeries {
	s := NewBinnedSeries(binWidth)
	for _, t := range startTimes {
		s.Add(t)
	}
	return s
}

// DurationSampler draws durations from an empirical histogram by inverse
// CDF. It backs the MPC's synthetic in-horizon pickup/dropoff corrections.
type DurationSampler struct {
	values []int64
	cdf    []float64
}

// NewDurationSampler builds a sampler from observed durations. A nil or
// empty observation set falls back to the single default duration.
func NewDurationSampler(observations []int64, defaultDuration int64) *DurationSampler {
	if len(observations) == 0 {
		return &DurationSampler{
			values: []int64{defaultDuration},
			cdf:    []float64{1.0},
		}
	}

	counts := make(map[int64]int)
	for _, d := range observations {
		counts[d]++
	}
	values := make([]int64, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	cdf := make([]float64, len(values))
	cum := 0
	for i, v := range values {
		cum += counts[v]
		cdf[i] = float64(cum) / float64(len(observations))
	}
	return &DurationSampler{values: values, cdf: cdf}
}

// Sample draws one duration.
func (d *DurationSampler) Sample(rng *rand.Rand) int64 {
	u := rng.Float64()
	idx := sort.SearchFloat64s(d.cdf, u)
	if idx >= len(d.values) {
		idx = len(d.values) - 1
	}
	return d.values[idx]
}

// SampleN draws n durations; the MPC fixes one batch per invocation so the
// synthetic correction routing stays constant during a solve.
func (d *DurationSampler) SampleN(rng *rand.Rand, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = d.Sample(rng)
	}
	return out
}
