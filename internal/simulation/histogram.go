package simulation

import (
	"math"
)

// HistogramBin is one half-open interval [Lower, Upper); the last bin is closed
type HistogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram is the KPI outcome distribution
type Histogram struct {
	Bins []HistogramBin `json:"bins"`
	// Clamped counts values outside the fixed range that were folded into an
	// edge bin.
	Clamped int `json:"clamped"`
	// ZeroWidth is set when every value that fixed the range was identical.
	ZeroWidth bool `json:"zeroWidth"`
}

// Total returns the sum of bin counts
func (h Histogram) Total() int {
	total := 0
	for _, b := range h.Bins {
		total += b.Count
	}
	return total
}

// binner accumulates fixed-width bin counts. Until the range is fixed it
// buffers values; the range comes from a declared [lo, hi] or from the first
// warmup values.
type binner struct {
	bins     int
	declared bool
	fixed    bool
	lo, hi   float64
	counts   []int
	clamped  int
	zero     bool
	warmup   []float64
	limit    int
}

func newBinner(bins, warmup int, declared *[2]float64) *binner {
	b := &binner{bins: bins, limit: warmup}
	if declared != nil {
		b.declared = true
		b.setRange(declared[0], declared[1])
	}
	return b
}

func (b *binner) setRange(lo, hi float64) {
	if hi <= lo {
		b.zero = true
		lo, hi = widenRange(lo)
	}
	b.lo, b.hi = lo, hi
	b.counts = make([]int, b.bins)
	b.fixed = true
}

// widenRange builds a unit-width range centred on v
func widenRange(v float64) (float64, float64) {
	return v - 0.5, v + 0.5
}

func (b *binner) add(x float64) {
	if !b.fixed {
		b.warmup = append(b.warmup, x)
		if len(b.warmup) >= b.limit {
			b.fixFromWarmup()
		}
		return
	}
	b.count(x)
}

func (b *binner) count(x float64) {
	idx, clamped := b.index(x)
	if clamped {
		b.clamped++
	}
	b.counts[idx]++
}

// index returns the bin for x and whether x lies outside the fixed range
func (b *binner) index(x float64) (int, bool) {
	switch {
	case x < b.lo:
		return 0, true
	case x > b.hi:
		return b.bins - 1, true
	}
	idx := int((x - b.lo) / (b.hi - b.lo) * float64(b.bins))
	if idx >= b.bins {
		idx = b.bins - 1
	}
	return idx, false
}

func (b *binner) fixFromWarmup() {
	if len(b.warmup) == 0 {
		return
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range b.warmup {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	b.setRange(lo, hi)
	for _, v := range b.warmup {
		b.count(v)
	}
	b.warmup = nil
}

// rangeOf returns the fixed range, or nil while still warming up
func (b *binner) rangeOf() *[2]float64 {
	if !b.fixed {
		return nil
	}
	return &[2]float64{b.lo, b.hi}
}

// merge folds in a binner that saw later runs. The earlier binner's range
// wins: unfixed values are counted exactly, and counts from a binner fixed on
// a different range are moved by bin midpoint.
func (b *binner) merge(o *binner) {
	switch {
	case !o.fixed:
		for _, v := range o.warmup {
			b.add(v)
		}
	case !b.fixed:
		pending := b.warmup
		b.warmup = nil
		b.lo, b.hi, b.zero, b.fixed = o.lo, o.hi, o.zero, true
		b.counts = append([]int(nil), o.counts...)
		b.clamped = o.clamped
		for _, v := range pending {
			b.count(v)
		}
	case b.lo == o.lo && b.hi == o.hi && len(b.counts) == len(o.counts):
		for i, c := range o.counts {
			b.counts[i] += c
		}
		b.clamped += o.clamped
	default:
		b.rebin(o)
	}
}

func (b *binner) rebin(o *binner) {
	width := (o.hi - o.lo) / float64(len(o.counts))
	total, clamped := 0, o.clamped
	for i, c := range o.counts {
		if c == 0 {
			continue
		}
		total += c
		idx, out := b.index(o.lo + width*(float64(i)+0.5))
		b.counts[idx] += c
		if out {
			clamped += c
		}
	}
	b.clamped += min(clamped, total)
}

func (b *binner) histogram() Histogram {
	if !b.fixed {
		b.fixFromWarmup()
	}
	if !b.fixed {
		return Histogram{}
	}
	return buildHistogram(b.lo, b.hi, b.counts, b.clamped, b.zero)
}

// histogramFromSamples bins every value over its exact observed range
func histogramFromSamples(values []float64, bins int) Histogram {
	if len(values) == 0 {
		return Histogram{}
	}
	b := &binner{bins: bins}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	b.setRange(lo, hi)
	for _, v := range values {
		b.count(v)
	}
	return buildHistogram(b.lo, b.hi, b.counts, b.clamped, b.zero)
}

func buildHistogram(lo, hi float64, counts []int, clamped int, zero bool) Histogram {
	width := (hi - lo) / float64(len(counts))
	bins := make([]HistogramBin, len(counts))
	for i, c := range counts {
		upper := lo + width*float64(i+1)
		if i == len(counts)-1 {
			upper = hi
		}
		bins[i] = HistogramBin{Lower: lo + width*float64(i), Upper: upper, Count: c}
	}
	return Histogram{Bins: bins, Clamped: clamped, ZeroWidth: zero}
}
