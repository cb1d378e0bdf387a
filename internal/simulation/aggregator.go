package simulation

import (
	"fmt"
	"math"

	"github.com/yourusername/scenario-risk/internal/models"
)

// variableStats tracks one input variable's moments and its co-moment with
// the KPI
type variableStats struct {
	mean float64
	m2   float64
	// co is sum((x - meanX)(y - meanY)) against the KPI
	co float64
}

// Aggregator accumulates KPI statistics one run at a time.
//
// Moments use Welford/Terriberry updates; Merge uses the matching pairwise
// formulas so partial aggregates over consecutive run ranges reduce to the
// same moments as one pass.
type Aggregator struct {
	cfg         Config
	variableIDs []string

	n        int
	mean     float64
	m2       float64
	m3       float64
	min, max float64

	vars []variableStats

	samples   []float64
	reservoir *reservoir
	binner    *binner

	runs []models.SimulationRun
}

// NewAggregator creates an empty aggregator for the given variables. seed
// keys reservoir membership.
func NewAggregator(cfg Config, variableIDs []string, seed int64) *Aggregator {
	cfg = cfg.withDefaults()
	a := &Aggregator{
		cfg:         cfg,
		variableIDs: variableIDs,
		min:         math.Inf(1),
		max:         math.Inf(-1),
		vars:        make([]variableStats, len(variableIDs)),
	}
	switch cfg.Retention.Mode {
	case RetentionFull:
		a.samples = make([]float64, 0, 1024)
	default:
		a.reservoir = newReservoir(cfg.Retention.ReservoirSize, seed)
		a.binner = newBinner(cfg.HistogramBins, cfg.HistogramWarmup, cfg.HistogramRange)
	}
	return a
}

// Count returns the number of runs aggregated
func (a *Aggregator) Count() int { return a.n }

// Add records one run. values are in variable declaration order and are not
// retained unless the run falls within KeepRuns.
func (a *Aggregator) Add(runIndex int, values []float64, kpi float64) {
	n1 := float64(a.n)
	a.n++
	n := float64(a.n)

	delta := kpi - a.mean
	deltaN := delta / n
	term1 := delta * deltaN * n1
	a.mean += deltaN
	a.m3 += term1*deltaN*(n-2) - 3*deltaN*a.m2
	a.m2 += term1

	for i := range a.vars {
		v := &a.vars[i]
		dx := values[i] - v.mean
		v.mean += dx / n
		v.m2 += dx * (values[i] - v.mean)
		v.co += dx * (kpi - a.mean)
	}

	a.min = math.Min(a.min, kpi)
	a.max = math.Max(a.max, kpi)

	if a.reservoir != nil {
		a.reservoir.add(runIndex, kpi)
		a.binner.add(kpi)
	} else {
		a.samples = append(a.samples, kpi)
	}

	if len(a.runs) < a.cfg.Retention.KeepRuns {
		m := make(map[string]float64, len(values))
		for i, id := range a.variableIDs {
			m[id] = values[i]
		}
		a.runs = append(a.runs, models.SimulationRun{Index: runIndex, Values: m, KPI: kpi})
	}
}

// HistogramRange returns the histogram range once it is fixed, or nil. Later
// partials built with this as Config.HistogramRange merge their bins exactly.
func (a *Aggregator) HistogramRange() *[2]float64 {
	if a.binner == nil {
		return nil
	}
	return a.binner.rangeOf()
}

// Merge folds in an aggregator covering later runs of the same simulation.
// Moments and co-moments combine exactly; the reservoir combines by run
// priority. The histogram keeps the receiver's range; counts from a partial
// binned on another range are moved by bin midpoint.
func (a *Aggregator) Merge(o *Aggregator) error {
	if len(a.vars) != len(o.vars) {
		return fmt.Errorf("cannot merge aggregators over %d and %d variables", len(a.vars), len(o.vars))
	}
	if (a.reservoir == nil) != (o.reservoir == nil) {
		return fmt.Errorf("cannot merge aggregators with different retention modes")
	}
	if o.n == 0 {
		return nil
	}
	if a.binner != nil {
		a.binner.merge(o.binner)
	}
	if a.n == 0 {
		a.n, a.mean, a.m2, a.m3 = o.n, o.mean, o.m2, o.m3
		a.min, a.max = o.min, o.max
		copy(a.vars, o.vars)
	} else {
		na, nb := float64(a.n), float64(o.n)
		n := na + nb
		delta := o.mean - a.mean

		m3 := a.m3 + o.m3 +
			delta*delta*delta*na*nb*(na-nb)/(n*n) +
			3*delta*(na*o.m2-nb*a.m2)/n
		m2 := a.m2 + o.m2 + delta*delta*na*nb/n

		for i := range a.vars {
			va, vb := &a.vars[i], o.vars[i]
			dx := vb.mean - va.mean
			va.co += vb.co + dx*delta*na*nb/n
			va.m2 += vb.m2 + dx*dx*na*nb/n
			va.mean += dx * nb / n
		}

		a.mean += delta * nb / n
		a.m2, a.m3 = m2, m3
		a.n += o.n
		a.min = math.Min(a.min, o.min)
		a.max = math.Max(a.max, o.max)
	}

	if a.reservoir != nil {
		a.reservoir.merge(o.reservoir)
	} else {
		a.samples = append(a.samples, o.samples...)
	}
	for _, r := range o.runs {
		if len(a.runs) >= a.cfg.Retention.KeepRuns {
			break
		}
		a.runs = append(a.runs, r)
	}
	return nil
}

// Mean returns the running KPI mean
func (a *Aggregator) Mean() float64 { return a.mean }

// Variance returns the sample variance (n-1 denominator)
func (a *Aggregator) Variance() float64 {
	if a.n < 2 {
		return 0
	}
	return a.m2 / float64(a.n-1)
}

// correlation returns the Pearson correlation of variable i with the KPI and
// whether it is defined
func (a *Aggregator) correlation(i int) (float64, bool) {
	v := a.vars[i]
	if v.m2 <= 0 || a.m2 <= 0 {
		return 0, false
	}
	r := v.co / math.Sqrt(v.m2*a.m2)
	return math.Max(-1, math.Min(1, r)), true
}

// skewness returns the sample skewness g1 and whether it is defined
func (a *Aggregator) skewness() (float64, bool) {
	if a.n < 2 || a.m2 <= 0 {
		return 0, false
	}
	return math.Sqrt(float64(a.n)) * a.m3 / math.Pow(a.m2, 1.5), true
}
