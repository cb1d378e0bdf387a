package simulation

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/scenario-risk/internal/models"
)

// NumericFlag marks a non-fatal numeric degeneracy in a result
type NumericFlag string

// Numeric flags
const (
	FlagCVUndefined        NumericFlag = "cv_undefined"
	FlagZeroVariance       NumericFlag = "zero_variance"
	FlagZeroWidthHistogram NumericFlag = "zero_width_histogram"
	FlagConstantVariable   NumericFlag = "constant_variable"
)

// Percentile methods recorded in RetentionSummary
const (
	PercentileExact     = "exact"
	PercentileReservoir = "reservoir-estimate"
)

// cvRelativeEpsilon treats the mean as zero relative to the observed KPI
// magnitude
const cvRelativeEpsilon = 1e-9

// Percentiles holds the reported order statistics
type Percentiles struct {
	P5  float64 `json:"p5"`
	P10 float64 `json:"p10"`
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
}

// TornadoEntry is one variable's association with the KPI
type TornadoEntry struct {
	VariableID string `json:"variableId"`
	Name       string `json:"name,omitempty"`
	// Sensitivity is the signed Pearson correlation with the KPI.
	Sensitivity float64 `json:"sensitivity"`
}

// Magnitude returns |Sensitivity|
func (t TornadoEntry) Magnitude() float64 { return math.Abs(t.Sensitivity) }

// RetentionSummary states how percentiles were obtained
type RetentionSummary struct {
	Mode       RetentionMode `json:"mode"`
	SampleSize int           `json:"sampleSize"`
	Method     string        `json:"method"`
}

// Result is the assembled outcome of one simulation. It is not modified
// after assembly.
type Result struct {
	ScenarioID   uuid.UUID `json:"scenarioId"`
	ScenarioName string    `json:"scenarioName,omitempty"`
	Algorithm    Algorithm `json:"algorithm"`
	Seed         int64     `json:"seed"`
	Fingerprint  string    `json:"fingerprint"`

	RunCount    int         `json:"runCount"`
	Percentiles Percentiles `json:"percentiles"`
	Mean        float64     `json:"mean"`
	StdDev      float64     `json:"stdDev"`
	Min         float64     `json:"min"`
	Max         float64     `json:"max"`
	// CoefficientOfVariation is nil when the mean is effectively zero.
	CoefficientOfVariation *float64 `json:"coefficientOfVariation"`
	// Skewness is nil when the variance is zero.
	Skewness *float64 `json:"skewness"`

	Histogram Histogram              `json:"histogram"`
	Tornado   []TornadoEntry         `json:"tornado"`
	Retention RetentionSummary       `json:"retention"`
	Runs      []models.SimulationRun `json:"runs,omitempty"`
	Flags     []NumericFlag          `json:"flags,omitempty"`

	Elapsed   time.Duration `json:"elapsed"`
	CreatedAt time.Time     `json:"createdAt"`
}

// HasFlag reports whether flag was raised
func (r *Result) HasFlag(flag NumericFlag) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// resultMeta carries identity fields the aggregator does not know
type resultMeta struct {
	scenario    *models.ScenarioConfig
	algorithm   Algorithm
	seed        int64
	fingerprint string
}

// assemble finalizes an aggregator into a Result
func assemble(a *Aggregator, meta resultMeta) *Result {
	r := &Result{
		ScenarioID:   meta.scenario.ID,
		ScenarioName: meta.scenario.Name,
		Algorithm:    meta.algorithm,
		Seed:         meta.seed,
		Fingerprint:  meta.fingerprint,
		RunCount:     a.n,
		Mean:         a.mean,
		StdDev:       math.Sqrt(a.Variance()),
		Min:          a.min,
		Max:          a.max,
		Runs:         a.runs,
	}

	var sorted []float64
	if a.reservoir != nil {
		sorted = a.reservoir.sorted()
		r.Histogram = a.binner.histogram()
		r.Retention = RetentionSummary{Mode: RetentionReservoir, SampleSize: len(sorted), Method: PercentileReservoir}
		if len(sorted) == a.n {
			r.Retention.Method = PercentileExact
		}
	} else {
		sorted = append([]float64(nil), a.samples...)
		sort.Float64s(sorted)
		r.Histogram = histogramFromSamples(sorted, a.cfg.HistogramBins)
		r.Retention = RetentionSummary{Mode: RetentionFull, SampleSize: len(sorted), Method: PercentileExact}
	}
	r.Percentiles = percentiles(sorted)

	if r.Histogram.ZeroWidth {
		r.Flags = append(r.Flags, FlagZeroWidthHistogram)
	}

	scale := math.Max(math.Abs(a.min), math.Abs(a.max))
	if a.mean == 0 || math.Abs(a.mean) <= cvRelativeEpsilon*scale {
		r.Flags = append(r.Flags, FlagCVUndefined)
	} else {
		cv := r.StdDev / a.mean
		r.CoefficientOfVariation = &cv
	}

	if g1, ok := a.skewness(); ok {
		r.Skewness = &g1
	} else {
		r.Flags = append(r.Flags, FlagZeroVariance)
	}

	r.Tornado = tornado(a, meta.scenario)
	for i := range a.vars {
		if a.vars[i].m2 <= 0 {
			r.Flags = append(r.Flags, FlagConstantVariable)
			break
		}
	}
	return r
}

func percentiles(sorted []float64) Percentiles {
	if len(sorted) == 0 {
		return Percentiles{}
	}
	q := func(p float64) float64 {
		return stat.Quantile(p, stat.LinInterp, sorted, nil)
	}
	return Percentiles{
		P5:  q(0.05),
		P10: q(0.10),
		P50: q(0.50),
		P90: q(0.90),
		P95: q(0.95),
	}
}

// tornado ranks variables by |correlation| with the KPI, keeping declaration
// order among ties
func tornado(a *Aggregator, scenario *models.ScenarioConfig) []TornadoEntry {
	entries := make([]TornadoEntry, len(a.vars))
	for i, v := range scenario.Variables {
		r, _ := a.correlation(i)
		entries[i] = TornadoEntry{VariableID: v.ID, Name: v.Name, Sensitivity: r}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Magnitude() > entries[j].Magnitude()
	})
	return entries
}
