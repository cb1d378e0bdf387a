package simulation

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/scenario-risk/internal/models"
)

func drawMany(t *testing.T, d models.Distribution, volatility float64, n int, seed int64) []float64 {
	t.Helper()
	m, err := newMarginal(d, volatility)
	require.NoError(t, err)
	rng := NewMulberry32(seed)
	out := make([]float64, n)
	for i := range out {
		out[i] = m.sample(rng)
	}
	return out
}

func TestTriangularBoundsAndMedian(t *testing.T) {
	values := drawMany(t, models.Triangular{Min: 8, MostLikely: 12, Max: 18}, 1, 50000, 42)

	for _, v := range values {
		require.GreaterOrEqual(t, v, 8.0)
		require.LessOrEqual(t, v, 18.0)
	}
	sort.Float64s(values)
	median := stat.Quantile(0.5, stat.Empirical, values, nil)
	// Analytical median: 18 - sqrt(0.5 * 10 * 6)
	assert.InDelta(t, 18-math.Sqrt(30), median, 0.1)
	assert.InDelta(t, (8.0+12+18)/3, stat.Mean(values, nil), 0.05)
}

func TestTriangularDegenerate(t *testing.T) {
	values := drawMany(t, models.Triangular{Min: 5, MostLikely: 5, Max: 5}, 1, 100, 1)
	for _, v := range values {
		assert.Equal(t, 5.0, v)
	}
}

func TestPERTMeanMatchesFormula(t *testing.T) {
	tests := []struct {
		name string
		dist models.PERT
	}{
		{name: "default lambda", dist: models.PERT{Min: 10, MostLikely: 20, Max: 60}},
		{name: "custom lambda", dist: models.PERT{Min: 0, MostLikely: 2, Max: 10, Lambda: 6}},
		{name: "mode at min", dist: models.PERT{Min: 0, MostLikely: 0, Max: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := drawMany(t, tt.dist, 1, 50000, 3)
			for _, v := range values {
				require.GreaterOrEqual(t, v, tt.dist.Min)
				require.LessOrEqual(t, v, tt.dist.Max)
			}
			tolerance := (tt.dist.Max - tt.dist.Min) * 0.01
			assert.InDelta(t, tt.dist.Mean(), stat.Mean(values, nil), tolerance)
		})
	}
}

func TestNormalAndLogNormal(t *testing.T) {
	normal := drawMany(t, models.Normal{Mean: 100, StdDev: 15}, 1, 50000, 8)
	assert.InDelta(t, 100, stat.Mean(normal, nil), 0.3)
	assert.InDelta(t, 15, stat.StdDev(normal, nil), 0.3)

	logNormal := drawMany(t, models.LogNormal{Mean: 0, StdDev: 0.5}, 1, 50000, 8)
	logs := make([]float64, len(logNormal))
	for i, v := range logNormal {
		require.Greater(t, v, 0.0)
		logs[i] = math.Log(v)
	}
	assert.InDelta(t, 0, stat.Mean(logs, nil), 0.01)
	assert.InDelta(t, 0.5, stat.StdDev(logs, nil), 0.01)
}

func TestVolatilityScaling(t *testing.T) {
	t.Run("normal std dev", func(t *testing.T) {
		values := drawMany(t, models.Normal{Mean: 0, StdDev: 2}, 1.5, 50000, 4)
		assert.InDelta(t, 3, stat.StdDev(values, nil), 0.05)
	})
	t.Run("triangular bounds around mode", func(t *testing.T) {
		m, err := newMarginal(models.Triangular{Min: 8, MostLikely: 12, Max: 18}, 2)
		require.NoError(t, err)
		assert.Equal(t, 4.0, m.min)
		assert.Equal(t, 12.0, m.mode)
		assert.Equal(t, 24.0, m.max)
	})
	t.Run("pert shape follows scaled bounds", func(t *testing.T) {
		m, err := newMarginal(models.PERT{Min: 0, MostLikely: 5, Max: 10}, 0.5)
		require.NoError(t, err)
		assert.Equal(t, 2.5, m.min)
		assert.Equal(t, 7.5, m.max)
		assert.Equal(t, 3.0, m.alpha)
		assert.Equal(t, 3.0, m.beta)
	})
}

func TestFromStandardNormalPreservesMarginals(t *testing.T) {
	m, err := newMarginal(models.Triangular{Min: 8, MostLikely: 12, Max: 18}, 1)
	require.NoError(t, err)
	assert.Equal(t, 8.0, m.fromStandardNormal(math.Inf(-1)))
	assert.InDelta(t, 18-math.Sqrt(30), m.fromStandardNormal(0), 1e-9)

	pert, err := newMarginal(models.PERT{Min: 0, MostLikely: 5, Max: 10}, 1)
	require.NoError(t, err)
	// Symmetric PERT has its median at the mode
	assert.InDelta(t, 5, pert.fromStandardNormal(0), 1e-6)
}

func TestSampleGammaMean(t *testing.T) {
	rng := NewXorshift128(21)
	for _, shape := range []float64{0.5, 1, 3.5} {
		values := make([]float64, 40000)
		for i := range values {
			values[i] = sampleGamma(rng, shape)
		}
		assert.InDelta(t, shape, stat.Mean(values, nil), shape*0.03, "shape %v", shape)
	}
}
