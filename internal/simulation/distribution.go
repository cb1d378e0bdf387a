package simulation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/yourusername/scenario-risk/internal/models"
)

// marginal is a variable's distribution with the scenario volatility already
// applied. It is built once per simulation.
type marginal struct {
	kind models.DistributionKind

	// triangular and PERT
	min, mode, max float64
	alpha, beta    float64
	betaDist       distuv.Beta

	// normal and log-normal
	mean, stdDev float64
}

func newMarginal(d models.Distribution, volatility float64) (marginal, error) {
	switch dist := d.(type) {
	case models.Triangular:
		lo, hi := scaleAroundMode(dist.Min, dist.MostLikely, dist.Max, volatility)
		return marginal{kind: models.KindTriangular, min: lo, mode: dist.MostLikely, max: hi}, nil
	case models.PERT:
		lo, hi := scaleAroundMode(dist.Min, dist.MostLikely, dist.Max, volatility)
		m := marginal{kind: models.KindPERT, min: lo, mode: dist.MostLikely, max: hi}
		if hi > lo {
			lambda := dist.ShapeLambda()
			m.alpha = 1 + lambda*(dist.MostLikely-lo)/(hi-lo)
			m.beta = 1 + lambda*(hi-dist.MostLikely)/(hi-lo)
			m.betaDist = distuv.Beta{Alpha: m.alpha, Beta: m.beta}
		}
		return m, nil
	case models.Normal:
		return marginal{kind: models.KindNormal, mean: dist.Mean, stdDev: dist.StdDev * volatility}, nil
	case models.LogNormal:
		return marginal{kind: models.KindLogNormal, mean: dist.Mean, stdDev: dist.StdDev * volatility}, nil
	default:
		return marginal{}, fmt.Errorf("unsupported distribution %T", d)
	}
}

// scaleAroundMode stretches the distance of both bounds from the mode
func scaleAroundMode(min, mode, max, volatility float64) (float64, float64) {
	return mode - (mode-min)*volatility, mode + (max-mode)*volatility
}

// sample draws one independent value
func (m *marginal) sample(rng RNG) float64 {
	switch m.kind {
	case models.KindTriangular:
		return m.triangularQuantile(rng.Next())
	case models.KindPERT:
		if m.max <= m.min {
			return m.mode
		}
		x := sampleGamma(rng, m.alpha)
		y := sampleGamma(rng, m.beta)
		return m.min + (m.max-m.min)*x/(x+y)
	case models.KindNormal:
		return rng.NextNormal(m.mean, m.stdDev)
	default:
		return math.Exp(rng.NextNormal(m.mean, m.stdDev))
	}
}

// fromStandardNormal maps a (correlated) standard normal draw onto the
// marginal, preserving the marginal distribution
func (m *marginal) fromStandardNormal(z float64) float64 {
	switch m.kind {
	case models.KindTriangular:
		return m.triangularQuantile(distuv.UnitNormal.CDF(z))
	case models.KindPERT:
		if m.max <= m.min {
			return m.mode
		}
		return m.min + (m.max-m.min)*m.betaDist.Quantile(distuv.UnitNormal.CDF(z))
	case models.KindNormal:
		return m.mean + m.stdDev*z
	default:
		return math.Exp(m.mean + m.stdDev*z)
	}
}

// triangularQuantile is the inverse CDF of the triangular distribution
func (m *marginal) triangularQuantile(u float64) float64 {
	width := m.max - m.min
	if width <= 0 {
		return m.mode
	}
	fc := (m.mode - m.min) / width
	if u < fc {
		return m.min + math.Sqrt(u*width*(m.mode-m.min))
	}
	return m.max - math.Sqrt((1-u)*width*(m.max-m.mode))
}

// sampleGamma draws Gamma(shape, 1) with the Marsaglia–Tsang method. Shapes
// below one are boosted with U^(1/shape).
func sampleGamma(rng RNG, shape float64) float64 {
	if shape < 1 {
		u := rng.Next()
		return sampleGamma(rng, shape+1) * math.Pow(1-u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NextNormal(0, 1)
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Next()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if u > 0 && math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
