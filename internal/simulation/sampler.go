package simulation

import (
	"github.com/yourusername/scenario-risk/internal/models"
)

// Sampler draws one joint variable vector per run
type Sampler struct {
	rng        RNG
	marginals  []marginal
	correlator *correlator

	independent []float64
	correlated  []float64
}

// NewSampler prepares a sampler for a validated scenario
func NewSampler(scenario *models.ScenarioConfig, rng RNG) (*Sampler, error) {
	n := len(scenario.Variables)
	s := &Sampler{
		rng:       rng,
		marginals: make([]marginal, n),
	}
	for i, v := range scenario.Variables {
		m, err := newMarginal(v.Distribution, scenario.Volatility)
		if err != nil {
			return nil, err
		}
		s.marginals[i] = m
	}
	if scenario.Correlated() {
		c, err := newCorrelator(scenario.Correlation, scenario.CorrelationMode, n)
		if err != nil {
			return nil, err
		}
		s.correlator = c
		s.independent = make([]float64, n)
		s.correlated = make([]float64, n)
	}
	return s, nil
}

// Draw fills out with one sample per variable in declaration order.
//
// Uncorrelated scenarios draw each variable from its own transform.
// Correlated scenarios draw one standard normal per variable, correlate the
// vector with the Cholesky factor and push each element through its
// marginal.
func (s *Sampler) Draw(out []float64) {
	if s.correlator == nil {
		for i := range s.marginals {
			out[i] = s.marginals[i].sample(s.rng)
		}
		return
	}
	for i := range s.independent {
		s.independent[i] = s.rng.NextNormal(0, 1)
	}
	s.correlator.apply(s.independent, s.correlated)
	for i := range s.marginals {
		out[i] = s.marginals[i].fromStandardNormal(s.correlated[i])
	}
}
