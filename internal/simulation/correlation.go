package simulation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/yourusername/scenario-risk/internal/models"
)

const (
	correlationTolerance = 1e-9
	// eigenTolerance is how negative the smallest eigenvalue may be before a
	// matrix counts as not positive semi-definite
	eigenTolerance = 1e-10
)

var choleskyJitter = []float64{0, 1e-12, 1e-10, 1e-8}

// correlator turns independent standard normals into correlated ones
type correlator struct {
	lower [][]float64
}

// newCorrelator validates a correlation matrix and returns its lower
// Cholesky factor. Spearman matrices are converted to the Gaussian copula's
// Pearson parameter first.
func newCorrelator(matrix [][]float64, mode models.CorrelationMode, n int) (*correlator, error) {
	if err := checkCorrelationShape(matrix, n); err != nil {
		return nil, err
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			r := matrix[i][j]
			if i != j && mode == models.CorrelationSpearman {
				r = 2 * math.Sin(math.Pi*r/6)
			}
			if i == j {
				r = 1
			}
			sym.SetSym(i, j, r)
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(sym, false) {
		return nil, &ScenarioError{Field: "correlation", Reason: "eigen decomposition failed"}
	}
	values := eig.Values(nil)
	minEigen := values[0]
	for _, v := range values {
		minEigen = math.Min(minEigen, v)
	}
	if minEigen < -eigenTolerance {
		return nil, &ScenarioError{
			Field:  "correlation",
			Reason: fmt.Sprintf("matrix is not positive semi-definite (smallest eigenvalue %.6g)", minEigen),
		}
	}

	// Singular PSD matrices need a small diagonal lift to factorize
	for _, jitter := range choleskyJitter {
		work := mat.NewSymDense(n, nil)
		work.CopySym(sym)
		for i := 0; i < n; i++ {
			work.SetSym(i, i, 1+jitter)
		}
		var chol mat.Cholesky
		if !chol.Factorize(work) {
			continue
		}
		var l mat.TriDense
		chol.LTo(&l)
		lower := make([][]float64, n)
		for i := 0; i < n; i++ {
			lower[i] = make([]float64, i+1)
			for j := 0; j <= i; j++ {
				lower[i][j] = l.At(i, j)
			}
		}
		return &correlator{lower: lower}, nil
	}
	return nil, &ScenarioError{Field: "correlation", Reason: "cholesky factorization failed"}
}

// checkCorrelationShape verifies the matrix is square, symmetric, unit
// diagonal and bounded to [-1, 1]
func checkCorrelationShape(matrix [][]float64, n int) error {
	if len(matrix) != n {
		return &ScenarioError{Field: "correlation", Reason: fmt.Sprintf("must have %d rows, got %d", n, len(matrix))}
	}
	for i, row := range matrix {
		if len(row) != n {
			return &ScenarioError{Field: fmt.Sprintf("correlation[%d]", i), Reason: fmt.Sprintf("must have %d columns, got %d", n, len(row))}
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := matrix[i][j]
			field := fmt.Sprintf("correlation[%d][%d]", i, j)
			if math.IsNaN(v) || v < -1 || v > 1 {
				return &ScenarioError{Field: field, Reason: fmt.Sprintf("(%g) must be within [-1, 1]", v)}
			}
			if i == j && math.Abs(v-1) > correlationTolerance {
				return &ScenarioError{Field: field, Reason: fmt.Sprintf("diagonal must be 1, got %g", v)}
			}
			if math.Abs(v-matrix[j][i]) > correlationTolerance {
				return &ScenarioError{Field: field, Reason: fmt.Sprintf("matrix must be symmetric (%g != %g)", v, matrix[j][i])}
			}
		}
	}
	return nil
}

// apply writes L·z into out
func (c *correlator) apply(z, out []float64) {
	for i, row := range c.lower {
		sum := 0.0
		for j, l := range row {
			sum += l * z[j]
		}
		out[i] = sum
	}
}
