package simulation

import (
	"fmt"
	"math"
)

// RetentionMode selects how KPI values are kept for percentile estimation
type RetentionMode string

// Retention modes
const (
	// RetentionFull keeps every KPI value; percentiles are exact.
	RetentionFull RetentionMode = "full"
	// RetentionReservoir keeps a bounded, index-keyed sample; percentiles are
	// estimates once the run count exceeds the reservoir size.
	RetentionReservoir RetentionMode = "reservoir"
)

// Defaults
const (
	DefaultChunkSize       = 5000
	DefaultReservoirSize   = 10000
	DefaultHistogramBins   = 20
	DefaultHistogramWarmup = 1000
	DefaultMinRuns         = 1
	DefaultMaxRuns         = 1000000
)

// Retention configures order-statistic storage
type Retention struct {
	Mode          RetentionMode
	ReservoirSize int
	// KeepRuns retains the first KeepRuns full run records in the result.
	KeepRuns int
}

// Config holds engine settings supplied by the surrounding application
type Config struct {
	Algorithm       Algorithm
	DefaultSeed     int64
	ChunkSize       int
	MinRuns         int
	MaxRuns         int
	Retention       Retention
	HistogramBins   int
	HistogramWarmup int
	// HistogramRange pre-declares the histogram's [lo, hi]. Nil derives the
	// range from the first HistogramWarmup values.
	HistogramRange *[2]float64
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		Algorithm: AlgorithmMulberry32,
		ChunkSize: DefaultChunkSize,
		MinRuns:   DefaultMinRuns,
		MaxRuns:   DefaultMaxRuns,
		Retention: Retention{
			Mode:          RetentionReservoir,
			ReservoirSize: DefaultReservoirSize,
		},
		HistogramBins:   DefaultHistogramBins,
		HistogramWarmup: DefaultHistogramWarmup,
	}
}

// withDefaults fills zero values from DefaultConfig
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Algorithm == "" {
		c.Algorithm = d.Algorithm
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.MinRuns == 0 {
		c.MinRuns = d.MinRuns
	}
	if c.MaxRuns == 0 {
		c.MaxRuns = d.MaxRuns
	}
	if c.Retention.Mode == "" {
		c.Retention.Mode = d.Retention.Mode
	}
	if c.Retention.Mode == RetentionReservoir && c.Retention.ReservoirSize == 0 {
		c.Retention.ReservoirSize = d.Retention.ReservoirSize
	}
	if c.HistogramBins == 0 {
		c.HistogramBins = d.HistogramBins
	}
	if c.HistogramWarmup == 0 {
		c.HistogramWarmup = d.HistogramWarmup
	}
	return c
}

// Validate validates engine settings
func (c Config) Validate() error {
	if _, err := FactoryFor(c.Algorithm); err != nil {
		return err
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive")
	}
	if c.MinRuns <= 0 {
		return fmt.Errorf("min runs must be positive")
	}
	if c.MaxRuns < c.MinRuns {
		return fmt.Errorf("max runs (%d) must be >= min runs (%d)", c.MaxRuns, c.MinRuns)
	}
	switch c.Retention.Mode {
	case RetentionFull:
	case RetentionReservoir:
		if c.Retention.ReservoirSize <= 0 {
			return fmt.Errorf("reservoir size must be positive")
		}
	default:
		return fmt.Errorf("unknown retention mode %q", c.Retention.Mode)
	}
	if c.Retention.KeepRuns < 0 {
		return fmt.Errorf("keep runs cannot be negative")
	}
	if c.HistogramBins <= 0 {
		return fmt.Errorf("histogram bins must be positive")
	}
	if c.HistogramWarmup <= 0 {
		return fmt.Errorf("histogram warmup must be positive")
	}
	if r := c.HistogramRange; r != nil {
		if math.IsNaN(r[0]) || math.IsNaN(r[1]) || math.IsInf(r[0], 0) || math.IsInf(r[1], 0) || r[0] >= r[1] {
			return fmt.Errorf("histogram range must be finite with lo < hi")
		}
	}
	return nil
}
