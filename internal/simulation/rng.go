package simulation

import (
	"fmt"
	"math"
)

// Algorithm names a pseudo-random generator
type Algorithm string

// Supported generators
const (
	// AlgorithmMulberry32 is a 32-bit single-state generator. Fast, period 2^32.
	AlgorithmMulberry32 Algorithm = "mulberry32"
	// AlgorithmXorshift128 is xorshift128+ over two 64-bit words. Period 2^128-1.
	AlgorithmXorshift128 Algorithm = "xorshift128"
)

// RNG is a deterministic variate source.
//
// Same seed and the same sequence of prior calls MUST produce bit-identical
// values. Implementations hold no global state and are not safe for
// concurrent use.
type RNG interface {
	// Next returns a uniform value in [0, 1).
	Next() float64
	// NextNormal returns a normal variate via Box–Muller.
	NextNormal(mean, stdDev float64) float64
}

// RNGFactory builds an RNG for a seed
type RNGFactory func(seed int64) RNG

// NewRNG creates a generator for the named algorithm
func NewRNG(alg Algorithm, seed int64) (RNG, error) {
	factory, err := FactoryFor(alg)
	if err != nil {
		return nil, err
	}
	return factory(seed), nil
}

// FactoryFor returns the constructor for the named algorithm
func FactoryFor(alg Algorithm) (RNGFactory, error) {
	switch alg {
	case AlgorithmMulberry32, "":
		return func(seed int64) RNG { return NewMulberry32(seed) }, nil
	case AlgorithmXorshift128:
		return func(seed int64) RNG { return NewXorshift128(seed) }, nil
	default:
		return nil, fmt.Errorf("unknown rng algorithm %q", alg)
	}
}

// boxMuller turns pairs of uniforms into normals.
//
// Policy: each transform consumes exactly two uniforms and yields two
// normals; the cosine branch is returned immediately and the sine branch is
// cached and returned by the following call. The cache is part of the
// generator state, so the sequence stays a pure function of seed and calls.
type boxMuller struct {
	spare    float64
	hasSpare bool
}

func (b *boxMuller) normal(next func() float64, mean, stdDev float64) float64 {
	if b.hasSpare {
		b.hasSpare = false
		return mean + stdDev*b.spare
	}
	u1 := next()
	u2 := next()
	// 1-u1 is in (0,1], keeping the log finite
	r := math.Sqrt(-2 * math.Log(1-u1))
	theta := 2 * math.Pi * u2
	b.spare = r * math.Sin(theta)
	b.hasSpare = true
	return mean + stdDev*r*math.Cos(theta)
}

// Mulberry32 is a 32-bit single-state generator
type Mulberry32 struct {
	state uint32
	bm    boxMuller
}

// NewMulberry32 seeds a Mulberry32 generator with the low 32 bits of seed
func NewMulberry32(seed int64) *Mulberry32 {
	return &Mulberry32{state: uint32(seed)}
}

// Next implements RNG
func (m *Mulberry32) Next() float64 {
	m.state += 0x6D2B79F5
	t := m.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296.0
}

// NextNormal implements RNG
func (m *Mulberry32) NextNormal(mean, stdDev float64) float64 {
	return m.bm.normal(m.Next, mean, stdDev)
}

// Xorshift128 is the xorshift128+ generator with two 64-bit state words
type Xorshift128 struct {
	s0, s1 uint64
	bm     boxMuller
}

// NewXorshift128 seeds both state words from seed through splitmix64
func NewXorshift128(seed int64) *Xorshift128 {
	x := uint64(seed)
	s0 := splitmix64(&x)
	s1 := splitmix64(&x)
	if s0 == 0 && s1 == 0 {
		s1 = 1
	}
	return &Xorshift128{s0: s0, s1: s1}
}

// Next implements RNG
func (x *Xorshift128) Next() float64 {
	s1 := x.s0
	s0 := x.s1
	x.s0 = s0
	s1 ^= s1 << 23
	x.s1 = s1 ^ s0 ^ (s1 >> 17) ^ (s0 >> 26)
	return float64((x.s1+s0)>>11) / (1 << 53)
}

// NextNormal implements RNG
func (x *Xorshift128) NextNormal(mean, stdDev float64) float64 {
	return x.bm.normal(x.Next, mean, stdDev)
}

// splitmix64 advances state and returns the next mixed value
func splitmix64(state *uint64) uint64 {
	*state += 0x9E3779B97F4A7C15
	z := *state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}
