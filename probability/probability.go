// Package probability holds the curves used to spread expiration and
// invalidation across reads instead of letting every reader observe them at
// the same instant.
//
// A Func maps a normalized progress value x (0 = start of the risk window,
// 1 = end of it) to the probability that a single read observes the event.
// Every Func returned by this package satisfies:
//
//	x <= 0 => 0
//	x >= 1 => 1
//	monotonic non-decreasing on (0,1), range within [0,1]
//
// The grace zone g is the initial fraction of the domain where the
// probability stays at zero.
package probability

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidGraceZone = errors.New("probability: grace zone must be in [0,1)")
	ErrInvalidShape     = errors.New("probability: shape factor must be != 0")
)

// Func returns the probability for the normalized progress x.
type Func func(x float64) float64

// Linear ramps from 0 at the end of the grace zone to 1 at x=1.
func Linear(graceZone float64) (Func, error) {
	if err := checkGraceZone(graceZone); err != nil {
		return nil, err
	}
	return func(x float64) float64 {
		if x <= 0 {
			return 0
		}
		return clamp((x - graceZone) / (1 - graceZone))
	}, nil
}

// AdjustedExponential is an exponential curve rescaled so that it passes
// through (g,0) and (1,1). Larger shape values keep the probability low for
// longer and then rise sharply; negative values bend the other way.
func AdjustedExponential(graceZone, shape float64) (Func, error) {
	if err := checkGraceZone(graceZone); err != nil {
		return nil, err
	}
	if shape == 0 || math.IsNaN(shape) {
		return nil, ErrInvalidShape
	}
	den := math.Expm1(shape)
	return func(x float64) float64 {
		if x <= 0 {
			return 0
		}
		if x >= 1 {
			return 1
		}
		xx := (x - graceZone) / (1 - graceZone)
		return clamp(math.Expm1(xx*shape) / den)
	}, nil
}

// MustLinear is like Linear but panics on error.
func MustLinear(graceZone float64) Func {
	f, err := Linear(graceZone)
	if err != nil {
		panic(err)
	}
	return f
}

// MustAdjustedExponential is like AdjustedExponential but panics on error.
// Handy for package-level defaults.
func MustAdjustedExponential(graceZone, shape float64) Func {
	f, err := AdjustedExponential(graceZone, shape)
	if err != nil {
		panic(err)
	}
	return f
}

func checkGraceZone(g float64) error {
	if math.IsNaN(g) || g < 0 || g >= 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidGraceZone, g)
	}
	return nil
}

func clamp(y float64) float64 {
	switch {
	case math.IsNaN(y), y <= 0:
		return 0
	case y >= 1:
		return 1
	default:
		return y
	}
}
