package ode

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExponentialDecay(t *testing.T) {
	s := &Solver{F: func(_ float64, y, dydt []float64) {
		dydt[0] = -y[0]
	}}
	y := []float64{1}
	require.NoError(t, s.Integrate(0, 1, y))
	require.InDelta(t, math.Exp(-1), y[0], 1e-4)
}

func TestLinearGrowthIsExact(t *testing.T) {
	s := &Solver{F: func(_ float64, y, dydt []float64) {
		dydt[0] = 2
	}}
	y := []float64{10}
	require.NoError(t, s.Integrate(0, 500, y))
	require.InDelta(t, 1010., y[0], 1e-8)
}

func TestAcceptedStepsTileTheInterval(t *testing.T) {
	var sum float64
	var last float64
	s := &Solver{
		F: func(_ float64, y, dydt []float64) { dydt[0] = -0.5 * y[0] },
		OnAccept: func(t0, t1 float64, y0, y1 []float64) {
			require.Equal(t, last, t0, "no overlap, no gap between accepted steps")
			require.Greater(t, t1, t0)
			sum += t1 - t0
			last = t1
		},
	}
	y := []float64{3}
	require.NoError(t, s.Integrate(0, 10, y))
	require.InDelta(t, 10., sum, 1e-12)
	require.InDelta(t, 10., last, 1e-12)
}

func TestBackwardIntegrationRejected(t *testing.T) {
	s := &Solver{F: func(_ float64, y, dydt []float64) { dydt[0] = 0 }}
	require.Error(t, s.Integrate(1, 0, []float64{1}))
}

func TestZeroSpanIsNoop(t *testing.T) {
	calls := 0
	s := &Solver{F: func(_ float64, y, dydt []float64) { calls++; dydt[0] = 1 }}
	y := []float64{4}
	require.NoError(t, s.Integrate(2, 2, y))
	require.Equal(t, 4., y[0])
	require.Zero(t, calls)
}

func TestMaxStepHonored(t *testing.T) {
	var biggest float64
	s := &Solver{
		F:       func(_ float64, y, dydt []float64) { dydt[0] = 1 },
		MaxStep: 0.5,
		OnAccept: func(t0, t1 float64, y0, y1 []float64) {
			if h := t1 - t0; h > biggest {
				biggest = h
			}
		},
	}
	require.NoError(t, s.Integrate(0, 10, []float64{0}))
	require.LessOrEqual(t, biggest, 0.5+1e-12)
}
