package lookup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableInterpolatesAndClamps(t *testing.T) {
	tb, err := NewTable([]float64{0, 100}, []float64{0, 10})
	require.NoError(t, err)

	// exact sample points return the stored values
	require.Equal(t, 0., tb.Lookup(0))
	require.Equal(t, 10., tb.Lookup(100))
	require.InDelta(t, 5., tb.Lookup(50), 1e-12)

	// outside the domain: clamped, no extrapolation
	require.Equal(t, 0., tb.Lookup(-25))
	require.Equal(t, 10., tb.Lookup(1e6))
}

func TestTableConstruction(t *testing.T) {
	_, err := NewTable([]float64{0, 1}, []float64{0})
	require.Error(t, err, "length mismatch")

	_, err = NewTable([]float64{0, 2, 1}, []float64{0, 1, 2})
	require.Error(t, err, "unsorted independent variable")

	_, err = NewTable(nil, nil)
	require.Error(t, err, "empty table")
}

func TestTableSingleSample(t *testing.T) {
	tb, err := NewTable([]float64{5}, []float64{3})
	require.NoError(t, err)
	require.Equal(t, 3., tb.Lookup(-1))
	require.Equal(t, 3., tb.Lookup(5))
	require.Equal(t, 3., tb.Lookup(99))
}

func TestTableDuplicateAbscissae(t *testing.T) {
	// a repeated x expresses a step jump: the last value holds at and above
	// it, the segment below interpolates toward the first
	tb, err := NewTable([]float64{0, 1, 1, 2}, []float64{0, 1, 5, 6})
	require.NoError(t, err)
	require.Equal(t, 5., tb.Lookup(1))
	require.InDelta(t, 5.5, tb.Lookup(1.5), 1e-12)
	require.InDelta(t, 0.5, tb.Lookup(0.5), 1e-12)
	require.InDelta(t, 0.9, tb.Lookup(0.9), 1e-12, "left segment unaffected by the jump")
}

func TestTableStepRatingCurve(t *testing.T) {
	// an outlet that opens abruptly at storage 50
	tb, err := NewTable([]float64{0, 50, 50, 100}, []float64{0, 0, 1e-4, 1.5e-4})
	require.NoError(t, err)
	require.Equal(t, 0., tb.Lookup(25), "shut everywhere below the step")
	require.Equal(t, 0., tb.Lookup(49.999))
	require.Equal(t, 1e-4, tb.Lookup(50))
	require.InDelta(t, 1.25e-4, tb.Lookup(75), 1e-18)
}

func TestTableBounds(t *testing.T) {
	tb, err := NewTable([]float64{2, 4}, []float64{1, 3})
	require.NoError(t, err)
	require.Equal(t, 2., tb.MinX())
	require.Equal(t, 1., tb.MinY())
}
