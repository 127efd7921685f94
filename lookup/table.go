// Package lookup provides the monotonic piecewise-linear tables used by the
// water-balance model: storage-indexed profile relations (storage to area,
// level or discharge) and time-indexed forcing series.
package lookup

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// Table is a piecewise-linear lookup over a non-decreasing independent
// variable. Queries outside the tabulated domain clamp to the end values; no
// extrapolation. A repeated abscissa expresses a step jump: the segment below
// it interpolates toward the first value at that x, queries at and above it
// see the last.
type Table struct {
	xs, ys []float64
}

// NewTable builds a table from co-indexed samples. xs must be sorted
// non-decreasing.
func NewTable(xs, ys []float64) (*Table, error) {
	if len(xs) != len(ys) {
		return nil, errors.Newf("lookup: %d sample points against %d values", len(xs), len(ys))
	}
	if len(xs) == 0 {
		return nil, errors.New("lookup: empty table")
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] < xs[i-1] {
			return nil, errors.Newf("lookup: independent variable not sorted at index %d (%g < %g)", i, xs[i], xs[i-1])
		}
	}
	return &Table{xs: xs, ys: ys}, nil
}

// Lookup returns the interpolated value at x, clamped to the table bounds.
func (t *Table) Lookup(x float64) float64 {
	n := len(t.xs)
	if x < t.xs[0] {
		return t.ys[0]
	}
	if x >= t.xs[n-1] {
		return t.ys[n-1]
	}
	i := sort.SearchFloat64s(t.xs, x) // first index with xs[i] >= x
	if t.xs[i] == x {
		for i+1 < n && t.xs[i+1] == x {
			i++ // a step jump holds the last value at its abscissa
		}
		return t.ys[i]
	}
	// xs[i-1] < x < xs[i]; with a duplicated abscissa below, ys[i-1] is the
	// post-jump value, so the segment above a step is unaffected by it
	w := (x - t.xs[i-1]) / (t.xs[i] - t.xs[i-1])
	return t.ys[i-1] + w*(t.ys[i]-t.ys[i-1])
}

// MinX returns the lower bound of the tabulated domain.
func (t *Table) MinX() float64 { return t.xs[0] }

// MinY returns the dependent value at the lower bound.
func (t *Table) MinY() float64 { return t.ys[0] }
