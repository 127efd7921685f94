package lookup

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// Series is a time-indexed forcing record. Values are forward-filled: the
// sample at or before t applies until the next sample (held constant, not
// interpolated). A Series built with Constant has no time samples and returns
// the same value over the whole span.
type Series struct {
	ts, vs []float64 // seconds since simulation start
	static bool
}

// NewSeries builds a time series from sorted sample times (seconds since
// simulation start) and values.
func NewSeries(ts, vs []float64) (*Series, error) {
	if len(ts) != len(vs) {
		return nil, errors.Newf("lookup: %d sample times against %d values", len(ts), len(vs))
	}
	if len(ts) == 0 {
		return nil, errors.New("lookup: empty series")
	}
	for i := 1; i < len(ts); i++ {
		if ts[i] <= ts[i-1] {
			return nil, errors.Newf("lookup: series times not strictly increasing at index %d", i)
		}
	}
	return &Series{ts: ts, vs: vs}, nil
}

// Constant returns a static series holding v over the whole span.
func Constant(v float64) *Series {
	return &Series{vs: []float64{v}, static: true}
}

// At returns the held value at time t.
func (s *Series) At(t float64) float64 {
	if s.static {
		return s.vs[0]
	}
	i := sort.SearchFloat64s(s.ts, t) // first index with ts[i] >= t
	if i < len(s.ts) && s.ts[i] == t {
		return s.vs[i]
	}
	if i == 0 {
		return s.vs[0]
	}
	return s.vs[i-1]
}

// Covers reports whether the series defines a value from t0 onward. Static
// series cover any span; timed series must begin at or before t0.
func (s *Series) Covers(t0 float64) bool {
	return s.static || s.ts[0] <= t0
}

// Times returns the sample times, used to schedule forcing-update events.
// Static series contribute none.
func (s *Series) Times() []float64 {
	if s.static {
		return nil
	}
	return s.ts
}
