// Package ode provides the explicit adaptive Runge-Kutta integrator driving
// the water-balance right-hand side. Single-threaded by contract: the system
// function may mutate shared caches and must only ever be called from one
// Integrate loop at a time.
package ode

import (
	"math"

	"github.com/cockroachdb/errors"
)

// System evaluates dy/dt at (t,y) into dydt. len(dydt) == len(y).
type System func(t float64, y, dydt []float64)

// AcceptFunc is invoked once per accepted step with the step interval and the
// state before and after. Rejected trial steps never reach it, so per-step
// accounting cannot double-count.
type AcceptFunc func(t0, t1 float64, y0, y1 []float64)

// Solver integrates a System with the Cash-Karp 4(5) embedded pair and
// elementwise error control.
type Solver struct {
	F        System
	Atol     float64 // absolute tolerance, default 1e-6
	Rtol     float64 // relative tolerance, default 1e-5
	MaxStep  float64 // optional cap on the step size
	MinStep  float64 // step-underflow guard, default 1e-12
	OnAccept AcceptFunc

	k    [6][]float64
	ytmp []float64
	y4   []float64
	y5   []float64
	y0   []float64
}

// Cash-Karp tableau.
var (
	ckA = [6][5]float64{
		{},
		{1. / 5.},
		{3. / 40., 9. / 40.},
		{3. / 10., -9. / 10., 6. / 5.},
		{-11. / 54., 5. / 2., -70. / 27., 35. / 27.},
		{1631. / 55296., 175. / 512., 575. / 13824., 44275. / 110592., 253. / 4096.},
	}
	ckC  = [6]float64{0., 1. / 5., 3. / 10., 3. / 5., 1., 7. / 8.}
	ckB5 = [6]float64{37. / 378., 0., 250. / 621., 125. / 594., 0., 512. / 1771.}
	ckB4 = [6]float64{2825. / 27648., 0., 18575. / 48384., 13525. / 55296., 277. / 14336., 1. / 4.}
)

func (s *Solver) alloc(n int) {
	if len(s.ytmp) == n {
		return
	}
	for i := range s.k {
		s.k[i] = make([]float64, n)
	}
	s.ytmp = make([]float64, n)
	s.y4 = make([]float64, n)
	s.y5 = make([]float64, n)
	s.y0 = make([]float64, n)
}

// Integrate advances y from t0 to t1 in place. The step size adapts to the
// solver tolerances; the final step is truncated to land on t1 exactly.
func (s *Solver) Integrate(t0, t1 float64, y []float64) error {
	if s.F == nil {
		return errors.New("ode: no system function")
	}
	if t1 < t0 {
		return errors.Newf("ode: backward integration requested (%g to %g)", t0, t1)
	}
	if t1 == t0 || len(y) == 0 {
		return nil
	}
	atol, rtol := s.Atol, s.Rtol
	if atol <= 0 {
		atol = 1e-6
	}
	if rtol <= 0 {
		rtol = 1e-5
	}
	minstep := s.MinStep
	if minstep <= 0 {
		minstep = 1e-12
	}
	s.alloc(len(y))

	t := t0
	h := (t1 - t0) / 100.
	if s.MaxStep > 0 && h > s.MaxStep {
		h = s.MaxStep
	}
	for t < t1 {
		last := false
		if h >= t1-t {
			h = t1 - t
			last = true
		}
		copy(s.y0, y)
		s.stages(t, h, y)

		// embedded 4th/5th order estimates and the scaled error norm
		enorm := 0.
		for i := range y {
			y4, y5 := y[i], y[i]
			for j := 0; j < 6; j++ {
				y4 += h * ckB4[j] * s.k[j][i]
				y5 += h * ckB5[j] * s.k[j][i]
			}
			s.y4[i], s.y5[i] = y4, y5
			sc := atol + rtol*math.Max(math.Abs(y[i]), math.Abs(y5))
			e := (y5 - y4) / sc
			enorm += e * e
		}
		enorm = math.Sqrt(enorm / float64(len(y)))

		if enorm <= 1. { // accept
			copy(y, s.y5)
			tn := t + h
			if last {
				tn = t1 // land on the endpoint exactly
			}
			if s.OnAccept != nil {
				s.OnAccept(t, tn, s.y0, y)
			}
			t = tn
		}

		// step-size controller
		fac := 5.
		if enorm > 0 {
			fac = 0.9 * math.Pow(enorm, -0.2)
			if fac > 5. {
				fac = 5.
			} else if fac < 0.2 {
				fac = 0.2
			}
		}
		h *= fac
		if s.MaxStep > 0 && h > s.MaxStep {
			h = s.MaxStep
		}
		if enorm > 1. && h < minstep {
			return errors.Newf("ode: step size underflow at t=%g (h=%g)", t, h)
		}
	}
	return nil
}

func (s *Solver) stages(t, h float64, y []float64) {
	s.F(t, y, s.k[0])
	for j := 1; j < 6; j++ {
		for i := range y {
			v := y[i]
			for l := 0; l < j; l++ {
				v += h * ckA[j][l] * s.k[l][i]
			}
			s.ytmp[i] = v
		}
		s.F(t+ckC[j]*h, s.ytmp, s.k[j])
	}
}
