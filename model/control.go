package model

import (
	"time"

	"github.com/cockroachdb/errors"
)

// wbTotals are the per-basin cumulative water-balance sums, zeroed after
// every reporting flush.
type wbTotals struct {
	dstor, prec, evap, drng, infl, urb []float64
}

func newWBTotals(n int) wbTotals {
	return wbTotals{
		dstor: make([]float64, n),
		prec:  make([]float64, n),
		evap:  make([]float64, n),
		drng:  make([]float64, n),
		infl:  make([]float64, n),
		urb:   make([]float64, n),
	}
}

func (w *wbTotals) reset() {
	for i := range w.dstor {
		w.dstor[i], w.prec[i], w.evap[i] = 0, 0, 0
		w.drng[i], w.infl[i], w.urb[i] = 0, 0, 0
	}
}

// Totals is one basin's accumulated water balance since the last flush.
type Totals struct {
	Storage, Precipitation, Evaporation, Drainage, Infiltration, UrbanRunoff float64
}

// CurrentTime returns the simulation time in seconds since start.
func (m *Model) CurrentTime() float64 { return m.t }

// EndTime returns the simulation span in seconds.
func (m *Model) EndTime() float64 { return m.span }

// NBasin returns the number of basins.
func (m *Model) NBasin() int { return len(m.basins) }

// BasinID maps a dense basin index to its external node ID.
func (m *Model) BasinID(i int) int { return m.conn.BasinID(i) }

// Storage returns the current storage of basin i.
func (m *Model) Storage(i int) float64 { return m.storage[i] }

// Level returns the current level of basin i.
func (m *Model) Level(i int) float64 { return m.basins[i].Level.Lookup(m.storage[i]) }

// BalanceTotals returns basin i's accumulated totals since the last flush.
func (m *Model) BalanceTotals(i int) Totals {
	return Totals{
		Storage:       m.totals.dstor[i],
		Precipitation: m.totals.prec[i],
		Evaporation:   m.totals.evap[i],
		Drainage:      m.totals.drng[i],
		Infiltration:  m.totals.infl[i],
		UrbanRunoff:   m.totals.urb[i],
	}
}

// Update advances the model by one reporting interval (or to the end of the
// simulation span, whichever is nearer).
func (m *Model) Update() error {
	target := m.t + m.saveat
	if target > m.span {
		target = m.span
	}
	return m.UpdateUntil(target)
}

// UpdateUntil advances the model to time t (seconds since start). A past
// time is a fatal caller error; the current time is a no-op.
func (m *Model) UpdateUntil(t float64) error {
	if t < m.t {
		return errors.Newf("model: update_until %g is before current time %g", t, m.t)
	}
	if t > m.span {
		return errors.Newf("model: update_until %g exceeds simulation span %g", t, m.span)
	}
	for m.t < t {
		next := m.nextStop(t)
		m.applyForcing(m.t)
		if err := m.solver.Integrate(m.t, next, m.storage); err != nil {
			return err
		}
		m.t = next
		if m.ex != nil && m.t == m.exNext {
			if err := m.exchange(); err != nil {
				return err
			}
			m.exNext += m.exInterval
		}
		if m.t == m.nextSave || m.t == m.span {
			m.flush()
			m.nextSave = m.t + m.saveat
		}
	}
	return nil
}

// Run advances to the end of the simulation span and flushes the writers.
func (m *Model) Run() error {
	if err := m.UpdateUntil(m.span); err != nil {
		return err
	}
	return m.Finalize()
}

// Finalize flushes any partial reporting interval and closes the output
// writers. The model remains inspectable.
func (m *Model) Finalize() error {
	if m.t < m.nextSave && m.t > m.nextSave-m.saveat {
		m.flush()
		m.nextSave = m.t + m.saveat
	}
	if m.out != nil {
		m.out.close()
		m.out = nil
	}
	m.log.Infow("run finished", "t_s", m.t, "accepted_steps", m.naccept)
	return nil
}

// nextStop returns the next integration boundary: the earliest of the next
// forcing-update event, the next reporting instant, the next coupling
// instant and the caller's target.
func (m *Model) nextStop(target float64) float64 {
	next := target
	for m.evi < len(m.events) && m.events[m.evi] <= m.t {
		m.evi++
	}
	if m.evi < len(m.events) && m.events[m.evi] < next {
		next = m.events[m.evi]
	}
	if m.nextSave > m.t && m.nextSave < next {
		next = m.nextSave
	}
	if m.ex != nil && m.exNext > m.t && m.exNext < next {
		next = m.exNext
	}
	return next
}

// applyForcing overwrites every basin's held forcing values with the series
// entries for time t. Called before integrating into an interval, so a
// sample at exactly t is applied before the RHS sees t.
func (m *Model) applyForcing(t float64) {
	for _, b := range m.basins {
		b.setForcing(t)
	}
}

// track is the accounting callback, invoked once per accepted integrator
// step. Flux volumes use the held forcing values and the area/level caches
// of the last RHS evaluation within the step.
func (m *Model) track(t0, t1 float64, y0, y1 []float64) {
	dt := t1 - t0
	for i, b := range m.basins {
		m.totals.dstor[i] += y1[i] - y0[i]
		m.totals.prec[i] += b.area * b.prec * dt
		m.totals.evap[i] += b.area * b.reduction() * b.pet * dt
		m.totals.drng[i] += b.drng * dt
		m.totals.urb[i] += b.urb * dt
		m.totals.infl[i] += b.reduction() * b.cappedInfiltration() * dt
	}
	m.naccept++
}

// flush writes one water-balance record per basin per tracked quantity plus
// the basin state sample, then zeroes the totals.
func (m *Model) flush() {
	tm := m.start.Add(time.Duration(m.t * float64(time.Second)))
	for i := range m.basins {
		id := m.conn.BasinID(i)
		if m.out != nil {
			m.out.writeBasin(tm, id, m.storage[i], m.Level(i))
			m.out.writeBalance(tm, id, "storage", m.totals.dstor[i])
			m.out.writeBalance(tm, id, "precipitation", m.totals.prec[i])
			m.out.writeBalance(tm, id, "evaporation", m.totals.evap[i])
			m.out.writeBalance(tm, id, "drainage", m.totals.drng[i])
			m.out.writeBalance(tm, id, "infiltration", m.totals.infl[i])
			m.out.writeBalance(tm, id, "urban_runoff", m.totals.urb[i])
		}
	}
	m.totals.reset()
}
