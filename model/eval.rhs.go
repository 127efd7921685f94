package model

// waterBalance is the ODE right-hand side: storage derivatives (m3/s) for the
// current state. Evaluation order is fixed: basins first (refreshing the
// area/level caches the link formulators read), then connections, rating
// curves, fractional flows and level controls, then edge aggregation.
func (m *Model) waterBalance(t float64, s, ds []float64) {
	_ = t // forcing is held constant between update events

	for i := range ds {
		ds[i] = 0
	}
	m.conn.ResetFlows()

	for i, b := range m.basins {
		ds[i] += b.source(s[i])
	}
	for _, c := range m.llcs {
		c.formulate(m)
	}
	for _, rc := range m.trcs {
		rc.formulate(m, s)
	}
	for _, f := range m.ffs {
		f.formulate(m)
	}
	for _, lc := range m.lcs {
		lc.formulate(m)
	}

	// aggregate edge flows into basin derivatives; non-basin endpoints
	// absorb or emit flow without a state
	for i, n := 0, m.conn.NEdge(); i < n; i++ {
		e := m.conn.EdgeAt(i)
		q := m.conn.FlowAt(i)
		if j, ok := m.conn.BasinIndex(e.From); ok {
			ds[j] -= q
		}
		if j, ok := m.conn.BasinIndex(e.To); ok {
			ds[j] += q
		}
	}

	// stability rule: once storage has gone (numerically) negative it may
	// not decrease further. An approximation, not physically exact.
	for i := range ds {
		if s[i] < 0 && ds[i] < 0 {
			ds[i] = 0
		}
	}
}
