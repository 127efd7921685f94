package model

import (
	"github.com/Deltares/Ribasim-sub004/lookup"
)

// port is one side of a stateless connector: either a basin (dense state
// index) or a fixed-level boundary.
type port struct {
	node  int // external node ID
	basin int // dense basin index, -1 for a level boundary
	fixed float64
}

func (m *Model) levelAt(p port) float64 {
	if p.basin >= 0 {
		return m.basins[p.basin].level
	}
	return p.fixed
}

// linearLevelConnection: flow = conductance x (level_a - level_b), positive
// from a to b, written with the same magnitude onto both incident edges so
// the assembler treats the node as a two-port pass-through.
type linearLevelConnection struct {
	id   int
	cond float64 // m2/s
	a, b port
}

func (c *linearLevelConnection) formulate(m *Model) {
	q := c.cond * (m.levelAt(c.a) - m.levelAt(c.b))
	m.conn.SetFlow(c.a.node, c.id, q)
	m.conn.SetFlow(c.id, c.b.node, q)
}

// ratingCurve: flow = discharge table at the upstream basin's storage,
// non-negative by table construction. When the downstream side is a set of
// FractionalFlow nodes (split true) the out-edges are left to them.
type ratingCurve struct {
	id    int
	q     *lookup.Table // upstream storage (m3) -> discharge (m3/s)
	up    int           // dense basin index
	upID  int
	down  []int // external IDs of downstream nodes
	split bool
}

func (rc *ratingCurve) formulate(m *Model, s []float64) {
	q := rc.q.Lookup(s[rc.up])
	m.conn.SetFlow(rc.upID, rc.id, q)
	if !rc.split {
		m.conn.SetFlow(rc.id, rc.down[0], q)
	}
}

// fractionalFlow: downstream flow = fraction x the flow entering the
// splitting node. Fractions of the nodes sharing one splitting node sum to 1,
// enforced at construction.
type fractionalFlow struct {
	id     int
	frac   float64
	upNode int // the splitting node
	upSrc  int // the node feeding the splitting node
	down   int
}

func (f *fractionalFlow) formulate(m *Model) {
	q := f.frac * m.conn.Flow(f.upSrc, f.upNode)
	m.conn.SetFlow(f.upNode, f.id, q)
	m.conn.SetFlow(f.id, f.down, q)
}

// levelControl: proportional controller driving the connected basin toward a
// target level. It can both add and remove water; the sign on the edge
// follows the edge direction so aggregation yields
// dS/dt += conductance x (target - level).
type levelControl struct {
	id      int
	target  float64
	cond    float64 // m2/s
	basin   int     // dense basin index
	basinID int
	toBasin bool // edge runs control -> basin
}

func (lc *levelControl) formulate(m *Model) {
	q := lc.cond * (lc.target - m.basins[lc.basin].level)
	if lc.toBasin {
		m.conn.SetFlow(lc.id, lc.basinID, q)
	} else {
		m.conn.SetFlow(lc.basinID, lc.id, -q)
	}
}
