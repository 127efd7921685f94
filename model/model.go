// Package model assembles the water-balance network and drives it through
// time: per-node-type formulators, the ODE right-hand side, forcing-update
// and accounting events, reporting, and the optional coupling to an external
// solver. Single-threaded by design; the formulators mutate shared caches and
// the edge-flow buffer and must only be invoked by the integrator loop.
package model

import (
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/Deltares/Ribasim-sub004/lookup"
	"github.com/Deltares/Ribasim-sub004/network"
	"github.com/Deltares/Ribasim-sub004/ode"
)

// BasinDef declares one basin: profile rows, initial storage and forcing.
// Nil series default to zero.
type BasinDef struct {
	ID                   int
	Storage, Area, Level []float64 // co-indexed profile rows, sorted by storage
	Storage0             float64
	Precipitation        *lookup.Series
	PotentialEvaporation *lookup.Series
	Drainage             *lookup.Series
	Infiltration         *lookup.Series
	UrbanRunoff          *lookup.Series
}

// LinearLevelConnectionDef declares a conductance link between two levels.
type LinearLevelConnectionDef struct {
	ID          int
	Conductance float64
}

// TabulatedRatingCurveDef declares a storage-discharge outlet.
type TabulatedRatingCurveDef struct {
	ID                 int
	Storage, Discharge []float64
}

// FractionalFlowDef declares one branch of a flow split.
type FractionalFlowDef struct {
	ID       int
	Fraction float64
}

// LevelControlDef declares a proportional level set-point controller.
type LevelControlDef struct {
	ID                       int
	TargetLevel, Conductance float64
}

// LevelBoundaryDef declares a fixed-level stateless boundary node.
type LevelBoundaryDef struct {
	ID    int
	Level float64
}

// Def is the full static description of a model, as read from the input
// tables.
type Def struct {
	Nodes                  []network.Node
	Edges                  []network.Edge
	Basins                 []BasinDef
	LinearLevelConnections []LinearLevelConnectionDef
	TabulatedRatingCurves  []TabulatedRatingCurveDef
	FractionalFlows        []FractionalFlowDef
	LevelControls          []LevelControlDef
	LevelBoundaries        []LevelBoundaryDef
}

// Options control the run: simulation span, reporting cadence, solver
// tolerances and output location.
type Options struct {
	Starttime, Endtime time.Time
	Saveat             float64 // seconds between reporting flushes
	ResultsDir         string  // empty disables file output
	Atol, Rtol         float64
	Logger             *zap.SugaredLogger
}

// Model is the runnable water-balance network. All static structures are
// built once here and never resized; only the state vector, the per-call
// caches, the flow buffer and the cumulative totals mutate during a run.
type Model struct {
	log  *zap.SugaredLogger
	conn *network.Connectivity

	basins []*Basin // dense basin-state order
	llcs   []*linearLevelConnection
	trcs   []*ratingCurve
	ffs    []*fractionalFlow
	lcs    []*levelControl

	solver  *ode.Solver
	storage []float64 // the state vector: one volume per basin
	t, span float64   // seconds since start
	start   time.Time

	saveat   float64
	nextSave float64
	events   []float64 // merged forcing timestamps, ascending
	evi      int

	totals wbTotals
	out    *writers

	ex         Exchanger
	exInterval float64
	exNext     float64
	exIDs      []int

	naccept int
}

// New builds a model from its static definition. Every malformed-input
// condition is fatal here; a constructed model is fully initialized, with the
// first forcing values already applied.
func New(def Def, opt Options) (*Model, error) {
	log := opt.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	span := opt.Endtime.Sub(opt.Starttime).Seconds()
	if span <= 0 {
		return nil, errors.Newf("model: endtime %v not after starttime %v", opt.Endtime, opt.Starttime)
	}
	saveat := opt.Saveat
	if saveat <= 0 {
		saveat = span
	}

	conn, err := network.New(def.Nodes, def.Edges)
	if err != nil {
		return nil, err
	}

	m := &Model{
		log:      log,
		conn:     conn,
		span:     span,
		start:    opt.Starttime,
		saveat:   saveat,
		nextSave: saveat,
		storage:  make([]float64, conn.NBasin()),
		basins:   make([]*Basin, conn.NBasin()),
	}

	if err := m.buildBasins(def.Basins); err != nil {
		return nil, err
	}
	bounds := make(map[int]float64, len(def.LevelBoundaries))
	for _, bd := range def.LevelBoundaries {
		if err := m.wantType(bd.ID, network.LevelBoundary); err != nil {
			return nil, err
		}
		bounds[bd.ID] = bd.Level
	}
	if err := m.buildConnections(def.LinearLevelConnections, bounds); err != nil {
		return nil, err
	}
	if err := m.buildRatingCurves(def.TabulatedRatingCurves); err != nil {
		return nil, err
	}
	if err := m.buildFractions(def.FractionalFlows); err != nil {
		return nil, err
	}
	if err := m.buildLevelControls(def.LevelControls); err != nil {
		return nil, err
	}
	if err := m.checkCoverage(def, bounds); err != nil {
		return nil, err
	}

	m.events = mergeEventTimes(m.basins, span)
	m.totals = newWBTotals(conn.NBasin())
	m.solver = &ode.Solver{
		F:        m.waterBalance,
		Atol:     opt.Atol,
		Rtol:     opt.Rtol,
		OnAccept: m.track,
	}

	if opt.ResultsDir != "" {
		m.out, err = newWriters(opt.ResultsDir)
		if err != nil {
			return nil, err
		}
	}

	// initial affect: the first forcing event fires before any step
	m.applyForcing(0)
	log.Infow("model initialized",
		"basins", conn.NBasin(), "edges", conn.NEdge(), "span_s", span)
	return m, nil
}

func (m *Model) wantType(id int, nt network.NodeType) error {
	n, ok := m.conn.NodeByID(id)
	if !ok {
		return errors.Newf("model: %v table references undeclared node %d", nt, id)
	}
	if n.Type != nt {
		return errors.Newf("model: node %d is %v, not %v", id, n.Type, nt)
	}
	return nil
}

func (m *Model) buildBasins(defs []BasinDef) error {
	byID := make(map[int]BasinDef, len(defs))
	for _, d := range defs {
		if err := m.wantType(d.ID, network.Basin); err != nil {
			return err
		}
		byID[d.ID] = d
	}
	for _, n := range m.conn.Nodes() {
		if n.Type != network.Basin {
			continue
		}
		d, ok := byID[n.ID]
		if !ok {
			return errors.Newf("model: basin %d missing from the basin tables", n.ID)
		}
		b, err := newBasin(d)
		if err != nil {
			return err
		}
		i, _ := m.conn.BasinIndex(n.ID)
		m.basins[i] = b
		m.storage[i] = d.Storage0
	}
	return nil
}

func newBasin(d BasinDef) (*Basin, error) {
	for i := 1; i < len(d.Area); i++ {
		if d.Area[i] < d.Area[i-1] {
			return nil, errors.Newf("model: basin %d area not non-decreasing in storage", d.ID)
		}
	}
	for i := 1; i < len(d.Level); i++ {
		if d.Level[i] < d.Level[i-1] {
			return nil, errors.Newf("model: basin %d level not non-decreasing in storage", d.ID)
		}
	}
	area, err := lookup.NewTable(d.Storage, d.Area)
	if err != nil {
		return nil, errors.Wrapf(err, "model: basin %d area profile", d.ID)
	}
	level, err := lookup.NewTable(d.Storage, d.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "model: basin %d level profile", d.ID)
	}
	b := &Basin{
		ID:                   d.ID,
		Area:                 area,
		Level:                level,
		Bottom:               level.MinY(),
		Precipitation:        d.Precipitation,
		PotentialEvaporation: d.PotentialEvaporation,
		Drainage:             d.Drainage,
		Infiltration:         d.Infiltration,
		UrbanRunoff:          d.UrbanRunoff,
	}
	for name, s := range map[string]**lookup.Series{
		"precipitation":         &b.Precipitation,
		"potential_evaporation": &b.PotentialEvaporation,
		"drainage":              &b.Drainage,
		"infiltration":          &b.Infiltration,
		"urban_runoff":          &b.UrbanRunoff,
	} {
		if *s == nil {
			*s = lookup.Constant(0)
		} else if !(*s).Covers(0) {
			return nil, errors.Newf("model: basin %d %s forcing does not cover the simulation start", d.ID, name)
		}
	}
	return b, nil
}

func (m *Model) resolvePort(id int, bounds map[int]float64) (port, error) {
	if bi, ok := m.conn.BasinIndex(id); ok {
		return port{node: id, basin: bi}, nil
	}
	if lv, ok := bounds[id]; ok {
		return port{node: id, basin: -1, fixed: lv}, nil
	}
	return port{}, errors.Newf("model: node %d carries no level (not a basin or level boundary)", id)
}

func (m *Model) buildConnections(defs []LinearLevelConnectionDef, bounds map[int]float64) error {
	for _, d := range defs {
		if err := m.wantType(d.ID, network.LinearLevelConnection); err != nil {
			return err
		}
		ins, outs := m.conn.InEdges(d.ID), m.conn.OutEdges(d.ID)
		if len(ins) != 1 || len(outs) != 1 {
			return errors.Newf("model: connection %d needs exactly one edge per side, got %d in %d out", d.ID, len(ins), len(outs))
		}
		a, err := m.resolvePort(m.conn.EdgeAt(ins[0]).From, bounds)
		if err != nil {
			return errors.Wrapf(err, "connection %d", d.ID)
		}
		b, err := m.resolvePort(m.conn.EdgeAt(outs[0]).To, bounds)
		if err != nil {
			return errors.Wrapf(err, "connection %d", d.ID)
		}
		m.llcs = append(m.llcs, &linearLevelConnection{id: d.ID, cond: d.Conductance, a: a, b: b})
	}
	return nil
}

func (m *Model) buildRatingCurves(defs []TabulatedRatingCurveDef) error {
	for _, d := range defs {
		if err := m.wantType(d.ID, network.TabulatedRatingCurve); err != nil {
			return err
		}
		if len(d.Discharge) > 0 && d.Discharge[0] < 0 {
			return errors.Newf("model: rating curve %d discharges %g at minimum storage", d.ID, d.Discharge[0])
		}
		q, err := lookup.NewTable(d.Storage, d.Discharge)
		if err != nil {
			return errors.Wrapf(err, "model: rating curve %d", d.ID)
		}
		ins, outs := m.conn.InEdges(d.ID), m.conn.OutEdges(d.ID)
		if len(ins) != 1 || len(outs) == 0 {
			return errors.Newf("model: rating curve %d needs one upstream and at least one downstream edge", d.ID)
		}
		upID := m.conn.EdgeAt(ins[0]).From
		up, ok := m.conn.BasinIndex(upID)
		if !ok {
			return errors.Newf("model: rating curve %d upstream node %d is not a basin", d.ID, upID)
		}
		rc := &ratingCurve{id: d.ID, q: q, up: up, upID: upID}
		nfrac := 0
		for _, ei := range outs {
			to := m.conn.EdgeAt(ei).To
			rc.down = append(rc.down, to)
			if n, _ := m.conn.NodeByID(to); n.Type == network.FractionalFlow {
				nfrac++
			}
		}
		switch nfrac {
		case 0:
			if len(outs) > 1 {
				return errors.Newf("model: rating curve %d splits over %d edges without fractional flow nodes", d.ID, len(outs))
			}
		case len(outs):
			rc.split = true
		default:
			return errors.Newf("model: rating curve %d mixes fractional and plain downstream nodes", d.ID)
		}
		m.trcs = append(m.trcs, rc)
	}
	return nil
}

func (m *Model) buildFractions(defs []FractionalFlowDef) error {
	sums := make(map[int]float64)
	for _, d := range defs {
		if err := m.wantType(d.ID, network.FractionalFlow); err != nil {
			return err
		}
		ins, outs := m.conn.InEdges(d.ID), m.conn.OutEdges(d.ID)
		if len(ins) != 1 || len(outs) != 1 {
			return errors.Newf("model: fractional flow %d needs exactly one edge per side", d.ID)
		}
		upNode := m.conn.EdgeAt(ins[0]).From
		upIns := m.conn.InEdges(upNode)
		if len(upIns) != 1 {
			return errors.Newf("model: fractional flow %d splitting node %d needs exactly one upstream edge", d.ID, upNode)
		}
		if n, _ := m.conn.NodeByID(upNode); n.Type != network.TabulatedRatingCurve && n.Type != network.LinearLevelConnection {
			return errors.Newf("model: fractional flow %d fed by %v node %d, want a flow connector", d.ID, n.Type, upNode)
		}
		m.ffs = append(m.ffs, &fractionalFlow{
			id:     d.ID,
			frac:   d.Fraction,
			upNode: upNode,
			upSrc:  m.conn.EdgeAt(upIns[0]).From,
			down:   m.conn.EdgeAt(outs[0]).To,
		})
		sums[upNode] += d.Fraction
	}
	for node, s := range sums {
		if s < 1-fracTol || s > 1+fracTol {
			return errors.Newf("model: fractions splitting node %d sum to %g, want 1", node, s)
		}
	}
	return nil
}

func (m *Model) buildLevelControls(defs []LevelControlDef) error {
	for _, d := range defs {
		if err := m.wantType(d.ID, network.LevelControl); err != nil {
			return err
		}
		ins, outs := m.conn.InEdges(d.ID), m.conn.OutEdges(d.ID)
		lc := &levelControl{id: d.ID, target: d.TargetLevel, cond: d.Conductance}
		switch {
		case len(ins) == 1 && len(outs) == 0:
			lc.basinID = m.conn.EdgeAt(ins[0]).From
		case len(ins) == 0 && len(outs) == 1:
			lc.basinID = m.conn.EdgeAt(outs[0]).To
			lc.toBasin = true
		default:
			return errors.Newf("model: level control %d needs exactly one incident edge", d.ID)
		}
		bi, ok := m.conn.BasinIndex(lc.basinID)
		if !ok {
			return errors.Newf("model: level control %d connects to non-basin node %d", d.ID, lc.basinID)
		}
		lc.basin = bi
		m.lcs = append(m.lcs, lc)
	}
	return nil
}

// checkCoverage verifies every declared stateless node got a parameter set.
func (m *Model) checkCoverage(def Def, bounds map[int]float64) error {
	have := make(map[int]bool)
	for _, c := range m.llcs {
		have[c.id] = true
	}
	for _, rc := range m.trcs {
		have[rc.id] = true
	}
	for _, f := range m.ffs {
		have[f.id] = true
	}
	for _, lc := range m.lcs {
		have[lc.id] = true
	}
	for _, n := range m.conn.Nodes() {
		switch n.Type {
		case network.Basin, network.Terminal:
		case network.LevelBoundary:
			if _, ok := bounds[n.ID]; !ok {
				return errors.Newf("model: level boundary %d has no level", n.ID)
			}
		default:
			if !have[n.ID] {
				return errors.Newf("model: %v node %d has no parameter set", n.Type, n.ID)
			}
		}
	}
	return nil
}

func mergeEventTimes(basins []*Basin, span float64) []float64 {
	seen := make(map[float64]bool)
	var ts []float64
	add := func(ss []float64) {
		for _, t := range ss {
			if t > 0 && t <= span && !seen[t] {
				seen[t] = true
				ts = append(ts, t)
			}
		}
	}
	for _, b := range basins {
		add(b.Precipitation.Times())
		add(b.PotentialEvaporation.Times())
		add(b.Drainage.Times())
		add(b.Infiltration.Times())
		add(b.UrbanRunoff.Times())
	}
	sort.Float64s(ts)
	return ts
}
