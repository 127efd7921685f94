package input

import (
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Deltares/Ribasim-sub004/lookup"
	"github.com/Deltares/Ribasim-sub004/model"
	"github.com/Deltares/Ribasim-sub004/network"
)

// forcing variables a basin accepts, matching the forcing/static table
// variable column.
var basinVars = []string{
	"precipitation", "potential_evaporation", "drainage", "infiltration", "urban_runoff",
}

// default proportional-controller conductance when the static table carries
// only a target level.
const defaultControlConductance = 1e-4

// Load reads the configuration and the database tables and constructs the
// model. Every malformed-table condition aborts here; nothing
// partially-initialized escapes.
func Load(cfgPath string, log *zap.SugaredLogger) (*model.Model, error) {
	cfg, err := ReadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	def, err := ReadTables(cfg)
	if err != nil {
		return nil, err
	}
	return model.New(*def, model.Options{
		Starttime:  cfg.Starttime,
		Endtime:    cfg.Endtime,
		Saveat:     cfg.Saveat,
		ResultsDir: cfg.ResultsDir,
		Atol:       cfg.Solver.Abstol,
		Rtol:       cfg.Solver.Reltol,
		Logger:     log,
	})
}

// ReadTables assembles a model definition from the SQLite database named by
// the configuration.
func ReadTables(cfg Config) (*model.Def, error) {
	db, err := sql.Open("sqlite3", cfg.Database)
	if err != nil {
		return nil, errors.Wrapf(err, "input: open %s", cfg.Database)
	}
	defer db.Close()

	def := &model.Def{}
	if def.Nodes, err = readNodes(db); err != nil {
		return nil, err
	}
	if def.Edges, err = readEdges(db); err != nil {
		return nil, err
	}
	state, err := readState(db)
	if err != nil {
		return nil, err
	}
	static, err := readStatic(db)
	if err != nil {
		return nil, err
	}
	profiles, err := readProfiles(db)
	if err != nil {
		return nil, err
	}
	series, err := readForcing(db, cfg.Starttime)
	if err != nil {
		return nil, err
	}

	for _, n := range def.Nodes {
		st := static[n.ID]
		switch n.Type {
		case network.Basin:
			b, err := basinDef(n.ID, state, profiles, static, series)
			if err != nil {
				return nil, err
			}
			def.Basins = append(def.Basins, *b)
		case network.LinearLevelConnection:
			c, ok := st["conductance"]
			if !ok {
				return nil, errors.Newf("input: connection %d has no conductance", n.ID)
			}
			def.LinearLevelConnections = append(def.LinearLevelConnections,
				model.LinearLevelConnectionDef{ID: n.ID, Conductance: c})
		case network.TabulatedRatingCurve:
			p, ok := profiles[n.ID]
			if !ok || !p.hasDischarge {
				return nil, errors.Newf("input: rating curve %d has no discharge profile", n.ID)
			}
			def.TabulatedRatingCurves = append(def.TabulatedRatingCurves,
				model.TabulatedRatingCurveDef{ID: n.ID, Storage: p.volume, Discharge: p.discharge})
		case network.FractionalFlow:
			f, ok := st["fraction"]
			if !ok {
				return nil, errors.Newf("input: fractional flow %d has no fraction", n.ID)
			}
			def.FractionalFlows = append(def.FractionalFlows,
				model.FractionalFlowDef{ID: n.ID, Fraction: f})
		case network.LevelControl:
			tl, ok := st["target_level"]
			if !ok {
				return nil, errors.Newf("input: level control %d has no target_level", n.ID)
			}
			c, ok := st["conductance"]
			if !ok {
				c = defaultControlConductance
			}
			def.LevelControls = append(def.LevelControls,
				model.LevelControlDef{ID: n.ID, TargetLevel: tl, Conductance: c})
		case network.LevelBoundary:
			lv, ok := st["level"]
			if !ok {
				return nil, errors.Newf("input: level boundary %d has no level", n.ID)
			}
			def.LevelBoundaries = append(def.LevelBoundaries,
				model.LevelBoundaryDef{ID: n.ID, Level: lv})
		}
	}
	return def, nil
}

func basinDef(id int, state map[int]float64, profiles map[int]*profile,
	static map[int]map[string]float64, series map[int]map[string]*lookup.Series) (*model.BasinDef, error) {

	s0, ok := state[id]
	if !ok {
		return nil, errors.Newf("input: basin %d missing from the state table", id)
	}
	p, ok := profiles[id]
	if !ok || !p.hasArea || !p.hasLevel {
		return nil, errors.Newf("input: basin %d needs area and level profile columns", id)
	}
	b := &model.BasinDef{ID: id, Storage: p.volume, Area: p.area, Level: p.level, Storage0: s0}
	dst := map[string]**lookup.Series{
		"precipitation":         &b.Precipitation,
		"potential_evaporation": &b.PotentialEvaporation,
		"drainage":              &b.Drainage,
		"infiltration":          &b.Infiltration,
		"urban_runoff":          &b.UrbanRunoff,
	}
	for _, v := range basinVars {
		if s, ok := series[id][v]; ok {
			*dst[v] = s
		} else if c, ok := static[id][v]; ok {
			*dst[v] = lookup.Constant(c)
		}
	}
	return b, nil
}

func readNodes(db *sql.DB) ([]network.Node, error) {
	rows, err := db.Query("SELECT id, type FROM node ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "input: node table")
	}
	defer rows.Close()
	var nodes []network.Node
	for rows.Next() {
		var id int
		var ts string
		if err := rows.Scan(&id, &ts); err != nil {
			return nil, errors.Wrap(err, "input: node table")
		}
		nt, err := network.ParseNodeType(ts)
		if err != nil {
			return nil, errors.Wrapf(err, "input: node %d", id)
		}
		nodes = append(nodes, network.Node{ID: id, Type: nt})
	}
	return nodes, rows.Err()
}

func readEdges(db *sql.DB) ([]network.Edge, error) {
	rows, err := db.Query("SELECT from_id, to_id FROM edge")
	if err != nil {
		return nil, errors.Wrap(err, "input: edge table")
	}
	defer rows.Close()
	var edges []network.Edge
	for rows.Next() {
		var e network.Edge
		if err := rows.Scan(&e.From, &e.To); err != nil {
			return nil, errors.Wrap(err, "input: edge table")
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func readState(db *sql.DB) (map[int]float64, error) {
	rows, err := db.Query("SELECT id, storage FROM state")
	if err != nil {
		return nil, errors.Wrap(err, "input: state table")
	}
	defer rows.Close()
	state := make(map[int]float64)
	for rows.Next() {
		var id int
		var s float64
		if err := rows.Scan(&id, &s); err != nil {
			return nil, errors.Wrap(err, "input: state table")
		}
		if _, ok := state[id]; ok {
			return nil, errors.Newf("input: duplicate state row for basin %d", id)
		}
		state[id] = s
	}
	return state, rows.Err()
}

func readStatic(db *sql.DB) (map[int]map[string]float64, error) {
	rows, err := db.Query("SELECT id, variable, value FROM static")
	if err != nil {
		return nil, errors.Wrap(err, "input: static table")
	}
	defer rows.Close()
	static := make(map[int]map[string]float64)
	for rows.Next() {
		var id int
		var variable string
		var v float64
		if err := rows.Scan(&id, &variable, &v); err != nil {
			return nil, errors.Wrap(err, "input: static table")
		}
		if static[id] == nil {
			static[id] = make(map[string]float64)
		}
		static[id][variable] = v
	}
	return static, rows.Err()
}

// profile is the per-id slice of the profile table. Nullable columns are
// tracked so basins (area, level) and rating curves (discharge) can share
// the table.
type profile struct {
	volume, area, discharge, level  []float64
	hasArea, hasDischarge, hasLevel bool
}

func readProfiles(db *sql.DB) (map[int]*profile, error) {
	rows, err := db.Query("SELECT id, volume, area, discharge, level FROM profile ORDER BY id, volume")
	if err != nil {
		return nil, errors.Wrap(err, "input: profile table")
	}
	defer rows.Close()
	profiles := make(map[int]*profile)
	for rows.Next() {
		var id int
		var vol float64
		var area, q, lvl sql.NullFloat64
		if err := rows.Scan(&id, &vol, &area, &q, &lvl); err != nil {
			return nil, errors.Wrap(err, "input: profile table")
		}
		p := profiles[id]
		if p == nil {
			p = &profile{}
			profiles[id] = p
		}
		p.volume = append(p.volume, vol)
		p.area = append(p.area, area.Float64)
		p.discharge = append(p.discharge, q.Float64)
		p.level = append(p.level, lvl.Float64)
		p.hasArea = p.hasArea || area.Valid
		p.hasDischarge = p.hasDischarge || q.Valid
		p.hasLevel = p.hasLevel || lvl.Valid
	}
	return profiles, rows.Err()
}

func readForcing(db *sql.DB, start time.Time) (map[int]map[string]*lookup.Series, error) {
	rows, err := db.Query("SELECT id, time, variable, value FROM forcing ORDER BY id, variable")
	if err != nil {
		return nil, errors.Wrap(err, "input: forcing table")
	}
	defer rows.Close()

	type key struct {
		id int
		v  string
	}
	ts := make(map[key][]float64)
	vs := make(map[key][]float64)
	for rows.Next() {
		var id int
		var tstr, variable string
		var v float64
		if err := rows.Scan(&id, &tstr, &variable, &v); err != nil {
			return nil, errors.Wrap(err, "input: forcing table")
		}
		tm, err := parseTime(tstr)
		if err != nil {
			return nil, errors.Wrapf(err, "input: forcing for node %d", id)
		}
		k := key{id, variable}
		t := tm.Sub(start).Seconds()
		if n := len(ts[k]); n > 0 && t <= ts[k][n-1] {
			return nil, errors.Newf("input: forcing for node %d variable %s not sorted by time", id, variable)
		}
		ts[k] = append(ts[k], t)
		vs[k] = append(vs[k], v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	series := make(map[int]map[string]*lookup.Series)
	for k := range ts {
		s, err := lookup.NewSeries(ts[k], vs[k])
		if err != nil {
			return nil, errors.Wrapf(err, "input: forcing for node %d variable %s", k.id, k.v)
		}
		if series[k.id] == nil {
			series[k.id] = make(map[string]*lookup.Series)
		}
		series[k.id][k.v] = s
	}
	return series, nil
}

var timeFormats = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseTime(s string) (time.Time, error) {
	for _, f := range timeFormats {
		if tm, err := time.Parse(f, s); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, errors.Newf("input: unparseable timestamp %q", s)
}
