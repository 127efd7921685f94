package model

import "github.com/cockroachdb/errors"

// Exchanger is the coupling boundary to an external (typically groundwater)
// solver. Once per coupling interval the model pushes current basin volumes,
// blocks while the external solver takes one step, and pulls updated
// drainage and infiltration back. All maps are keyed by external basin ID.
type Exchanger interface {
	Push(volumes map[int]float64)
	Step(dt float64) error
	Pull() (drainage, infiltration map[int]float64)
}

// Couple registers an exchange adapter for the listed basins. An ID that
// does not map to a basin is a fatal construction error, not a per-step one.
// Coupled basins stop reading drainage/infiltration from their forcing
// series; the pulled values apply until the next coupling instant.
func (m *Model) Couple(ex Exchanger, interval float64, basinIDs []int) error {
	if interval <= 0 {
		return errors.Newf("model: coupling interval %g must be positive", interval)
	}
	ids := make([]int, len(basinIDs))
	for i, id := range basinIDs {
		bi, ok := m.conn.BasinIndex(id)
		if !ok {
			return errors.Newf("model: exchange basin %d not in model", id)
		}
		m.basins[bi].coupled = true
		ids[i] = id
	}
	m.ex = ex
	m.exInterval = interval
	m.exNext = m.t + interval // first exchange one interval from now
	m.exIDs = ids
	return nil
}

func (m *Model) exchange() error {
	vols := make(map[int]float64, len(m.exIDs))
	for _, id := range m.exIDs {
		bi, _ := m.conn.BasinIndex(id)
		vols[id] = m.storage[bi]
	}
	m.ex.Push(vols)
	if err := m.ex.Step(m.exInterval); err != nil {
		return errors.Wrap(err, "model: exchange step")
	}
	drng, infl := m.ex.Pull()
	for id, v := range drng {
		if bi, ok := m.conn.BasinIndex(id); ok {
			m.basins[bi].drng = v
		}
	}
	for id, v := range infl {
		if bi, ok := m.conn.BasinIndex(id); ok {
			m.basins[bi].infl = v
		}
	}
	return nil
}
