package model

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Deltares/Ribasim-sub004/network"
)

// fakeGW records the coupling traffic and hands back fixed fluxes.
type fakeGW struct {
	pushed []map[int]float64
	steps  []float64
	drain  map[int]float64
	infil  map[int]float64
}

func (f *fakeGW) Push(v map[int]float64) { f.pushed = append(f.pushed, v) }
func (f *fakeGW) Step(dt float64) error  { f.steps = append(f.steps, dt); return nil }
func (f *fakeGW) Pull() (map[int]float64, map[int]float64) {
	return f.drain, f.infil
}

func TestCoupleRejectsUnknownBasin(t *testing.T) {
	def := Def{
		Nodes:  []network.Node{{ID: 1, Type: network.Basin}},
		Basins: []BasinDef{flatBasin(1, 100)},
	}
	m, err := New(def, opts(1000))
	require.NoError(t, err)

	require.Error(t, m.Couple(&fakeGW{}, 250, []int{99}))
	require.Error(t, m.Couple(&fakeGW{}, 0, []int{1}))
}

func TestExchangeScheduleAndPulledFluxes(t *testing.T) {
	def := Def{
		Nodes:  []network.Node{{ID: 1, Type: network.Basin}},
		Basins: []BasinDef{flatBasin(1, 100)},
	}
	m, err := New(def, opts(1000))
	require.NoError(t, err)

	gw := &fakeGW{drain: map[int]float64{1: 0.5}, infil: map[int]float64{1: 0}}
	require.NoError(t, m.Couple(gw, 250, []int{1}))
	require.NoError(t, m.UpdateUntil(1000))

	// one exchange per coupling instant, each over the coupling interval
	require.Equal(t, []float64{250, 250, 250, 250}, gw.steps)
	require.Len(t, gw.pushed, 4)

	// nothing feeds the basin before the first exchange
	require.InDelta(t, 100., gw.pushed[0][1], 1e-9)

	// pulled drainage of 0.5 m3/s acts over the remaining 750 s
	require.InDelta(t, 100+0.5*750, m.Storage(0), 1e-6)
}

func TestCoupleAfterStepping(t *testing.T) {
	def := Def{
		Nodes:  []network.Node{{ID: 1, Type: network.Basin}},
		Basins: []BasinDef{flatBasin(1, 100)},
	}
	m, err := New(def, opts(1000))
	require.NoError(t, err)
	require.NoError(t, m.UpdateUntil(250))

	// coupling mid-run: the schedule starts from the current time
	gw := &fakeGW{drain: map[int]float64{1: 0.5}, infil: map[int]float64{1: 0}}
	require.NoError(t, m.Couple(gw, 250, []int{1}))
	require.NoError(t, m.UpdateUntil(1000))

	require.Equal(t, []float64{250, 250, 250}, gw.steps)
	require.InDelta(t, 100+0.5*500, m.Storage(0), 1e-6)
}

func TestPulledFluxesSurviveForcingUpdates(t *testing.T) {
	b := flatBasin(1, 100)
	def := Def{
		Nodes:  []network.Node{{ID: 1, Type: network.Basin}},
		Basins: []BasinDef{b},
	}
	m, err := New(def, opts(1000))
	require.NoError(t, err)

	gw := &fakeGW{drain: map[int]float64{1: 0.25}, infil: map[int]float64{1: 0}}
	require.NoError(t, m.Couple(gw, 500, []int{1}))

	require.NoError(t, m.UpdateUntil(500))
	// reporting instants trigger applyForcing on the next call; the coupled
	// basin must keep the pulled drainage rather than fall back to its series
	require.NoError(t, m.UpdateUntil(750))
	require.NoError(t, m.UpdateUntil(1000))
	require.InDelta(t, 100+0.25*500, m.Storage(0), 1e-6)
}
