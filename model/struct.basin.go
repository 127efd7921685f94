package model

import (
	"github.com/Deltares/Ribasim-sub004/lookup"
)

// Basin is a state-bearing node: monotonic storage-area and storage-level
// profiles, time-indexed forcing, and per-evaluation area/level caches. The
// caches are refreshed from current storage at the start of every
// right-hand-side pass; link formulators read them and therefore must be
// evaluated after all basins.
type Basin struct {
	ID     int
	Area   *lookup.Table // storage (m3) -> wetted area (m2)
	Level  *lookup.Table // storage (m3) -> water level (m)
	Bottom float64       // level at minimum storage

	Precipitation        *lookup.Series // m/s
	PotentialEvaporation *lookup.Series // m/s
	Drainage             *lookup.Series // m3/s
	Infiltration         *lookup.Series // m3/s
	UrbanRunoff          *lookup.Series // m3/s

	// held forcing values, overwritten at forcing-update events
	prec, pet, drng, infl, urb float64

	coupled bool // drainage/infiltration owned by the exchange adapter

	// per-evaluation caches
	area, level float64
}

// source refreshes the area/level caches from storage s and returns the
// basin's direct storage-derivative contribution (m3/s). These terms are not
// edge flows.
func (b *Basin) source(s float64) float64 {
	b.area = b.Area.Lookup(s)
	b.level = b.Level.Lookup(s)
	rf := b.reduction()
	q := b.area * b.prec
	q -= b.area * rf * b.pet
	q += b.drng + b.urb
	q -= rf * b.cappedInfiltration()
	return q
}

// reduction is the ramp from 0 at the basin bottom to 1 at smoothDepth.
func (b *Basin) reduction() float64 {
	d := b.level - b.Bottom
	if d <= 0 {
		return 0
	}
	if d >= smoothDepth {
		return 1
	}
	return d / smoothDepth
}

// cappedInfiltration limits infiltration to the smoothed maximum the basin
// can sustain.
func (b *Basin) cappedInfiltration() float64 {
	if lim := smoothDepth * b.area / inflTimescale; b.infl > lim {
		return lim
	}
	return b.infl
}

// setForcing overwrites the held forcing values with the series entries for
// time t. Coupled basins keep the drainage/infiltration pulled from the
// exchange adapter.
func (b *Basin) setForcing(t float64) {
	b.prec = b.Precipitation.At(t)
	b.pet = b.PotentialEvaporation.At(t)
	b.urb = b.UrbanRunoff.At(t)
	if !b.coupled {
		b.drng = b.Drainage.At(t)
		b.infl = b.Infiltration.At(t)
	}
}
