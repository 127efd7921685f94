package model

const (
	// smoothDepth is the depth (m) below which sink terms ramp linearly to
	// zero, avoiding a discontinuous derivative as a basin nears empty.
	smoothDepth = 0.1

	// inflTimescale (s) caps infiltration at what the smoothed water column
	// can sustain over one day.
	inflTimescale = 86400.

	// fracTol is the tolerance on split fractions summing to one.
	fracTol = 1e-6
)
