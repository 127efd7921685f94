// Package ribasim simulates time-varying water storage and flow across a
// network of hydrological elements: basins, rating-curve outlets,
// level-difference links, flow splitters and level controllers. Given a node
// and edge table, per-basin storage profiles and time-varying forcing, it
// integrates the basin storages through time and produces
// mass-balance-consistent output tables.
//
// The engine lives in the subpackages: lookup (monotonic tables and forcing
// series), network (connectivity and the edge-flow buffer), ode (the
// adaptive integrator), model (formulators, right-hand side, control loop,
// exchange adapter) and input (TOML configuration and SQLite tables).
package ribasim

// Version of the simulator core.
const Version = "0.4.0"
