// Package resource builds simulation state on top of timeline queries.
//
// A cell is a query whose model describes the current dynamics of one piece
// of state: an accumulator follows linear real dynamics, a counter holds an
// integer, and a register holds the last value written. Resources expose a
// cell's model as Dynamics, which solvers search for the first instant a
// condition holds and approximators cut into linear segments.
//
// Resources for one run are collected in a Registry, which is owned by that
// run and passed explicitly to whoever needs it.
package resource
