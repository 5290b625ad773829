// Package timeline implements the causal timeline and the per-query model
// cache.
//
// A Timeline is an append-only arena of points. Each point is one of:
//
//	advancing  one event recorded against one query's event table
//	waiting    simulated time elapsed with no event
//	joining    two branches forked from a common base merged back together
//
// A History is an immutable handle into the arena: a point index plus,
// for histories produced by Fork, the fork base both siblings must share to
// be joined. Histories never change; Emit, Wait, Fork and Join return new
// ones and the arena only grows.
//
// Queries are registered on a Schema before any timeline exists. A Query
// evaluates its model at a History by walking predecessor links back to the
// nearest cached model (or the fork base, or the origin) and replaying only
// the delta. Along a live branch at most one cached model exists for a
// query: walking past a cached point moves the entry forward instead of
// copying it. Models are copied only when a walk stops at a fork base.
//
// Effects of concurrent branches are computed independently from the same
// base and combined with the projection's Concurrently operator before being
// applied once, so siblings never observe each other.
//
// A Timeline is not safe for concurrent use. Simulations running in parallel
// each own their own Timeline.
package timeline
