// Package ir provides the serialized value model shared by plans, discrete
// resource dynamics and simulation results.
//
// ir imports nothing internal so every other package can depend on it.
//
// Values are a sealed set: Null, String, Int, Real, Bool, List and Object.
// Canonical JSON (sorted keys, NFC strings, shortest round-trip reals) is the
// only encoding used for digests.
package ir
