package ir

// Version constants for persisted results.
const (
	// ResultsVersion is the layout version of results digests and stored runs.
	ResultsVersion = "1"

	// KernelVersion is the simulation kernel version recorded with each run.
	KernelVersion = "0.1.0"
)
