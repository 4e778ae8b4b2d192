// Package buffer implements the versioned page buffer layer: the
// fix/unfix protocol, page replacement, and dirty/discardable semantics
// described for the buffer & block layer.
package buffer

import "sync/atomic"

// Timestamp is a monotonic value stamped into a block's header on every
// dirty unfix. Recovery and version lookups order themselves by it.
type Timestamp uint64

var tsCounter atomic.Uint64

// AssignTimestamp returns the next value from the process-wide
// monotonic timestamp source: a single function producing values
// ordering all block modifications across every file and thread.
func AssignTimestamp() Timestamp {
	return Timestamp(tsCounter.Add(1))
}
