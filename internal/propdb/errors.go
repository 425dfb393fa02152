package propdb

import "errors"

var (
	// ErrClosed is returned by any operation attempted after Close.
	ErrClosed = errors.New("property store is closed")

	// ErrInvalidArgument is returned for caller contract violations
	// (empty category, blank query text) before any I/O happens.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrParentCycle is returned when the parent chain loops back onto an
	// entity already on the current resolution path. The upstream extractor
	// is supposed to produce a forest, but a guard beats unbounded recursion.
	ErrParentCycle = errors.New("cycle in parent chain")
)
