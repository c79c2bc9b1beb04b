package hag

import "errors"

// Sentinel errors surfaced by the architecture graph. Callers should
// compare with errors.Is, since most are wrapped with call-site context.
var (
	// ErrSealedGraph is returned when Add* is called on a node or builder
	// that has already been sealed.
	ErrSealedGraph = errors.New("hag: graph node is sealed")

	// ErrDuplicateName is returned when a node name collides with one
	// already registered anywhere in the graph: every builder scope of
	// one graph shares a single name registry.
	ErrDuplicateName = errors.New("hag: duplicate node name")

	// ErrUnknownNode is returned when a name does not resolve to a node.
	ErrUnknownNode = errors.New("hag: unknown node")

	// ErrOverlap is returned by SetOccupied when the requested interval
	// overlaps an existing occupancy interval on the same node.
	ErrOverlap = errors.New("hag: occupancy interval overlaps an existing interval")
)
