package tiling

import (
	"fmt"

	"codeletc/hag"
	"codeletc/ir"
)

// ConstraintKind distinguishes the two shapes a synthesized constraint
// can take, keyed off the (src kind, dst kind) pair of a DataMovement.
type ConstraintKind int

const (
	// ConstraintBandwidthEq: a compute node reading from storage must
	// move exactly bandwidth(edge) bits per access.
	ConstraintBandwidthEq ConstraintKind = iota
	// ConstraintCapacityLE: a storage node receiving from compute or
	// storage must receive no more than its byte capacity, compared in
	// bits (Limit is 8 * capacity(dst)).
	ConstraintCapacityLE
)

// Constraint is one synthesized bound on a (src, dst) DataMovement pair.
type Constraint struct {
	SrcNode, DstNode string
	Kind             ConstraintKind
	Limit            int64
}

// Check reports whether sizeElems tile elements of dtypeBits bits each
// satisfy the constraint.
func (c Constraint) Check(sizeElems, dtypeBits int) bool {
	bits := int64(sizeElems) * int64(dtypeBits)
	switch c.Kind {
	case ConstraintBandwidthEq:
		return bits == c.Limit
	case ConstraintCapacityLE:
		return bits >= 0 && bits <= c.Limit
	default:
		return false
	}
}

// SynthesizeConstraints derives one Constraint per distinct (src, dst)
// pair appearing in cdlt's DataMovements, from the HAG topology alone:
//
//	compute <- storage:            size * dtype_bits == bandwidth(edge)
//	storage <- compute or storage: 0 <= size * dtype_bits <= 8 * capacity(dst)
//	anything else:                 ErrUnsupportedTopology
func SynthesizeConstraints(g *hag.Graph, cdlt *ir.Codelet) ([]Constraint, error) {
	seen := make(map[[2]string]bool)
	var out []Constraint

	for _, dm := range cdlt.Movements {
		key := [2]string{dm.SrcNode, dm.DstNode}
		if seen[key] {
			continue
		}

		src, ok := g.Node(dm.SrcNode)
		if !ok {
			return nil, fmt.Errorf("tiling: codelet %s: unknown src node %q", cdlt.ID, dm.SrcNode)
		}
		dst, ok := g.Node(dm.DstNode)
		if !ok {
			return nil, fmt.Errorf("tiling: codelet %s: unknown dst node %q", cdlt.ID, dm.DstNode)
		}

		var c Constraint
		switch {
		case dst.Kind == hag.KindCompute && src.Kind == hag.KindStorage:
			e, ok := g.Edge(dm.SrcNode, dm.DstNode)
			if !ok {
				return nil, fmt.Errorf("tiling: codelet %s: no edge %s->%s for bandwidth constraint", cdlt.ID, dm.SrcNode, dm.DstNode)
			}
			c = Constraint{SrcNode: dm.SrcNode, DstNode: dm.DstNode, Kind: ConstraintBandwidthEq, Limit: e.BandwidthBits}
		case dst.Kind == hag.KindStorage && (src.Kind == hag.KindCompute || src.Kind == hag.KindStorage):
			c = Constraint{SrcNode: dm.SrcNode, DstNode: dm.DstNode, Kind: ConstraintCapacityLE, Limit: dst.Capacity * 8}
		default:
			return nil, fmt.Errorf("tiling: codelet %s: %s(%s)->%s(%s): %w",
				cdlt.ID, dm.SrcNode, src.Kind, dm.DstNode, dst.Kind, ErrUnsupportedTopology)
		}

		seen[key] = true
		out = append(out, c)
	}
	return out, nil
}
